package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/db/pagination"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/repository"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type repoMock[T any] struct {
	repository.Repository[T]
	countFn func(ctx context.Context, query *T) (int64, error)
}

func (m *repoMock[T]) Count(ctx context.Context, query *T) (int64, error) {
	return m.countFn(ctx, query)
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t, Models()...)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(ServiceParams{DB: db, Node: node}), db
}

func ptr(s string) *string { return &s }

func seedProgress(t *testing.T, db *gorm.DB, memberID string, points int64) {
	t.Helper()
	lvl := LevelFor(points)
	require.NoError(t, db.Create(&MemberProgress{MemberID: memberID, Points: points, Level: lvl.Level, Title: lvl.Title}).Error)
}

func TestNewService(t *testing.T) {
	svc, _ := newTestService(t)

	require.NotNil(t, svc.records)
	require.NotNil(t, svc.progress)
	require.NotNil(t, svc.levelUps)
}

func TestCompleteUnattributed(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	out, err := svc.Complete(ctx, CompletionInput{RemoteKey: "ABC-9", RewardAmount: 75})
	require.NoError(t, err)
	require.Nil(t, out.Award)
	require.Nil(t, out.Record.MemberID)
	require.Equal(t, SourcePoll, out.Record.Source)

	var progressRows int64
	require.NoError(t, db.Model(&MemberProgress{}).Count(&progressRows).Error)
	require.Zero(t, progressRows)

	recorded, err := svc.IsRecorded(ctx, "ABC-9")
	require.NoError(t, err)
	require.True(t, recorded)
}

func TestCompleteCrossesLevelThreshold(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedProgress(t, db, "m-1", 190)

	out, err := svc.Complete(ctx, CompletionInput{
		RemoteKey:    "ABC-1",
		MemberID:     ptr("m-1"),
		RewardAmount: 75,
		Metadata:     map[string]any{"priority": "Medium"},
	})
	require.NoError(t, err)
	require.NotNil(t, out.Award)
	require.Equal(t, int64(265), out.Award.Progress.Points)
	require.Equal(t, int64(1), out.Award.Progress.ItemsCompleted)
	require.Equal(t, 2, out.Award.OldLevel)
	require.Equal(t, 3, out.Award.Progress.Level)
	require.Equal(t, "Developer", out.Award.Progress.Title)

	require.NotNil(t, out.Award.LevelUp)
	require.Equal(t, 2, out.Award.LevelUp.OldLevel)
	require.Equal(t, 3, out.Award.LevelUp.NewLevel)
	require.Equal(t, EntityTypeMember, out.Award.LevelUp.EntityType)
	require.False(t, out.Award.LevelUp.Acknowledged)

	stored, err := svc.GetProgress(ctx, "m-1")
	require.NoError(t, err)
	require.Equal(t, int64(265), stored.Points)
	require.Equal(t, 3, stored.Level)
}

func TestCompleteDuplicateKey(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := svc.Complete(ctx, CompletionInput{RemoteKey: "ABC-1", MemberID: ptr("m-1"), RewardAmount: 50})
	require.NoError(t, err)

	_, err = svc.Complete(ctx, CompletionInput{RemoteKey: "ABC-1", MemberID: ptr("m-1"), RewardAmount: 50})
	require.ErrorIs(t, err, ErrAlreadyRecorded)

	var n int64
	require.NoError(t, db.Model(&CompletionRecord{}).Count(&n).Error)
	require.Equal(t, int64(1), n)

	progress, err := svc.GetProgress(ctx, "m-1")
	require.NoError(t, err)
	require.Equal(t, int64(50), progress.Points)
	require.Equal(t, int64(1), progress.ItemsCompleted)
}

func TestCompleteConcurrentSameKey(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	var g errgroup.Group
	results := make([]error, 8)
	for i := range results {
		g.Go(func() error {
			_, results[i] = svc.Complete(ctx, CompletionInput{RemoteKey: "ABC-7", MemberID: ptr("m-2"), RewardAmount: 10})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyRecorded)
	}
	require.Equal(t, 1, succeeded)

	var n int64
	require.NoError(t, db.Model(&CompletionRecord{}).Where("remote_key = ?", "ABC-7").Count(&n).Error)
	require.Equal(t, int64(1), n)

	progress, err := svc.GetProgress(ctx, "m-2")
	require.NoError(t, err)
	require.Equal(t, int64(10), progress.Points)
}

func TestAwardPointsWithoutCompletion(t *testing.T) {
	svc, _ := newTestService(t)

	award, err := svc.AwardPoints(context.Background(), "m-3", 120)
	require.NoError(t, err)
	require.Equal(t, int64(120), award.Progress.Points)
	require.Zero(t, award.Progress.ItemsCompleted)
	require.Equal(t, 2, award.Progress.Level)
	require.NotNil(t, award.LevelUp)
	require.Equal(t, 1, award.LevelUp.OldLevel)
}

func TestGetProgressDefaults(t *testing.T) {
	svc, _ := newTestService(t)

	p, err := svc.GetProgress(context.Background(), "nobody")
	require.NoError(t, err)
	require.Equal(t, 1, p.Level)
	require.Equal(t, "Intern", p.Title)
	require.Zero(t, p.Points)
}

func TestAcknowledgeLevelUp(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	award, err := svc.AwardPoints(ctx, "m-1", 200)
	require.NoError(t, err)
	require.NotNil(t, award.LevelUp)

	pending, err := svc.ListLevelUps(ctx, true)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	acked, err := svc.AcknowledgeLevelUp(ctx, award.LevelUp.ID)
	require.NoError(t, err)
	require.True(t, acked.Acknowledged)
	require.NotNil(t, acked.AcknowledgedAt)

	pending, err = svc.ListLevelUps(ctx, true)
	require.NoError(t, err)
	require.Empty(t, pending)

	all, err := svc.ListLevelUps(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = svc.AcknowledgeLevelUp(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyChain(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	for _, key := range []string{"ABC-1", "ABC-2", "ABC-3"} {
		_, err := svc.Complete(ctx, CompletionInput{RemoteKey: key, RewardAmount: 10})
		require.NoError(t, err)
	}
	require.NoError(t, svc.VerifyChain(ctx))

	require.NoError(t, db.Model(&CompletionRecord{}).Where("remote_key = ?", "ABC-2").
		Update("reward_amount", 9999).Error)
	require.ErrorIs(t, svc.VerifyChain(ctx), ErrChainBroken)
}

func TestListRecordsPaginates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, key := range []string{"ABC-1", "ABC-2", "ABC-3"} {
		_, err := svc.Complete(ctx, CompletionInput{RemoteKey: key, RewardAmount: 10})
		require.NoError(t, err)
	}

	first, info, err := svc.ListRecords(ctx, pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.True(t, info.HasMore)
	require.Equal(t, "ABC-3", first[0].RemoteKey)

	second, info, err := svc.ListRecords(ctx, pagination.Pagination{Limit: 2, Cursor: info.NextCursor})
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.False(t, info.HasMore)
	require.Equal(t, "ABC-1", second[0].RemoteKey)

	_, _, err = svc.ListRecords(ctx, pagination.Pagination{Cursor: "%%%"})
	require.Error(t, err)
}

func TestIsRecordedPropagatesErrors(t *testing.T) {
	svc := &Service{
		records: &repoMock[CompletionRecord]{
			countFn: func(ctx context.Context, _ *CompletionRecord) (int64, error) {
				return 0, errors.New("db down")
			},
		},
	}

	_, err := svc.IsRecorded(context.Background(), "ABC-1")
	require.EqualError(t, err, "db down")
}
