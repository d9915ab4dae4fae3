package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/db/option"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/db/pagination"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/errutil"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAlreadyRecorded = errors.New("ledger: remote key already recorded")
	ErrNotFound        = errors.New("ledger: not found")
	ErrChainBroken     = errors.New("ledger: completion hash chain broken")
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	now  func() time.Time

	records  repository.Repository[CompletionRecord]
	progress repository.Repository[MemberProgress]
	levelUps repository.Repository[LevelUpEvent]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		now:  time.Now,

		records:  repository.ProvideStore[CompletionRecord](p.DB),
		progress: repository.ProvideStore[MemberProgress](p.DB),
		levelUps: repository.ProvideStore[LevelUpEvent](p.DB),
	}
}

// CompletionInput describes a processed remote work item.
type CompletionInput struct {
	RemoteKey    string
	MemberID     *string
	RewardAmount int64
	Source       Source
	Summary      string
	Priority     string
	AssigneeName string
	ResolvedAt   *time.Time
	Metadata     map[string]any
}

// Award is the outcome of adding points to a member.
type Award struct {
	MemberID string
	Amount   int64
	OldLevel int
	Progress MemberProgress
	LevelUp  *LevelUpEvent
}

type Completion struct {
	Record *CompletionRecord
	Award  *Award
}

func (s *Service) IsRecorded(ctx context.Context, remoteKey string) (bool, error) {
	n, err := s.records.Count(ctx, &CompletionRecord{RemoteKey: remoteKey})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Complete records remoteKey and, when the item is attributed, awards its
// reward in the same transaction. ErrAlreadyRecorded means nothing changed.
func (s *Service) Complete(ctx context.Context, in CompletionInput) (*Completion, error) {
	if in.RemoteKey == "" {
		return nil, fmt.Errorf("ledger: remote key is required")
	}
	if in.Source == "" {
		in.Source = SourcePoll
	}

	var out Completion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recordsTx := s.records.WithTrx(tx)

		if exist, err := recordsTx.FindOne(ctx, &CompletionRecord{RemoteKey: in.RemoteKey}); err != nil {
			return err
		} else if exist != nil {
			return ErrAlreadyRecorded
		}

		last, err := recordsTx.FindOne(ctx, nil, option.WithSortBy(option.QuerySortBy{
			SortBy:  "processed_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"processed_at": true},
		}), orderByIDDesc)
		if err != nil {
			return err
		}

		record := &CompletionRecord{
			ID:           s.node.Generate().String(),
			RemoteKey:    in.RemoteKey,
			MemberID:     in.MemberID,
			RewardAmount: in.RewardAmount,
			Source:       in.Source,
			Summary:      in.Summary,
			Priority:     in.Priority,
			AssigneeName: in.AssigneeName,
			ResolvedAt:   in.ResolvedAt,
			ProcessedAt:  s.now().UTC().Truncate(time.Microsecond),
		}
		if last != nil {
			record.PreviousHash = last.Hash
		}
		if len(in.Metadata) > 0 {
			b, err := json.Marshal(in.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata: %w", err)
			}
			record.Metadata = datatypes.JSON(b)
		}
		record.Hash = record.GenerateHash()

		if err := recordsTx.Create(ctx, record); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyRecorded
			}
			return err
		}
		out.Record = record

		if in.MemberID == nil {
			return nil
		}

		award, err := s.award(ctx, tx, *in.MemberID, in.RewardAmount, 1)
		if err != nil {
			return err
		}
		out.Award = award
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{zap.String("remote_key", in.RemoteKey), zap.Int64("reward", in.RewardAmount)}
	if out.Award != nil {
		fields = append(fields, zap.String("member_id", out.Award.MemberID), zap.Int64("points", out.Award.Progress.Points))
	}
	zap.L().Debug("completion recorded", fields...)

	return &out, nil
}

// AwardPoints adds points to a member outside of a completion, for other
// reward-granting collaborators.
func (s *Service) AwardPoints(ctx context.Context, memberID string, amount int64) (*Award, error) {
	var award *Award
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		award, err = s.award(ctx, tx, memberID, amount, 0)
		return err
	})
	return award, err
}

func (s *Service) award(ctx context.Context, tx *gorm.DB, memberID string, amount, items int64) (*Award, error) {
	progressTx := s.progress.WithTrx(tx)

	initial := LevelFor(0)
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&MemberProgress{
		MemberID: memberID,
		Level:    initial.Level,
		Title:    initial.Title,
	}).Error; err != nil {
		return nil, err
	}

	current, err := progressTx.FindOne(ctx, &MemberProgress{MemberID: memberID}, option.WithLockingUpdate())
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("ledger: progress row for %s missing after upsert", memberID)
	}

	updates := map[string]any{
		"points":          gorm.Expr("points + ?", amount),
		"items_completed": gorm.Expr("items_completed + ?", items),
		"updated_at":      s.now(),
	}
	if err := progressTx.Update(ctx, memberID, updates); err != nil {
		return nil, err
	}

	updated, err := progressTx.FindOne(ctx, &MemberProgress{MemberID: memberID})
	if err != nil {
		return nil, err
	}

	award := &Award{MemberID: memberID, Amount: amount, OldLevel: current.Level}

	next := LevelFor(updated.Points)
	if next.Level != updated.Level || next.Title != updated.Title {
		if err := progressTx.Update(ctx, memberID, map[string]any{"level": next.Level, "title": next.Title}); err != nil {
			return nil, err
		}
		updated.Level = next.Level
		updated.Title = next.Title
	}
	award.Progress = *updated

	if next.Level > current.Level {
		event := &LevelUpEvent{
			ID:         s.node.Generate().String(),
			EntityID:   memberID,
			EntityType: EntityTypeMember,
			OldLevel:   current.Level,
			NewLevel:   next.Level,
			NewTitle:   next.Title,
			CreatedAt:  s.now(),
		}
		if err := s.levelUps.WithTrx(tx).Create(ctx, event); err != nil {
			return nil, err
		}
		award.LevelUp = event
		zap.L().Info("member leveled up",
			zap.String("member_id", memberID),
			zap.Int("old_level", current.Level),
			zap.Int("new_level", next.Level),
		)
	}

	return award, nil
}

// GetProgress returns the member's progress, or a level-one zero row when
// the member has not earned anything yet.
func (s *Service) GetProgress(ctx context.Context, memberID string) (*MemberProgress, error) {
	p, err := s.progress.FindOne(ctx, &MemberProgress{MemberID: memberID})
	if err != nil {
		return nil, err
	}
	if p == nil {
		initial := LevelFor(0)
		return &MemberProgress{MemberID: memberID, Level: initial.Level, Title: initial.Title}, nil
	}
	return p, nil
}

func (s *Service) ListLevelUps(ctx context.Context, pendingOnly bool) ([]*LevelUpEvent, error) {
	opts := []option.QueryOption{option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "asc"})}
	if pendingOnly {
		opts = append(opts, option.WithWhere("acknowledged = ?", false))
	}
	return s.levelUps.Find(ctx, nil, opts...)
}

// AcknowledgeLevelUp marks the notice as dismissed. Acknowledging twice is a no-op.
func (s *Service) AcknowledgeLevelUp(ctx context.Context, id string) (*LevelUpEvent, error) {
	event, err := s.levelUps.FindOne(ctx, &LevelUpEvent{ID: id})
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, ErrNotFound
	}
	if event.Acknowledged {
		return event, nil
	}

	now := s.now()
	if err := s.levelUps.Update(ctx, id, map[string]any{"acknowledged": true, "acknowledged_at": now}); err != nil {
		return nil, err
	}
	event.Acknowledged = true
	event.AcknowledgedAt = &now
	return event, nil
}

// ListRecords pages through completion records, newest first.
func (s *Service) ListRecords(ctx context.Context, p pagination.Pagination) ([]*CompletionRecord, *pagination.PageInfo, error) {
	p = p.Normalize()

	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{SortBy: "processed_at", OrderBy: "desc", Allow: map[string]bool{"processed_at": true}}),
		orderByIDDesc,
		option.WithLimit(p.Limit + 1),
	}
	if p.Cursor != "" {
		cursor, err := pagination.DecodeCursor(p.Cursor)
		if err != nil {
			return nil, nil, errutil.BadRequest("invalid cursor", err)
		}
		at, err := time.Parse(time.RFC3339Nano, cursor.Time)
		if err != nil {
			return nil, nil, errutil.BadRequest("invalid cursor", err)
		}
		opts = append(opts, option.WithWhere("processed_at < ? OR (processed_at = ? AND id < ?)", at, at, cursor.ID))
	}

	rows, err := s.records.Find(ctx, nil, opts...)
	if err != nil {
		return nil, nil, err
	}

	page, info := pagination.BuildCursorPageInfo(rows, p.Limit, func(r *CompletionRecord) pagination.Cursor {
		return pagination.Cursor{Time: r.ProcessedAt.UTC().Format(time.RFC3339Nano), ID: r.ID}
	})
	return page, info, nil
}

// VerifyChain walks every record in insertion order and checks its hash.
func (s *Service) VerifyChain(ctx context.Context) error {
	rows, err := s.records.Find(ctx, nil,
		option.WithSortBy(option.QuerySortBy{SortBy: "processed_at", OrderBy: "asc", Allow: map[string]bool{"processed_at": true}}),
		orderByIDAsc,
	)
	if err != nil {
		return err
	}

	prev := ""
	for _, r := range rows {
		if r.PreviousHash != prev || r.GenerateHash() != r.Hash {
			return fmt.Errorf("%w at %s", ErrChainBroken, r.RemoteKey)
		}
		prev = r.Hash
	}
	return nil
}

func orderByIDDesc(db *gorm.DB) *gorm.DB {
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: true})
}

func orderByIDAsc(db *gorm.DB) *gorm.DB {
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
}
