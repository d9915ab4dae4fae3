package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/nickh0112/jira-ticket-planner-sub001/services/events"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/ledger"

	"go.uber.org/zap"
)

// ProgressFetcher loads the authoritative progress of a member.
type ProgressFetcher interface {
	FetchProgress(ctx context.Context, memberID string) (*ledger.MemberProgress, error)
}

// Notice is a level-up announcement shown to the viewer.
type Notice struct {
	EventID  string
	MemberID string
	Level    int
	Title    string
	Message  string
}

// ProgressView is one viewer's local copy of a member's progress, kept
// current from the event stream.
type ProgressView struct {
	memberID string
	fetcher  ProgressFetcher
	notify   func(Notice)

	mu        sync.RWMutex
	progress  ledger.MemberProgress
	notices   []Notice
	lastError string
}

func NewProgressView(memberID string, fetcher ProgressFetcher, notify func(Notice)) *ProgressView {
	return &ProgressView{
		memberID: memberID,
		fetcher:  fetcher,
		notify:   notify,
		progress: ledger.MemberProgress{MemberID: memberID, Level: 1},
	}
}

// Register installs the view's dispatch table on c.
func (v *ProgressView) Register(c *Consumer) {
	c.Handle(events.KindConnected, v.onConnected)
	c.Handle(events.KindXPAwarded, v.onXPAwarded)
	c.Handle(events.KindLevelUp, v.onLevelUp)
	c.Handle(events.KindSyncCompleted, v.onSyncCompleted)
	c.Handle(events.KindSyncError, v.onSyncError)
}

func (v *ProgressView) Progress() ledger.MemberProgress {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.progress
}

func (v *ProgressView) Notices() []Notice {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]Notice(nil), v.notices...)
}

func (v *ProgressView) LastError() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lastError
}

// Refresh replaces the local copy with the fetched one.
func (v *ProgressView) Refresh(ctx context.Context) error {
	if v.fetcher == nil {
		return nil
	}
	p, err := v.fetcher.FetchProgress(ctx, v.memberID)
	if err != nil {
		return fmt.Errorf("refetch progress: %w", err)
	}
	v.mu.Lock()
	v.progress = *p
	v.mu.Unlock()
	return nil
}

// Events missed while disconnected are never replayed, so a fresh
// connection starts from a refetch.
func (v *ProgressView) onConnected(ctx context.Context, _ events.Envelope) error {
	return v.Refresh(ctx)
}

func (v *ProgressView) onXPAwarded(_ context.Context, env events.Envelope) error {
	var data events.XPAwardedData
	if err := env.Decode(&data); err != nil {
		return err
	}
	if data.MemberID != v.memberID {
		return nil
	}
	v.mu.Lock()
	v.progress.Points += data.Amount
	v.progress.ItemsCompleted++
	v.mu.Unlock()
	return nil
}

func (v *ProgressView) onLevelUp(ctx context.Context, env events.Envelope) error {
	var data events.LevelUpData
	if err := env.Decode(&data); err != nil {
		return err
	}
	if data.MemberID != v.memberID {
		return nil
	}

	n := Notice{
		EventID:  data.EventID,
		MemberID: data.MemberID,
		Level:    data.NewLevel,
		Title:    data.NewTitle,
		Message:  fmt.Sprintf("Level up! You are now level %d: %s", data.NewLevel, data.NewTitle),
	}
	v.mu.Lock()
	v.notices = append(v.notices, n)
	v.mu.Unlock()

	zap.L().Info(n.Message, zap.String("member_id", n.MemberID))
	if v.notify != nil {
		v.notify(n)
	}
	return v.Refresh(ctx)
}

func (v *ProgressView) onSyncCompleted(ctx context.Context, _ events.Envelope) error {
	v.mu.Lock()
	v.lastError = ""
	v.mu.Unlock()
	return v.Refresh(ctx)
}

func (v *ProgressView) onSyncError(_ context.Context, env events.Envelope) error {
	var data events.SyncErrorData
	if err := env.Decode(&data); err != nil {
		return err
	}
	v.mu.Lock()
	v.lastError = data.Message
	v.mu.Unlock()
	return nil
}
