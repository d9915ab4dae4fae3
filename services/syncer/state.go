package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/config"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/errutil"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const minIntervalMs = 1000

// ConfigUpdate is a partial change of the scheduler settings. A nil field
// is left alone; an empty BaselineDate clears the baseline.
type ConfigUpdate struct {
	Enabled      *bool   `json:"enabled"`
	IntervalMs   *int64  `json:"intervalMs"`
	BaselineDate *string `json:"baselineDate"`
}

func (u ConfigUpdate) Validate() error {
	if u.IntervalMs != nil && *u.IntervalMs < minIntervalMs {
		return errutil.BadRequest("invalid sync config", nil,
			errutil.WithField("intervalMs", fmt.Sprintf("must be at least %d", minIntervalMs)))
	}
	if u.BaselineDate != nil {
		if _, err := parseBaseline(*u.BaselineDate); err != nil {
			return errutil.BadRequest("invalid sync config", err,
				errutil.WithField("baselineDate", "must be formatted as YYYY-MM-DD"))
		}
	}
	return nil
}

func parseBaseline(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// StateStore persists the singleton SyncState row.
type StateStore struct {
	db       *gorm.DB
	repo     repository.Repository[SyncState]
	defaults config.Sync
	now      func() time.Time
}

func NewStateStore(db *gorm.DB, cfg *config.Config) *StateStore {
	return &StateStore{
		db:       db,
		repo:     repository.ProvideStore[SyncState](db),
		defaults: cfg.Sync,
		now:      time.Now,
	}
}

// Get returns the state row, creating it from the configured defaults the
// first time.
func (s *StateStore) Get(ctx context.Context) (*SyncState, error) {
	state, err := s.repo.FindOne(ctx, &SyncState{ID: singletonID})
	if err != nil {
		return nil, err
	}
	if state != nil {
		return state, nil
	}

	initial, err := s.initial()
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(initial).Error; err != nil {
		return nil, fmt.Errorf("create sync state: %w", err)
	}
	return s.repo.FindOne(ctx, &SyncState{ID: singletonID})
}

func (s *StateStore) initial() (*SyncState, error) {
	baseline, err := s.defaults.Baseline()
	if err != nil {
		return nil, err
	}
	interval := s.defaults.IntervalMs
	if interval < minIntervalMs {
		interval = minIntervalMs
	}
	return &SyncState{
		ID:           singletonID,
		Enabled:      s.defaults.Enabled,
		IntervalMs:   interval,
		BaselineDate: baseline,
		UpdatedAt:    s.now(),
	}, nil
}

func (s *StateStore) update(ctx context.Context, values map[string]any) error {
	if _, err := s.Get(ctx); err != nil {
		return err
	}
	values["updated_at"] = s.now()
	return s.db.WithContext(ctx).Model(&SyncState{}).Where("id = ?", singletonID).Updates(values).Error
}

func (s *StateStore) MarkStarted(ctx context.Context, at time.Time) error {
	return s.update(ctx, map[string]any{"last_sync_at": at})
}

// RecordSuccess stamps the successful sync time and clears the failure streak.
func (s *StateStore) RecordSuccess(ctx context.Context, at time.Time) error {
	return s.update(ctx, map[string]any{
		"last_successful_sync_at": at,
		"error_count":             0,
		"last_error":              nil,
	})
}

func (s *StateStore) RecordFailure(ctx context.Context, message string) error {
	return s.update(ctx, map[string]any{
		"error_count": gorm.Expr("error_count + ?", 1),
		"last_error":  message,
	})
}

// Apply validates and persists u, returning the resulting state.
func (s *StateStore) Apply(ctx context.Context, u ConfigUpdate) (*SyncState, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	values := map[string]any{}
	if u.Enabled != nil {
		values["enabled"] = *u.Enabled
	}
	if u.IntervalMs != nil {
		values["interval_ms"] = *u.IntervalMs
	}
	if u.BaselineDate != nil {
		baseline, _ := parseBaseline(*u.BaselineDate)
		values["baseline_date"] = baseline
	}
	if len(values) > 0 {
		if err := s.update(ctx, values); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx)
}
