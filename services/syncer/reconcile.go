package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/config"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/db/option"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/repository"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/member"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/tracker"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReconcileResult struct {
	Upserted int `json:"upserted"`
	Removed  int `json:"removed"`
}

// Reconciler mirrors the currently open remote items into the
// active_tickets cache. Each run replaces the cache contents.
type Reconciler struct {
	db       *gorm.DB
	repo     repository.Repository[ActiveTicket]
	source   IssueSource
	project  string
	resolver member.Resolver
	group    singleflight.Group
	now      func() time.Time
}

type ReconcilerParams struct {
	fx.In
	DB       *gorm.DB
	Config   *config.Config
	Source   IssueSource
	Resolver member.Resolver
}

func NewReconciler(p ReconcilerParams) *Reconciler {
	return &Reconciler{
		db:       p.DB,
		repo:     repository.ProvideStore[ActiveTicket](p.DB),
		source:   p.Source,
		project:  p.Config.Tracker.Project,
		resolver: p.Resolver,
		now:      time.Now,
	}
}

// Reconcile refreshes the cache. Concurrent callers share one run.
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	v, err, shared := r.group.Do("active", func() (any, error) {
		return r.reconcile(ctx)
	})
	if err != nil {
		return ReconcileResult{}, err
	}
	if shared {
		zap.L().Debug("active reconciliation shared with a concurrent caller")
	}
	return v.(ReconcileResult), nil
}

func (r *Reconciler) reconcile(ctx context.Context) (ReconcileResult, error) {
	ctx, span := tracer.Start(ctx, "syncer.reconcile_active")
	defer span.End()

	issues, err := r.source.SearchIssues(ctx, tracker.ActiveQuery(r.project))
	if err != nil {
		span.RecordError(err)
		return ReconcileResult{}, fmt.Errorf("fetch active items: %w", err)
	}

	syncedAt := r.now().UTC()
	rows := make([]*ActiveTicket, 0, len(issues))
	keys := make([]string, 0, len(issues))
	for _, issue := range issues {
		row, err := r.toRow(ctx, issue, syncedAt)
		if err != nil {
			return ReconcileResult{}, err
		}
		rows = append(rows, row)
		keys = append(keys, issue.Key)
	}

	var res ReconcileResult
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "remote_key"}},
				UpdateAll: true,
			}).CreateInBatches(rows, 100).Error; err != nil {
				return fmt.Errorf("upsert active items: %w", err)
			}
		}

		stale := tx.Where("1 = 1")
		if len(keys) > 0 {
			stale = tx.Where("remote_key NOT IN ?", keys)
		}
		del := stale.Delete(&ActiveTicket{})
		if del.Error != nil {
			return fmt.Errorf("remove closed items: %w", del.Error)
		}
		res = ReconcileResult{Upserted: len(rows), Removed: int(del.RowsAffected)}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return ReconcileResult{}, err
	}

	span.SetAttributes(attribute.Int("upserted", res.Upserted), attribute.Int("removed", res.Removed))
	zap.L().Info("active items reconciled", zap.Int("upserted", res.Upserted), zap.Int("removed", res.Removed))
	return res, nil
}

func (r *Reconciler) toRow(ctx context.Context, issue tracker.Issue, syncedAt time.Time) (*ActiveTicket, error) {
	row := &ActiveTicket{
		RemoteKey:       issue.Key,
		Summary:         issue.Summary,
		Status:          issue.Status,
		StatusCategory:  issue.StatusCategory,
		Priority:        issue.Priority,
		IssueType:       issue.IssueType,
		RemoteUpdatedAt: issue.Updated,
		SyncedAt:        syncedAt,
	}
	if len(issue.Labels) > 0 {
		b, err := json.Marshal(issue.Labels)
		if err != nil {
			return nil, err
		}
		row.Labels = datatypes.JSON(b)
	}
	if a := issue.Assignee; a != nil {
		row.AssigneeAccountID = a.AccountID
		row.AssigneeName = a.DisplayName
		id, ok, err := r.resolver.Resolve(ctx, member.Identity{AccountID: a.AccountID, DisplayName: a.DisplayName, Email: a.EmailAddress})
		if err != nil {
			return nil, fmt.Errorf("resolve assignee of %s: %w", issue.Key, err)
		}
		if ok {
			row.MemberID = &id
		}
	}
	return row, nil
}

// List returns the cached open items, most recently updated first.
func (r *Reconciler) List(ctx context.Context, memberID string) ([]*ActiveTicket, error) {
	var query *ActiveTicket
	if memberID != "" {
		query = &ActiveTicket{MemberID: &memberID}
	}
	return r.repo.Find(ctx, query, option.WithSortBy(option.QuerySortBy{
		SortBy:  "remote_updated_at",
		OrderBy: "desc",
		Allow:   map[string]bool{"remote_updated_at": true},
	}))
}
