package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/config"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/events"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/ledger"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/member"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/tracker"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("ticketsync/syncer")

// IssueSource runs tracker queries. *tracker.Client satisfies it.
type IssueSource interface {
	SearchIssues(ctx context.Context, jql string) ([]tracker.Issue, error)
}

// CycleResult summarises one cycle. Err is set when the cycle ended with
// sync_error; it is informational only.
type CycleResult struct {
	CycleID      string
	Processed    int
	Skipped      int
	Unattributed int
	TotalReward  int64
	Err          error
}

type Processor struct {
	source   IssueSource
	project  string
	ledger   *ledger.Service
	resolver member.Resolver
	rewards  *RewardPolicy
	state    *StateStore
	bus      events.Publisher
	now      func() time.Time
}

type ProcessorParams struct {
	fx.In
	Config   *config.Config
	Source   IssueSource
	Ledger   *ledger.Service
	Resolver member.Resolver
	Rewards  *RewardPolicy
	State    *StateStore
	Bus      events.Publisher
}

func NewProcessor(p ProcessorParams) *Processor {
	return &Processor{
		source:   p.Source,
		project:  p.Config.Tracker.Project,
		ledger:   p.Ledger,
		resolver: p.Resolver,
		rewards:  p.Rewards,
		state:    p.State,
		bus:      p.Bus,
		now:      time.Now,
	}
}

// RunCycle performs one sync cycle and always publishes exactly one
// terminal event. It never returns an error or panics into the caller.
func (p *Processor) RunCycle(ctx context.Context) (res CycleResult) {
	res.CycleID = uuid.NewString()

	ctx, span := tracer.Start(ctx, "syncer.cycle")
	defer span.End()
	span.SetAttributes(attribute.String("cycle_id", res.CycleID))

	zapLog := zap.L().With(
		zap.String("cycle_id", res.CycleID),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)

	started := p.now()
	p.bus.Publish(events.New(events.KindSyncStarted, events.SyncStartedData{CycleID: res.CycleID}))

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("sync cycle panic: %v", r)
		}
		if res.Err != nil {
			span.RecordError(res.Err)
			span.SetStatus(codes.Error, res.Err.Error())
			p.fail(ctx, res, zapLog)
			return
		}
		p.succeed(ctx, res, started, zapLog)
	}()

	res.Err = p.process(ctx, &res, started, zapLog)
	return res
}

func (p *Processor) process(ctx context.Context, res *CycleResult, started time.Time, zapLog *zap.Logger) error {
	if err := p.state.MarkStarted(ctx, started); err != nil {
		return fmt.Errorf("mark sync started: %w", err)
	}
	state, err := p.state.Get(ctx)
	if err != nil {
		return fmt.Errorf("load sync state: %w", err)
	}

	issues, err := p.source.SearchIssues(ctx, tracker.CompletedQuery(p.project, state.BaselineDate))
	if err != nil {
		return fmt.Errorf("fetch completed items: %w", err)
	}
	zapLog.Debug("completed items fetched", zap.Int("count", len(issues)))

	for _, issue := range issues {
		if state.BaselineDate != nil && issue.ResolvedAt != nil && issue.ResolvedAt.Before(*state.BaselineDate) {
			res.Skipped++
			continue
		}

		done, err := p.processIssue(ctx, issue, res)
		if err != nil {
			return fmt.Errorf("process %s: %w", issue.Key, err)
		}
		if !done {
			res.Skipped++
		}
	}
	return nil
}

// processIssue records one item and publishes its events after commit.
// It reports false when the item was already in the ledger.
func (p *Processor) processIssue(ctx context.Context, issue tracker.Issue, res *CycleResult) (bool, error) {
	recorded, err := p.ledger.IsRecorded(ctx, issue.Key)
	if err != nil {
		return false, err
	}
	if recorded {
		return false, nil
	}

	reward, err := p.rewards.Reward(issue)
	if err != nil {
		return false, err
	}

	in := ledger.CompletionInput{
		RemoteKey:    issue.Key,
		RewardAmount: reward,
		Source:       ledger.SourcePoll,
		Summary:      issue.Summary,
		Priority:     issue.Priority,
		ResolvedAt:   issue.ResolvedAt,
		Metadata: map[string]any{
			"status":    issue.Status,
			"issueType": issue.IssueType,
			"labels":    issue.Labels,
		},
	}

	if issue.Assignee != nil {
		in.AssigneeName = issue.Assignee.DisplayName
		memberID, ok, err := p.resolver.Resolve(ctx, member.Identity{
			AccountID:   issue.Assignee.AccountID,
			DisplayName: issue.Assignee.DisplayName,
			Email:       issue.Assignee.EmailAddress,
		})
		if err != nil {
			return false, fmt.Errorf("resolve assignee: %w", err)
		}
		if ok {
			in.MemberID = &memberID
		}
	}

	out, err := p.ledger.Complete(ctx, in)
	if errors.Is(err, ledger.ErrAlreadyRecorded) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	res.Processed++
	res.TotalReward += reward
	itemsProcessed.Inc()

	p.bus.Publish(events.New(events.KindTicketCompleted, events.TicketCompletedData{
		RemoteKey:    issue.Key,
		Summary:      issue.Summary,
		MemberID:     in.MemberID,
		RewardAmount: reward,
	}))

	award := out.Award
	if award == nil {
		res.Unattributed++
		return true, nil
	}

	pointsAwarded.Add(float64(award.Amount))
	p.bus.Publish(events.New(events.KindXPAwarded, events.XPAwardedData{
		MemberID:    award.MemberID,
		RemoteKey:   issue.Key,
		Amount:      award.Amount,
		TotalPoints: award.Progress.Points,
		Level:       award.Progress.Level,
	}))

	if lu := award.LevelUp; lu != nil {
		p.bus.Publish(events.New(events.KindLevelUp, events.LevelUpData{
			EventID:  lu.ID,
			MemberID: lu.EntityID,
			OldLevel: lu.OldLevel,
			NewLevel: lu.NewLevel,
			NewTitle: lu.NewTitle,
		}))
	}
	return true, nil
}

func (p *Processor) succeed(ctx context.Context, res CycleResult, started time.Time, zapLog *zap.Logger) {
	if err := p.state.RecordSuccess(context.WithoutCancel(ctx), started); err != nil {
		zapLog.Error("failed to record sync success", zap.Error(err))
	}
	cyclesTotal.WithLabelValues("success").Inc()

	p.bus.Publish(events.New(events.KindSyncCompleted, events.SyncCompletedData{
		CycleID:      res.CycleID,
		Processed:    res.Processed,
		TotalReward:  res.TotalReward,
		Skipped:      res.Skipped,
		Unattributed: res.Unattributed,
	}))

	zapLog.Info("sync cycle completed",
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int("unattributed", res.Unattributed),
		zap.Int64("total_reward", res.TotalReward),
		zap.Duration("duration", time.Since(started)),
	)
}

// fail persists the failure without undoing records already committed in
// this cycle.
func (p *Processor) fail(ctx context.Context, res CycleResult, zapLog *zap.Logger) {
	msg := res.Err.Error()
	if err := p.state.RecordFailure(context.WithoutCancel(ctx), msg); err != nil {
		zapLog.Error("failed to record sync failure", zap.Error(err))
	}
	cyclesTotal.WithLabelValues("error").Inc()

	p.bus.Publish(events.New(events.KindSyncError, events.SyncErrorData{CycleID: res.CycleID, Message: msg}))

	zapLog.Error("sync cycle failed",
		zap.Int("processed", res.Processed),
		zap.Bool("transient", tracker.IsTransient(res.Err)),
		zap.Error(res.Err),
	)
}
