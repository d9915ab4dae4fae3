package syncer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/config"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/events"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/ledger"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/member"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/testutil"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/tracker"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

// fakeSource serves a fixed issue list; gate, when set, holds every search
// until it is closed.
type fakeSource struct {
	mu      sync.Mutex
	issues  []tracker.Issue
	err     error
	queries []string
	entered chan struct{}
	gate    chan struct{}
}

func (f *fakeSource) SearchIssues(ctx context.Context, jql string) ([]tracker.Issue, error) {
	f.mu.Lock()
	f.queries = append(f.queries, jql)
	issues, err, entered, gate := f.issues, f.err, f.entered, f.gate
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	return issues, err
}

func (f *fakeSource) set(issues []tracker.Issue, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues, f.err = issues, err
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) ofKind(kind events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type resolverFunc func(ctx context.Context, who member.Identity) (string, bool, error)

func (f resolverFunc) Resolve(ctx context.Context, who member.Identity) (string, bool, error) {
	return f(ctx, who)
}

type harness struct {
	db         *gorm.DB
	cfg        *config.Config
	source     *fakeSource
	bus        *recorder
	ledger     *ledger.Service
	state      *StateStore
	processor  *Processor
	reconciler *Reconciler
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Tracker.Project = "ABC"
	cfg.Sync = config.Sync{Enabled: true, IntervalMs: 60000, BaselineDate: "2024-01-01"}
	return cfg
}

func newHarness(t *testing.T, resolver member.Resolver) *harness {
	t.Helper()

	models := append(ledger.Models(), Models()...)
	db := testutil.NewTestDB(t, models...)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := testConfig()
	rewards, err := NewRewardPolicy("")
	require.NoError(t, err)

	h := &harness{
		db:     db,
		cfg:    cfg,
		source: &fakeSource{},
		bus:    &recorder{},
		ledger: ledger.NewService(ledger.ServiceParams{DB: db, Node: node}),
		state:  NewStateStore(db, cfg),
	}
	h.processor = NewProcessor(ProcessorParams{
		Config:   cfg,
		Source:   h.source,
		Ledger:   h.ledger,
		Resolver: resolver,
		Rewards:  rewards,
		State:    h.state,
		Bus:      h.bus,
	})
	h.reconciler = NewReconciler(ReconcilerParams{DB: db, Config: cfg, Source: h.source, Resolver: resolver})
	return h
}

func (h *harness) seedProgress(t *testing.T, memberID string, points int64) {
	t.Helper()
	lvl := ledger.LevelFor(points)
	require.NoError(t, h.db.Create(&ledger.MemberProgress{
		MemberID: memberID, Points: points, Level: lvl.Level, Title: lvl.Title,
	}).Error)
}

func (h *harness) countRecords(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&ledger.CompletionRecord{}).Count(&n).Error)
	return n
}

func date(s string) *time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func issue(key, accountID, name, resolved string) tracker.Issue {
	i := tracker.Issue{
		Key:            key,
		Summary:        "Work on " + key,
		Status:         "Done",
		StatusCategory: "done",
		Priority:       "Medium",
		IssueType:      "Task",
		ResolvedAt:     date(resolved),
	}
	if accountID != "" || name != "" {
		i.Assignee = &tracker.Assignee{AccountID: accountID, DisplayName: name}
	}
	return i
}
