package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/taskname"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/events"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/member"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/tracker"
)

func TestHandleReconcileActiveTask(t *testing.T) {
	h := newHarness(t, member.StaticResolver{})
	h.source.set([]tracker.Issue{openIssue("ABC-1", "To Do", "", time.Now())}, nil)

	task := NewReconcileActiveTask()
	require.Equal(t, taskname.TrackerReconcileActive, task.Type())
	require.NoError(t, NewTaskHandler(h.reconciler).HandleReconcileActive(context.Background(), task))

	rows, err := h.reconciler.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestActiveRefresherRunsAfterNewCompletions(t *testing.T) {
	h := newHarness(t, member.StaticResolver{})
	h.source.set([]tracker.Issue{openIssue("ABC-1", "To Do", "", time.Now())}, nil)

	a := &activeRefresher{reconciler: h.reconciler, run: func(fn func()) { fn() }}

	require.NoError(t, a.handle(events.New(events.KindSyncCompleted, events.SyncCompletedData{Processed: 0})))
	require.NoError(t, a.handle(events.New(events.KindSyncStarted, events.SyncStartedData{})))
	require.Empty(t, h.source.queries)

	require.NoError(t, a.handle(events.New(events.KindSyncCompleted, events.SyncCompletedData{Processed: 2})))
	require.Len(t, h.source.queries, 1)

	enq := &fakeEnqueuer{}
	a.enqueuer = enq
	require.NoError(t, a.handle(events.New(events.KindSyncCompleted, events.SyncCompletedData{Processed: 1})))
	require.Len(t, enq.tasks, 1)
	require.Len(t, h.source.queries, 1)
}

type fakeLockClient struct {
	held    map[string]string
	evalled []string
}

func (f *fakeLockClient) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.held[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.held[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeLockClient) Eval(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	f.evalled = append(f.evalled, keys[0])
	if f.held[keys[0]] == args[0].(string) {
		delete(f.held, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisLocker(t *testing.T) {
	client := &fakeLockClient{held: map[string]string{}}
	l := NewRedisLocker(client, "ticketsync:sync:lock:cycle", 0)
	require.Equal(t, defaultLockTTL, l.ttl)
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	release()
	require.Empty(t, client.held)
	require.Equal(t, []string{"ticketsync:sync:lock:cycle"}, client.evalled)

	_, ok, err = l.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}
