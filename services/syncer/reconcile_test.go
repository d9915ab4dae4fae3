package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nickh0112/jira-ticket-planner-sub001/services/member"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/tracker"
)

func openIssue(key, status, accountID string, updated time.Time) tracker.Issue {
	i := tracker.Issue{
		Key:            key,
		Summary:        "Open " + key,
		Status:         status,
		StatusCategory: "indeterminate",
		Priority:       "High",
		IssueType:      "Story",
		Labels:         []string{"backend"},
		Updated:        updated,
	}
	if accountID != "" {
		i.Assignee = &tracker.Assignee{AccountID: accountID, DisplayName: "Someone"}
	}
	return i
}

func TestReconcileUpsertsAndRemovesClosedItems(t *testing.T) {
	h := newHarness(t, member.StaticResolver{"acc-1": "m-1"})
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	h.source.set([]tracker.Issue{
		openIssue("ABC-1", "In Progress", "acc-1", now),
		openIssue("ABC-2", "To Do", "acc-9", now.Add(-time.Hour)),
	}, nil)
	res, err := h.reconciler.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, ReconcileResult{Upserted: 2}, res)
	require.Contains(t, h.source.queries[0], "statusCategory != Done")

	rows, err := h.reconciler.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "ABC-1", rows[0].RemoteKey)
	require.Equal(t, "m-1", *rows[0].MemberID)
	require.Nil(t, rows[1].MemberID)
	require.JSONEq(t, `["backend"]`, string(rows[0].Labels))

	h.source.set([]tracker.Issue{openIssue("ABC-1", "In Review", "acc-1", now.Add(time.Hour))}, nil)
	res, err = h.reconciler.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, ReconcileResult{Upserted: 1, Removed: 1}, res)

	rows, err = h.reconciler.List(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "In Review", rows[0].Status)

	h.source.set(nil, nil)
	res, err = h.reconciler.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, ReconcileResult{Removed: 1}, res)
}

func TestReconcileLeavesCacheOnRemoteFailure(t *testing.T) {
	h := newHarness(t, member.StaticResolver{})
	ctx := context.Background()

	h.source.set([]tracker.Issue{openIssue("ABC-1", "To Do", "", time.Now())}, nil)
	_, err := h.reconciler.Reconcile(ctx)
	require.NoError(t, err)

	h.source.set(nil, &tracker.PermanentError{StatusCode: 401, Message: "unauthorized"})
	_, err = h.reconciler.Reconcile(ctx)
	require.True(t, tracker.IsPermanent(err))

	rows, err := h.reconciler.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestReconcileSharesConcurrentRuns(t *testing.T) {
	h := newHarness(t, member.StaticResolver{})
	h.source.set([]tracker.Issue{openIssue("ABC-1", "To Do", "", time.Now())}, nil)
	h.source.entered = make(chan struct{}, 8)
	h.source.gate = make(chan struct{})

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.reconciler.Reconcile(context.Background())
		}()
	}
	<-h.source.entered
	time.Sleep(20 * time.Millisecond)
	close(h.source.gate)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Less(t, len(h.source.queries), 3)
}

func TestReconcileResolverError(t *testing.T) {
	h := newHarness(t, resolverFunc(func(context.Context, member.Identity) (string, bool, error) {
		return "", false, errors.New("roster unavailable")
	}))
	h.source.set([]tracker.Issue{openIssue("ABC-1", "To Do", "acc-1", time.Now())}, nil)

	_, err := h.reconciler.Reconcile(context.Background())
	require.ErrorContains(t, err, "roster unavailable")
}
