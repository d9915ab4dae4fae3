package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/errutil"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/member"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/tracker"
)

func TestStateCreatedFromDefaults(t *testing.T) {
	h := newHarness(t, member.StaticResolver{})
	ctx := context.Background()

	state, err := h.state.Get(ctx)
	require.NoError(t, err)
	require.True(t, state.Enabled)
	require.Equal(t, int64(60000), state.IntervalMs)
	require.Equal(t, time.Minute, state.Interval())
	require.NotNil(t, state.BaselineDate)
	require.Equal(t, "2024-01-01", state.BaselineDate.Format(time.DateOnly))
	require.Zero(t, state.ErrorCount)

	again, err := h.state.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, state.IntervalMs, again.IntervalMs)

	var n int64
	require.NoError(t, h.db.Model(&SyncState{}).Count(&n).Error)
	require.Equal(t, int64(1), n)
}

func TestStateDefaultsClampInterval(t *testing.T) {
	h := newHarness(t, member.StaticResolver{})
	h.state.defaults.IntervalMs = 0

	state, err := h.state.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(minIntervalMs), state.IntervalMs)
}

func TestApplyValidates(t *testing.T) {
	h := newHarness(t, member.StaticResolver{})
	ctx := context.Background()

	bad := "01/02/2024"
	_, err := h.state.Apply(ctx, ConfigUpdate{BaselineDate: &bad})
	var be errutil.BaseError
	require.ErrorAs(t, err, &be)
	require.Equal(t, "baselineDate", be.Details[0].Field)

	short := int64(999)
	_, err = h.state.Apply(ctx, ConfigUpdate{IntervalMs: &short})
	require.ErrorAs(t, err, &be)
	require.Equal(t, "intervalMs", be.Details[0].Field)

	baseline := "2024-06-15"
	interval := int64(1000)
	state, err := h.state.Apply(ctx, ConfigUpdate{BaselineDate: &baseline, IntervalMs: &interval})
	require.NoError(t, err)
	require.Equal(t, "2024-06-15", state.BaselineDate.Format(time.DateOnly))
	require.Equal(t, int64(1000), state.IntervalMs)

	state, err = h.state.Apply(ctx, ConfigUpdate{})
	require.NoError(t, err)
	require.Equal(t, int64(1000), state.IntervalMs)
}

func TestRewardPolicy(t *testing.T) {
	p, err := NewRewardPolicy("")
	require.NoError(t, err)

	cases := map[string]int64{"Highest": 150, "High": 100, "Medium": 75, "": 75, "Low": 50, "Lowest": 25, "Blocker": 75}
	for priority, want := range cases {
		got, err := p.Reward(tracker.Issue{Key: "ABC-1", Priority: priority})
		require.NoError(t, err)
		require.Equal(t, want, got, "priority %q", priority)
	}

	custom, err := NewRewardPolicy(`("bug" in labels ? 20 : 0) + (issue_type == "Story" ? 80 : 40)`)
	require.NoError(t, err)
	got, err := custom.Reward(tracker.Issue{Key: "ABC-2", IssueType: "Story", Labels: []string{"bug"}})
	require.NoError(t, err)
	require.Equal(t, int64(100), got)
	got, err = custom.Reward(tracker.Issue{Key: "ABC-3", IssueType: "Task"})
	require.NoError(t, err)
	require.Equal(t, int64(40), got)

	_, err = NewRewardPolicy(`priority`)
	require.Error(t, err)

	negative, err := NewRewardPolicy(`-5`)
	require.NoError(t, err)
	_, err = negative.Reward(tracker.Issue{Key: "ABC-4"})
	require.Error(t, err)
}
