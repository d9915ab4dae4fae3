package syncer

import (
	"fmt"
	"strings"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/celengine"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/tracker"

	"github.com/google/cel-go/cel"
)

// DefaultRewardExpression awards by priority; Medium and unknown earn 75.
const DefaultRewardExpression = `priority == "Highest" ? 150 :
	priority == "High" ? 100 :
	priority == "Low" ? 50 :
	priority == "Lowest" ? 25 : 75`

var rewardVars = map[string]*cel.Type{
	"key":        cel.StringType,
	"priority":   cel.StringType,
	"issue_type": cel.StringType,
	"labels":     cel.ListType(cel.StringType),
}

// RewardPolicy computes the points one completed item is worth.
type RewardPolicy struct {
	prg *celengine.Program
}

func NewRewardPolicy(expr string) (*RewardPolicy, error) {
	if strings.TrimSpace(expr) == "" {
		expr = DefaultRewardExpression
	}
	prg, err := celengine.Compile(expr, rewardVars, cel.IntType)
	if err != nil {
		return nil, fmt.Errorf("reward expression: %w", err)
	}
	return &RewardPolicy{prg: prg}, nil
}

func (p *RewardPolicy) Reward(issue tracker.Issue) (int64, error) {
	labels := issue.Labels
	if labels == nil {
		labels = []string{}
	}
	v, err := p.prg.EvalInt(map[string]any{
		"key":        issue.Key,
		"priority":   issue.Priority,
		"issue_type": issue.IssueType,
		"labels":     labels,
	})
	if err != nil {
		return 0, fmt.Errorf("reward for %s: %w", issue.Key, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("reward for %s: negative amount %d", issue.Key, v)
	}
	return v, nil
}
