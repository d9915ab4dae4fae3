package tracker

import (
	"fmt"
	"strings"
	"time"
)

// CompletedQuery selects non-epic items of project in the Done status
// category, resolved on or after baseline when it is set.
func CompletedQuery(project string, baseline *time.Time) string {
	clauses := []string{
		fmt.Sprintf("project = %s", quote(project)),
		"issuetype != Epic",
		"statusCategory = Done",
	}
	if baseline != nil {
		clauses = append(clauses, fmt.Sprintf("resolved >= %s", quote(baseline.Format(time.DateOnly))))
	}
	return strings.Join(clauses, " AND ") + " ORDER BY resolved ASC"
}

// ActiveQuery selects open non-epic items of project.
func ActiveQuery(project string) string {
	return strings.Join([]string{
		fmt.Sprintf("project = %s", quote(project)),
		"issuetype != Epic",
		"statusCategory != Done",
	}, " AND ") + " ORDER BY updated DESC"
}

func quote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
