package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompletedQuery(t *testing.T) {
	require.Equal(t,
		`project = "ABC" AND issuetype != Epic AND statusCategory = Done ORDER BY resolved ASC`,
		CompletedQuery("ABC", nil))

	baseline := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t,
		`project = "ABC" AND issuetype != Epic AND statusCategory = Done AND resolved >= "2024-01-01" ORDER BY resolved ASC`,
		CompletedQuery("ABC", &baseline))
}

func TestActiveQueryEscapesProject(t *testing.T) {
	require.Equal(t,
		`project = "A\"B" AND issuetype != Epic AND statusCategory != Done ORDER BY updated DESC`,
		ActiveQuery(`A"B`))
}
