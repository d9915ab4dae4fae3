package secretmanager

import (
	"testing"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestApplyOverridesOnlyPresentKeys(t *testing.T) {
	cfg := &config.Config{}
	cfg.Tracker.Email = "bot@example.com"
	cfg.Database.User = "ticketsync"

	apply(cfg, map[string]interface{}{
		"tracker_api_token": "secret-token",
		"database_password": "pw",
		"redis_password":    42,
		"database_user":     "",
	})

	require.Equal(t, "bot@example.com", cfg.Tracker.Email)
	require.Equal(t, "secret-token", cfg.Tracker.APIToken)
	require.Equal(t, "ticketsync", cfg.Database.User)
	require.Equal(t, "pw", cfg.Database.Password)
	require.Empty(t, cfg.Redis.Password)
}
