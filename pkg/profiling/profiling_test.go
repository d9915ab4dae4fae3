package profiling

import (
	"testing"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestProfileConfig(t *testing.T) {
	cfg := &config.Config{AppName: "ticketsync", AppEnv: "staging"}
	cfg.Pyroscope.Addr = "http://pyroscope:4040"

	pc := profileConfig(cfg)
	require.Equal(t, "ticketsync", pc.ApplicationName)
	require.Equal(t, "http://pyroscope:4040", pc.ServerAddress)
	require.Equal(t, "staging", pc.Tags["env"])
	require.Len(t, pc.ProfileTypes, 6)
}
