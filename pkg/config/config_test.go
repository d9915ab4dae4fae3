package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func resetViper() {
	config = viper.New()
}

func TestLoadFromFile(t *testing.T) {
	resetViper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(`
APP_ENV: test
TRACKER:
  BASE_URL: https://example.atlassian.net
  PROJECT: ABC
SYNC:
  ENABLED: true
  INTERVAL_MS: 60000
  BASELINE_DATE: "2024-01-01"
`), 0o600)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "test", cfg.AppEnv)
	require.Equal(t, "ABC", cfg.Tracker.Project)
	require.Equal(t, 3, cfg.Tracker.MaxAttempts)
	require.Equal(t, time.Second, cfg.Tracker.BaseDelay)
	require.True(t, cfg.Sync.Enabled)
	require.Equal(t, int64(60000), cfg.Sync.IntervalMs)

	baseline, err := cfg.Sync.Baseline()
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *baseline)
}

func TestLoadRejectsBadBaseline(t *testing.T) {
	resetViper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("SYNC:\n  BASELINE_DATE: yesterday\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestBaselineEmpty(t *testing.T) {
	baseline, err := Sync{}.Baseline()
	require.NoError(t, err)
	require.Nil(t, baseline)
}
