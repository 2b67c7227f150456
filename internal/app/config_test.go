package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, "sarisync.db", cfg.CachePath)
	require.Equal(t, 30*time.Second, cfg.SyncPullInterval)
	require.Equal(t, 10, cfg.LowStockThreshold)
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("CACHE_PATH", "/tmp/profile.db")
	t.Setenv("SYNC_PULL_INTERVAL", "5s")
	t.Setenv("LOW_STOCK_THRESHOLD", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "/tmp/profile.db", cfg.CachePath)
	require.Equal(t, 5*time.Second, cfg.SyncPullInterval)
	require.Equal(t, 3, cfg.LowStockThreshold)
	require.True(t, cfg.IsProduction())
}
