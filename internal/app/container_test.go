package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/flagwise/internal/flags/domain"
	flagcache "github.com/felixgeelhaar/flagwise/internal/flags/infrastructure/cache"
	"github.com/felixgeelhaar/flagwise/internal/flags/infrastructure/messaging"
	"github.com/felixgeelhaar/flagwise/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/flagwise/pkg/config"
	"github.com/felixgeelhaar/flagwise/pkg/observability"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:                  "test",
		InstanceID:              "node-test",
		SQLitePath:              filepath.Join(t.TempDir(), "flags.db"),
		DecisionTTL:             time.Minute,
		StoreReadTimeout:        time.Second,
		CacheCapacity:           1000,
		BreakerFailures:         5,
		BreakerOpenTimeout:      time.Second,
		BreakerHalfOpenRequests: 1,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLocalModeContainer(t *testing.T) {
	ctx := context.Background()

	c, err := NewContainer(ctx, localConfig(t), testLogger())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, database.DriverSQLite, c.DBDriver)
	assert.IsType(t, &flagcache.MemoryDecisionCache{}, c.Cache)
	assert.IsType(t, &messaging.NoopBroadcaster{}, c.Broadcaster)

	_, err = c.Administrator.Upsert(ctx, "beta-search",
		domain.UpsertOptions{}.WithEnabled(true).WithAllowList("u1"))
	require.NoError(t, err)

	assert.True(t, c.Evaluator.IsEnabled(ctx, "beta-search", "u1"))
	assert.False(t, c.Evaluator.IsEnabled(ctx, "beta-search", "u2"))
	assert.False(t, c.Evaluator.IsEnabled(ctx, "missing", "u1"))

	health := c.Health.GetOverallHealth(ctx)
	assert.Equal(t, observability.HealthStatusHealthy, health.Status)
	assert.Contains(t, health.Checks, "store")
	assert.Contains(t, health.Checks, "cache")
}

func TestLocalModeContainer_PersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t)

	first, err := NewContainer(ctx, cfg, testLogger())
	require.NoError(t, err)
	_, err = first.Administrator.Upsert(ctx, "beta", domain.UpsertOptions{}.WithPercentage(100).WithEnabled(true))
	require.NoError(t, err)
	first.Close()

	second, err := NewContainer(ctx, cfg, testLogger())
	require.NoError(t, err)
	defer second.Close()

	flag, err := second.Administrator.Get(ctx, "beta")
	require.NoError(t, err)
	assert.Equal(t, 100, flag.Percentage)

	applied, err := second.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_flag_definitions.up.sql"}, applied, "re-running migrations is safe")
}

func TestContainer_RunPeerSyncStopsOnCancel(t *testing.T) {
	c, err := NewContainer(context.Background(), localConfig(t), testLogger())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.RunPeerSync(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("peer sync did not stop")
	}
}

func TestNewContainer_UnsupportedDatabaseURL(t *testing.T) {
	cfg := localConfig(t)
	cfg.DatabaseURL = "mysql://localhost/flags"

	_, err := NewContainer(context.Background(), cfg, testLogger())
	assert.Error(t, err)
}

func TestNewContainer_UnreachableRedisFallsBackOutsideProduction(t *testing.T) {
	cfg := localConfig(t)
	cfg.RedisURL = "redis://127.0.0.1:1/0"

	c, err := NewContainer(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer c.Close()
	assert.IsType(t, &flagcache.MemoryDecisionCache{}, c.Cache)

	cfg = localConfig(t)
	cfg.AppEnv = "production"
	cfg.RedisURL = "redis://127.0.0.1:1/0"
	_, err = NewContainer(context.Background(), cfg, testLogger())
	assert.Error(t, err)
}
