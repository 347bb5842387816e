package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/chessgate/internal/engine/cache"
	"github.com/felixgeelhaar/chessgate/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/chessgate/pkg/config"
	"github.com/felixgeelhaar/chessgate/pkg/observability"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	engines := filepath.Join(dir, "engines.yaml")
	require.NoError(t, os.WriteFile(engines, []byte(`
engines:
  remote:
    url: http://127.0.0.1:9/move
    extract: bestmove
  lc0:
    command: lc0
    weights: /weights/t2.pb.gz
`), 0o600))

	return &config.Config{
		AppEnv:        "development",
		EngineConfigs: []string{engines},
		CacheTTL:      time.Minute,
		JournalURL:    filepath.Join(dir, "journal.db"),
		Breaker:       config.BreakerConfig{Enabled: true, MaxRequests: 1, Timeout: time.Second, FailureThreshold: 3},
	}
}

func TestNewContainer_LocalFallbacks(t *testing.T) {
	ctx := context.Background()
	c, err := NewContainer(ctx, testConfig(t), observability.Discard())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, []string{"lc0", "remote"}, c.Manager.ListEngines())
	assert.IsType(t, &cache.MemoryCache{}, c.Cache)
	assert.IsType(t, &eventbus.NoopPublisher{}, c.Publisher)
	require.NotNil(t, c.Journal)
	assert.Nil(t, c.Watcher)

	results, state := c.Health.Check(ctx)
	assert.Equal(t, observability.HealthHealthy, state)
	assert.Equal(t, []string{"cache", "engines", "journal"}, c.Health.Names())
	assert.Len(t, results, 3)
}

func TestNewContainer_RedisFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("development falls back to memory", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.RedisURL = "redis://127.0.0.1:1/0"

		c, err := NewContainer(ctx, cfg, observability.Discard())
		require.NoError(t, err)
		defer c.Close()
		assert.Equal(t, "memory", c.cacheBackend())
	})

	t.Run("production fails", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.AppEnv = "production"
		cfg.RedisURL = "redis://127.0.0.1:1/0"

		_, err := NewContainer(ctx, cfg, observability.Discard())
		assert.Error(t, err)
	})
}

func TestNewContainer_BadEngineConfig(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.EngineConfigs[0], []byte("engines: [broken"), 0o600))

	_, err := NewContainer(context.Background(), cfg, observability.Discard())
	assert.Error(t, err)
}

func TestNewContainer_Watcher(t *testing.T) {
	cfg := testConfig(t)
	cfg.WatchConfig = true

	c, err := NewContainer(context.Background(), cfg, observability.Discard())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.Watcher)
}
