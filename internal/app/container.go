// Package app wires chessgate's components from process configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/felixgeelhaar/chessgate/internal/engine/cache"
	"github.com/felixgeelhaar/chessgate/internal/engine/oracle"
	"github.com/felixgeelhaar/chessgate/internal/engine/registry"
	"github.com/felixgeelhaar/chessgate/internal/engine/runtime"
	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
	"github.com/felixgeelhaar/chessgate/internal/journal"
	"github.com/felixgeelhaar/chessgate/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/chessgate/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/chessgate/pkg/config"
	"github.com/felixgeelhaar/chessgate/pkg/observability"
)

// Container holds the application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Engines
	Oracle   oracle.Oracle
	Registry *registry.Registry
	Factory  *registry.Factory
	Loader   *registry.Loader
	Manager  *runtime.Manager
	Watcher  *runtime.ConfigWatcher

	// Side effects
	Cache     cache.MoveCache
	Journal   journal.Store
	Publisher eventbus.Publisher

	// Observability
	Metrics         *runtime.Metrics
	MetricsRegistry *prometheus.Registry
	Health          *observability.HealthRegistry

	metricsServer *http.Server
}

// NewContainer builds every component. Optional backends (Redis, RabbitMQ,
// the journal database) fall back to in-process stand-ins in development
// and are fatal elsewhere.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:          cfg,
		Logger:          logger,
		Oracle:          oracle.New(),
		MetricsRegistry: prometheus.NewRegistry(),
		Health:          observability.NewHealthRegistry(),
	}
	c.MetricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.Metrics = runtime.NewMetrics(c.MetricsRegistry)

	if err := c.initCache(ctx); err != nil {
		return nil, err
	}
	if err := c.initPublisher(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initJournal(ctx); err != nil {
		c.Close()
		return nil, err
	}

	c.Registry = registry.NewDefaultRegistry(logger)
	c.Factory = registry.NewFactory(c.Registry, sdk.Dependencies{Oracle: c.Oracle, Logger: logger})
	c.Loader = registry.NewLoader(c.Factory, logger)

	manager, err := runtime.Load(runtime.Options{
		Loader:    c.Loader,
		Sources:   cfg.EngineConfigs,
		Cache:     c.Cache,
		CacheTTL:  cfg.CacheTTL,
		Journal:   c.Journal,
		Publisher: c.Publisher,
		Metrics:   c.Metrics,
		Breaker: runtime.BreakerConfig{
			Enabled:          cfg.Breaker.Enabled,
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
		},
		Logger: logger,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("load engines: %w", err)
	}
	c.Manager = manager

	c.registerHealthChecks()

	if cfg.WatchConfig {
		watcher, err := runtime.NewConfigWatcher(cfg.EngineConfigs, manager, 0, logger)
		if err != nil {
			logger.Warn("config watcher unavailable", "error", err)
		} else {
			c.Watcher = watcher
		}
	}

	logger.Info("container ready",
		"engines", len(manager.ListEngines()),
		"cache", c.cacheBackend(),
		"journal", c.Journal != nil,
	)
	return c, nil
}

func (c *Container) initCache(ctx context.Context) error {
	if c.Config.RedisURL == "" {
		c.Cache = cache.NewMemoryCache()
		return nil
	}

	redisCache, err := cache.NewRedisCache(ctx, c.Config.RedisURL, c.Logger)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return err
		}
		c.Logger.Warn("Redis not available, move cache will use in-memory fallback", "error", err)
		c.Cache = cache.NewMemoryCache()
		return nil
	}
	c.Cache = redisCache
	return nil
}

func (c *Container) initPublisher() error {
	if c.Config.RabbitMQURL == "" {
		c.Publisher = eventbus.NewNoopPublisher(c.Logger)
		return nil
	}

	publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, c.Logger)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return err
		}
		c.Logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
		c.Publisher = eventbus.NewNoopPublisher(c.Logger)
		return nil
	}
	c.Publisher = publisher
	return nil
}

func (c *Container) initJournal(ctx context.Context) error {
	url := c.Config.JournalURL
	if url == "" {
		url = database.DefaultSQLitePath()
	}

	store, err := journal.Open(ctx, url, c.Logger)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return err
		}
		c.Logger.Warn("move journal disabled", "error", err)
		return nil
	}
	c.Journal = store
	return nil
}

func (c *Container) registerHealthChecks() {
	c.Health.Register("engines", func(context.Context) observability.ComponentHealth {
		n := len(c.Manager.ListEngines())
		if n == 0 {
			return observability.ComponentHealth{State: observability.HealthDegraded, Message: "no engines loaded"}
		}
		return observability.ComponentHealth{State: observability.HealthHealthy, Message: fmt.Sprintf("%d engines", n)}
	})
	c.Health.Register("cache", observability.PingCheck(c.Cache.Ping, true))
	if c.Journal != nil {
		c.Health.Register("journal", observability.PingCheck(c.Journal.Ping, true))
	}
	if p, ok := c.Publisher.(interface{ Ping(context.Context) error }); ok {
		c.Health.Register("events", observability.PingCheck(p.Ping, true))
	}
}

func (c *Container) cacheBackend() string {
	if _, ok := c.Cache.(*cache.RedisCache); ok {
		return "redis"
	}
	return "memory"
}

// Start runs the background pieces: the config watcher and the metrics
// endpoint, when configured.
func (c *Container) Start(ctx context.Context) {
	if c.Watcher != nil {
		c.Watcher.Start(ctx)
		c.Logger.Info("watching engine configs", "sources", c.Config.EngineConfigs)
	}

	if c.Config.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(c.MetricsRegistry, promhttp.HandlerOpts{}))
		c.metricsServer = &http.Server{
			Addr:              c.Config.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			c.Logger.Info("metrics server listening", "addr", c.Config.MetricsAddr)
			if err := c.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.Logger.Error("metrics server stopped", "error", err)
			}
		}()
	}
}

// Close stops background work and releases every resource.
func (c *Container) Close() {
	if c.Watcher != nil {
		c.Watcher.Stop()
	}

	if c.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			c.Logger.Warn("error stopping metrics server", "error", err)
		}
	}

	if c.Manager != nil {
		if err := c.Manager.Close(context.Background()); err != nil {
			c.Logger.Warn("error closing engine manager", "error", err)
		}
		return
	}

	// Manager never built: close the sinks directly.
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
	if c.Journal != nil {
		_ = c.Journal.Close()
	}
	if c.Publisher != nil {
		_ = c.Publisher.Close()
	}
}
