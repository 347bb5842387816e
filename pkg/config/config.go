package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds process configuration.
type Config struct {
	// Application
	AppEnv    string `env:"CHESSGATE_ENV" envDefault:"development"`
	LogLevel  string `env:"CHESSGATE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"CHESSGATE_LOG_FORMAT" envDefault:"text"`
	Version   string `env:"CHESSGATE_VERSION" envDefault:"dev"`

	// Engines
	EngineConfigs []string `env:"CHESSGATE_ENGINE_CONFIGS" envSeparator:"," envDefault:"config/engines.yaml"`
	WatchConfig   bool     `env:"CHESSGATE_WATCH_CONFIG" envDefault:"false"`

	// Redis move cache
	RedisURL string        `env:"REDIS_URL"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"10m"`

	// RabbitMQ move events
	RabbitMQURL string `env:"RABBITMQ_URL"`

	// Move journal: postgres:// URL or a SQLite path
	JournalURL string `env:"JOURNAL_URL"`

	// MCP
	MCPAddr      string `env:"MCP_ADDR" envDefault:"127.0.0.1:8082"`
	MCPAuthToken string `env:"MCP_AUTH_TOKEN"`

	// Prometheus
	MetricsAddr string `env:"METRICS_ADDR"`

	Breaker BreakerConfig `envPrefix:"BREAKER_"`
}

// BreakerConfig configures the per-engine circuit breakers.
type BreakerConfig struct {
	Enabled          bool          `env:"ENABLED" envDefault:"true"`
	MaxRequests      uint32        `env:"MAX_REQUESTS" envDefault:"1"`
	Interval         time.Duration `env:"INTERVAL" envDefault:"60s"`
	Timeout          time.Duration `env:"TIMEOUT" envDefault:"30s"`
	FailureThreshold uint32        `env:"FAILURE_THRESHOLD" envDefault:"5"`
}

// Load loads configuration from the environment, reading .env first if present.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

// LoadFrom parses configuration from an explicit environment map.
func LoadFrom(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
