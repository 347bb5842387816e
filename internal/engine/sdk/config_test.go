package sdk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineConfigGetters(t *testing.T) {
	cfg := NewEngineConfig("stockfish", map[string]any{
		"command":       "stockfish",
		"default_depth": 18,
		"threads":       "4",
		"temperature":   0.7,
		"enabled":       true,
		"timeout":       30,
		"move_timeout":  "1500ms",
		"stop":          []any{"\n\n", "User:"},
		"headers":       map[string]any{"X-Key": "abc"},
	})

	assert.Equal(t, "stockfish", cfg.GetString("command"))
	assert.Equal(t, "18", cfg.GetString("default_depth"))
	assert.Equal(t, 18, cfg.GetInt("default_depth"))
	assert.Equal(t, 4, cfg.GetInt("threads"))
	assert.InDelta(t, 0.7, cfg.GetFloat("temperature"), 1e-9)
	assert.True(t, cfg.GetBool("enabled"))
	assert.Equal(t, 30*time.Second, cfg.GetDuration("timeout"))
	assert.Equal(t, 1500*time.Millisecond, cfg.GetDuration("move_timeout"))
	assert.Equal(t, []string{"\n\n", "User:"}, cfg.GetStringSlice("stop"))
	assert.Equal(t, "abc", cfg.GetMap("headers")["X-Key"])
	assert.True(t, cfg.Has("command"))
	assert.False(t, cfg.Has("url"))
	assert.Equal(t, "", cfg.GetString("missing"))
}

func TestEngineConfigWithCopies(t *testing.T) {
	raw := map[string]any{"url": "http://x"}
	cfg := NewEngineConfig("remote", raw)

	named := cfg.With("name", "remote")

	assert.Equal(t, "remote", named.GetString("name"))
	assert.False(t, cfg.Has("name"))
	_, leaked := raw["name"]
	assert.False(t, leaked)
}

type decodeTarget struct {
	URL     string        `mapstructure:"url" validate:"required,url"`
	Method  string        `mapstructure:"method" validate:"omitempty,oneof=GET POST PUT"`
	Depth   int           `mapstructure:"default_depth"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func TestEngineConfigDecode(t *testing.T) {
	t.Run("weakly typed values and seconds", func(t *testing.T) {
		cfg := NewEngineConfig("remote", map[string]any{
			"url":           "https://lichess.org/api/cloud-eval",
			"method":        "GET",
			"default_depth": "12",
			"timeout":       45,
			"unrelated":     "ignored",
		})

		var out decodeTarget
		require.NoError(t, cfg.Decode(&out))

		assert.Equal(t, "GET", out.Method)
		assert.Equal(t, 12, out.Depth)
		assert.Equal(t, 45*time.Second, out.Timeout)
	})

	t.Run("duration strings", func(t *testing.T) {
		cfg := NewEngineConfig("remote", map[string]any{"url": "http://localhost:8080", "timeout": "2s"})

		var out decodeTarget
		require.NoError(t, cfg.Decode(&out))
		assert.Equal(t, 2*time.Second, out.Timeout)
	})

	t.Run("validation failure names the key", func(t *testing.T) {
		cfg := NewEngineConfig("remote", map[string]any{"method": "DELETE", "url": "http://x.y"})

		var out decodeTarget
		err := cfg.Decode(&out)

		require.Error(t, err)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "method", cfgErr.Field)
		assert.True(t, IsConfigError(err))
	})

	t.Run("missing required", func(t *testing.T) {
		var out decodeTarget
		err := NewEngineConfig("remote", nil).Decode(&out)

		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "url", cfgErr.Field)
	})
}
