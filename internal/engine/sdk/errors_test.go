package sdk

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigError(t *testing.T) {
	t.Run("Error includes engine and field", func(t *testing.T) {
		err := NewConfigError("stockfish", "command", "is required")

		assert.Equal(t, `config error for engine stockfish (field "command"): is required`, err.Error())
	})

	t.Run("matches ErrInvalidConfig", func(t *testing.T) {
		err := fmt.Errorf("building: %w", NewConfigError("x", "", "bad"))

		assert.True(t, errors.Is(err, ErrInvalidConfig))
		assert.True(t, IsConfigError(err))
	})
}

func TestDuplicateEngineError(t *testing.T) {
	err := &DuplicateEngineError{Source: "b.yaml", Names: []string{"stockfish"}}

	assert.Contains(t, err.Error(), "stockfish")
	assert.True(t, IsConfigError(err))
}

func TestTimeoutError(t *testing.T) {
	t.Run("lists received lines", func(t *testing.T) {
		err := &TimeoutError{
			Operation: "uci handshake",
			Expected:  "uciok",
			Timeout:   time.Second,
			Lines:     []string{"id name Fake", "option name Hash"},
		}

		assert.Contains(t, err.Error(), "id name Fake | option name Hash")
		assert.True(t, IsTimeout(err))
	})

	t.Run("reports silence", func(t *testing.T) {
		err := &TimeoutError{Operation: "bestmove", Expected: "bestmove", Timeout: time.Second}

		assert.Contains(t, err.Error(), "no output received")
	})
}

func TestTransportAndProviderErrors(t *testing.T) {
	transport := &TransportError{Protocol: "rest", Operation: "request", StatusCode: 500, Err: errors.New("boom")}
	assert.Equal(t, "rest request: http 500: boom", transport.Error())
	assert.True(t, IsTransport(transport))

	provider := &ProviderError{Provider: "openai", Model: "gpt-4o", StatusCode: 503, Attempts: 3}
	assert.Contains(t, provider.Error(), "openai")
	assert.Contains(t, provider.Error(), "gpt-4o")
	assert.Contains(t, provider.Error(), "503")
	assert.True(t, provider.Retryable())
	assert.True(t, IsTransport(provider))
}

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{Name: "ghost", Available: []string{"a", "b"}, Err: ErrEngineNotFound}

	assert.Equal(t, "engine not found: ghost (available: a, b)", err.Error())
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(errors.New("other")))
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Engine: "gpt", Reason: "no legal move", RawResponse: "I like knights", Err: ErrNoMove}

	assert.Contains(t, err.Error(), "I like knights")
	assert.ErrorIs(t, err, ErrNoMove)
	assert.True(t, IsValidation(err))
}
