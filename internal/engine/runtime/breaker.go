package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

// BreakerConfig configures the per-engine circuit breakers.
type BreakerConfig struct {
	// Enabled turns circuit breaking on.
	Enabled bool

	// MaxRequests is the number of requests allowed while half-open.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for clearing counts.
	Interval time.Duration

	// Timeout is how long the breaker stays open.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive transport or timeout
	// failures that opens the breaker.
	FailureThreshold uint32
}

// DefaultBreakerConfig returns the breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// breakerSet holds one breaker per engine name.
type breakerSet struct {
	mu       sync.Mutex
	config   BreakerConfig
	breakers map[string]*gobreaker.CircuitBreaker[sdk.MoveResult]
	metrics  *Metrics
	logger   *slog.Logger
}

func newBreakerSet(config BreakerConfig, metrics *Metrics, logger *slog.Logger) *breakerSet {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	return &breakerSet{
		config:   config,
		breakers: make(map[string]*gobreaker.CircuitBreaker[sdk.MoveResult]),
		metrics:  metrics,
		logger:   logger,
	}
}

func (b *breakerSet) get(name string) *gobreaker.CircuitBreaker[sdk.MoveResult] {
	if !b.config.Enabled {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[name]; ok {
		return cb
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: b.config.MaxRequests,
		Interval:    b.config.Interval,
		Timeout:     b.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.config.FailureThreshold
		},
		// An illegal move is the backend answering; only a backend that
		// cannot be reached counts against the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || !(sdk.IsTransport(err) || sdk.IsTimeout(err))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("circuit breaker state changed",
				"engine", name,
				"from", from.String(),
				"to", to.String(),
			)
			b.metrics.setBreakerState(name, to)
		},
	}

	cb := gobreaker.NewCircuitBreaker[sdk.MoveResult](settings)
	b.breakers[name] = cb
	return cb
}

// execute runs fn behind the engine's breaker.
func (b *breakerSet) execute(name string, fn func() (sdk.MoveResult, error)) (sdk.MoveResult, error) {
	cb := b.get(name)
	if cb == nil {
		return fn()
	}

	result, err := cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return sdk.MoveResult{}, fmt.Errorf("engine %s: %w", name, sdk.ErrCircuitOpen)
	}
	return result, err
}

// state reports the breaker state for an engine, "closed" if none exists yet.
func (b *breakerSet) state(name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[name]; ok {
		return cb.State().String()
	}
	return gobreaker.StateClosed.String()
}

// reset drops every breaker. Called when the engine set is replaced.
func (b *breakerSet) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.breakers = make(map[string]*gobreaker.CircuitBreaker[sdk.MoveResult])
}
