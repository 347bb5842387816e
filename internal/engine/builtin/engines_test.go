package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/chessgate/internal/engine/protocol"
	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
	"github.com/felixgeelhaar/chessgate/pkg/observability"
)

const (
	startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	// White is in check from a1 and d2d4 is the only legal reply.
	onlyD4FEN = "k6K/7P/8/8/8/8/3PP3/b5r1 w - - 0 1"
)

func testDeps() sdk.Dependencies {
	return sdk.Dependencies{Logger: observability.Discard()}
}

// moveServer answers every request with {"bestmove": move}.
func moveServer(t *testing.T, move string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			return
		}
		calls.Add(1)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body["fen"])
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"bestmove": move})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestNewTraditional_PicksProtocol(t *testing.T) {
	t.Run("command means uci", func(t *testing.T) {
		e, err := NewTraditional("stockfish", sdk.NewEngineConfig("stockfish", map[string]any{"command": "stockfish"}), testDeps())
		require.NoError(t, err)

		desc := e.Descriptor()
		assert.Equal(t, sdk.KindTraditional, desc.Kind)
		assert.Equal(t, sdk.OriginInternal, desc.Origin)
		assert.Equal(t, sdk.ValidationSchema, desc.ValidationMode)
		assert.Equal(t, protocol.NameUCI, desc.Protocol)
		assert.False(t, e.IsInitialized())
	})

	t.Run("url means rest", func(t *testing.T) {
		e, err := NewTraditional("cloud", sdk.NewEngineConfig("cloud", map[string]any{"url": "http://engine.local/move"}), testDeps())
		require.NoError(t, err)

		desc := e.Descriptor()
		assert.Equal(t, sdk.OriginExternal, desc.Origin)
		assert.Equal(t, protocol.NameREST, desc.Protocol)
	})

	t.Run("neither is a config error", func(t *testing.T) {
		_, err := NewTraditional("empty", sdk.NewEngineConfig("empty", map[string]any{}), testDeps())
		require.Error(t, err)

		var cfgErr *sdk.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "command", cfgErr.Field)
	})
}

func TestNewNeuronal_PicksProtocol(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]any
		protocol string
		origin   sdk.Origin
	}{
		{"default uci", map[string]any{"command": "lc0"}, protocol.NameUCI, sdk.OriginInternal},
		{"explicit uci", map[string]any{"command": "lc0", "protocol": "UCI"}, protocol.NameUCI, sdk.OriginInternal},
		{"rest", map[string]any{"protocol": "rest", "url": "http://lc0.local"}, protocol.NameREST, sdk.OriginExternal},
		{"http alias", map[string]any{"protocol": "http", "url": "http://lc0.local"}, protocol.NameREST, sdk.OriginExternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewNeuronal("lc0", sdk.NewEngineConfig("lc0", tt.raw), testDeps())
			require.NoError(t, err)
			assert.Equal(t, sdk.KindNeuronal, e.Descriptor().Kind)
			assert.Equal(t, tt.protocol, e.Descriptor().Protocol)
			assert.Equal(t, tt.origin, e.Descriptor().Origin)
		})
	}

	t.Run("unsupported protocol", func(t *testing.T) {
		_, err := NewNeuronal("lc0", sdk.NewEngineConfig("lc0", map[string]any{"protocol": "grpc"}), testDeps())
		require.Error(t, err)
		assert.True(t, errors.Is(err, sdk.ErrUnsupportedProtocol))
		assert.True(t, sdk.IsConfigError(err))
	})
}

func TestTraditional_GetMoveOverREST(t *testing.T) {
	srv, calls := moveServer(t, "e2e4")
	e, err := NewTraditional("cloud", sdk.NewEngineConfig("cloud", map[string]any{
		"url":    srv.URL,
		"params": map[string]any{"fen": "{fen}", "depth": "{depth}"},
	}), testDeps())
	require.NoError(t, err)
	defer func() { _ = e.Cleanup(context.Background()) }()

	res, err := e.GetMove(context.Background(), sdk.MoveRequest{FEN: startFEN})
	require.NoError(t, err)

	assert.Equal(t, "e2e4", res.Move)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, e.IsInitialized())
	assert.NoError(t, e.CheckAvailability(context.Background()))
}

func TestTraditional_RejectsIllegalMove(t *testing.T) {
	srv, _ := moveServer(t, "e2e5")
	e, err := NewTraditional("cloud", sdk.NewEngineConfig("cloud", map[string]any{
		"url":    srv.URL,
		"params": map[string]any{"fen": "{fen}"},
	}), testDeps())
	require.NoError(t, err)

	_, err = e.GetMove(context.Background(), sdk.MoveRequest{FEN: startFEN})
	require.Error(t, err)

	var vErr *sdk.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "cloud", vErr.Engine)
	assert.Contains(t, vErr.RawResponse, "e2e5")
}

func TestNeuronal_InvalidPositionNeverReachesBackend(t *testing.T) {
	srv, calls := moveServer(t, "e2e4")
	e, err := NewNeuronal("lc0", sdk.NewEngineConfig("lc0", map[string]any{
		"protocol": "rest",
		"url":      srv.URL,
		"params":   map[string]any{"fen": "{fen}"},
	}), testDeps())
	require.NoError(t, err)

	_, err = e.GetMove(context.Background(), sdk.MoveRequest{FEN: "not a position"})
	require.Error(t, err)

	assert.True(t, sdk.IsValidation(err))
	assert.Equal(t, int32(0), calls.Load())
}

// countingProtocol records how often it is initialized and answers e2e4.
type countingProtocol struct {
	inits atomic.Int32
	ready atomic.Bool
}

func (p *countingProtocol) Name() string { return "counting" }

func (p *countingProtocol) Initialize(context.Context) error {
	p.inits.Add(1)
	time.Sleep(20 * time.Millisecond)
	p.ready.Store(true)
	return nil
}

func (p *countingProtocol) IsInitialized() bool                        { return p.ready.Load() }
func (p *countingProtocol) SendPosition(context.Context, string) error { return nil }
func (p *countingProtocol) Probe(context.Context) error                { return nil }
func (p *countingProtocol) Cleanup(context.Context) error              { return nil }

func (p *countingProtocol) RequestMove(context.Context, int, protocol.Params) (string, error) {
	return "e2e4", nil
}

func TestEngineBase_ConcurrentFirstUseInitializesOnce(t *testing.T) {
	proto := &countingProtocol{}
	desc := sdk.Descriptor{Name: "fake", Kind: sdk.KindTraditional, Origin: sdk.OriginInternal, ValidationMode: sdk.ValidationSchema, Protocol: "counting"}
	base, err := newEngineBase(desc, sdk.NewEngineConfig("fake", nil), proto, testDeps())
	require.NoError(t, err)
	e := &Traditional{engineBase: base}

	const callers = 16
	moves := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.GetMove(context.Background(), sdk.MoveRequest{FEN: startFEN})
			moves[i], errs[i] = res.Move, err
		}()
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "e2e4", moves[i])
	}
	assert.Equal(t, int32(1), proto.inits.Load())
	assert.True(t, e.IsInitialized())
}
