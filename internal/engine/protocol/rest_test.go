package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
	"github.com/felixgeelhaar/chessgate/pkg/observability"
)

func newREST(t *testing.T, name string, raw map[string]any) *REST {
	t.Helper()
	r, err := NewREST(sdk.NewEngineConfig(name, raw), observability.Discard())
	require.NoError(t, err)
	return r
}

func TestREST_PostTemplatesAndAuth(t *testing.T) {
	var got map[string]any
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		headers = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"bestmove": "e2e4 e7e5 g1f3"}`))
	}))
	defer srv.Close()

	r := newREST(t, "scorer", map[string]any{
		"url":          srv.URL,
		"params":       map[string]any{"fen": "{fen}", "depth": "{depth}", "multipv": 1, "note": "{unknown}", "style": "{style}"},
		"extra_params": map[string]any{"variant": "standard"},
		"headers":      map[string]any{"X-Client": "chessgate"},
		"api_key":      "secret",
	})
	ctx := context.Background()
	require.NoError(t, r.Initialize(ctx))
	require.NoError(t, r.SendPosition(ctx, startFEN))

	move, err := r.RequestMove(ctx, 0, Params{"style": "sharp"})
	require.NoError(t, err)
	assert.Equal(t, "e2e4", move)

	assert.Equal(t, startFEN, got["fen"])
	assert.Equal(t, "15", got["depth"])
	assert.Equal(t, float64(1), got["multipv"])
	assert.Equal(t, "{unknown}", got["note"])
	assert.Equal(t, "sharp", got["style"])
	assert.Equal(t, "standard", got["variant"])
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
	assert.Equal(t, "chessgate", headers.Get("X-Client"))
}

func TestREST_GetWithExtractPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, startFEN, r.URL.Query().Get("fen"))
		assert.Equal(t, "20", r.URL.Query().Get("depth"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"depth": 20, "pvs": [{"moves": "d2d4 d7d5 c2c4", "cp": 18}]}`))
	}))
	defer srv.Close()

	t.Setenv("REST_API_KEY", "")
	t.Setenv("CLOUD_API_KEY", "")
	t.Setenv("API_KEY", "")

	r := newREST(t, "cloud", map[string]any{
		"url":     srv.URL + "/api/cloud-eval",
		"method":  "get",
		"params":  map[string]any{"fen": "{fen}", "depth": "{depth}"},
		"extract": "$.pvs[0].moves",
	})
	require.NoError(t, r.SendPosition(context.Background(), startFEN))

	move, err := r.RequestMove(context.Background(), 20, nil)
	require.NoError(t, err)
	assert.Equal(t, "d2d4", move)
}

func TestREST_PlaceholderKeyUsesEnvironment(t *testing.T) {
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-Api-Key")
		_, _ = w.Write([]byte(`{"move": "g1f3"}`))
	}))
	defer srv.Close()

	t.Setenv("REST_API_KEY", "")
	t.Setenv("API_KEY", "")
	t.Setenv("LICHESS_API_KEY", "from-env")

	r := newREST(t, "lichess", map[string]any{
		"url":         srv.URL,
		"api_key":     "YOUR_API_KEY",
		"auth_header": "X-Api-Key",
		"auth_format": "{api_key}",
	})

	move, err := r.RequestMove(context.Background(), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "g1f3", move)
	assert.Equal(t, "from-env", header)
}

func TestREST_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "not found carries error field",
			status: http.StatusNotFound,
			body:   `{"error": "No cloud evaluation available for that position"}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, sdk.ErrPositionNotFound)
				assert.Contains(t, err.Error(), "No cloud evaluation available")
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `boom`,
			check: func(t *testing.T, err error) {
				var te *sdk.TransportError
				require.True(t, errors.As(err, &te))
				assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
				assert.Contains(t, err.Error(), "boom")
			},
		},
		{
			name:   "no move in body",
			status: http.StatusOK,
			body:   `{"eval": 0.3}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, sdk.ErrNoMove)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			r := newREST(t, "svc", map[string]any{"url": srv.URL, "api_key": "k"})
			_, err := r.RequestMove(context.Background(), 0, nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestREST_Probe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))

	r := newREST(t, "svc", map[string]any{"url": srv.URL, "api_key": "k"})
	assert.NoError(t, r.Probe(context.Background()), "any HTTP answer counts as reachable")

	srv.Close()
	assert.True(t, sdk.IsTransport(r.Probe(context.Background())))
}

func TestNewREST_InvalidConfig(t *testing.T) {
	_, err := NewREST(sdk.NewEngineConfig("svc", map[string]any{}), nil)
	var cfgErr *sdk.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "url", cfgErr.Field)

	_, err = NewREST(sdk.NewEngineConfig("svc", map[string]any{"url": "http://x", "method": "delete"}), nil)
	assert.True(t, sdk.IsConfigError(err))
}

func TestGJSONPath(t *testing.T) {
	assert.Equal(t, "pvs.0.moves", gjsonPath("$.pvs[0].moves"))
	assert.Equal(t, "result.best", gjsonPath("$['result'].best"))
	assert.Equal(t, "move", gjsonPath("move"))
}
