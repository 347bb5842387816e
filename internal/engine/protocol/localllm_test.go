package protocol

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
	"github.com/felixgeelhaar/chessgate/pkg/observability"
)

func newLocalLLM(t *testing.T, raw map[string]any) *LocalLLM {
	t.Helper()
	l, err := NewLocalLLM(sdk.NewEngineConfig("local", raw), observability.Discard())
	require.NoError(t, err)
	return l
}

type hitLog struct {
	mu    sync.Mutex
	paths []string
}

func (h *hitLog) add(p string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paths = append(h.paths, p)
}

func TestLocalLLM_FallsBackAcrossPaths(t *testing.T) {
	hits := &hitLog{}
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.add(r.URL.Path)
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"response": "I would play e2e4 here."}`))
	}))
	defer srv.Close()

	l := newLocalLLM(t, map[string]any{
		"endpoint":     srv.URL + "/",
		"model":        "llama3",
		"extra_params": map[string]any{"stream": false},
	})

	text, err := l.RequestMove(context.Background(), 0, Params{"prompt": "best move?"})
	require.NoError(t, err)
	assert.Equal(t, "I would play e2e4 here.", text)
	assert.Equal(t, []string{"/generate", "/api/generate"}, hits.paths)

	assert.Equal(t, "best move?", payload["prompt"])
	assert.Equal(t, "llama3", payload["model"])
	assert.Equal(t, float64(500), payload["max_tokens"])
	assert.Equal(t, 0.3, payload["temperature"])
	assert.Equal(t, []any{"\n\n", "Human:", "User:"}, payload["stop"])
	assert.Equal(t, false, payload["stream"])
}

func TestLocalLLM_TextExtraction(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"ollama response", `{"response": "a"}`, "a"},
		{"response before text", `{"text": "b", "response": "a"}`, "a"},
		{"text", `{"text": "b"}`, "b"},
		{"completion choice", `{"choices": [{"text": "c"}]}`, "c"},
		{"chat choice", `{"choices": [{"message": {"content": "d"}}]}`, "d"},
		{"output", `{"output": "e"}`, "e"},
		{"generated_text", `{"generated_text": "f"}`, "f"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			l := newLocalLLM(t, map[string]any{"endpoint": srv.URL})
			text, err := l.RequestMove(context.Background(), 0, Params{"prompt": "p"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestLocalLLM_Failures(t *testing.T) {
	t.Run("every path missing", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		l := newLocalLLM(t, map[string]any{"endpoint": srv.URL})
		_, err := l.RequestMove(context.Background(), 0, Params{"prompt": "p"})
		require.Error(t, err)
		assert.True(t, sdk.IsTransport(err))
		assert.Contains(t, err.Error(), "/generate, /api/generate, /v1/completions, /completion")
	})

	t.Run("server error stops the search", func(t *testing.T) {
		hits := &hitLog{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.add(r.URL.Path)
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		}))
		defer srv.Close()

		l := newLocalLLM(t, map[string]any{"endpoint": srv.URL})
		_, err := l.RequestMove(context.Background(), 0, Params{"prompt": "p"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "http 500")
		assert.Equal(t, []string{"/generate"}, hits.paths)
	})

	t.Run("prompt required", func(t *testing.T) {
		l := newLocalLLM(t, map[string]any{"endpoint": "http://127.0.0.1:1"})
		_, err := l.RequestMove(context.Background(), 0, nil)
		assert.Error(t, err)
	})
}

func TestLocalLLM_InitializeAndProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	l := newLocalLLM(t, map[string]any{"endpoint": srv.URL, "model_path": "/models/q4.gguf"})
	assert.Equal(t, "/models/q4.gguf", l.model())
	require.NoError(t, l.Initialize(context.Background()))
	assert.True(t, l.IsInitialized())
	assert.NoError(t, l.Probe(context.Background()))

	srv.Close()
	assert.True(t, sdk.IsTransport(l.Probe(context.Background())))

	down := newLocalLLM(t, map[string]any{"endpoint": srv.URL})
	assert.NoError(t, down.Initialize(context.Background()), "initialize never fails")
	assert.True(t, down.IsInitialized())
}
