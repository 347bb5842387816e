package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
	"github.com/felixgeelhaar/chessgate/pkg/observability"
)

const openAIReply = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "My move: e2e4"}, "finish_reason": "stop"}]
}`

// flakyServer answers 503 for the first failures requests and then body.
func flakyServer(t *testing.T, failures int32, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n <= failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newAPILLM(t *testing.T, name string, raw map[string]any, rec *sleepRecorder) *APILLM {
	t.Helper()
	a, err := NewAPILLM(sdk.NewEngineConfig(name, raw), observability.Discard(), WithRetrySleep(rec.sleep))
	require.NoError(t, err)
	return a
}

func TestAPILLM_RetriesBusyProvider(t *testing.T) {
	srv, calls := flakyServer(t, 2, openAIReply)
	rec := &sleepRecorder{}

	a := newAPILLM(t, "gpt", map[string]any{
		"provider": "openai",
		"model":    "gpt-4o-mini",
		"api_url":  srv.URL + "/v1/chat/completions",
		"api_key":  "sk-test",
	}, rec)

	text, err := a.RequestMove(context.Background(), 0, Params{"prompt": "best move?"})
	require.NoError(t, err)
	assert.Equal(t, "My move: e2e4", text)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rec.waits)
}

func TestAPILLM_ExhaustedRetriesReportProvider(t *testing.T) {
	srv, calls := flakyServer(t, 3, `{"text": "e2e4"}`)
	rec := &sleepRecorder{}

	a := newAPILLM(t, "proxy", map[string]any{
		"provider": "generic",
		"model":    "chess-7b",
		"api_url":  srv.URL + "/complete",
		"api_key":  "k",
	}, rec)

	_, err := a.RequestMove(context.Background(), 0, Params{"prompt": "p"})
	require.Error(t, err)

	var pe *sdk.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "generic", pe.Provider)
	assert.Equal(t, "chess-7b", pe.Model)
	assert.Equal(t, http.StatusServiceUnavailable, pe.StatusCode)
	assert.Equal(t, 3, pe.Attempts)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, rec.waits, 2)
	assert.True(t, sdk.IsTransport(err))
}

func TestAPILLM_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "invalid_request_error", "message": "bad model"}}`))
	}))
	defer srv.Close()
	rec := &sleepRecorder{}

	a := newAPILLM(t, "claude", map[string]any{
		"provider": "Anthropic",
		"model":    "claude-sonnet",
		"api_url":  srv.URL + "/v1/messages",
		"api_key":  "ak",
	}, rec)

	_, err := a.RequestMove(context.Background(), 0, Params{"prompt": "p"})
	var pe *sdk.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	assert.Equal(t, 1, pe.Attempts)
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, rec.waits)
}

func TestAPILLM_ProviderShapes(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		path     string
		reply    string
		want     string
		check    func(t *testing.T, r *http.Request, body map[string]any)
	}{
		{
			name:     "anthropic messages",
			provider: "anthropic",
			path:     "/v1/messages",
			reply:    `{"id": "msg_1", "type": "message", "role": "assistant", "model": "claude", "content": [{"type": "text", "text": "g1f3"}], "stop_reason": "end_turn", "usage": {"input_tokens": 1, "output_tokens": 1}}`,
			want:     "g1f3",
			check: func(t *testing.T, r *http.Request, body map[string]any) {
				assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
				assert.Equal(t, "/v1/messages", r.URL.Path)
				assert.Equal(t, float64(500), body["max_tokens"])
			},
		},
		{
			name:     "cohere generate",
			provider: "cohere",
			path:     "/v1/generate",
			reply:    `{"generations": [{"text": "d2d4"}]}`,
			want:     "d2d4",
			check: func(t *testing.T, r *http.Request, body map[string]any) {
				assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
				assert.Equal(t, "p", body["prompt"])
				assert.Equal(t, "m", body["model"])
			},
		},
		{
			name:     "google contents",
			provider: "google",
			path:     "/v1beta/models/{model}:generateContent",
			reply:    `{"candidates": [{"content": {"parts": [{"text": "c2c4"}]}}]}`,
			want:     "c2c4",
			check: func(t *testing.T, r *http.Request, body map[string]any) {
				assert.Equal(t, "key", r.Header.Get("X-Goog-Api-Key"))
				assert.Equal(t, "/v1beta/models/m:generateContent", r.URL.Path)
				gen := body["generationConfig"].(map[string]any)
				assert.Equal(t, float64(500), gen["maxOutputTokens"])
				assert.Len(t, body["contents"], 1)
			},
		},
		{
			name:     "generic chat-style answer",
			provider: "generic",
			path:     "/gen",
			reply:    `{"choices": [{"message": {"content": "b1c3"}}]}`,
			want:     "b1c3",
			check: func(t *testing.T, r *http.Request, body map[string]any) {
				assert.Equal(t, 0.3, body["temperature"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var body map[string]any
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				tt.check(t, r, body)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.reply))
			}))
			defer srv.Close()

			a := newAPILLM(t, "llm", map[string]any{
				"provider": tt.provider,
				"model":    "m",
				"api_url":  srv.URL + tt.path,
				"api_key":  "key",
			}, &sleepRecorder{})

			text, err := a.RequestMove(context.Background(), 0, Params{"prompt": "p"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestNewAPILLM_Resolution(t *testing.T) {
	t.Setenv("OPENAI_API_URL", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GPT_MINI_API_URL", "")
	t.Setenv("GPT_MINI_API_KEY", "from-engine-env")
	t.Setenv("API_URL", "")
	t.Setenv("API_KEY", "")

	a, err := NewAPILLM(sdk.NewEngineConfig("gpt-mini", map[string]any{
		"provider": "openai",
		"model":    "gpt-4o-mini",
		"api_key":  "YOUR_OPENAI_API_KEY",
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", a.APIURL())
	assert.Equal(t, "from-engine-env", a.apiKey)

	t.Setenv("GENERIC_API_URL", "")
	t.Setenv("LOCALPROXY_API_URL", "")
	_, err = NewAPILLM(sdk.NewEngineConfig("localproxy", map[string]any{"provider": "generic", "model": "x"}), nil)
	var cfgErr *sdk.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "api_url", cfgErr.Field)

	_, err = NewAPILLM(sdk.NewEngineConfig("x", map[string]any{"provider": "openai"}), nil)
	assert.True(t, sdk.IsConfigError(err))

	_, err = NewAPILLM(sdk.NewEngineConfig("x", map[string]any{"provider": "mistral", "model": "m"}), nil)
	assert.True(t, sdk.IsConfigError(err))
}

func TestAPILLM_Probe(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("NOKEY_API_KEY", "")
	t.Setenv("API_KEY", "")

	withKey := newAPILLM(t, "gpt", map[string]any{
		"provider": "openai", "model": "m", "api_url": "http://127.0.0.1:9/v1/chat/completions", "api_key": "k",
	}, &sleepRecorder{})
	assert.NoError(t, withKey.Probe(context.Background()))

	noKey := newAPILLM(t, "nokey", map[string]any{
		"provider": "openai", "model": "m", "api_url": "http://127.0.0.1:9/v1/chat/completions",
	}, &sleepRecorder{})
	assert.True(t, sdk.IsConfigError(noKey.Probe(context.Background())))
}

func TestSDKBaseURL(t *testing.T) {
	assert.Equal(t, "https://api.openai.com/v1/", sdkBaseURL("https://api.openai.com/v1/chat/completions", "chat/completions"))
	assert.Equal(t, "https://api.anthropic.com/", sdkBaseURL("https://api.anthropic.com/v1/messages/", "v1/messages"))
	assert.Equal(t, "http://proxy.local/openai/", sdkBaseURL("http://proxy.local/openai", "chat/completions"))
}
