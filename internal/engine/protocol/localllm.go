package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

// LocalLLMConfig is the local LLM subset of an engine configuration.
type LocalLLMConfig struct {
	Endpoint      string         `mapstructure:"endpoint" validate:"required,url"`
	Model         string         `mapstructure:"model"`
	ModelPath     string         `mapstructure:"model_path"`
	Timeout       time.Duration  `mapstructure:"timeout" validate:"gt=0"`
	MaxTokens     int            `mapstructure:"max_tokens" validate:"gt=0"`
	Temperature   float64        `mapstructure:"temperature" validate:"gte=0"`
	StopSequences []string       `mapstructure:"stop_sequences"`
	ExtraParams   map[string]any `mapstructure:"extra_params"`
}

// DefaultLocalLLMConfig returns the defaults applied before decoding.
func DefaultLocalLLMConfig() LocalLLMConfig {
	return LocalLLMConfig{
		Timeout:       60 * time.Second,
		MaxTokens:     500,
		Temperature:   0.3,
		StopSequences: []string{"\n\n", "Human:", "User:"},
	}
}

// Generation paths tried in order: LM Studio/LocalAI, Ollama, OpenAI
// compatible, llama.cpp.
var localGeneratePaths = []string{"/generate", "/api/generate", "/v1/completions", "/completion"}

var localTextPaths = []string{
	"response",
	"text",
	"choices.0.text",
	"choices.0.message.content",
	"output",
	"generated_text",
}

const healthTimeout = 5 * time.Second

// LocalLLM talks to an LLM server on the local network.
type LocalLLM struct {
	cfg    LocalLLMConfig
	client *http.Client
	logger *slog.Logger

	mu          sync.RWMutex
	initialized bool
	fen         string
}

// NewLocalLLM builds a local LLM protocol from an engine configuration.
func NewLocalLLM(cfg sdk.EngineConfig, logger *slog.Logger) (*LocalLLM, error) {
	lc := DefaultLocalLLMConfig()
	if err := cfg.Decode(&lc); err != nil {
		return nil, err
	}
	lc.Endpoint = strings.TrimRight(lc.Endpoint, "/")
	return &LocalLLM{
		cfg:    lc,
		client: &http.Client{Timeout: lc.Timeout},
		logger: loggerOrDefault(logger).With("protocol", NameLocalLLM),
	}, nil
}

// Name returns the protocol name.
func (l *LocalLLM) Name() string { return NameLocalLLM }

// Config returns the decoded configuration.
func (l *LocalLLM) Config() LocalLLMConfig { return l.cfg }

// Initialize pings the health endpoint. Servers without one are common, so
// it never fails.
func (l *LocalLLM) Initialize(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.initialized {
		return nil
	}
	hctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if status, err := l.health(hctx); err != nil {
		l.logger.WarnContext(ctx, "local llm health check failed, continuing", "endpoint", l.cfg.Endpoint, "error", err)
	} else {
		l.logger.InfoContext(ctx, "local llm reachable", "endpoint", l.cfg.Endpoint, "status", status)
	}
	l.initialized = true
	return nil
}

// IsInitialized reports whether Initialize was called.
func (l *LocalLLM) IsInitialized() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.initialized
}

// SendPosition remembers the position; the prompt carries it to the model.
func (l *LocalLLM) SendPosition(_ context.Context, fen string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fen = fen
	return nil
}

// RequestMove posts params["prompt"] to the first generation path that
// exists and returns the generated text.
func (l *LocalLLM) RequestMove(ctx context.Context, _ int, params Params) (string, error) {
	prompt := params.String("prompt")
	if prompt == "" {
		return "", sdk.NewConfigError("", "prompt", "local llm requests need a prompt")
	}
	body, err := json.Marshal(l.payload(prompt))
	if err != nil {
		return "", sdk.NewTransportError(NameLocalLLM, "encode request", err)
	}

	var lastErr error
	tried := make([]string, 0, len(localGeneratePaths))
	for _, path := range localGeneratePaths {
		tried = append(tried, path)
		text, status, err := l.generate(ctx, path, body)
		if status == http.StatusNotFound {
			continue
		}
		if err != nil {
			lastErr = err
			// A real HTTP failure on an existing path ends the search.
			if status != 0 || ctx.Err() != nil {
				break
			}
			continue
		}
		if text == "" {
			lastErr = fmt.Errorf("%s returned no text", path)
			continue
		}
		l.logger.DebugContext(ctx, "local llm answered", "path", path, "chars", len(text))
		return text, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no generation endpoint found")
	}
	return "", sdk.NewTransportError(NameLocalLLM, "generate",
		fmt.Errorf("%s: tried %s: %w", l.cfg.Endpoint, strings.Join(tried, ", "), lastErr))
}

func (l *LocalLLM) payload(prompt string) map[string]any {
	p := map[string]any{
		"prompt":      prompt,
		"max_tokens":  l.cfg.MaxTokens,
		"temperature": l.cfg.Temperature,
		"stop":        l.cfg.StopSequences,
	}
	if model := l.model(); model != "" {
		p["model"] = model
	}
	for k, v := range l.cfg.ExtraParams {
		p[k] = v
	}
	return p
}

func (l *LocalLLM) model() string {
	if l.cfg.Model != "" {
		return l.cfg.Model
	}
	return l.cfg.ModelPath
}

// generate returns the extracted text, the HTTP status (0 when no response
// arrived) and an error.
func (l *LocalLLM) generate(ctx context.Context, path string, body []byte) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.cfg.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", resp.StatusCode, fmt.Errorf("%s: http %d: %s", path, resp.StatusCode, truncateBody(data))
	}

	text, _, _ := extractFirst(data, localTextPaths...)
	return text, resp.StatusCode, nil
}

func (l *LocalLLM) health(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.cfg.Endpoint+"/health", nil)
	if err != nil {
		return 0, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// Probe checks the server answers HTTP on its health endpoint. Any status
// counts as reachable.
func (l *LocalLLM) Probe(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if _, err := l.health(hctx); err != nil {
		return sdk.NewTransportError(NameLocalLLM, "probe", err)
	}
	return nil
}

// Cleanup releases idle connections.
func (l *LocalLLM) Cleanup(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.initialized = false
	l.client.CloseIdleConnections()
	return nil
}
