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
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
	"github.com/felixgeelhaar/chessgate/pkg/config"
)

// RESTConfig is the REST subset of an engine configuration.
type RESTConfig struct {
	URL          string            `mapstructure:"url" validate:"required,url"`
	Method       string            `mapstructure:"method" validate:"oneof=GET POST PUT"`
	Params       map[string]any    `mapstructure:"params"`
	ExtraParams  map[string]any    `mapstructure:"extra_params"`
	Headers      map[string]string `mapstructure:"headers"`
	Extract      string            `mapstructure:"extract"`
	APIKey       string            `mapstructure:"api_key"`
	Provider     string            `mapstructure:"provider"`
	AuthHeader   string            `mapstructure:"auth_header"`
	AuthFormat   string            `mapstructure:"auth_format"`
	Timeout      time.Duration     `mapstructure:"timeout" validate:"gt=0"`
	DefaultDepth int               `mapstructure:"default_depth" validate:"gte=0"`
}

// DefaultRESTConfig returns the defaults applied before decoding.
func DefaultRESTConfig() RESTConfig {
	return RESTConfig{
		Method:       http.MethodPost,
		AuthHeader:   "Authorization",
		AuthFormat:   "Bearer {api_key}",
		Timeout:      30 * time.Second,
		DefaultDepth: defaultSearchValue,
	}
}

// Keys tried, in order, when no extract path is configured.
var restMoveKeys = []string{"move", "bestmove", "best_move", "uci", "san"}

var templateKey = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

const maxErrorBody = 500

// REST asks a remote HTTP/JSON service for moves.
type REST struct {
	cfg    RESTConfig
	apiKey string
	client *http.Client
	logger *slog.Logger

	mu          sync.RWMutex
	initialized bool
	fen         string
}

// NewREST builds a REST protocol from an engine configuration.
func NewREST(cfg sdk.EngineConfig, logger *slog.Logger) (*REST, error) {
	if cfg.Has("method") {
		cfg = cfg.With("method", strings.ToUpper(cfg.GetString("method")))
	}
	rc := DefaultRESTConfig()
	if err := cfg.Decode(&rc); err != nil {
		return nil, err
	}

	apiKey := rc.APIKey
	if isPlaceholderKey(apiKey) {
		provider := rc.Provider
		if provider == "" {
			provider = NameREST
		}
		apiKey = config.LookupAPIKey(provider, cfg.Name)
	}

	return &REST{
		cfg:    rc,
		apiKey: apiKey,
		client: &http.Client{Timeout: rc.Timeout},
		logger: loggerOrDefault(logger).With("protocol", NameREST),
	}, nil
}

// isPlaceholderKey reports keys that are absent or left as YOUR_... samples.
func isPlaceholderKey(key string) bool {
	return key == "" || strings.HasPrefix(key, "YOUR_")
}

// Name returns the protocol name.
func (r *REST) Name() string { return NameREST }

// Config returns the decoded configuration.
func (r *REST) Config() RESTConfig { return r.cfg }

// Initialize marks the protocol ready; HTTP needs no handshake.
func (r *REST) Initialize(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = true
	return nil
}

// IsInitialized reports whether Initialize was called.
func (r *REST) IsInitialized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.initialized
}

// SendPosition remembers the position for the next request.
func (r *REST) SendPosition(_ context.Context, fen string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fen = fen
	return nil
}

// RequestMove calls the service and extracts the move from its JSON answer.
func (r *REST) RequestMove(ctx context.Context, depth int, params Params) (string, error) {
	r.mu.RLock()
	fen := r.fen
	r.mu.RUnlock()

	payload := r.buildPayload(fen, depth, params)
	req, err := r.newRequest(ctx, payload)
	if err != nil {
		return "", sdk.NewTransportError(NameREST, "build request", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", sdk.NewTransportError(NameREST, "request move", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", sdk.NewTransportError(NameREST, "read response", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		msg := "resource not found"
		if v, ok := extractPath(body, "error"); ok && v != "" {
			msg = v
		}
		return "", fmt.Errorf("%w: %s", sdk.ErrPositionNotFound, msg)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &sdk.TransportError{
			Protocol:   NameREST,
			Operation:  "request move",
			StatusCode: resp.StatusCode,
			Err:        errors.New(truncateBody(body)),
		}
	}

	move, err := r.extractMove(body)
	if err != nil {
		return "", err
	}
	r.logger.DebugContext(ctx, "rest move extracted", "move", move)
	return move, nil
}

func (r *REST) buildPayload(fen string, depth int, params Params) map[string]any {
	if depth <= 0 {
		depth = r.cfg.DefaultDepth
	}
	values := map[string]string{
		"fen":   fen,
		"depth": strconv.Itoa(depth),
	}
	for k := range params {
		values[k] = params.String(k)
	}

	payload := make(map[string]any, len(r.cfg.Params)+len(r.cfg.ExtraParams))
	for key, tmpl := range r.cfg.Params {
		s, ok := tmpl.(string)
		if !ok {
			payload[key] = tmpl
			continue
		}
		payload[key] = r.render(s, values)
	}
	for key, v := range r.cfg.ExtraParams {
		payload[key] = v
	}
	return payload
}

// render substitutes {key} placeholders. Unknown keys are left untouched.
func (r *REST) render(tmpl string, values map[string]string) string {
	return templateKey.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := values[key]; ok {
			return v
		}
		r.logger.Warn("template key not available", "key", key)
		return m
	})
}

func (r *REST) newRequest(ctx context.Context, payload map[string]any) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)
	if r.cfg.Method == http.MethodGet {
		u, perr := url.Parse(r.cfg.URL)
		if perr != nil {
			return nil, perr
		}
		q := u.Query()
		for k, v := range payload {
			q.Set(k, fmt.Sprint(v))
		}
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	} else {
		body, merr := json.Marshal(payload)
		if merr != nil {
			return nil, merr
		}
		req, err = http.NewRequestWithContext(ctx, r.cfg.Method, r.cfg.URL, bytes.NewReader(body))
	}
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set(r.cfg.AuthHeader, strings.ReplaceAll(r.cfg.AuthFormat, "{api_key}", r.apiKey))
	}
	for k, v := range r.cfg.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (r *REST) extractMove(body []byte) (string, error) {
	if r.cfg.Extract != "" {
		if v, ok := extractPath(body, r.cfg.Extract); ok {
			return firstToken(v), nil
		}
	}
	if v, _, ok := extractFirst(body, restMoveKeys...); ok {
		return firstToken(v), nil
	}
	return "", fmt.Errorf("%w: rest response has no move (configure extract): %s", sdk.ErrNoMove, truncateBody(body))
}

// Probe sends a HEAD request; any HTTP answer means the service is reachable.
func (r *REST) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.cfg.URL, nil)
	if err != nil {
		return sdk.NewTransportError(NameREST, "probe", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return sdk.NewTransportError(NameREST, "probe", err)
	}
	_ = resp.Body.Close()
	return nil
}

// Cleanup releases idle connections.
func (r *REST) Cleanup(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = false
	r.client.CloseIdleConnections()
	return nil
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
