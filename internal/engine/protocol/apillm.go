package protocol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
	"github.com/felixgeelhaar/chessgate/pkg/config"
)

// APILLMConfig is the hosted LLM subset of an engine configuration.
type APILLMConfig struct {
	Provider          string        `mapstructure:"provider" validate:"required,oneof=openai anthropic cohere google generic"`
	Model             string        `mapstructure:"model" validate:"required"`
	APIURL            string        `mapstructure:"api_url" validate:"omitempty,url"`
	APIKey            string        `mapstructure:"api_key"`
	Temperature       float64       `mapstructure:"temperature" validate:"gte=0"`
	MaxTokens         int           `mapstructure:"max_tokens" validate:"gt=0"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	SystemPrompt      string        `mapstructure:"system_prompt"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute" validate:"gte=0"`
}

// DefaultAPILLMConfig returns the defaults applied before decoding.
func DefaultAPILLMConfig() APILLMConfig {
	return APILLMConfig{
		Temperature:  0.3,
		MaxTokens:    500,
		Timeout:      60 * time.Second,
		SystemPrompt: defaultSystemPrompt,
	}
}

// Provider calls answering 429 or 503 are retried three times in total,
// waiting 2s then 4s.
const (
	providerAttempts = 3
	providerBackoff  = 2 * time.Second
)

// APILLM calls a hosted LLM provider.
type APILLM struct {
	cfg     APILLMConfig
	apiURL  string
	apiKey  string
	caller  providerCaller
	limiter *rate.Limiter
	retry   RetryPolicy
	client  *http.Client
	logger  *slog.Logger

	mu          sync.RWMutex
	initialized bool
	fen         string
}

// APILLMOption customises an APILLM.
type APILLMOption func(*APILLM)

// WithRetrySleep replaces the wait between retried provider calls.
func WithRetrySleep(sleep func(ctx context.Context, d time.Duration) error) APILLMOption {
	return func(a *APILLM) { a.retry.Sleep = sleep }
}

// WithHTTPClient sets the HTTP client used for provider calls.
func WithHTTPClient(client *http.Client) APILLMOption {
	return func(a *APILLM) { a.client = client }
}

// NewAPILLM builds a hosted LLM protocol from an engine configuration.
func NewAPILLM(cfg sdk.EngineConfig, logger *slog.Logger, opts ...APILLMOption) (*APILLM, error) {
	if cfg.Has("provider") {
		cfg = cfg.With("provider", strings.ToLower(cfg.GetString("provider")))
	}
	ac := DefaultAPILLMConfig()
	if err := cfg.Decode(&ac); err != nil {
		return nil, err
	}

	apiURL := ac.APIURL
	if apiURL == "" {
		apiURL = config.LookupAPIURL(ac.Provider, cfg.Name)
	}
	if apiURL == "" {
		apiURL = providerDefaultURLs[ac.Provider]
	}
	if apiURL == "" {
		return nil, sdk.NewConfigError(cfg.Name, "api_url",
			fmt.Sprintf("no api_url configured and %s_API_URL is not set", strings.ToUpper(ac.Provider)))
	}
	apiURL = strings.ReplaceAll(apiURL, "{model}", ac.Model)

	apiKey := ac.APIKey
	if isPlaceholderKey(apiKey) {
		apiKey = config.LookupAPIKey(ac.Provider, cfg.Name)
	}

	a := &APILLM{
		cfg:    ac,
		apiURL: apiURL,
		apiKey: apiKey,
		logger: loggerOrDefault(logger).With("protocol", NameAPILLM, "provider", ac.Provider, "model", ac.Model),
		retry: RetryPolicy{
			MaxAttempts: providerAttempts,
			Backoff:     Exponential(providerBackoff),
			Retryable:   retryableProviderError,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.client == nil {
		a.client = &http.Client{Timeout: ac.Timeout}
	}
	a.retry.OnRetry = func(attempt int, wait time.Duration, err error) {
		a.logger.Warn("provider call failed, retrying", "attempt", attempt, "wait", wait, "error", err)
	}
	if ac.RequestsPerMinute > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(ac.RequestsPerMinute/60), 1)
	}
	if apiKey == "" {
		a.logger.Warn("no api key configured; calls will likely fail",
			"lookup", fmt.Sprintf("%s_API_KEY, %s_API_KEY, API_KEY", strings.ToUpper(ac.Provider), config.EnvName(cfg.Name)))
	}

	a.caller = newProviderCaller(callerSettings{
		provider:     ac.Provider,
		model:        ac.Model,
		apiURL:       apiURL,
		apiKey:       apiKey,
		temperature:  ac.Temperature,
		maxTokens:    ac.MaxTokens,
		systemPrompt: ac.SystemPrompt,
		httpClient:   a.client,
	})
	return a, nil
}

// retryableProviderError retries busy providers and network failures.
func retryableProviderError(err error) bool {
	var pe *sdk.ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Name returns the protocol name.
func (a *APILLM) Name() string { return NameAPILLM }

// Config returns the decoded configuration.
func (a *APILLM) Config() APILLMConfig { return a.cfg }

// APIURL returns the resolved endpoint.
func (a *APILLM) APIURL() string { return a.apiURL }

// Initialize marks the protocol ready.
func (a *APILLM) Initialize(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initialized = true
	return nil
}

// IsInitialized reports whether Initialize was called.
func (a *APILLM) IsInitialized() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.initialized
}

// SendPosition remembers the position; the prompt carries it to the model.
func (a *APILLM) SendPosition(_ context.Context, fen string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fen = fen
	return nil
}

// RequestMove sends params["prompt"] to the provider and returns its text.
func (a *APILLM) RequestMove(ctx context.Context, _ int, params Params) (string, error) {
	prompt := params.String("prompt")
	if prompt == "" {
		return "", sdk.NewConfigError("", "prompt", "api llm requests need a prompt")
	}

	var (
		text     string
		attempts int
	)
	err := a.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		var err error
		text, err = a.caller.call(ctx, prompt)
		return err
	})
	if err != nil {
		var pe *sdk.ProviderError
		if errors.As(err, &pe) {
			pe.Attempts = attempts
		}
		return "", err
	}
	a.logger.DebugContext(ctx, "provider answered", "attempts", attempts, "chars", len(text))
	return text, nil
}

// Probe succeeds when the endpoint host resolves and a key is present. It
// never makes a billable call.
func (a *APILLM) Probe(ctx context.Context) error {
	if a.apiKey == "" {
		return sdk.NewConfigError("", "api_key", "no api key available for "+a.cfg.Provider)
	}
	u, err := url.Parse(a.apiURL)
	if err != nil || u.Hostname() == "" {
		return sdk.NewConfigError("", "api_url", "invalid api url "+a.apiURL)
	}
	if _, err := net.DefaultResolver.LookupHost(ctx, u.Hostname()); err != nil {
		return sdk.NewTransportError(NameAPILLM, "probe", err)
	}
	return nil
}

// Cleanup releases idle connections.
func (a *APILLM) Cleanup(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initialized = false
	a.client.CloseIdleConnections()
	return nil
}
