package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"

	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderCohere    = "cohere"
	ProviderGoogle    = "google"
	ProviderGeneric   = "generic"
)

// Public endpoints used when neither configuration nor environment name one.
var providerDefaultURLs = map[string]string{
	ProviderOpenAI:    "https://api.openai.com/v1/chat/completions",
	ProviderAnthropic: "https://api.anthropic.com/v1/messages",
	ProviderCohere:    "https://api.cohere.ai/v1/generate",
	ProviderGoogle:    "https://generativelanguage.googleapis.com/v1beta/models/{model}:generateContent",
}

const defaultSystemPrompt = "You are an expert chess assistant."

// providerCaller performs one completion call. HTTP failures come back as
// *sdk.ProviderError, network failures as *sdk.TransportError.
type providerCaller interface {
	call(ctx context.Context, prompt string) (string, error)
}

type callerSettings struct {
	provider     string
	model        string
	apiURL       string
	apiKey       string
	temperature  float64
	maxTokens    int
	systemPrompt string
	httpClient   *http.Client
}

func newProviderCaller(s callerSettings) providerCaller {
	switch s.provider {
	case ProviderOpenAI:
		return newOpenAICaller(s)
	case ProviderAnthropic:
		return newAnthropicCaller(s)
	default:
		return &httpCaller{settings: s}
	}
}

// sdkBaseURL strips the endpoint suffix an SDK appends on its own.
func sdkBaseURL(apiURL, suffix string) string {
	u := strings.TrimSuffix(apiURL, "/")
	u = strings.TrimSuffix(u, suffix)
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

type openaiCaller struct {
	client   openai.Client
	settings callerSettings
}

func newOpenAICaller(s callerSettings) *openaiCaller {
	opts := []openaioption.RequestOption{
		openaioption.WithBaseURL(sdkBaseURL(s.apiURL, "chat/completions")),
		openaioption.WithMaxRetries(0),
		openaioption.WithHTTPClient(s.httpClient),
	}
	if s.apiKey != "" {
		opts = append(opts, openaioption.WithAPIKey(s.apiKey))
	}
	return &openaiCaller{client: openai.NewClient(opts...), settings: s}
}

func (c *openaiCaller) call(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.settings.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.settings.systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.settings.temperature),
		MaxTokens:   openai.Int(int64(c.settings.maxTokens)),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", c.settings.providerError(apiErr.StatusCode, apiErr.Error())
		}
		return "", sdk.NewTransportError(NameAPILLM, ProviderOpenAI, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s response has no choices", ProviderOpenAI)
	}
	return resp.Choices[0].Message.Content, nil
}

type anthropicCaller struct {
	client   anthropic.Client
	settings callerSettings
}

func newAnthropicCaller(s callerSettings) *anthropicCaller {
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithBaseURL(sdkBaseURL(s.apiURL, "v1/messages")),
		anthropicoption.WithMaxRetries(0),
		anthropicoption.WithHTTPClient(s.httpClient),
	}
	if s.apiKey != "" {
		opts = append(opts, anthropicoption.WithAPIKey(s.apiKey))
	}
	return &anthropicCaller{client: anthropic.NewClient(opts...), settings: s}
}

func (c *anthropicCaller) call(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.settings.model),
		MaxTokens:   int64(c.settings.maxTokens),
		Temperature: anthropic.Float(c.settings.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", c.settings.providerError(apiErr.StatusCode, apiErr.Error())
		}
		return "", sdk.NewTransportError(NameAPILLM, ProviderAnthropic, err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.AsText().Text, nil
		}
	}
	return "", fmt.Errorf("%s response has no text block", ProviderAnthropic)
}

// httpCaller speaks the JSON shapes of providers without an SDK in use.
type httpCaller struct {
	settings callerSettings
}

func (c *httpCaller) textPaths() []string {
	switch c.settings.provider {
	case ProviderCohere:
		return []string{"generations.0.text"}
	case ProviderGoogle:
		return []string{"candidates.0.content.parts.0.text"}
	default:
		return []string{"text", "response", "choices.0.text", "choices.0.message.content"}
	}
}

func (c *httpCaller) payload(prompt string) map[string]any {
	s := c.settings
	if s.provider == ProviderGoogle {
		return map[string]any{
			"contents": []any{
				map[string]any{"parts": []any{map[string]any{"text": prompt}}},
			},
			"generationConfig": map[string]any{
				"temperature":     s.temperature,
				"maxOutputTokens": s.maxTokens,
			},
		}
	}
	return map[string]any{
		"model":       s.model,
		"prompt":      prompt,
		"max_tokens":  s.maxTokens,
		"temperature": s.temperature,
	}
}

func (c *httpCaller) call(ctx context.Context, prompt string) (string, error) {
	s := c.settings
	body, err := json.Marshal(c.payload(prompt))
	if err != nil {
		return "", fmt.Errorf("encode %s request: %w", s.provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", sdk.NewTransportError(NameAPILLM, s.provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		if s.provider == ProviderGoogle {
			req.Header.Set("x-goog-api-key", s.apiKey)
		} else {
			req.Header.Set("Authorization", "Bearer "+s.apiKey)
		}
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", sdk.NewTransportError(NameAPILLM, s.provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", sdk.NewTransportError(NameAPILLM, s.provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", s.providerError(resp.StatusCode, truncateBody(data))
	}

	text, _, ok := extractFirst(data, c.textPaths()...)
	if !ok {
		return "", fmt.Errorf("%s response has no text: %s", s.provider, truncateBody(data))
	}
	return text, nil
}

func (s callerSettings) providerError(status int, body string) *sdk.ProviderError {
	return &sdk.ProviderError{
		Provider:   s.provider,
		Model:      s.model,
		StatusCode: status,
		Attempts:   1,
		Body:       body,
	}
}
