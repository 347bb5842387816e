package builtin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/chessgate/internal/engine/protocol"
	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

// NoResponsePlaceholder stands in for the raw response when every attempt
// failed before the backend answered.
const NoResponsePlaceholder = "<no response captured>"

const defaultGenerativeRetries = 3

// Generative asks an LLM for a move and scans its answer for a legal one.
type Generative struct {
	*engineBase
	prompt     promptBuilder
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error

	mu              sync.Mutex
	lastExplanation string
}

// NewGenerative builds a generative engine. It implements sdk.Constructor.
func NewGenerative(name string, cfg sdk.EngineConfig, deps sdk.Dependencies) (sdk.Engine, error) {
	provider := strings.ToLower(cfg.GetString("provider"))
	if provider == "" {
		provider = protocol.ProviderOpenAI
		cfg = cfg.With("provider", provider)
	}

	var (
		proto  protocol.Protocol
		origin sdk.Origin
		err    error
	)
	if provider == "local" {
		proto, err = protocol.NewLocalLLM(cfg, deps.Logger)
		origin = sdk.OriginInternal
	} else {
		proto, err = protocol.NewAPILLM(cfg, deps.Logger)
		origin = sdk.OriginExternal
	}
	if err != nil {
		return nil, err
	}

	base, err := newEngineBase(sdk.Descriptor{
		Name:           name,
		Kind:           sdk.KindGenerative,
		Origin:         origin,
		ValidationMode: sdk.ValidationPrompt,
		Protocol:       proto.Name(),
	}, cfg, proto, deps)
	if err != nil {
		return nil, err
	}

	retries := cfg.GetInt("max_retries")
	if retries <= 0 {
		retries = defaultGenerativeRetries
	}
	return &Generative{
		engineBase: base,
		prompt:     promptBuilder{template: loadPromptTemplate(cfg, base.logger)},
		maxRetries: retries,
		sleep:      protocol.SleepContext,
	}, nil
}

// GetMove prompts the model and returns the first legal move in its answer.
// The whole exchange is retried when the answer holds no legal move or the
// call fails.
func (g *Generative) GetMove(ctx context.Context, req sdk.MoveRequest) (sdk.MoveResult, error) {
	board, err := g.checkPosition(req.FEN)
	if err != nil {
		return sdk.MoveResult{}, err
	}
	prompt := g.prompt.Build(req.FEN, board, req.Context)

	attempts := g.maxRetries
	if req.Context.MaxRetries > 0 {
		attempts = req.Context.MaxRetries
	}
	policy := protocol.RetryPolicy{
		MaxAttempts: attempts,
		Backoff:     protocol.Linear(time.Second, 500*time.Millisecond),
		Retryable:   func(err error) bool { return !sdk.IsConfigError(err) },
		Sleep:       g.sleep,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			g.logger.WarnContext(ctx, "generative attempt failed", "attempt", attempt, "of", attempts, "wait", wait, "error", err)
		},
	}

	var (
		lastRaw string
		result  sdk.MoveResult
	)
	err = policy.Do(ctx, func(ctx context.Context, _ int) error {
		raw, err := g.exchange(ctx, req.FEN, req.DepthOr(0), protocol.Params{"prompt": prompt})
		if err != nil {
			return err
		}
		lastRaw = raw
		move, err := g.verify(raw, req.FEN)
		if err != nil {
			return err
		}
		result = sdk.MoveResult{Move: move, RawResponse: raw}
		return nil
	})
	if err != nil {
		if sdk.IsConfigError(err) {
			return sdk.MoveResult{}, err
		}
		raw := lastRaw
		if raw == "" {
			raw = NoResponsePlaceholder
		}
		return sdk.MoveResult{}, &sdk.ValidationError{
			Engine:      g.desc.Name,
			Reason:      fmt.Sprintf("no legal move after %d attempt(s): %v", attempts, err),
			RawResponse: raw,
			Err:         err,
		}
	}

	if req.Context.Explanation {
		result.Explanation = result.RawResponse
		g.mu.Lock()
		g.lastExplanation = result.RawResponse
		g.mu.Unlock()
	}
	g.logger.InfoContext(ctx, "generative move", "move", result.Move)
	return result, nil
}

// LastExplanation returns the reasoning that came with the last move
// requested with an explanation.
func (g *Generative) LastExplanation() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastExplanation
}

var _ sdk.SupportsExplanation = (*Generative)(nil)
