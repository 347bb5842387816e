// Package builtin implements the traditional, neuronal and generative engine
// kinds on top of the protocol package.
package builtin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/chessgate/internal/engine/oracle"
	"github.com/felixgeelhaar/chessgate/internal/engine/protocol"
	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
	"github.com/felixgeelhaar/chessgate/internal/engine/validator"
	"github.com/felixgeelhaar/chessgate/pkg/observability"
)

// engineBase holds what every engine kind shares: its identity, its own
// protocol instance and a validator.
type engineBase struct {
	desc      sdk.Descriptor
	cfg       sdk.EngineConfig
	proto     protocol.Protocol
	validator validator.Validator
	oracle    oracle.Oracle
	logger    *slog.Logger

	initMu      sync.Mutex
	initialized bool

	// exchangeMu keeps position and move request of one call together.
	exchangeMu sync.Mutex
}

func newEngineBase(desc sdk.Descriptor, cfg sdk.EngineConfig, proto protocol.Protocol, deps sdk.Dependencies) (*engineBase, error) {
	o := deps.Oracle
	if o == nil {
		o = oracle.New()
	}
	v, err := validator.New(desc.ValidationMode, o)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &engineBase{
		desc:      desc,
		cfg:       cfg,
		proto:     proto,
		validator: v,
		oracle:    o,
		logger:    observability.ForEngine(logger, desc.Name, desc.Kind.String(), desc.Protocol),
	}, nil
}

// Descriptor returns the engine identity.
func (b *engineBase) Descriptor() sdk.Descriptor { return b.desc }

// Config returns the configuration the engine was built from.
func (b *engineBase) Config() sdk.EngineConfig { return b.cfg }

// Protocol returns the protocol the engine drives.
func (b *engineBase) Protocol() protocol.Protocol { return b.proto }

// Initialize prepares the protocol once. Concurrent callers wait for the
// first one.
func (b *engineBase) Initialize(ctx context.Context) error {
	b.initMu.Lock()
	defer b.initMu.Unlock()
	if b.initialized {
		return nil
	}
	if err := b.proto.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize %s: %w", b.desc.Name, err)
	}
	b.initialized = true
	b.logger.InfoContext(ctx, "engine initialized")
	return nil
}

// IsInitialized reports whether Initialize has completed.
func (b *engineBase) IsInitialized() bool {
	b.initMu.Lock()
	defer b.initMu.Unlock()
	return b.initialized
}

// CheckAvailability probes the backend.
func (b *engineBase) CheckAvailability(ctx context.Context) error {
	return b.proto.Probe(ctx)
}

// Cleanup releases the protocol.
func (b *engineBase) Cleanup(ctx context.Context) error {
	b.initMu.Lock()
	defer b.initMu.Unlock()
	b.initialized = false
	return b.proto.Cleanup(ctx)
}

// checkPosition rejects unparsable positions before any backend sees them.
func (b *engineBase) checkPosition(fen string) (oracle.Board, error) {
	board, err := b.oracle.Parse(fen)
	if err != nil {
		return nil, &sdk.ValidationError{Engine: b.desc.Name, Reason: "invalid position", Err: err}
	}
	return board, nil
}

// exchange sends the position and requests a move as one unit.
func (b *engineBase) exchange(ctx context.Context, fen string, depth int, params protocol.Params) (string, error) {
	if err := b.Initialize(ctx); err != nil {
		return "", err
	}
	b.exchangeMu.Lock()
	defer b.exchangeMu.Unlock()
	if err := b.proto.SendPosition(ctx, fen); err != nil {
		return "", err
	}
	return b.proto.RequestMove(ctx, depth, params)
}

// verify turns raw output into a move, wrapping failures as validation errors.
func (b *engineBase) verify(raw, fen string) (string, error) {
	move, err := b.validator.Extract(raw, fen)
	if err != nil {
		return "", &sdk.ValidationError{Engine: b.desc.Name, Reason: err.Error(), RawResponse: raw, Err: err}
	}
	return move, nil
}

// searchMove is the GetMove of the search-engine kinds: one exchange, then
// schema validation.
func (b *engineBase) searchMove(ctx context.Context, req sdk.MoveRequest) (sdk.MoveResult, error) {
	if _, err := b.checkPosition(req.FEN); err != nil {
		return sdk.MoveResult{}, err
	}
	raw, err := b.exchange(ctx, req.FEN, req.DepthOr(0), nil)
	if err != nil {
		return sdk.MoveResult{}, err
	}
	move, err := b.verify(raw, req.FEN)
	if err != nil {
		return sdk.MoveResult{}, err
	}
	b.logger.DebugContext(ctx, "move verified", "move", move)
	return sdk.MoveResult{Move: move, RawResponse: raw}, nil
}
