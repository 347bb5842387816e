// Package sdk defines the contracts shared by chessgate engines and protocols.
package sdk

import (
	"context"
	"log/slog"

	"github.com/felixgeelhaar/chessgate/internal/engine/oracle"
)

// Kind is the behavioral category of an engine.
type Kind string

const (
	// KindTraditional covers classic search engines (Stockfish and friends).
	KindTraditional Kind = "traditional"

	// KindNeuronal covers neural-network engines such as Lc0.
	KindNeuronal Kind = "neuronal"

	// KindGenerative covers LLM-backed engines.
	KindGenerative Kind = "generative"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the kind is known.
func (k Kind) IsValid() bool {
	switch k {
	case KindTraditional, KindNeuronal, KindGenerative:
		return true
	default:
		return false
	}
}

// Origin tells whether the backend runs locally or remotely.
type Origin string

const (
	OriginInternal Origin = "internal"
	OriginExternal Origin = "external"
)

// ValidationMode selects how raw output is turned into a move.
type ValidationMode string

const (
	// ValidationSchema expects a bare UCI move.
	ValidationSchema ValidationMode = "schema"

	// ValidationPrompt scans free-form text for a move.
	ValidationPrompt ValidationMode = "prompt"
)

// Descriptor identifies an engine instance. It is fixed at construction.
type Descriptor struct {
	Name           string         `json:"name"`
	Kind           Kind           `json:"kind"`
	Origin         Origin         `json:"origin"`
	ValidationMode ValidationMode `json:"validation_mode"`
	Protocol       string         `json:"protocol"`
}

// MoveContext carries optional hints for a move request.
type MoveContext struct {
	MoveHistory string `json:"move_history,omitempty"`
	Strategy    string `json:"strategy,omitempty"`
	Explanation bool   `json:"explanation,omitempty"`
	MaxRetries  int    `json:"max_retries,omitempty"`
}

// MoveRequest asks an engine for a move in a position.
type MoveRequest struct {
	FEN     string      `json:"fen"`
	Depth   *int        `json:"depth,omitempty"`
	Context MoveContext `json:"context"`
}

// DepthOr returns the requested depth or def when none was given.
func (r MoveRequest) DepthOr(def int) int {
	if r.Depth != nil && *r.Depth > 0 {
		return *r.Depth
	}
	return def
}

// MoveResult is a verified move plus whatever the backend said around it.
type MoveResult struct {
	Move        string `json:"move"`
	RawResponse string `json:"raw_response,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// Engine is the uniform contract every engine kind implements.
type Engine interface {
	// Descriptor returns the immutable identity of the engine.
	Descriptor() Descriptor

	// Initialize prepares the underlying protocol. It is idempotent.
	Initialize(ctx context.Context) error

	// IsInitialized reports whether Initialize has completed.
	IsInitialized() bool

	// GetMove returns a verified move for the request.
	GetMove(ctx context.Context, req MoveRequest) (MoveResult, error)

	// CheckAvailability probes the backend without requesting a move.
	CheckAvailability(ctx context.Context) error

	// Cleanup releases the protocol's transport.
	Cleanup(ctx context.Context) error
}

// SupportsExplanation is implemented by engines that can return reasoning
// alongside their move.
type SupportsExplanation interface {
	LastExplanation() string
}

// Dependencies are the collaborators handed to engine constructors.
type Dependencies struct {
	Oracle oracle.Oracle
	Logger *slog.Logger
}

// Constructor builds an engine of one kind from its configuration.
type Constructor func(name string, cfg EngineConfig, deps Dependencies) (Engine, error)
