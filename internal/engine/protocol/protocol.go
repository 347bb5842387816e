// Package protocol implements the transports chessgate engines speak: a UCI
// subprocess, a REST scoring service, a local LLM server and hosted LLM APIs.
package protocol

import (
	"context"
	"fmt"
	"log/slog"
)

// Protocol names as they appear in descriptors and logs.
const (
	NameUCI      = "uci"
	NameREST     = "rest"
	NameLocalLLM = "local_llm"
	NameAPILLM   = "api_llm"
)

// Params carries per-request values such as the LLM prompt or extra REST
// template keys.
type Params map[string]any

// String returns the value under key formatted as a string, or "".
func (p Params) String(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Protocol is the transport contract an engine drives. Every implementation
// owns its transport exclusively.
type Protocol interface {
	// Name returns the protocol name.
	Name() string

	// Initialize prepares the transport. It is idempotent.
	Initialize(ctx context.Context) error

	// IsInitialized reports whether Initialize has completed.
	IsInitialized() bool

	// SendPosition hands the position to the backend, or remembers it for
	// stateless transports.
	SendPosition(ctx context.Context, fen string) error

	// RequestMove asks for a move in the last sent position and returns the
	// backend's raw answer.
	RequestMove(ctx context.Context, depth int, params Params) (string, error)

	// Probe checks reachability without requesting a move.
	Probe(ctx context.Context) error

	// Cleanup releases the transport.
	Cleanup(ctx context.Context) error
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
