// Package validator turns raw engine output into a verified UCI move.
package validator

import (
	"fmt"

	"github.com/felixgeelhaar/chessgate/internal/engine/oracle"
	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

// Validator extracts a verified move from raw protocol output.
type Validator interface {
	// Mode returns the validation mode implemented.
	Mode() sdk.ValidationMode

	// Extract returns the normalized move found in raw. When fen is not
	// empty the move must also be legal in that position.
	Extract(raw, fen string) (string, error)
}

// New returns the validator for a validation mode.
func New(mode sdk.ValidationMode, o oracle.Oracle) (Validator, error) {
	if o == nil {
		o = oracle.New()
	}
	switch mode {
	case sdk.ValidationSchema:
		return NewSchema(o), nil
	case sdk.ValidationPrompt:
		return NewPrompt(o), nil
	default:
		return nil, fmt.Errorf("%w: unknown validation mode %q", sdk.ErrInvalidConfig, mode)
	}
}
