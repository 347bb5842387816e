package validator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/chessgate/internal/engine/oracle"
	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

var uciMove = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// Schema validates bare UCI moves.
type Schema struct {
	oracle oracle.Oracle
}

// NewSchema creates a schema validator.
func NewSchema(o oracle.Oracle) *Schema {
	return &Schema{oracle: o}
}

// Mode implements Validator.
func (s *Schema) Mode() sdk.ValidationMode {
	return sdk.ValidationSchema
}

// Normalize trims and lowercases a move.
func Normalize(move string) string {
	return strings.ToLower(strings.TrimSpace(move))
}

// ValidSyntax reports whether v is a string holding a UCI move.
func (s *Schema) ValidSyntax(v any) bool {
	move, ok := v.(string)
	if !ok {
		return false
	}
	return uciMove.MatchString(Normalize(move))
}

// IsLegal asks the oracle whether move is legal in fen. Unparseable
// positions count as "not legal".
func (s *Schema) IsLegal(move, fen string) bool {
	board, err := s.oracle.Parse(fen)
	if err != nil {
		return false
	}
	return board.IsLegal(Normalize(move))
}

// Validate checks syntax and then legality, returning the normalized move.
func (s *Schema) Validate(move, fen string) (string, error) {
	normalized := Normalize(move)
	if !uciMove.MatchString(normalized) {
		return "", fmt.Errorf("%w: %q is not a UCI move", sdk.ErrNoMove, move)
	}
	if fen != "" && !s.IsLegal(normalized, fen) {
		return "", fmt.Errorf("%w: %s", sdk.ErrIllegalMove, normalized)
	}
	return normalized, nil
}

// Extract implements Validator.
func (s *Schema) Extract(raw, fen string) (string, error) {
	return s.Validate(raw, fen)
}
