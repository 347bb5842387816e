package validator

import (
	"fmt"
	"regexp"

	"github.com/felixgeelhaar/chessgate/internal/engine/oracle"
	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

var (
	uciToken = regexp.MustCompile(`(?i)\b([a-h][1-8][a-h][1-8][qrbn]?)\b`)

	fallbackPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)"move"\s*:\s*"([a-h][1-8][a-h][1-8][qrbn]?)"`),
		regexp.MustCompile(`(?i)(?:best move|move|jugada|mejor jugada).*?([a-h][1-8][a-h][1-8][qrbn]?)`),
	}
)

// Prompt extracts moves from free-form LLM text.
type Prompt struct {
	schema *Schema
}

// NewPrompt creates a prompt validator.
func NewPrompt(o oracle.Oracle) *Prompt {
	return &Prompt{schema: NewSchema(o)}
}

// Mode implements Validator.
func (p *Prompt) Mode() sdk.ValidationMode {
	return sdk.ValidationPrompt
}

// Candidates returns every UCI-shaped token in text, in order of
// appearance. The weaker patterns are only tried when the primary scan
// finds nothing.
func (p *Prompt) Candidates(text string) []string {
	var out []string
	for _, m := range uciToken.FindAllStringSubmatch(text, -1) {
		out = append(out, Normalize(m[1]))
	}
	if len(out) > 0 {
		return out
	}
	for _, re := range fallbackPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			out = append(out, Normalize(m[1]))
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// ValidateAndExtract returns the first candidate that is syntactically
// valid and, when fen is given, legal.
func (p *Prompt) ValidateAndExtract(text, fen string) (string, bool) {
	var board oracle.Board
	if fen != "" {
		b, err := p.schema.oracle.Parse(fen)
		if err != nil {
			return "", false
		}
		board = b
	}
	for _, c := range p.Candidates(text) {
		if !uciMove.MatchString(c) {
			continue
		}
		if board != nil && !board.IsLegal(c) {
			continue
		}
		return c, true
	}
	return "", false
}

// Extract implements Validator.
func (p *Prompt) Extract(raw, fen string) (string, error) {
	move, ok := p.ValidateAndExtract(raw, fen)
	if !ok {
		if len(p.Candidates(raw)) > 0 {
			return "", fmt.Errorf("%w: no candidate is legal", sdk.ErrIllegalMove)
		}
		return "", sdk.ErrNoMove
	}
	return move, nil
}
