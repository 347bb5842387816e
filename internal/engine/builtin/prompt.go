package builtin

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/chessgate/internal/engine/oracle"
	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

const defaultPromptTemplate = `You are an expert chess assistant.

Current position (FEN): {fen}
Side to move: {side_to_move}
Game phase: {game_phase}

Move history: {move_history}

Desired strategy: {strategy}

Legal moves:
{legal_moves}

Analyse the position and suggest the best move in UCI format (for example e2e4).
Reply with the move first, optionally followed by your reasoning.

Response format:
MOVE: [move in UCI format]
`

const (
	defaultMoveHistory = "Start of game"
	defaultStrategy    = "balanced"
	explanationSuffix  = "\n\nPlease briefly explain your reasoning after the move."
	movesPerGroup      = 8
)

// promptBuilder renders the prompt sent to generative backends.
type promptBuilder struct {
	template string
}

// loadPromptTemplate picks the template from prompt_template_file, then the
// inline prompt_template, then the default.
func loadPromptTemplate(cfg sdk.EngineConfig, logger *slog.Logger) string {
	if path := cfg.GetString("prompt_template_file"); path != "" {
		tmpl, err := readPromptFile(path)
		if err == nil && tmpl != "" {
			return tmpl
		}
		logger.Warn("prompt template file unusable, falling back", "path", path, "error", err)
	}
	if inline := cfg.GetString("prompt_template"); inline != "" {
		return inline
	}
	return defaultPromptTemplate
}

func readPromptFile(path string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc struct {
			Template string `yaml:"template"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return "", fmt.Errorf("parse %s: %w", path, err)
		}
		if doc.Template == "" {
			return defaultPromptTemplate, nil
		}
		return doc.Template, nil
	default:
		return string(data), nil
	}
}

// Build fills the template for a position. Unknown placeholders are left as
// they are. board may be nil when the position could not be analysed.
func (p promptBuilder) Build(fen string, board oracle.Board, mc sdk.MoveContext) string {
	history := mc.MoveHistory
	if history == "" {
		history = defaultMoveHistory
	}
	strategy := mc.Strategy
	if strategy == "" {
		strategy = defaultStrategy
	}

	side, phase, legal := "unknown", "unknown", "unavailable"
	if board != nil {
		side = board.SideToMove().String()
		phase = gamePhase(board)
		legal = summarizeMoves(board.Moves())
	}

	prompt := strings.NewReplacer(
		"{fen}", fen,
		"{move_history}", history,
		"{strategy}", strategy,
		"{side_to_move}", side,
		"{game_phase}", phase,
		"{legal_moves}", legal,
	).Replace(p.template)

	if mc.Explanation {
		prompt += explanationSuffix
	}
	return prompt
}

func gamePhase(board oracle.Board) string {
	pieces := board.PieceCount()
	switch {
	case pieces <= 12:
		return "endgame"
	case board.FullMoveNumber() <= 10 && pieces >= 28:
		return "opening"
	default:
		return "middlegame"
	}
}

// summarizeMoves groups legal moves into captures, development, king moves
// and the rest, each capped.
func summarizeMoves(moves []oracle.MoveInfo) string {
	groups := map[string][]string{}
	for _, m := range moves {
		switch {
		case m.Capture:
			groups["captures"] = append(groups["captures"], m.UCI)
		case m.Castle, m.Piece == oracle.Knight, m.Piece == oracle.Bishop:
			groups["development"] = append(groups["development"], m.UCI)
		case m.Piece == oracle.King:
			groups["king moves"] = append(groups["king moves"], m.UCI)
		default:
			groups["other"] = append(groups["other"], m.UCI)
		}
	}

	var b strings.Builder
	for _, name := range []string{"captures", "development", "king moves", "other"} {
		list := groups[name]
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s", name, strings.Join(capList(list), ", "))
		if extra := len(list) - movesPerGroup; extra > 0 {
			fmt.Fprintf(&b, " (+%d more)", extra)
		}
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return "none"
	}
	return strings.TrimRight(b.String(), "\n")
}

func capList(list []string) []string {
	if len(list) > movesPerGroup {
		return list[:movesPerGroup]
	}
	return list
}
