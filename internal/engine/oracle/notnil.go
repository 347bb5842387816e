package oracle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/notnil/chess"
)

// NotnilOracle implements Oracle on top of github.com/notnil/chess.
type NotnilOracle struct{}

// New returns the default oracle.
func New() *NotnilOracle {
	return &NotnilOracle{}
}

// Parse parses a FEN string.
func (o *NotnilOracle) Parse(fen string) (Board, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return nil, fmt.Errorf("%w: empty position", ErrInvalidFEN)
	}
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	game := chess.NewGame(opt)
	pos := game.Position()

	b := &notnilBoard{
		pos:   pos,
		moves: pos.ValidMoves(),
		fen:   fen,
		legal: make(map[string]struct{}),
	}
	for _, m := range b.moves {
		b.legal[m.String()] = struct{}{}
	}
	return b, nil
}

type notnilBoard struct {
	pos   *chess.Position
	moves []*chess.Move
	fen   string
	legal map[string]struct{}
}

func (b *notnilBoard) LegalMoves() []string {
	out := make([]string, 0, len(b.moves))
	for _, m := range b.moves {
		out = append(out, m.String())
	}
	return out
}

func (b *notnilBoard) IsLegal(move string) bool {
	_, ok := b.legal[strings.ToLower(strings.TrimSpace(move))]
	return ok
}

func (b *notnilBoard) SideToMove() Color {
	if b.pos.Turn() == chess.Black {
		return Black
	}
	return White
}

func (b *notnilBoard) Moves() []MoveInfo {
	board := b.pos.Board()
	out := make([]MoveInfo, 0, len(b.moves))
	for _, m := range b.moves {
		out = append(out, MoveInfo{
			UCI:     m.String(),
			Piece:   pieceKind(board.Piece(m.S1()).Type()),
			Capture: m.HasTag(chess.Capture) || m.HasTag(chess.EnPassant),
			Castle:  m.HasTag(chess.KingSideCastle) || m.HasTag(chess.QueenSideCastle),
		})
	}
	return out
}

func (b *notnilBoard) PieceCount() int {
	return len(b.pos.Board().SquareMap())
}

func (b *notnilBoard) FullMoveNumber() int {
	fields := strings.Fields(b.fen)
	if len(fields) < 6 {
		return 1
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func pieceKind(t chess.PieceType) PieceKind {
	switch t {
	case chess.King:
		return King
	case chess.Queen:
		return Queen
	case chess.Rook:
		return Rook
	case chess.Bishop:
		return Bishop
	case chess.Knight:
		return Knight
	default:
		return Pawn
	}
}
