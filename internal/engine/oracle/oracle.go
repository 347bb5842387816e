// Package oracle answers chess-rules questions about a position. It never
// mutates a board.
package oracle

import (
	"errors"
)

// ErrInvalidFEN is returned when a position string cannot be parsed.
var ErrInvalidFEN = errors.New("invalid FEN")

// Color is the side to move.
type Color int

const (
	White Color = iota
	Black
)

// String returns "white" or "black".
func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// PieceKind names the piece that makes a move.
type PieceKind string

const (
	Pawn   PieceKind = "pawn"
	Knight PieceKind = "knight"
	Bishop PieceKind = "bishop"
	Rook   PieceKind = "rook"
	Queen  PieceKind = "queen"
	King   PieceKind = "king"
)

// MoveInfo describes one legal move.
type MoveInfo struct {
	UCI     string
	Piece   PieceKind
	Capture bool
	Castle  bool
}

// Board is a parsed, read-only position.
type Board interface {
	// LegalMoves returns every legal move in UCI notation.
	LegalMoves() []string

	// IsLegal reports whether a UCI move is legal. Case is ignored.
	IsLegal(move string) bool

	// SideToMove returns the color to play.
	SideToMove() Color

	// Moves returns the legal moves with piece and capture details.
	Moves() []MoveInfo

	// PieceCount returns the number of pieces on the board, kings included.
	PieceCount() int

	// FullMoveNumber returns the FEN full-move counter.
	FullMoveNumber() int
}

// Oracle parses positions.
type Oracle interface {
	Parse(fen string) (Board, error)
}
