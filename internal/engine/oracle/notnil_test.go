package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestParseStartingPosition(t *testing.T) {
	board, err := New().Parse(startFEN)
	require.NoError(t, err)

	assert.Len(t, board.LegalMoves(), 20)
	assert.True(t, board.IsLegal("e2e4"))
	assert.True(t, board.IsLegal(" G1F3 "))
	assert.False(t, board.IsLegal("e2e5"))
	assert.Equal(t, White, board.SideToMove())
	assert.Equal(t, 32, board.PieceCount())
	assert.Equal(t, 1, board.FullMoveNumber())
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := New().Parse("")
	assert.ErrorIs(t, err, ErrInvalidFEN)

	_, err = New().Parse("definitely not a position")
	assert.ErrorIs(t, err, ErrInvalidFEN)
}

func TestSingleLegalMove(t *testing.T) {
	board, err := New().Parse("k6K/7P/8/8/8/8/3PP3/b5r1 w - - 0 1")
	require.NoError(t, err)

	assert.Equal(t, []string{"d2d4"}, board.LegalMoves())
	assert.False(t, board.IsLegal("e2e4"))
}

func TestMovesDetails(t *testing.T) {
	// After 1.e4 d5 white can capture on d5.
	board, err := New().Parse("rnbqkbnr/ppp1pppp/8/3p4/4P3/8/PPPP1PPP/RNBQKBNR w KQkq d6 0 2")
	require.NoError(t, err)

	byUCI := make(map[string]MoveInfo)
	for _, m := range board.Moves() {
		byUCI[m.UCI] = m
	}

	require.Contains(t, byUCI, "e4d5")
	assert.True(t, byUCI["e4d5"].Capture)
	assert.Equal(t, Pawn, byUCI["e4d5"].Piece)
	assert.Equal(t, Knight, byUCI["g1f3"].Piece)
	assert.Equal(t, King, byUCI["e1e2"].Piece)
	assert.False(t, byUCI["g1f3"].Capture)
	assert.Equal(t, 2, board.FullMoveNumber())
}

func TestBlackToMove(t *testing.T) {
	board, err := New().Parse("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1")
	require.NoError(t, err)

	assert.Equal(t, Black, board.SideToMove())
	assert.Equal(t, "black", board.SideToMove().String())
	assert.True(t, board.IsLegal("e7e5"))
}
