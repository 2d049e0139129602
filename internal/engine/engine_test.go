package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcheran-engine/tcheran/internal/board"
)

func TestSearchBasic(t *testing.T) {
	pos := board.NewPosition()
	eng := NewEngine(DefaultOptions())

	move := eng.Search(pos, 4)
	assert.NotEqual(t, board.NoMove, move, "search should find a move from the starting position")
}

func TestSearchFindsMateInOne(t *testing.T) {
	// White to move, back-rank mate in one with Ra8#.
	pos, err := board.ParseFEN("6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
	require.NoError(t, err)

	eng := NewEngine(DefaultOptions())
	move := eng.Search(pos, 6)
	require.NotEqual(t, board.NoMove, move)

	undo := pos.MakeMove(move)
	defer pos.UnmakeMove(move, undo)
	assert.True(t, pos.IsCheckmate(), "expected %s to deliver mate", move.String())
}

func TestSearchReturnsMoveAcrossPositions(t *testing.T) {
	eng := NewEngine(DefaultOptions())

	positions := []string{
		board.StartFEN,
		"r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 3 3",
		"8/8/8/4k3/8/4K3/4P3/8 w - - 0 1",
	}

	for _, fen := range positions {
		pos, err := board.ParseFEN(fen)
		require.NoError(t, err)

		move := eng.Search(pos, 5)
		if pos.GenerateLegalMoves().Len() == 0 {
			assert.Equal(t, board.NoMove, move)
			continue
		}
		assert.NotEqual(t, board.NoMove, move, "fen=%s", fen)
	}
}

func TestSetOptionValidatesRange(t *testing.T) {
	opts := DefaultOptions()

	require.NoError(t, opts.SetOption("Hash", "128"))
	assert.Equal(t, 128, opts.HashMB)

	assert.Error(t, opts.SetOption("Hash", "0"))
	assert.Error(t, opts.SetOption("Hash", "100000"))
	assert.Error(t, opts.SetOption("Unknown", "1"))

	require.NoError(t, opts.SetOption("Move Overhead", "50"))
	assert.Equal(t, 50*time.Millisecond, opts.MoveOverhead)
}

func TestNewGameClearsTranspositionTable(t *testing.T) {
	eng := NewEngine(DefaultOptions())
	pos := board.NewPosition()

	eng.Search(pos, 4)
	assert.Greater(t, eng.HashFull(), 0)

	eng.NewGame()
	assert.Equal(t, 0, eng.HashFull())
}

func TestPerftStartingPosition(t *testing.T) {
	eng := NewEngine(DefaultOptions())
	pos := board.NewPosition()

	assert.Equal(t, uint64(20), eng.Perft(pos, 1))
	assert.Equal(t, uint64(400), eng.Perft(pos, 2))
}
