package uci

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcheran-engine/tcheran/internal/board"
	"github.com/tcheran-engine/tcheran/internal/engine"
)

func newTestUCI() *UCI {
	return New(engine.NewEngine(engine.DefaultOptions()))
}

func TestHandlePositionStartpos(t *testing.T) {
	u := newTestUCI()
	u.handlePosition([]string{"startpos"})
	assert.Equal(t, board.StartFEN, u.position.ToFEN())
}

func TestHandlePositionStartposWithMoves(t *testing.T) {
	u := newTestUCI()
	u.handlePosition([]string{"startpos", "moves", "e2e4", "e7e5"})

	assert.NotEqual(t, board.StartFEN, u.position.ToFEN())
	assert.Len(t, u.positionHashes, 3)
}

func TestHandlePositionFEN(t *testing.T) {
	u := newTestUCI()
	fen := "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R b KQkq - 2 2"
	u.handlePosition([]string{"fen", "r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R", "b", "KQkq", "-", "2", "2"})

	assert.Equal(t, fen, u.position.ToFEN())
}

func TestHandlePositionInvalidMoveStopsApplyingFurtherMoves(t *testing.T) {
	u := newTestUCI()
	u.handlePosition([]string{"startpos", "moves", "e2e4", "bogus"})

	// e2e4 applied before the invalid token halted the loop.
	assert.Equal(t, board.Black, u.position.SideToMove)
}

func TestParseMoveFindsLegalMove(t *testing.T) {
	u := newTestUCI()
	u.position = board.NewPosition()

	m := u.parseMove("e2e4")
	require.NotEqual(t, board.NoMove, m)
	assert.Equal(t, "e2e4", m.String())
}

func TestParseMoveRejectsIllegalMove(t *testing.T) {
	u := newTestUCI()
	u.position = board.NewPosition()

	assert.Equal(t, board.NoMove, u.parseMove("e2e5"))
}

func TestParseMovePromotion(t *testing.T) {
	u := newTestUCI()
	pos, err := board.ParseFEN("8/P6k/8/8/8/8/7K/8 w - - 0 1")
	require.NoError(t, err)
	u.position = pos

	m := u.parseMove("a7a8q")
	require.NotEqual(t, board.NoMove, m)
	assert.True(t, m.IsPromotion())
	assert.Equal(t, board.Queen, m.Promotion())
}

func TestHandleSetOptionValid(t *testing.T) {
	u := newTestUCI()
	u.handleSetOption([]string{"name", "Hash", "value", "32"})
	// No direct getter on Engine; verify indirectly via a second, out-of-range
	// call being rejected without panicking.
	u.handleSetOption([]string{"name", "Hash", "value", "999999"})
}

func TestHandleSetOptionUnknownNameIsIgnored(t *testing.T) {
	u := newTestUCI()
	u.handleSetOption([]string{"name", "UseNNUE", "value", "true"})
}

func TestCalculateLimitsFixedDepth(t *testing.T) {
	u := newTestUCI()
	limits := u.calculateLimits(GoOptions{Depth: 5})
	assert.Equal(t, 5, limits.Depth)
	assert.False(t, limits.Infinite)
}

func TestCalculateLimitsInfinite(t *testing.T) {
	u := newTestUCI()
	limits := u.calculateLimits(GoOptions{Infinite: true})
	assert.True(t, limits.Infinite)
}

func TestHandleNewGameResetsPosition(t *testing.T) {
	u := newTestUCI()
	u.handlePosition([]string{"startpos", "moves", "e2e4"})
	u.handleNewGame()

	assert.Equal(t, board.StartFEN, u.position.ToFEN())
	assert.Equal(t, []uint64{u.position.Hash}, u.positionHashes)
}

// TestDispatchIgnoresUnknownCommand confirms the normal (non-panicking)
// path through dispatch never reaches the fatal-exit hook.
func TestDispatchIgnoresUnknownCommand(t *testing.T) {
	u := newTestUCI()

	origExit := exitFatal
	exited := false
	exitFatal = func(int) { exited = true }
	defer func() { exitFatal = origExit }()

	keepGoing := u.dispatch("definitely-not-a-uci-command")
	assert.True(t, keepGoing)
	assert.False(t, exited)
}

// TestDispatchRecoversInvariantPanicAsFatalExit verifies the panic/recover
// contract from SPEC_FULL.md §7/§11: corrupting a position's eval
// accumulator and enabling DebugAssertions makes the next make/unmake on that
// position (here through "perft 1") panic via Position.AssertInvariants;
// dispatch must catch that panic, log it, and
// call the fatal-exit hook with a non-zero code instead of letting it
// propagate out of the protocol loop or silently continuing.
func TestDispatchRecoversInvariantPanicAsFatalExit(t *testing.T) {
	u := newTestUCI()
	u.handlePosition([]string{"startpos"})

	board.DebugAssertions = true
	defer func() { board.DebugAssertions = false }()
	u.position.EvalMG += 1 // desync the accumulator from a fresh recomputation

	origExit := exitFatal
	var exitCode int
	exited := false
	exitFatal = func(code int) {
		exited = true
		exitCode = code
	}
	defer func() { exitFatal = origExit }()

	keepGoing := u.dispatch("perft 1")
	assert.False(t, keepGoing)
	assert.True(t, exited, "a corrupted eval accumulator should trip AssertInvariants and reach the fatal-exit hook")
	assert.Equal(t, 1, exitCode)
}
