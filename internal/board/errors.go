package board

import "errors"

// Sentinel errors returned by the board package's parsing entry points.
// Callers should use errors.Is against these rather than matching message text.
var (
	ErrUnknownSquare = errors.New("board: unknown square")
	ErrInvalidFEN    = errors.New("board: invalid FEN")
	ErrIllegalMove   = errors.New("board: illegal move")
)
