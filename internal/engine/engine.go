// Package engine implements the search and evaluation on top of board.Position.
package engine

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/op/go-logging"

	"github.com/tcheran-engine/tcheran/internal/board"
)

var log = logging.MustGetLogger("engine")

// Option bounds, per the UCI option table: Hash, Threads, Move Overhead.
const (
	MinHashMB = 1
	MaxHashMB = 4096
	DefHashMB = 16

	MinThreads = 1
	MaxThreads = 1
	DefThreads = 1

	MinOverheadMS = 0
	MaxOverheadMS = 5000
	DefOverheadMS = 10
)

// Options holds the engine's run-time-mutable UCI configuration, validated
// against declared min/max/default at setoption time.
type Options struct {
	HashMB       int
	Threads      int
	MoveOverhead time.Duration
}

// DefaultOptions returns the UCI-declared defaults.
func DefaultOptions() Options {
	return Options{
		HashMB:       DefHashMB,
		Threads:      DefThreads,
		MoveOverhead: DefOverheadMS * time.Millisecond,
	}
}

// SetOption validates and applies a single named option, returning an error
// for an unknown name or an out-of-range value. Hash resizing is deferred:
// it takes effect at the next Engine.NewGame (ucinewgame), never mid-search;
// isready does not apply it.
func (o *Options) SetOption(name, value string) error {
	switch name {
	case "Hash":
		n, err := parseIntOption(value, MinHashMB, MaxHashMB)
		if err != nil {
			return fmt.Errorf("Hash: %w", err)
		}
		o.HashMB = n
	case "Threads":
		n, err := parseIntOption(value, MinThreads, MaxThreads)
		if err != nil {
			return fmt.Errorf("Threads: %w", err)
		}
		o.Threads = n
	case "Move Overhead":
		n, err := parseIntOption(value, MinOverheadMS, MaxOverheadMS)
		if err != nil {
			return fmt.Errorf("Move Overhead: %w", err)
		}
		o.MoveOverhead = time.Duration(n) * time.Millisecond
	default:
		return fmt.Errorf("unknown option %q", name)
	}
	return nil
}

func parseIntOption(value string, min, max int) (int, error) {
	var n int
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid integer %q", value)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%d out of range [%d, %d]", n, min, max)
	}
	return n, nil
}

// SearchLimits specifies constraints on a single search, mirroring the `go`
// command's options.
type SearchLimits struct {
	Depth     int
	Nodes     uint64
	MoveTime  time.Duration
	WTime     time.Duration
	BTime     time.Duration
	WInc      time.Duration
	BInc      time.Duration
	MovesToGo int
	Infinite  bool
}

// Engine wraps a single transposition table and searcher: the spec's
// scheduling model is one search goroutine plus a dedicated UCI I/O
// goroutine, not a worker pool, so there is exactly one Searcher here.
type Engine struct {
	options       Options
	appliedHashMB int
	tt            *TranspositionTable
	searcher      *Searcher
	tm            *TimeManager
	stopFlag      atomic.Bool

	// OnInfo is invoked after every completed iteration of a search.
	OnInfo func(SearchInfo)
}

// NewEngine creates an engine with the given options, allocating the
// transposition table immediately (the only large allocation it owns).
func NewEngine(opts Options) *Engine {
	e := &Engine{
		options:       opts,
		appliedHashMB: opts.HashMB,
		tt:            NewTranspositionTable(opts.HashMB),
		tm:            NewTimeManager(),
	}
	e.searcher = NewSearcher(e.tt, &e.stopFlag)
	log.Debugf("engine created: hash=%dMB threads=%d overhead=%v", opts.HashMB, opts.Threads, opts.MoveOverhead)
	return e
}

// SetOption validates and applies an option. A Hash change is not applied
// to the live table until NewGame, per the "clear/resize only between
// searches" discipline.
func (e *Engine) SetOption(name, value string) error {
	prevHash := e.options.HashMB
	if err := e.options.SetOption(name, value); err != nil {
		return err
	}
	if e.options.HashMB != prevHash {
		log.Debugf("Hash will resize to %dMB at next ucinewgame", e.options.HashMB)
	}
	return nil
}

// NewGame resets all search state for a new game: clears the TT, halves
// history, and resets killers, applying any pending Hash resize.
func (e *Engine) NewGame() {
	if e.options.HashMB != e.appliedHashMB {
		e.tt.Resize(e.options.HashMB)
		e.appliedHashMB = e.options.HashMB
	} else {
		e.tt.Clear()
	}
	e.searcher.orderer.Clear()
	log.Debug("ucinewgame")
}

// Stop requests that any in-progress search unwind at its next poll.
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
}

// Clear resets the transposition table and move-ordering tables without
// waiting for ucinewgame. Unlike NewGame it does not apply a pending Hash
// resize.
func (e *Engine) Clear() {
	e.tt.Clear()
	e.searcher.orderer.Clear()
}

// Evaluate returns the static evaluation of pos from the side to move's
// perspective.
func (e *Engine) Evaluate(pos *board.Position) int {
	return Evaluate(pos)
}

// Perft counts leaf nodes at the given depth, for move generator testing.
func (e *Engine) Perft(pos *board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}
	moves := pos.GenerateLegalMoves()
	var nodes uint64
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		undo := pos.MakeMove(m)
		nodes += e.Perft(pos, depth-1)
		pos.UnmakeMove(m, undo)
	}
	return nodes
}

// Search runs a single search to the given depth with no time limit; used
// by tests and the `bench` subcommand.
func (e *Engine) Search(pos *board.Position, depth int) board.Move {
	return e.SearchWithLimits(pos, SearchLimits{Depth: depth})
}

// SearchWithLimits runs iterative deepening under the given limits and
// returns the best move. It clears e.stopFlag itself before the search
// starts, so a Stop issued before the call has no effect on it.
func (e *Engine) SearchWithLimits(pos *board.Position, limits SearchLimits) board.Move {
	e.stopFlag.Store(false)

	p := pos.Copy()

	ucilimits := UCILimits{
		Time:      [2]time.Duration{limits.WTime, limits.BTime},
		Inc:       [2]time.Duration{limits.WInc, limits.BInc},
		MovesToGo: limits.MovesToGo,
		MoveTime:  limits.MoveTime,
		Depth:     limits.Depth,
		Nodes:     limits.Nodes,
		Infinite:  limits.Infinite,
	}

	e.tm.Init(ucilimits, p.SideToMove, len(p.History), e.options.MoveOverhead)

	e.searcher.OnInfo = e.OnInfo

	maxDepth := limits.Depth
	if maxDepth <= 0 {
		maxDepth = MaxPly - 1
	}

	return e.searcher.IterativeDeepening(p, ucilimits, e.tm, maxDepth)
}

// HashFull reports the transposition table's permille occupancy.
func (e *Engine) HashFull() int {
	return e.tt.HashFull()
}

// ScoreToString renders a score the way info lines render it ("cp N" or
// "mate N").
func ScoreToString(score int) string {
	if score > MateScore-MaxPly {
		return fmt.Sprintf("mate %d", (MateScore-score+1)/2)
	}
	if score < -MateScore+MaxPly {
		return fmt.Sprintf("mate %d", -((MateScore+score+1)/2))
	}
	return fmt.Sprintf("cp %d", score)
}
