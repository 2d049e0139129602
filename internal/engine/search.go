package engine

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/tcheran-engine/tcheran/internal/board"
)

const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 128
	DrawScore = 0
)

// lmrTable[depth][moveCount] is a precomputed logarithmic reduction, in the
// style of Stockfish's search.cpp formula, so LMR never has to call math.Log
// on the hot path.
var lmrTable [64][64]int

func init() {
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			lmrTable[d][m] = int(0.5 + math.Log(float64(d))*math.Log(float64(m))/2.25)
		}
	}
}

// PVTable is a triangular principal-variation table: pv.moves[ply] holds the
// best line found from ply to the end of search, of length pv.length[ply].
type PVTable struct {
	length [MaxPly]int
	moves  [MaxPly][MaxPly]board.Move
}

func (pv *PVTable) update(ply int, m board.Move) {
	pv.moves[ply][0] = m
	copy(pv.moves[ply][1:], pv.moves[ply+1][:pv.length[ply+1]])
	pv.length[ply] = pv.length[ply+1] + 1
}

// Line returns the best line found from the root.
func (pv *PVTable) Line() []board.Move {
	return pv.moves[0][:pv.length[0]]
}

// SearchInfo is reported to the UCI layer once per completed iteration.
type SearchInfo struct {
	Depth    int
	SelDepth int
	Score    int
	Mate     bool
	MateIn   int
	Nodes    uint64
	Time     time.Duration
	HashFull int
	PV       []board.Move
}

// Searcher runs a single-threaded iterative-deepening PVS search against a
// shared transposition table. It owns no goroutines: IterativeDeepening runs
// on the caller's goroutine and polls the shared stop flag, which the engine
// wrapper sets.
type Searcher struct {
	pos      *board.Position
	tt       *TranspositionTable
	orderer  *MoveOrderer
	stopFlag *atomic.Bool
	tm       *TimeManager
	limits   UCILimits

	nodes    uint64
	selDepth int
	stopped  bool

	pv        PVTable
	undoStack [MaxPly]board.UndoInfo

	// OnInfo, if set, is called after every completed iteration.
	OnInfo func(SearchInfo)
}

// NewSearcher creates a searcher sharing the given transposition table.
func NewSearcher(tt *TranspositionTable, stopFlag *atomic.Bool) *Searcher {
	return &Searcher{
		tt:       tt,
		orderer:  NewMoveOrderer(),
		stopFlag: stopFlag,
	}
}

// shouldStop polls the stop flag and limits at node granularity. Checking
// every node would dominate runtime at deep plies; every 2048 nodes is
// frequent enough that a `stop` command is honored promptly.
func (s *Searcher) shouldStop() bool {
	if s.stopped {
		return true
	}
	if s.nodes&2047 != 0 {
		return false
	}
	if s.stopFlag != nil && s.stopFlag.Load() {
		s.stopped = true
		return true
	}
	if s.limits.Nodes > 0 && s.nodes >= s.limits.Nodes {
		s.stopped = true
		return true
	}
	if s.tm != nil && !s.limits.Infinite && s.tm.ShouldStop() {
		s.stopped = true
		return true
	}
	return false
}

// IterativeDeepening searches pos to maxDepth (or until the time manager /
// stop flag cuts it short), reporting each completed iteration via OnInfo,
// and returns the best move found.
func (s *Searcher) IterativeDeepening(pos *board.Position, limits UCILimits, tm *TimeManager, maxDepth int) board.Move {
	s.pos = pos
	s.limits = limits
	s.tm = tm
	s.nodes = 0
	s.stopped = false
	s.orderer.resetKillers()
	s.tt.NewSearch()
	start := time.Now()

	if maxDepth <= 0 || maxDepth > MaxPly-1 {
		maxDepth = MaxPly - 1
	}

	bestMove := board.NoMove
	bestScore := 0
	stability := 0
	changes := 0
	prevBest := board.NoMove

	for depth := 1; depth <= maxDepth; depth++ {
		s.selDepth = 0

		score := s.aspirationSearch(depth, bestScore)
		if s.stopped && depth > 1 {
			break
		}

		bestScore = score
		line := s.pv.Line()
		if len(line) > 0 {
			bestMove = line[0]
		}

		if bestMove == prevBest {
			stability++
			changes = 0
		} else {
			changes++
			stability = 0
		}
		prevBest = bestMove

		if s.tm != nil {
			if changes > 0 {
				s.tm.AdjustForInstability(changes)
			} else {
				s.tm.AdjustForStability(stability)
			}
		}

		if s.OnInfo != nil {
			info := SearchInfo{
				Depth:    depth,
				SelDepth: s.selDepth,
				Score:    bestScore,
				Nodes:    s.nodes,
				Time:     time.Since(start),
				HashFull: s.tt.HashFull(),
				PV:       append([]board.Move(nil), line...),
			}
			if bestScore > MateScore-MaxPly {
				info.Mate = true
				info.MateIn = (MateScore - bestScore + 1) / 2
			} else if bestScore < -MateScore+MaxPly {
				info.Mate = true
				info.MateIn = -((MateScore + bestScore + 1) / 2)
			}
			s.OnInfo(info)
		}

		if s.tm != nil && !limits.Infinite && limits.MoveTime == 0 && s.tm.PastOptimum() {
			break
		}
		if bestScore > MateScore-MaxPly || bestScore < -MateScore+MaxPly {
			break
		}
	}

	if bestMove == board.NoMove {
		if moves := pos.GenerateLegalMoves(); moves.Len() > 0 {
			bestMove = moves.Get(0)
		}
	}
	return bestMove
}

// aspirationSearch runs negamax at depth with a narrow window around the
// previous iteration's score, widening on fail-high/fail-low.
func (s *Searcher) aspirationSearch(depth, prevScore int) int {
	if depth < 4 || prevScore <= -MateScore+MaxPly || prevScore >= MateScore-MaxPly {
		return s.negamax(depth, 0, -Infinity, Infinity, true)
	}

	delta := 16
	alpha := prevScore - delta
	beta := prevScore + delta

	for {
		if alpha < -Infinity {
			alpha = -Infinity
		}
		if beta > Infinity {
			beta = Infinity
		}

		score := s.negamax(depth, 0, alpha, beta, true)
		if s.stopped {
			return score
		}

		if score <= alpha {
			alpha -= delta
		} else if score >= beta {
			beta += delta
		} else {
			return score
		}
		delta += delta / 2
	}
}

// negamax implements the PVS search contract: abort check, draw detection,
// quiescence leaf, TT probe/cutoff, reverse futility pruning, null-move
// pruning, the staged move loop with PVS/LMR/check extension, and the final
// TT store.
func (s *Searcher) negamax(depth, ply int, alpha, beta int, pvNode bool) int {
	s.pv.length[ply] = 0
	if ply > s.selDepth {
		s.selDepth = ply
	}

	if s.shouldStop() {
		return 0
	}

	if ply > 0 {
		if s.pos.IsRepetition() || s.pos.IsFiftyMoveDraw() || s.pos.IsInsufficientMaterial() {
			return DrawScore
		}
	}

	if depth <= 0 {
		return s.quiescence(alpha, beta, ply)
	}

	s.nodes++

	inCheck := s.pos.Checkers != 0
	origAlpha := alpha

	var ttMove board.Move
	hash := s.pos.Hash
	if entry, ok := s.tt.Probe(hash); ok {
		ttMove = entry.BestMove
		if !pvNode && int(entry.Depth) >= depth {
			score := AdjustScoreFromTT(int(entry.Score), ply)
			switch entry.Flag {
			case TTExact:
				return score
			case TTLowerBound:
				if score >= beta {
					return score
				}
			case TTUpperBound:
				if score <= alpha {
					return score
				}
			}
		}
	}

	staticEval := 0
	if !inCheck {
		staticEval = Evaluate(s.pos)
	}

	// Reverse futility pruning.
	if !pvNode && !inCheck && depth <= 7 {
		margin := 80 * depth
		if staticEval-margin >= beta {
			return staticEval
		}
	}

	// Null-move pruning.
	if !pvNode && !inCheck && depth >= 3 && staticEval >= beta && s.pos.HasNonPawnMaterial() {
		r := 3 + depth/6
		undo := s.pos.MakeNullMove()
		score := -s.negamax(depth-1-r, ply+1, -beta, -beta+1, false)
		s.pos.UnmakeNullMove(undo)
		if s.stopped {
			return 0
		}
		if score >= beta {
			return beta
		}
	}

	moves := s.pos.GenerateLegalMoves()
	if moves.Len() == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return DrawScore
	}

	scores := s.orderer.ScoreMoves(s.pos, moves, ply, ttMove)

	bestScore := -Infinity
	bestMove := board.NoMove
	legalCount := 0
	var quietsTried [256]board.Move
	quietCount := 0

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		m := moves.Get(i)

		isCapture := m.IsCapture(s.pos)
		isQuiet := !isCapture && !m.IsPromotion()

		undo := s.pos.MakeMove(m)
		s.undoStack[ply] = undo
		legalCount++

		givesCheck := s.pos.Checkers != 0
		childDepth := depth - 1
		if givesCheck || inCheck {
			childDepth = depth // check extension
		}

		var score int
		if legalCount == 1 {
			score = -s.negamax(childDepth, ply+1, -beta, -alpha, pvNode)
		} else {
			reduction := 0
			if !pvNode && isQuiet && !inCheck && !givesCheck && depth >= 3 && legalCount > 3 {
				d := depth
				if d > 63 {
					d = 63
				}
				mc := legalCount
				if mc > 63 {
					mc = 63
				}
				reduction = lmrTable[d][mc]
				if reduction < 0 {
					reduction = 0
				}
				if childDepth-reduction < 1 {
					reduction = childDepth - 1
				}
			}

			score = -s.negamax(childDepth-reduction, ply+1, -alpha-1, -alpha, false)
			if reduction > 0 && score > alpha {
				score = -s.negamax(childDepth, ply+1, -alpha-1, -alpha, false)
			}
			if score > alpha && score < beta {
				score = -s.negamax(childDepth, ply+1, -beta, -alpha, true)
			}
		}

		s.pos.UnmakeMove(m, undo)

		if isQuiet && quietCount < len(quietsTried) {
			quietsTried[quietCount] = m
			quietCount++
		}

		if s.stopped {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = m
			if score > alpha {
				alpha = score
				s.pv.update(ply, m)

				if score >= beta {
					if isQuiet {
						s.orderer.UpdateKillers(m, ply)
						s.orderer.UpdateHistory(s.pos.SideToMove, m, quietsTried[:quietCount], depth)
					}
					s.tt.Store(hash, depth, AdjustScoreToTT(beta, ply), TTLowerBound, m)
					return bestScore
				}
			}
		}
	}

	flag := TTUpperBound
	if bestScore > origAlpha {
		flag = TTExact
	}
	s.tt.Store(hash, depth, AdjustScoreToTT(bestScore, ply), flag, bestMove)

	return bestScore
}

// quiescence searches only captures and promotions until the position is
// quiet, bounding the horizon effect at the end of the main search.
func (s *Searcher) quiescence(alpha, beta int, ply int) int {
	if ply > s.selDepth {
		s.selDepth = ply
	}
	if s.shouldStop() {
		return 0
	}
	if ply >= MaxPly-1 {
		return Evaluate(s.pos)
	}

	s.nodes++

	standPat := Evaluate(s.pos)
	if standPat >= beta {
		return beta
	}
	if alpha < standPat {
		alpha = standPat
	}

	bigDelta := QueenValue
	if standPat+bigDelta < alpha {
		return alpha
	}

	moves := s.pos.GenerateCaptures()
	scores := make([]int, moves.Len())
	for i := 0; i < moves.Len(); i++ {
		scores[i] = s.orderer.scoreMove(s.pos, moves.Get(i), ply, board.NoMove)
	}
	SortMoves(moves, scores)

	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)

		if m.IsPromotion() && m.Promotion() != board.Queen {
			continue
		}

		if !m.IsPromotion() {
			captured := s.pos.PieceAt(m.To())
			capturedValue := PawnValue
			if captured != board.NoPiece {
				capturedValue = pieceValues[captured.Type()]
			}
			if standPat+capturedValue+200 < alpha {
				continue
			}
			if SEE(s.pos, m) < 0 {
				continue
			}
		}

		undo := s.pos.MakeMove(m)
		score := -s.quiescence(-beta, -alpha, ply+1)
		s.pos.UnmakeMove(m, undo)

		if s.stopped {
			return 0
		}

		if score >= beta {
			return beta
		}
		if score > alpha {
			alpha = score
		}
	}

	return alpha
}
