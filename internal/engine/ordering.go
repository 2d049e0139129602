package engine

import (
	"github.com/tcheran-engine/tcheran/internal/board"
)

// Move ordering priorities
const (
	TTMoveScore     = 10000000 // TT move gets highest priority
	GoodCaptureBase = 1000000  // Base score for good captures
	KillerScore1    = 900000   // First killer move
	KillerScore2    = 800000   // Second killer move
	BadCaptureBase  = -100000  // Losing captures, sorted after quiet moves
)

// MVV-LVA (Most Valuable Victim - Least Valuable Attacker) scores.
// score = 10*victimIndex + 8 - attackerRank, keyed by [victim][attacker],
// where victimIndex is P=0..Q=4 and attackerRank is P=1, N=B=2, R=3, Q=4, K=5.
var mvvLva = [6][6]int{
	//       P   N   B   R   Q   K  (attacker)
	/* P */ {7, 6, 6, 5, 4, 3},
	/* N */ {17, 16, 16, 15, 14, 13},
	/* B */ {27, 26, 26, 25, 24, 23},
	/* R */ {37, 36, 36, 35, 34, 33},
	/* Q */ {47, 46, 46, 45, 44, 43},
	/* K */ {0, 0, 0, 0, 0, 0},
}

// MoveOrderer provides the staged move ordering described in the move
// generation design: TT move, good captures (MVV-LVA), killers, history-
// ordered quiets, bad captures deferred by SEE.
type MoveOrderer struct {
	killers [MaxPly][2]board.Move

	// Butterfly history, indexed by side to move so that black's and
	// white's quiet-move statistics never collide.
	history [2][64][64]int
}

// NewMoveOrderer creates a new move orderer.
func NewMoveOrderer() *MoveOrderer {
	return &MoveOrderer{}
}

// resetKillers clears killer moves at the start of every search; stale
// killers from a previous search's different ply structure are noise.
func (mo *MoveOrderer) resetKillers() {
	for i := range mo.killers {
		mo.killers[i][0] = board.NoMove
		mo.killers[i][1] = board.NoMove
	}
}

// Clear resets killers and halves history, used at ucinewgame — a decay
// rather than a wipe, so history still reflects the previous game's shape.
func (mo *MoveOrderer) Clear() {
	mo.resetKillers()
	for c := range mo.history {
		for i := range mo.history[c] {
			for j := range mo.history[c][i] {
				mo.history[c][i][j] /= 2
			}
		}
	}
}

// ScoreMoves assigns ordering scores to every move in the list. Captures
// that SEE judges losing are scored below quiet moves so the staged picker
// naturally defers them to last.
func (mo *MoveOrderer) ScoreMoves(pos *board.Position, moves *board.MoveList, ply int, ttMove board.Move) []int {
	scores := make([]int, moves.Len())
	for i := 0; i < moves.Len(); i++ {
		scores[i] = mo.scoreMove(pos, moves.Get(i), ply, ttMove)
	}
	return scores
}

func (mo *MoveOrderer) scoreMove(pos *board.Position, m board.Move, ply int, ttMove board.Move) int {
	if m == ttMove {
		return TTMoveScore
	}

	from, to := m.From(), m.To()

	if m.IsCapture(pos) {
		attackerPiece := pos.PieceAt(from)
		if attackerPiece == board.NoPiece {
			return GoodCaptureBase
		}
		attacker := attackerPiece.Type()

		var victim board.PieceType
		if m.IsEnPassant() {
			victim = board.Pawn
		} else {
			capturedPiece := pos.PieceAt(to)
			if capturedPiece == board.NoPiece {
				return GoodCaptureBase
			}
			victim = capturedPiece.Type()
		}
		if victim >= board.King || attacker > board.King {
			return GoodCaptureBase
		}

		if SEE(pos, m) < 0 {
			return BadCaptureBase + mvvLva[victim][attacker]
		}
		return GoodCaptureBase + mvvLva[victim][attacker]*1000
	}

	if m.IsPromotion() {
		return GoodCaptureBase - 1000 + int(m.Promotion())*100
	}

	if m == mo.killers[ply][0] {
		return KillerScore1
	}
	if m == mo.killers[ply][1] {
		return KillerScore2
	}

	return mo.history[pos.SideToMove][from][to]
}

// PickMove selects the best remaining move and swaps it into position index,
// an incremental selection sort so the staged picker never pays for
// ordering moves it never visits.
func PickMove(moves *board.MoveList, scores []int, index int) {
	best := index
	for j := index + 1; j < moves.Len(); j++ {
		if scores[j] > scores[best] {
			best = j
		}
	}
	if best != index {
		moves.Swap(index, best)
		scores[index], scores[best] = scores[best], scores[index]
	}
}

// SortMoves fully sorts moves by descending score, used for quiescence's
// small capture lists where a full sort is cheaper than repeated picks.
func SortMoves(moves *board.MoveList, scores []int) {
	n := moves.Len()
	for i := 0; i < n-1; i++ {
		best := i
		for j := i + 1; j < n; j++ {
			if scores[j] > scores[best] {
				best = j
			}
		}
		if best != i {
			moves.Swap(i, best)
			scores[i], scores[best] = scores[best], scores[i]
		}
	}
}

// UpdateKillers records a quiet move that produced a beta cutoff at ply.
func (mo *MoveOrderer) UpdateKillers(m board.Move, ply int) {
	if ply >= MaxPly || mo.killers[ply][0] == m {
		return
	}
	mo.killers[ply][1] = mo.killers[ply][0]
	mo.killers[ply][0] = m
}

// UpdateHistory applies history gravity: the cutoff move gains depth², and
// every quiet move already tried and rejected at this node loses the same
// amount, so the table tracks relative quiet-move quality rather than raw
// cutoff counts.
func (mo *MoveOrderer) UpdateHistory(stm board.Color, cutoff board.Move, tried []board.Move, depth int) {
	bonus := depth * depth
	table := &mo.history[stm]

	table[cutoff.From()][cutoff.To()] += bonus
	for _, m := range tried {
		if m == cutoff {
			continue
		}
		table[m.From()][m.To()] -= bonus
	}

	if table[cutoff.From()][cutoff.To()] > 400000 {
		for i := range table {
			for j := range table[i] {
				table[i][j] /= 2
			}
		}
	}
}
