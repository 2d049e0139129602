package board

import "fmt"

// DebugAssertions gates the expensive self-consistency check in
// AssertInvariants. Off by default since make/unmake is the search hot path;
// the -debug-assertions flag on the engine binary turns it on for testing
// and bug hunts, per the invariant-violation design in SPEC_FULL.md §7/§11:
// a broken invariant is a fatal programming bug, not a recoverable error.
var DebugAssertions = false

// AssertInvariants panics if the position's derived state has drifted from
// its authoritative source (bitboards vs. mailbox, Zobrist hash, eval
// accumulator, king counts, pawn placement, side-not-to-move-in-check).
// Callers only invoke this when DebugAssertions is set; the panic is expected
// to propagate up to the UCI command loop's recover, which logs it and exits
// the process rather than attempting to continue with corrupted state.
func (p *Position) AssertInvariants() {
	if !DebugAssertions {
		return
	}

	union := p.Occupied[White] | p.Occupied[Black]
	if union != p.AllOccupied {
		panic(fmt.Sprintf("invariant violation: AllOccupied %016x != union of color occupancy %016x", p.AllOccupied, union))
	}

	var fromPieces Bitboard
	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			fromPieces |= p.Pieces[c][pt]
		}
	}
	if fromPieces != p.AllOccupied {
		panic(fmt.Sprintf("invariant violation: piece bitboards %016x != AllOccupied %016x", fromPieces, p.AllOccupied))
	}

	for sq := A1; sq <= H8; sq++ {
		onBoard := p.AllOccupied&SquareBB(sq) != 0
		piece := p.Mailbox[sq]
		inMailbox := piece != NoPiece
		if onBoard != inMailbox || (inMailbox && (piece > NoPiece || p.Pieces[piece.Color()][piece.Type()]&SquareBB(sq) == 0)) {
			panic(fmt.Sprintf("invariant violation: mailbox/bitboard disagreement at %s", sq))
		}
	}

	if p.Pieces[White][King].PopCount() != 1 {
		panic("invariant violation: white does not have exactly one king")
	}
	if p.Pieces[Black][King].PopCount() != 1 {
		panic("invariant violation: black does not have exactly one king")
	}

	if (p.Pieces[White][Pawn]|p.Pieces[Black][Pawn])&(Rank1|Rank8) != 0 {
		panic("invariant violation: pawn on rank 1 or 8")
	}

	if p.Hash != p.ComputeHash() {
		panic(fmt.Sprintf("invariant violation: Zobrist hash %016x != fresh computation %016x", p.Hash, p.ComputeHash()))
	}

	mg, eg := p.RecomputeEval()
	if mg != p.EvalMG || eg != p.EvalEG {
		panic(fmt.Sprintf("invariant violation: eval accumulator (%d,%d) != fresh computation (%d,%d)", p.EvalMG, p.EvalEG, mg, eg))
	}

	them := p.SideToMove.Other()
	if p.AttackersByColor(p.KingSquare[them], p.SideToMove, p.AllOccupied) != 0 {
		panic("invariant violation: side not to move is in check")
	}
}
