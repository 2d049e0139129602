// Package engine implements the search and evaluation on top of board.Position.
package engine

import (
	"github.com/tcheran-engine/tcheran/internal/board"
)

// Piece values used by SEE, MVV-LVA ordering, and the static eval terms
// below. The incremental midgame/endgame accumulator on board.Position
// carries its own PST+material values; these are the flat values used
// where a single number (not a tapered pair) is needed.
const (
	PawnValue   = 100
	KnightValue = 320
	BishopValue = 330
	RookValue   = 500
	QueenValue  = 900
	KingValue   = 20000
)

var pieceValues = [7]int{PawnValue, KnightValue, BishopValue, RookValue, QueenValue, KingValue, 0}

// Passed pawn bonus by relative rank (0 = own back rank, 6 = one step from promotion).
var passedPawnBonus = [8]int{0, 10, 20, 40, 70, 120, 200, 0}

var mobilityMgWeight = [6]int{0, 4, 5, 2, 1, 0} // Pawn, Knight, Bishop, Rook, Queen, King
var mobilityEgWeight = [6]int{0, 3, 4, 4, 2, 0}

const (
	bishopPairMgBonus = 25
	bishopPairEgBonus = 50

	rookOpenFileMg     = 20
	rookOpenFileEg     = 25
	rookSemiOpenFileMg = 10
	rookSemiOpenFileEg = 15

	doubledPawnMgPenalty  = -15
	doubledPawnEgPenalty  = -20
	isolatedPawnMgPenalty = -20
	isolatedPawnEgPenalty = -25

	tempoBonus = 10
)

// Evaluate returns the tapered static evaluation from the side-to-move's
// perspective: the incremental PST+material accumulator, tapered by game
// phase, plus the small set of additional positional terms.
func Evaluate(pos *board.Position) int {
	phase := pos.Phase()

	mg := int(pos.EvalMG)
	eg := int(pos.EvalEG)

	bmg, beg := evaluateBishopPair(pos)
	rmg, reg := evaluateRooksOnFiles(pos)
	pmg, peg := evaluatePawnStructure(pos)
	pamg, paeg := evaluatePassedPawns(pos)
	mmg, meg := evaluateMobility(pos)

	mg += bmg + rmg + pmg + pamg + mmg
	eg += beg + reg + peg + paeg + meg

	score := (mg*phase + eg*(board.MaxPhase-phase)) / board.MaxPhase

	if pos.SideToMove == board.Black {
		score = -score
	}
	return score + tempoBonus
}

// EvaluateMaterial returns only the material balance, from the side-to-move's
// perspective: a cheap material-only probe without the full positional
// evaluation. The search does not call it.
func EvaluateMaterial(pos *board.Position) int {
	score := 0
	for pt := board.Pawn; pt < board.King; pt++ {
		score += pos.Pieces[board.White][pt].PopCount() * pieceValues[pt]
		score -= pos.Pieces[board.Black][pt].PopCount() * pieceValues[pt]
	}
	if pos.SideToMove == board.Black {
		return -score
	}
	return score
}

func evaluateBishopPair(pos *board.Position) (mgBonus, egBonus int) {
	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}
		if pos.Pieces[color][board.Bishop].PopCount() >= 2 {
			mgBonus += sign * bishopPairMgBonus
			egBonus += sign * bishopPairEgBonus
		}
	}
	return mgBonus, egBonus
}

func evaluateRooksOnFiles(pos *board.Position) (mgBonus, egBonus int) {
	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		ownPawns := pos.Pieces[color][board.Pawn]
		enemyPawns := pos.Pieces[color.Other()][board.Pawn]

		rooks := pos.Pieces[color][board.Rook]
		for rooks != 0 {
			sq := rooks.PopLSB()
			fileMask := board.FileMask[sq.File()]

			hasOwnPawn := (ownPawns & fileMask) != 0
			hasEnemyPawn := (enemyPawns & fileMask) != 0

			switch {
			case !hasOwnPawn && !hasEnemyPawn:
				mgBonus += sign * rookOpenFileMg
				egBonus += sign * rookOpenFileEg
			case !hasOwnPawn:
				mgBonus += sign * rookSemiOpenFileMg
				egBonus += sign * rookSemiOpenFileEg
			}
		}
	}
	return mgBonus, egBonus
}

// evaluatePawnStructure penalizes doubled and isolated pawns. Kept
// deliberately narrow: no backward-pawn or pawn-chain reasoning, per the
// evaluator's design of a few cheap terms rather than a second accumulator.
func evaluatePawnStructure(pos *board.Position) (mgPenalty, egPenalty int) {
	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		allPawns := pos.Pieces[color][board.Pawn]
		pawns := allPawns

		for pawns != 0 {
			sq := pawns.PopLSB()
			file := sq.File()
			fileMask := board.FileMask[file]

			pawnsOnFile := allPawns & fileMask
			if pawnsOnFile.PopCount() > 1 {
				var forwardPawn board.Square
				if color == board.White {
					forwardPawn = pawnsOnFile.MSB()
				} else {
					forwardPawn = pawnsOnFile.LSB()
				}
				if sq == forwardPawn {
					mgPenalty += sign * doubledPawnMgPenalty
					egPenalty += sign * doubledPawnEgPenalty
				}
			}

			var adjacentFiles board.Bitboard
			if file > 0 {
				adjacentFiles |= board.FileMask[file-1]
			}
			if file < 7 {
				adjacentFiles |= board.FileMask[file+1]
			}
			if (allPawns & adjacentFiles) == 0 {
				mgPenalty += sign * isolatedPawnMgPenalty
				egPenalty += sign * isolatedPawnEgPenalty
			}
		}
	}
	return mgPenalty, egPenalty
}

// isPassedPawn reports whether the pawn at sq has no enemy pawn able to
// block or capture it on its way to promotion.
func isPassedPawn(pos *board.Position, sq board.Square, color board.Color) bool {
	file := sq.File()
	enemyPawns := pos.Pieces[color.Other()][board.Pawn]

	fileMask := board.FileMask[file]
	if file > 0 {
		fileMask |= board.FileMask[file-1]
	}
	if file < 7 {
		fileMask |= board.FileMask[file+1]
	}

	var frontMask board.Bitboard
	if color == board.White {
		frontMask = board.SquareBB(sq).NorthFill() &^ board.SquareBB(sq)
	} else {
		frontMask = board.SquareBB(sq).SouthFill() &^ board.SquareBB(sq)
	}

	return (enemyPawns & fileMask & frontMask) == 0
}

// evaluatePassedPawns applies the rank-indexed passed pawn bonus.
func evaluatePassedPawns(pos *board.Position) (mgBonus, egBonus int) {
	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		pawns := pos.Pieces[color][board.Pawn]
		for pawns != 0 {
			sq := pawns.PopLSB()
			if !isPassedPawn(pos, sq, color) {
				continue
			}
			relRank := sq.RelativeRank(color)
			bonus := passedPawnBonus[relRank]
			mgBonus += sign * bonus
			egBonus += sign * bonus * 3 / 2
		}
	}
	return mgBonus, egBonus
}

// evaluateMobility counts safe destination squares per piece kind, excluding
// squares occupied by friendly pieces or attacked by an enemy pawn.
func evaluateMobility(pos *board.Position) (mgBonus, egBonus int) {
	occupied := pos.AllOccupied

	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		enemyPawns := pos.Pieces[color.Other()][board.Pawn]
		var unsafeSquares board.Bitboard
		if color == board.White {
			unsafeSquares = enemyPawns.SouthEast() | enemyPawns.SouthWest()
		} else {
			unsafeSquares = enemyPawns.NorthEast() | enemyPawns.NorthWest()
		}
		blockedSquares := unsafeSquares | pos.Occupied[color]

		addMobility := func(pt board.PieceType, attacks board.Bitboard) {
			count := (attacks &^ blockedSquares).PopCount()
			mgBonus += sign * mobilityMgWeight[pt] * count
			egBonus += sign * mobilityEgWeight[pt] * count
		}

		for bb := pos.Pieces[color][board.Knight]; bb != 0; {
			addMobility(board.Knight, board.KnightAttacks(bb.PopLSB()))
		}
		for bb := pos.Pieces[color][board.Bishop]; bb != 0; {
			addMobility(board.Bishop, board.BishopAttacks(bb.PopLSB(), occupied))
		}
		for bb := pos.Pieces[color][board.Rook]; bb != 0; {
			addMobility(board.Rook, board.RookAttacks(bb.PopLSB(), occupied))
		}
		for bb := pos.Pieces[color][board.Queen]; bb != 0; {
			addMobility(board.Queen, board.QueenAttacks(bb.PopLSB(), occupied))
		}
	}

	return mgBonus, egBonus
}

// SEE returns the static exchange evaluation of a capture: the net material
// gain for the side to move if both sides recapture on the target square
// with their least valuable attacker each time.
func SEE(pos *board.Position, m board.Move) int {
	from := m.From()
	to := m.To()

	attacker := pos.PieceAt(from)
	if attacker == board.NoPiece {
		return 0
	}

	var capturedValue int
	if m.IsEnPassant() {
		capturedValue = PawnValue
	} else {
		victim := pos.PieceAt(to)
		if victim == board.NoPiece {
			return 0
		}
		capturedValue = pieceValues[victim.Type()]
	}

	if m.IsPromotion() {
		capturedValue += pieceValues[m.Promotion()] - PawnValue
	}

	return seeSwap(pos, to, from, attacker, capturedValue)
}

func seeSwap(pos *board.Position, target, excludeFrom board.Square, firstAttacker board.Piece, initialGain int) int {
	var gain [32]int
	d := 0
	gain[d] = initialGain

	occupied := pos.AllOccupied &^ board.SquareBB(excludeFrom)
	attackerValue := pieceValues[firstAttacker.Type()]
	side := firstAttacker.Color().Other()

	for {
		d++
		gain[d] = attackerValue - gain[d-1]
		if max(-gain[d-1], gain[d]) < 0 {
			break
		}

		attackerSq, attackerPiece := getLeastValuableAttacker(pos, target, side, occupied)
		if attackerSq == board.NoSquare {
			break
		}

		occupied &^= board.SquareBB(attackerSq)
		attackerValue = pieceValues[attackerPiece.Type()]
		side = side.Other()
	}

	for d--; d > 0; d-- {
		gain[d-1] = -max(-gain[d-1], gain[d])
	}

	return gain[0]
}

func getLeastValuableAttacker(pos *board.Position, target board.Square, side board.Color, occupied board.Bitboard) (board.Square, board.Piece) {
	pawns := pos.Pieces[side][board.Pawn]
	if attackers := pawns & board.PawnAttacks(target, side.Other()) & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Pawn, side)
	}

	knights := pos.Pieces[side][board.Knight]
	if attackers := knights & board.KnightAttacks(target) & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Knight, side)
	}

	bishopAttacks := board.BishopAttacks(target, occupied)
	if attackers := pos.Pieces[side][board.Bishop] & bishopAttacks & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Bishop, side)
	}

	rookAttacks := board.RookAttacks(target, occupied)
	if attackers := pos.Pieces[side][board.Rook] & rookAttacks & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Rook, side)
	}

	if attackers := pos.Pieces[side][board.Queen] & (bishopAttacks | rookAttacks) & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Queen, side)
	}

	if attackers := pos.Pieces[side][board.King] & board.KingAttacks(target) & occupied; attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.King, side)
	}

	return board.NoSquare, board.NoPiece
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
