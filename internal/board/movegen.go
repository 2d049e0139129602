package board

// GenerateLegalMoves generates every fully legal move for the side to move.
//
// Rather than generating pseudo-legal moves and filtering each one with a
// trial make/unmake, this precomputes two restrictions once per call and
// applies them while generating:
//
//   - checkMask: squares a non-king move must land on to resolve the current
//     check (the checker's square, or a blocking square between it and the
//     king; the full board when not in check).
//   - pinned: pieces pinned to the king, each of which may only move along
//     the line between the king and the pinning piece.
//
// King moves and castling are handled separately since they depend on
// attacked-square tests rather than the check/pin masks.
func (p *Position) GenerateLegalMoves() *MoveList {
	ml := NewMoveList()

	us := p.SideToMove
	them := us.Other()
	ksq := p.KingSquare[us]
	occupied := p.AllOccupied

	p.generateKingMoves(ml, us, them, occupied)

	if p.Checkers.PopCount() >= 2 {
		// Double check: only the king can move.
		return ml
	}

	p.generateCastlingMoves(ml, us)

	var checkMask Bitboard
	if p.Checkers != 0 {
		checkerSq := p.Checkers.LSB()
		checkMask = SquareBB(checkerSq) | Between(checkerSq, ksq)
	} else {
		checkMask = Universe
	}

	pinned := p.ComputePinned()

	p.generatePawnMoves(ml, us, them, occupied, checkMask, pinned, ksq)
	p.generateKnightMoves(ml, us, pinned, checkMask)
	p.generateSliderMoves(ml, us, occupied, checkMask, pinned, ksq, Bishop)
	p.generateSliderMoves(ml, us, occupied, checkMask, pinned, ksq, Rook)
	p.generateSliderMoves(ml, us, occupied, checkMask, pinned, ksq, Queen)

	return ml
}

// GenerateCaptures generates every legal capture and promotion, for
// quiescence search. It is expressed as a filter over GenerateLegalMoves
// rather than a second generator: captures need the exact same check/pin
// handling as quiet moves, and duplicating that logic is a correctness risk
// search speed doesn't justify here.
func (p *Position) GenerateCaptures() *MoveList {
	all := p.GenerateLegalMoves()
	result := NewMoveList()
	for i := 0; i < all.Len(); i++ {
		m := all.Get(i)
		if m.IsCapture(p) || m.IsPromotion() {
			result.Add(m)
		}
	}
	return result
}

// destMask returns the squares a piece standing on from is allowed to land
// on: the check-resolution mask, additionally narrowed to the pin line if
// the piece is pinned. A pinned knight's mask is never satisfiable since no
// knight-move target lies on the line through the king and the knight.
func destMask(pinned, checkMask Bitboard, ksq, from Square) Bitboard {
	mask := checkMask
	if pinned&SquareBB(from) != 0 {
		mask &= Line(ksq, from)
	}
	return mask
}

func (p *Position) generatePawnMoves(ml *MoveList, us, them Color, occupied, checkMask, pinned Bitboard, ksq Square) {
	origPawns := p.Pieces[us][Pawn]
	pawns := origPawns
	enemies := p.Occupied[them]
	empty := ^occupied

	var promotionRank Bitboard
	if us == White {
		promotionRank = Rank8
	} else {
		promotionRank = Rank1
	}

	for pawns != 0 {
		from := pawns.PopLSB()
		mask := destMask(pinned, checkMask, ksq, from)
		fromBB := SquareBB(from)

		var pushes, caps Bitboard
		if us == White {
			push1 := fromBB.North() & empty
			push2 := (push1 & Rank3).North() & empty
			pushes = push1 | push2
			caps = pawnAttacks[White][from] & enemies
		} else {
			push1 := fromBB.South() & empty
			push2 := (push1 & Rank6).South() & empty
			pushes = push1 | push2
			caps = pawnAttacks[Black][from] & enemies
		}

		dests := (pushes | caps) & mask
		for dests != 0 {
			to := dests.PopLSB()
			if SquareBB(to)&promotionRank != 0 {
				addPromotions(ml, from, to)
			} else {
				ml.Add(NewMove(from, to))
			}
		}
	}

	p.generateEnPassant(ml, us, them, origPawns, checkMask, ksq)
}

// generateEnPassant handles the one move type where check/pin status can't
// be read off a precomputed mask: the captured pawn doesn't sit on the
// destination square, so a pin or discovered check along the capture rank
// (the classic king-rook-pawn-pawn alignment) isn't caught by destMask.
// Instead the capture's resulting occupancy is built directly and tested.
func (p *Position) generateEnPassant(ml *MoveList, us, them Color, pawns, checkMask Bitboard, ksq Square) {
	if p.EnPassant == NoSquare {
		return
	}

	epSq := p.EnPassant
	epBB := SquareBB(epSq)
	var capturedSq Square
	if us == White {
		capturedSq = epSq - 8
	} else {
		capturedSq = epSq + 8
	}

	var attackers Bitboard
	if us == White {
		attackers = (epBB.SouthWest() | epBB.SouthEast()) & pawns
	} else {
		attackers = (epBB.NorthWest() | epBB.NorthEast()) & pawns
	}

	for attackers != 0 {
		from := attackers.PopLSB()

		// The capture must still resolve an existing check: either the
		// captured pawn was the checker, or the destination blocks it.
		if checkMask&(epBB|SquareBB(capturedSq)) == 0 {
			continue
		}

		occAfter := (p.AllOccupied &^ SquareBB(from) &^ SquareBB(capturedSq)) | epBB
		if p.AttackersByColor(ksq, them, occAfter) != 0 {
			continue
		}

		ml.Add(NewEnPassant(from, epSq))
	}
}

func (p *Position) generateKnightMoves(ml *MoveList, us Color, pinned, checkMask Bitboard) {
	knights := p.Pieces[us][Knight]
	ownOcc := p.Occupied[us]

	for knights != 0 {
		from := knights.PopLSB()
		if pinned&SquareBB(from) != 0 {
			continue
		}
		attacks := KnightAttacks(from) & ^ownOcc & checkMask
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to))
		}
	}
}

func (p *Position) generateSliderMoves(ml *MoveList, us Color, occupied, checkMask, pinned Bitboard, ksq Square, pt PieceType) {
	pieces := p.Pieces[us][pt]
	ownOcc := p.Occupied[us]

	for pieces != 0 {
		from := pieces.PopLSB()
		mask := destMask(pinned, checkMask, ksq, from)

		var attacks Bitboard
		switch pt {
		case Bishop:
			attacks = BishopAttacks(from, occupied)
		case Rook:
			attacks = RookAttacks(from, occupied)
		default:
			attacks = QueenAttacks(from, occupied)
		}

		attacks &= ^ownOcc & mask
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to))
		}
	}
}

// generateKingMoves generates non-castling king moves. The king is removed
// from the occupancy before testing the destination so that it can't block
// its own check from a slider it's stepping away from along the same ray.
func (p *Position) generateKingMoves(ml *MoveList, us, them Color, occupied Bitboard) {
	from := p.KingSquare[us]
	occWithoutKing := occupied &^ SquareBB(from)
	attacks := KingAttacks(from) & ^p.Occupied[us]

	for attacks != 0 {
		to := attacks.PopLSB()
		if p.AttackersByColor(to, them, occWithoutKing) == 0 {
			ml.Add(NewMove(from, to))
		}
	}
}

// generateCastlingMoves generates legal castling moves. Generates nothing
// when the side to move is in check (a checked king can never castle out of it).
func (p *Position) generateCastlingMoves(ml *MoveList, us Color) {
	if p.Checkers != 0 {
		return
	}
	them := us.Other()

	if us == White {
		if p.CastlingRights&WhiteKingSideCastle != 0 {
			if p.AllOccupied&((1<<F1)|(1<<G1)) == 0 {
				if !p.IsSquareAttacked(E1, them) && !p.IsSquareAttacked(F1, them) && !p.IsSquareAttacked(G1, them) {
					ml.Add(NewCastling(E1, G1))
				}
			}
		}
		if p.CastlingRights&WhiteQueenSideCastle != 0 {
			if p.AllOccupied&((1<<B1)|(1<<C1)|(1<<D1)) == 0 {
				if !p.IsSquareAttacked(E1, them) && !p.IsSquareAttacked(D1, them) && !p.IsSquareAttacked(C1, them) {
					ml.Add(NewCastling(E1, C1))
				}
			}
		}
	} else {
		if p.CastlingRights&BlackKingSideCastle != 0 {
			if p.AllOccupied&((1<<F8)|(1<<G8)) == 0 {
				if !p.IsSquareAttacked(E8, them) && !p.IsSquareAttacked(F8, them) && !p.IsSquareAttacked(G8, them) {
					ml.Add(NewCastling(E8, G8))
				}
			}
		}
		if p.CastlingRights&BlackQueenSideCastle != 0 {
			if p.AllOccupied&((1<<B8)|(1<<C8)|(1<<D8)) == 0 {
				if !p.IsSquareAttacked(E8, them) && !p.IsSquareAttacked(D8, them) && !p.IsSquareAttacked(C8, them) {
					ml.Add(NewCastling(E8, C8))
				}
			}
		}
	}
}

// addPromotions adds all four promotion moves for a from/to pair.
func addPromotions(ml *MoveList, from, to Square) {
	ml.Add(NewPromotion(from, to, Queen))
	ml.Add(NewPromotion(from, to, Rook))
	ml.Add(NewPromotion(from, to, Bishop))
	ml.Add(NewPromotion(from, to, Knight))
}

// rawMove relocates a piece for bookkeeping that does not also want an
// eval-accumulator update: castling rook shuffles, and unmaking in general,
// where the accumulator is restored wholesale from UndoInfo instead of
// reconstructed move-by-move.
func (p *Position) rawMove(from, to Square) {
	piece := p.Mailbox[from]
	c := piece.Color()
	pt := piece.Type()
	moveBB := SquareBB(from) | SquareBB(to)

	p.Pieces[c][pt] ^= moveBB
	p.Occupied[c] ^= moveBB
	p.AllOccupied ^= moveBB
	p.Mailbox[from] = NoPiece
	p.Mailbox[to] = piece

	if pt == King {
		p.KingSquare[c] = to
	}
}

// rawSet places a piece without touching the eval accumulator, for
// restoring a captured piece during UnmakeMove.
func (p *Position) rawSet(piece Piece, sq Square) {
	c := piece.Color()
	pt := piece.Type()
	bb := SquareBB(sq)

	p.Pieces[c][pt] |= bb
	p.Occupied[c] |= bb
	p.AllOccupied |= bb
	p.Mailbox[sq] = piece
}

// MakeMove applies a move to the position and returns undo information
// sufficient to exactly reverse it with UnmakeMove. The caller is
// responsible for only calling MakeMove with moves produced by
// GenerateLegalMoves (or otherwise verified legal); MakeMove itself does not
// check legality.
func (p *Position) MakeMove(m Move) UndoInfo {
	us := p.SideToMove
	them := us.Other()
	from := m.From()
	to := m.To()
	piece := p.PieceAt(from)
	pt := piece.Type()

	irreversible := pt == Pawn || m.IsCapture(p)

	undo := UndoInfo{
		CapturedPiece:  NoPiece,
		CastlingRights: p.CastlingRights,
		EnPassant:      p.EnPassant,
		HalfMoveClock:  p.HalfMoveClock,
		Hash:           p.Hash,
		Checkers:       p.Checkers,
		EvalMG:         p.EvalMG,
		EvalEG:         p.EvalEG,
		IrrevIndex:     p.IrrevIndex,
	}

	p.Hash ^= zobristSideToMove
	p.Hash ^= zobristCastling[p.CastlingRights]
	if p.epCaptureIsLegal() {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
	}
	p.EnPassant = NoSquare

	if m.IsEnPassant() {
		var capturedSq Square
		if us == White {
			capturedSq = to - 8
		} else {
			capturedSq = to + 8
		}
		undo.CapturedPiece = p.removePiece(capturedSq)
		p.Hash ^= zobristPiece[them][Pawn][capturedSq]
	} else if captured := p.PieceAt(to); captured != NoPiece {
		undo.CapturedPiece = captured
		p.removePiece(to)
		p.Hash ^= zobristPiece[them][captured.Type()][to]
	}

	p.movePiece(from, to)
	p.Hash ^= zobristPiece[us][pt][from]
	p.Hash ^= zobristPiece[us][pt][to]

	if m.IsPromotion() {
		promoPt := m.Promotion()
		bb := SquareBB(to)
		p.Pieces[us][Pawn] &^= bb
		p.Pieces[us][promoPt] |= bb
		p.Mailbox[to] = NewPiece(promoPt, us)

		// movePiece already credited the pawn's PST+material at `to`;
		// swap that credit for the promoted piece's.
		pawnMG, pawnEG := pstValue(us, Pawn, to)
		promoMG, promoEG := pstValue(us, promoPt, to)
		pawnValue := int32(PieceValue[Pawn])
		promoValue := int32(PieceValue[promoPt])
		if us == White {
			p.EvalMG += (promoMG + promoValue) - (pawnMG + pawnValue)
			p.EvalEG += (promoEG + promoValue) - (pawnEG + pawnValue)
		} else {
			p.EvalMG -= (promoMG + promoValue) - (pawnMG + pawnValue)
			p.EvalEG -= (promoEG + promoValue) - (pawnEG + pawnValue)
		}

		p.Hash ^= zobristPiece[us][Pawn][to]
		p.Hash ^= zobristPiece[us][promoPt][to]
	}

	if m.IsCastling() {
		var rookFrom, rookTo Square
		if to > from {
			rookFrom = NewSquare(7, from.Rank())
			rookTo = NewSquare(5, from.Rank())
		} else {
			rookFrom = NewSquare(0, from.Rank())
			rookTo = NewSquare(3, from.Rank())
		}
		p.movePiece(rookFrom, rookTo)
		p.Hash ^= zobristPiece[us][Rook][rookFrom]
		p.Hash ^= zobristPiece[us][Rook][rookTo]
	}

	if pt == King {
		if us == White {
			p.CastlingRights &^= WhiteKingSideCastle | WhiteQueenSideCastle
		} else {
			p.CastlingRights &^= BlackKingSideCastle | BlackQueenSideCastle
		}
	}
	if from == A1 || to == A1 {
		p.CastlingRights &^= WhiteQueenSideCastle
	}
	if from == H1 || to == H1 {
		p.CastlingRights &^= WhiteKingSideCastle
	}
	if from == A8 || to == A8 {
		p.CastlingRights &^= BlackQueenSideCastle
	}
	if from == H8 || to == H8 {
		p.CastlingRights &^= BlackKingSideCastle
	}
	p.Hash ^= zobristCastling[p.CastlingRights]

	if pt == Pawn && abs(int(to)-int(from)) == 16 {
		epSquare := Square((int(from) + int(to)) / 2)
		p.EnPassant = epSquare
		if pawnAttacks[us][epSquare]&p.Pieces[them][Pawn] != 0 {
			p.Hash ^= zobristEnPassant[epSquare.File()]
		}
	}

	if pt == Pawn || undo.CapturedPiece != NoPiece {
		p.HalfMoveClock = 0
	} else {
		p.HalfMoveClock++
	}

	if us == Black {
		p.FullMoveNumber++
	}

	p.SideToMove = them
	p.UpdateCheckers()

	p.History = append(p.History, p.Hash)
	if irreversible {
		p.IrrevIndex = len(p.History) - 1
	}

	p.AssertInvariants()

	return undo
}

// UnmakeMove undoes a move made with MakeMove, restoring the position
// exactly as it was, including the eval accumulator and repetition history.
func (p *Position) UnmakeMove(m Move, undo UndoInfo) {
	them := p.SideToMove
	us := them.Other()
	from := m.From()
	to := m.To()

	p.CastlingRights = undo.CastlingRights
	p.EnPassant = undo.EnPassant
	p.HalfMoveClock = undo.HalfMoveClock
	p.Hash = undo.Hash
	p.Checkers = undo.Checkers
	p.EvalMG = undo.EvalMG
	p.EvalEG = undo.EvalEG
	p.IrrevIndex = undo.IrrevIndex
	p.SideToMove = us

	if us == Black {
		p.FullMoveNumber--
	}

	if m.IsPromotion() {
		promoPt := m.Promotion()
		bb := SquareBB(to)
		p.Pieces[us][promoPt] &^= bb
		p.Pieces[us][Pawn] |= bb
		p.Mailbox[to] = NewPiece(Pawn, us)
	}

	p.rawMove(to, from)

	if m.IsCastling() {
		var rookFrom, rookTo Square
		if to > from {
			rookFrom = NewSquare(7, from.Rank())
			rookTo = NewSquare(5, from.Rank())
		} else {
			rookFrom = NewSquare(0, from.Rank())
			rookTo = NewSquare(3, from.Rank())
		}
		p.rawMove(rookTo, rookFrom)
	}

	if undo.CapturedPiece != NoPiece {
		if m.IsEnPassant() {
			var capturedSq Square
			if us == White {
				capturedSq = to - 8
			} else {
				capturedSq = to + 8
			}
			p.rawSet(undo.CapturedPiece, capturedSq)
		} else {
			p.rawSet(undo.CapturedPiece, to)
		}
	}

	p.History = p.History[:len(p.History)-1]

	p.AssertInvariants()
}

// HasLegalMoves reports whether the side to move has at least one legal move.
func (p *Position) HasLegalMoves() bool {
	return p.GenerateLegalMoves().Len() > 0
}

// IsCheckmate reports whether the side to move is in check with no legal moves.
func (p *Position) IsCheckmate() bool {
	return p.InCheck() && !p.HasLegalMoves()
}

// IsStalemate reports whether the side to move is not in check but has no
// legal moves.
func (p *Position) IsStalemate() bool {
	return !p.InCheck() && !p.HasLegalMoves()
}

// IsDraw reports whether the position is drawn by the fifty-move rule,
// insufficient material, repetition, or stalemate.
func (p *Position) IsDraw() bool {
	if p.IsFiftyMoveDraw() {
		return true
	}
	if p.IsInsufficientMaterial() {
		return true
	}
	if p.IsRepetition() {
		return true
	}
	return p.IsStalemate()
}
