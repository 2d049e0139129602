package board

import (
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the FEN string for the starting position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseFEN parses a FEN string and returns a Position.
func ParseFEN(fen string) (*Position, error) {
	parts := strings.Fields(fen)
	if len(parts) < 4 {
		return nil, fmt.Errorf("%w: need at least 4 fields, got %d", ErrInvalidFEN, len(parts))
	}

	pos := &Position{
		EnPassant:      NoSquare,
		FullMoveNumber: 1,
		History:        make([]uint64, 0, 128),
	}
	pos.KingSquare[White] = NoSquare
	pos.KingSquare[Black] = NoSquare

	if err := parsePiecePlacement(pos, parts[0]); err != nil {
		return nil, err
	}

	switch parts[1] {
	case "w":
		pos.SideToMove = White
	case "b":
		pos.SideToMove = Black
	default:
		return nil, fmt.Errorf("%w: invalid side to move %q", ErrInvalidFEN, parts[1])
	}

	if err := parseCastlingRights(pos, parts[2]); err != nil {
		return nil, err
	}

	if parts[3] != "-" {
		sq, err := ParseSquare(parts[3])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid en passant square %q", ErrInvalidFEN, parts[3])
		}
		pos.EnPassant = sq
	}

	if len(parts) > 4 {
		hmc, err := strconv.Atoi(parts[4])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid half-move clock %q", ErrInvalidFEN, parts[4])
		}
		pos.HalfMoveClock = hmc
	}

	if len(parts) > 5 {
		fmn, err := strconv.Atoi(parts[5])
		if err != nil {
			return nil, fmt.Errorf("%w: invalid full-move number %q", ErrInvalidFEN, parts[5])
		}
		pos.FullMoveNumber = fmn
	}

	pos.updateOccupied()
	pos.findKings()
	pos.rebuildMailboxAndEval()
	pos.UpdateCheckers()
	pos.Hash = pos.ComputeHash()
	pos.History = append(pos.History, pos.Hash)

	if err := pos.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}

	return pos, nil
}

// parsePiecePlacement parses the piece placement section of a FEN string.
func parsePiecePlacement(pos *Position, placement string) error {
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return fmt.Errorf("%w: need 8 ranks, got %d", ErrInvalidFEN, len(ranks))
	}

	for i, rankStr := range ranks {
		rank := 7 - i // FEN starts from rank 8
		file := 0

		for _, c := range rankStr {
			if file > 7 {
				return fmt.Errorf("%w: too many squares in rank %d", ErrInvalidFEN, rank+1)
			}

			if c >= '1' && c <= '8' {
				file += int(c - '0')
			} else {
				piece := PieceFromChar(byte(c))
				if piece == NoPiece {
					return fmt.Errorf("%w: invalid piece character %q", ErrInvalidFEN, c)
				}
				sq := NewSquare(file, rank)
				pos.setPiece(piece, sq)
				file++
			}
		}

		if file != 8 {
			return fmt.Errorf("%w: invalid number of squares in rank %d: got %d", ErrInvalidFEN, rank+1, file)
		}
	}

	return nil
}

// parseCastlingRights parses the castling rights section of a FEN string.
func parseCastlingRights(pos *Position, castling string) error {
	if castling == "-" {
		pos.CastlingRights = NoCastling
		return nil
	}

	for _, c := range castling {
		switch c {
		case 'K':
			pos.CastlingRights |= WhiteKingSideCastle
		case 'Q':
			pos.CastlingRights |= WhiteQueenSideCastle
		case 'k':
			pos.CastlingRights |= BlackKingSideCastle
		case 'q':
			pos.CastlingRights |= BlackQueenSideCastle
		default:
			return fmt.Errorf("%w: invalid castling character %q", ErrInvalidFEN, c)
		}
	}

	return nil
}

// ToFEN returns the FEN representation of the position.
func (p *Position) ToFEN() string {
	var sb strings.Builder

	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			sq := NewSquare(file, rank)
			piece := p.PieceAt(sq)
			if piece == NoPiece {
				empty++
			} else {
				if empty > 0 {
					sb.WriteString(strconv.Itoa(empty))
					empty = 0
				}
				sb.WriteString(piece.String())
			}
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	sb.WriteByte(' ')
	if p.SideToMove == White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}

	sb.WriteByte(' ')
	sb.WriteString(p.CastlingRights.String())

	sb.WriteByte(' ')
	sb.WriteString(p.EnPassant.String())

	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.HalfMoveClock))
	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.FullMoveNumber))

	return sb.String()
}

// epCaptureIsLegal reports whether an enemy pawn of the side to move could
// actually capture onto p.EnPassant right now — ignoring pins, since a pin
// false positive only costs one gratuitous TT miss, never a correctness bug.
func (p *Position) epCaptureIsLegal() bool {
	if p.EnPassant == NoSquare {
		return false
	}
	return pawnAttacks[p.SideToMove.Other()][p.EnPassant]&p.Pieces[p.SideToMove][Pawn] != 0
}

// ComputeHash computes the Zobrist hash for the position from scratch.
func (p *Position) ComputeHash() uint64 {
	var hash uint64

	for c := White; c <= Black; c++ {
		for pt := Pawn; pt <= King; pt++ {
			bb := p.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()
				hash ^= zobristPiece[c][pt][sq]
			}
		}
	}

	if p.SideToMove == Black {
		hash ^= zobristSideToMove
	}

	hash ^= zobristCastling[p.CastlingRights]

	// Only fold en-passant into the hash when a capture onto the target
	// square is actually available; otherwise two positions differing only
	// by a now-irrelevant EP target would miss each other in the TT.
	if p.epCaptureIsLegal() {
		hash ^= zobristEnPassant[p.EnPassant.File()]
	}

	return hash
}
