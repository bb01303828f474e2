package chessengine

import "onchainchess/internal/chesscrypto"

// CastlingRights tracks the six independent king/rook-moved booleans.
// Monotonic: every field starts false and, once set true by a king or rook
// move, is never reset for the remainder of the game.
type CastlingRights struct {
	WhiteKingMoved  bool
	WhiteARookMoved bool
	WhiteHRookMoved bool
	BlackKingMoved  bool
	BlackARookMoved bool
	BlackHRookMoved bool
}

// EnPassant is the nullable en-passant target column/row.
type EnPassant struct {
	Set bool
	Sq  Square
}

// Fingerprint is a position fingerprint: a hash of the board, side-to-move,
// the six castling booleans, and the en-passant column. Material
// composition is implicit in the board bytes, so it is never hashed
// separately. Used only for threefold-repetition detection.
type Fingerprint [32]byte

// Board is the full mutable engine state for one game: the 8x8 grid, the
// derived caches (castling rights, en-passant target, king positions), and
// the progress counters used for forced/claimable draws.
type Board struct {
	Squares [8][8]Piece

	SideToMove Color
	Castling   CastlingRights
	EnPassant  EnPassant

	WhiteKing Square
	BlackKing Square

	HalfMoveClock int
	// Repetitions maps a position fingerprint to how many times it has
	// occurred; MaxRepetition tracks the running maximum for quick
	// access without scanning the map.
	Repetitions   map[Fingerprint]int
	MaxRepetition int
}

// NewBoard returns the standard chess starting position, side to move
// White, full castling rights, no en-passant target, and an initial
// repetition entry for the starting position's own fingerprint.
func NewBoard() *Board {
	b := &Board{
		SideToMove:  White,
		Repetitions: make(map[Fingerprint]int, 64),
	}
	backRank := [8]Kind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}
	for col := 0; col < 8; col++ {
		b.Squares[0][col] = NewPiece(White, backRank[col])
		b.Squares[1][col] = NewPiece(White, Pawn)
		b.Squares[6][col] = NewPiece(Black, Pawn)
		b.Squares[7][col] = NewPiece(Black, backRank[col])
	}
	b.WhiteKing = Square{Row: 0, Col: 4}
	b.BlackKing = Square{Row: 7, Col: 4}
	fp, err := b.Fingerprint()
	if err == nil {
		b.Repetitions[fp] = 1
		b.MaxRepetition = 1
	}
	return b
}

// At returns the piece on a square; callers must ensure InBounds.
func (b *Board) At(sq Square) Piece { return b.Squares[sq.Row][sq.Col] }

// Set places a piece (or clears with Empty) on a square.
func (b *Board) Set(sq Square, p Piece) { b.Squares[sq.Row][sq.Col] = p }

// KingSquare returns the cached king position for a color.
func (b *Board) KingSquare(c Color) Square {
	if c == White {
		return b.WhiteKing
	}
	return b.BlackKing
}

func (b *Board) setKingSquare(c Color, sq Square) {
	if c == White {
		b.WhiteKing = sq
	} else {
		b.BlackKing = sq
	}
}

// Fingerprint hashes (board, side-to-move, castling rights, en-passant
// column) through the shared chesscrypto transcript.
func (b *Board) Fingerprint() (Fingerprint, error) {
	t := chesscrypto.NewTranscript("occ/v1/chess/fingerprint")

	var grid [64]byte
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			grid[row*8+col] = byte(int8(b.Squares[row][col]))
		}
	}
	if err := t.AppendMessage("board", grid[:]); err != nil {
		return Fingerprint{}, err
	}
	if err := t.AppendMessage("side", []byte{byte(int8(b.SideToMove))}); err != nil {
		return Fingerprint{}, err
	}
	castling := byte(0)
	for i, moved := range []bool{
		b.Castling.WhiteKingMoved, b.Castling.WhiteARookMoved, b.Castling.WhiteHRookMoved,
		b.Castling.BlackKingMoved, b.Castling.BlackARookMoved, b.Castling.BlackHRookMoved,
	} {
		if moved {
			castling |= 1 << uint(i)
		}
	}
	if err := t.AppendMessage("castling", []byte{castling}); err != nil {
		return Fingerprint{}, err
	}
	epCol := byte(255)
	if b.EnPassant.Set {
		epCol = byte(b.EnPassant.Sq.Col)
	}
	if err := t.AppendMessage("ep", []byte{epCol}); err != nil {
		return Fingerprint{}, err
	}
	return t.ChallengeBytes("fingerprint")
}

// recordFingerprint hashes the current position and bumps its repetition
// count. Called after the move and its side effects (castling rights,
// en-passant target) are fully applied, so the fingerprint reflects the
// resulting position rather than the one before the move.
func (b *Board) recordFingerprint() error {
	fp, err := b.Fingerprint()
	if err != nil {
		return err
	}
	b.Repetitions[fp]++
	if b.Repetitions[fp] > b.MaxRepetition {
		b.MaxRepetition = b.Repetitions[fp]
	}
	return nil
}

// CurrentRepetitionCount returns how many times the current position has
// occurred, used by claimRepetition.
func (b *Board) CurrentRepetitionCount() (int, error) {
	fp, err := b.Fingerprint()
	if err != nil {
		return 0, err
	}
	return b.Repetitions[fp], nil
}

// Clone returns a deep copy suitable for legality-check simulation.
func (b *Board) Clone() *Board {
	out := *b
	out.Repetitions = make(map[Fingerprint]int, len(b.Repetitions))
	for k, v := range b.Repetitions {
		out.Repetitions[k] = v
	}
	return &out
}
