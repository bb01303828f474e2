package chessengine

import "testing"

func mustMove(t *testing.T, b *Board, from, to string, promo PromotionKind) Outcome {
	t.Helper()
	outcome, err := ValidateAndApplyMove(b, Move{From: parseSquare(t, from), To: parseSquare(t, to), Promotion: promo})
	if err != nil {
		t.Fatalf("move %s%s: unexpected error: %v", from, to, err)
	}
	return outcome
}

func parseSquare(t *testing.T, s string) Square {
	t.Helper()
	if len(s) != 2 {
		t.Fatalf("bad square %q", s)
	}
	col := int(s[0] - 'a')
	row := int(s[1] - '1')
	sq := Square{Row: row, Col: col}
	if !sq.InBounds() {
		t.Fatalf("square %q out of bounds", s)
	}
	return sq
}

// TestFoolsMate covers scenario S1: the fastest possible checkmate.
func TestFoolsMate(t *testing.T) {
	b := NewBoard()
	mustMove(t, b, "f2", "f3", PromoteNone)
	mustMove(t, b, "e7", "e5", PromoteNone)
	mustMove(t, b, "g2", "g4", PromoteNone)
	outcome := mustMove(t, b, "d8", "h4", PromoteNone)
	if outcome != Checkmate {
		t.Fatalf("expected checkmate, got %s", outcome)
	}
	if !InCheck(b, White) {
		t.Fatalf("expected white king in check after mate")
	}
}

// TestKingsideCastling covers scenario S3.
func TestKingsideCastling(t *testing.T) {
	b := NewBoard()
	mustMove(t, b, "g1", "f3", PromoteNone)
	mustMove(t, b, "g8", "f6", PromoteNone)
	mustMove(t, b, "g2", "g3", PromoteNone)
	mustMove(t, b, "g7", "g6", PromoteNone)
	mustMove(t, b, "f1", "g2", PromoteNone)
	mustMove(t, b, "f8", "g7", PromoteNone)
	mustMove(t, b, "e1", "g1", PromoteNone)

	if b.At(Square{Row: 0, Col: 6}) != NewPiece(White, King) {
		t.Fatalf("king did not land on g1")
	}
	if b.At(Square{Row: 0, Col: 5}) != NewPiece(White, Rook) {
		t.Fatalf("rook did not land on f1")
	}
	if b.At(Square{Row: 0, Col: 7}) != 0 {
		t.Fatalf("h1 should be empty after castling")
	}
	if !b.Castling.WhiteKingMoved {
		t.Fatalf("WhiteKingMoved should be set after castling")
	}
}

// TestEnPassant covers scenario S4.
func TestEnPassant(t *testing.T) {
	b := NewBoard()
	mustMove(t, b, "e2", "e4", PromoteNone)
	mustMove(t, b, "a7", "a6", PromoteNone)
	mustMove(t, b, "e4", "e5", PromoteNone)
	mustMove(t, b, "d7", "d5", PromoteNone)

	if !b.EnPassant.Set || b.EnPassant.Sq != (Square{Row: 5, Col: 3}) {
		t.Fatalf("expected en-passant target d6, got %+v", b.EnPassant)
	}

	mustMove(t, b, "e5", "d6", PromoteNone)
	if b.At(Square{Row: 4, Col: 3}) != 0 {
		t.Fatalf("captured black pawn should be removed from d5")
	}
	if b.At(Square{Row: 5, Col: 3}) != NewPiece(White, Pawn) {
		t.Fatalf("white pawn should land on d6")
	}
}

// TestThreefoldRepetitionClaim covers scenario S2: shuffling knights back
// and forth three times makes the claim available but never forces a draw
// on its own.
func TestThreefoldRepetitionClaim(t *testing.T) {
	b := NewBoard()
	if err := ClaimRepetition(b); err == nil {
		t.Fatalf("expected claim unavailable at game start")
	}

	moves := [][2]string{
		{"g1", "f3"}, {"g8", "f6"},
		{"f3", "g1"}, {"f6", "g8"},
		{"g1", "f3"}, {"g8", "f6"},
		{"f3", "g1"}, {"f6", "g8"},
	}
	for _, mv := range moves {
		mustMove(t, b, mv[0], mv[1], PromoteNone)
	}

	if err := ClaimRepetition(b); err != nil {
		t.Fatalf("expected repetition claim available after returning to start position three times: %v", err)
	}
}

// TestAutomaticFivefoldRepetition covers the no-claim-needed counterpart to
// TestThreefoldRepetitionClaim: two more round trips past the threefold
// claim threshold trips CheckAutomaticRepetitionDraw.
func TestAutomaticFivefoldRepetition(t *testing.T) {
	b := NewBoard()
	moves := [][2]string{
		{"g1", "f3"}, {"g8", "f6"},
		{"f3", "g1"}, {"f6", "g8"},
		{"g1", "f3"}, {"g8", "f6"},
		{"f3", "g1"}, {"f6", "g8"},
	}
	for i := 0; i < 2; i++ {
		for _, mv := range moves {
			if CheckAutomaticRepetitionDraw(b) {
				t.Fatalf("repetition draw tripped early")
			}
			mustMove(t, b, mv[0], mv[1], PromoteNone)
		}
	}
	if !CheckAutomaticRepetitionDraw(b) {
		t.Fatalf("expected automatic repetition draw after the position recurred fivefold")
	}
}

// TestPromotionRequiredAndIllegalWithoutIt checks that a pawn move reaching
// the last rank without a promotion kind is rejected.
func TestPromotionRequiredAndIllegalWithoutIt(t *testing.T) {
	b := NewBoard()
	// Clear a path for a white pawn to reach the eighth rank quickly.
	b.Squares[1][0] = 0
	b.Squares[6][0] = 0
	b.Squares[7][0] = 0
	b.Squares[6][0] = NewPiece(White, Pawn)
	b.SideToMove = White

	_, err := ValidateAndApplyMove(b, Move{From: Square{Row: 6, Col: 0}, To: Square{Row: 7, Col: 0}})
	if err == nil {
		t.Fatalf("expected promotion-required error")
	}

	outcome, err := ValidateAndApplyMove(b, Move{From: Square{Row: 6, Col: 0}, To: Square{Row: 7, Col: 0}, Promotion: PromoteQueen})
	if err != nil {
		t.Fatalf("unexpected error promoting: %v", err)
	}
	if outcome != Ongoing {
		t.Fatalf("expected ongoing after simple promotion, got %s", outcome)
	}
	if b.At(Square{Row: 7, Col: 0}).Kind() != Queen {
		t.Fatalf("expected queen on a8 after promotion")
	}
}

// TestWrongSideToMoveRejected checks the universal invariant that only the
// side to move's own pieces can be moved.
func TestWrongSideToMoveRejected(t *testing.T) {
	b := NewBoard()
	_, err := ValidateAndApplyMove(b, Move{From: Square{Row: 6, Col: 4}, To: Square{Row: 4, Col: 4}})
	if err != ErrWrongSideToMove {
		t.Fatalf("expected ErrWrongSideToMove, got %v", err)
	}
}

// TestCannotMoveIntoCheck verifies that a king cannot step onto a square
// attacked by an enemy rook down an open file.
func TestCannotMoveIntoCheck(t *testing.T) {
	b := &Board{SideToMove: White, Repetitions: make(map[Fingerprint]int)}
	b.Set(Square{Row: 0, Col: 4}, NewPiece(White, King))
	b.Set(Square{Row: 7, Col: 4}, NewPiece(Black, Rook))
	b.Set(Square{Row: 7, Col: 0}, NewPiece(Black, King))
	b.WhiteKing = Square{Row: 0, Col: 4}
	b.BlackKing = Square{Row: 7, Col: 0}

	_, err := ValidateAndApplyMove(b, Move{From: Square{Row: 0, Col: 4}, To: Square{Row: 1, Col: 4}})
	if err != ErrIllegalMove {
		t.Fatalf("expected illegal move walking king into rook's file, got %v", err)
	}

	outcome, err := ValidateAndApplyMove(b, Move{From: Square{Row: 0, Col: 4}, To: Square{Row: 0, Col: 3}})
	if err != nil {
		t.Fatalf("expected sideways king move off the file to be legal: %v", err)
	}
	if outcome != Ongoing {
		t.Fatalf("expected ongoing, got %s", outcome)
	}
}
