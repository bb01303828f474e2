package chessengine

var bishopDirs = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
var rookDirs = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
var queenDirs = [8][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}, {1, 0}, {-1, 0}, {0, 1}, {0, -1}}
var knightOffsets = [8][2]int{{2, 1}, {2, -1}, {-2, 1}, {-2, -1}, {1, 2}, {1, -2}, {-1, 2}, {-1, -2}}

// pseudoLegalMoves returns every move for the side to move that respects
// piece geometry, blocking, and capture-own-piece rules, but does not yet
// check whether the mover's own king ends up in check.
func pseudoLegalMoves(b *Board) []Move {
	side := b.SideToMove
	var moves []Move
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			p := b.Squares[row][col]
			if p.IsEmpty() || p.Color() != side {
				continue
			}
			from := Square{Row: row, Col: col}
			switch p.Kind() {
			case Pawn:
				appendPawnMoves(b, from, side, &moves)
			case Knight:
				appendOffsetMoves(b, from, side, knightOffsets[:], &moves)
			case Bishop:
				appendSlidingMoves(b, from, side, bishopDirs[:], &moves)
			case Rook:
				appendSlidingMoves(b, from, side, rookDirs[:], &moves)
			case Queen:
				appendSlidingMoves(b, from, side, queenDirs[:], &moves)
			case King:
				appendOffsetMoves(b, from, side, queenDirs[:], &moves)
				appendCastlingMoves(b, side, &moves)
			}
		}
	}
	return moves
}

func appendSlidingMoves(b *Board, from Square, side Color, dirs [][2]int, out *[]Move) {
	for _, d := range dirs {
		to := from
		for {
			to = Square{Row: to.Row + d[0], Col: to.Col + d[1]}
			if !to.InBounds() {
				break
			}
			target := b.At(to)
			if target.IsEmpty() {
				*out = append(*out, Move{From: from, To: to})
				continue
			}
			if target.Color() != side {
				*out = append(*out, Move{From: from, To: to})
			}
			break
		}
	}
}

func appendOffsetMoves(b *Board, from Square, side Color, offsets [][2]int, out *[]Move) {
	for _, d := range offsets {
		to := Square{Row: from.Row + d[0], Col: from.Col + d[1]}
		if !to.InBounds() {
			continue
		}
		target := b.At(to)
		if target.IsEmpty() || target.Color() != side {
			*out = append(*out, Move{From: from, To: to})
		}
	}
}

func appendPawnMoves(b *Board, from Square, side Color, out *[]Move) {
	dir := 1
	startRow := 1
	backRank := 7
	if side == Black {
		dir = -1
		startRow = 6
		backRank = 0
	}

	promoKinds := []PromotionKind{PromoteQueen, PromoteRook, PromoteBishop, PromoteKnight}

	pushTo := Square{Row: from.Row + dir, Col: from.Col}
	if pushTo.InBounds() && b.At(pushTo).IsEmpty() {
		addPawnAdvance(pushTo, backRank, promoKinds, out, from)
		if from.Row == startRow {
			doublePush := Square{Row: from.Row + 2*dir, Col: from.Col}
			if b.At(doublePush).IsEmpty() {
				*out = append(*out, Move{From: from, To: doublePush})
			}
		}
	}

	for _, dc := range []int{-1, 1} {
		to := Square{Row: from.Row + dir, Col: from.Col + dc}
		if !to.InBounds() {
			continue
		}
		target := b.At(to)
		if !target.IsEmpty() && target.Color() != side {
			addPawnAdvance(to, backRank, promoKinds, out, from)
			continue
		}
		if target.IsEmpty() && b.EnPassant.Set && b.EnPassant.Sq == to {
			*out = append(*out, Move{From: from, To: to})
		}
	}
}

func addPawnAdvance(to Square, backRank int, promoKinds []PromotionKind, out *[]Move, from Square) {
	if to.Row == backRank {
		for _, pk := range promoKinds {
			*out = append(*out, Move{From: from, To: to, Promotion: pk})
		}
		return
	}
	*out = append(*out, Move{From: from, To: to})
}

func appendCastlingMoves(b *Board, side Color, out *[]Move) {
	row := 0
	kingMoved := b.Castling.WhiteKingMoved
	aRookMoved := b.Castling.WhiteARookMoved
	hRookMoved := b.Castling.WhiteHRookMoved
	if side == Black {
		row = 7
		kingMoved = b.Castling.BlackKingMoved
		aRookMoved = b.Castling.BlackARookMoved
		hRookMoved = b.Castling.BlackHRookMoved
	}
	if kingMoved {
		return
	}
	kingFrom := Square{Row: row, Col: 4}
	if b.At(kingFrom) != NewPiece(side, King) {
		return
	}
	opp := side.Opponent()

	// Kingside: rook on h-file, f and g empty, e/f/g not attacked.
	if !hRookMoved && b.At(Square{Row: row, Col: 7}) == NewPiece(side, Rook) {
		if b.At(Square{Row: row, Col: 5}).IsEmpty() && b.At(Square{Row: row, Col: 6}).IsEmpty() {
			if !isSquareAttacked(b, Square{Row: row, Col: 4}, opp) &&
				!isSquareAttacked(b, Square{Row: row, Col: 5}, opp) &&
				!isSquareAttacked(b, Square{Row: row, Col: 6}, opp) {
				*out = append(*out, Move{From: kingFrom, To: Square{Row: row, Col: 6}})
			}
		}
	}
	// Queenside: rook on a-file, b/c/d empty, e/d/c not attacked.
	if !aRookMoved && b.At(Square{Row: row, Col: 0}) == NewPiece(side, Rook) {
		if b.At(Square{Row: row, Col: 1}).IsEmpty() && b.At(Square{Row: row, Col: 2}).IsEmpty() && b.At(Square{Row: row, Col: 3}).IsEmpty() {
			if !isSquareAttacked(b, Square{Row: row, Col: 4}, opp) &&
				!isSquareAttacked(b, Square{Row: row, Col: 3}, opp) &&
				!isSquareAttacked(b, Square{Row: row, Col: 2}, opp) {
				*out = append(*out, Move{From: kingFrom, To: Square{Row: row, Col: 2}})
			}
		}
	}
}

// isSquareAttacked reports whether any piece of attacker color attacks sq.
func isSquareAttacked(b *Board, sq Square, attacker Color) bool {
	pawnDir := -1
	if attacker == Black {
		pawnDir = 1
	}
	for _, dc := range []int{-1, 1} {
		src := Square{Row: sq.Row + pawnDir, Col: sq.Col + dc}
		if src.InBounds() && b.At(src) == NewPiece(attacker, Pawn) {
			return true
		}
	}
	for _, d := range knightOffsets {
		src := Square{Row: sq.Row + d[0], Col: sq.Col + d[1]}
		if src.InBounds() && b.At(src) == NewPiece(attacker, Knight) {
			return true
		}
	}
	for _, d := range queenDirs {
		src := Square{Row: sq.Row + d[0], Col: sq.Col + d[1]}
		if src.InBounds() && b.At(src) == NewPiece(attacker, King) {
			return true
		}
	}
	for _, d := range bishopDirs {
		to := sq
		for {
			to = Square{Row: to.Row + d[0], Col: to.Col + d[1]}
			if !to.InBounds() {
				break
			}
			target := b.At(to)
			if target.IsEmpty() {
				continue
			}
			if target.Color() == attacker && (target.Kind() == Bishop || target.Kind() == Queen) {
				return true
			}
			break
		}
	}
	for _, d := range rookDirs {
		to := sq
		for {
			to = Square{Row: to.Row + d[0], Col: to.Col + d[1]}
			if !to.InBounds() {
				break
			}
			target := b.At(to)
			if target.IsEmpty() {
				continue
			}
			if target.Color() == attacker && (target.Kind() == Rook || target.Kind() == Queen) {
				return true
			}
			break
		}
	}
	return false
}

// InCheck reports whether color's king is currently attacked.
func InCheck(b *Board, color Color) bool {
	return isSquareAttacked(b, b.KingSquare(color), color.Opponent())
}

// LegalMoves returns every move available to the side to move: pseudo-legal
// moves that do not leave the mover's own king in check.
func LegalMoves(b *Board) []Move {
	side := b.SideToMove
	candidates := pseudoLegalMoves(b)
	legal := make([]Move, 0, len(candidates))
	for _, m := range candidates {
		sim := b.Clone()
		if err := applyMoveRaw(sim, m); err != nil {
			continue
		}
		if !InCheck(sim, side) {
			legal = append(legal, m)
		}
	}
	return legal
}

// applyMoveRaw mutates b to reflect m with no legality checking beyond
// rejecting a malformed promotion kind. It updates captures, en-passant
// capture, castling rook relocation, promotion, castling-rights flags, the
// en-passant target, the king cache, and the half-move clock, then flips
// the side to move. It does not record the resulting fingerprint or check
// for leaving the mover in check — callers needing full validation use
// ValidateAndApplyMove.
func applyMoveRaw(b *Board, m Move) error {
	if !m.From.InBounds() || !m.To.InBounds() {
		return ErrOutOfBounds
	}
	piece := b.At(m.From)
	if piece.IsEmpty() {
		return ErrNoPieceToMove
	}
	side := piece.Color()
	kind := piece.Kind()

	isCapture := !b.At(m.To).IsEmpty()
	isEnPassantCapture := kind == Pawn && m.To.Col != m.From.Col && b.At(m.To).IsEmpty()

	if kind == Pawn && m.To.Row == backRankFor(side) {
		if !PromotionKind(m.Promotion).valid() || m.Promotion == PromoteNone {
			return ErrPromotionRequired
		}
	} else if m.Promotion != PromoteNone {
		return ErrPromotionNotAllowed
	}

	b.Set(m.From, 0)
	if isEnPassantCapture {
		capturedRow := m.From.Row
		b.Set(Square{Row: capturedRow, Col: m.To.Col}, 0)
		isCapture = true
	}

	placed := piece
	if kind == Pawn && m.Promotion != PromoteNone {
		placed = NewPiece(side, Kind(m.Promotion))
	}
	b.Set(m.To, placed)

	if kind == King {
		b.setKingSquare(side, m.To)
		if m.From.Col == 4 && m.To.Col == 6 {
			row := m.From.Row
			b.Set(Square{Row: row, Col: 7}, 0)
			b.Set(Square{Row: row, Col: 5}, NewPiece(side, Rook))
		} else if m.From.Col == 4 && m.To.Col == 2 {
			row := m.From.Row
			b.Set(Square{Row: row, Col: 0}, 0)
			b.Set(Square{Row: row, Col: 3}, NewPiece(side, Rook))
		}
		markKingMoved(b, side)
	}
	if kind == Rook {
		markRookMoved(b, side, m.From)
	}

	b.EnPassant = EnPassant{}
	if kind == Pawn && abs(m.To.Row-m.From.Row) == 2 {
		b.EnPassant = EnPassant{Set: true, Sq: Square{Row: (m.From.Row + m.To.Row) / 2, Col: m.From.Col}}
	}

	if kind == Pawn || isCapture {
		b.HalfMoveClock = 0
	} else {
		b.HalfMoveClock++
	}

	b.SideToMove = side.Opponent()
	return nil
}

func backRankFor(c Color) int {
	if c == White {
		return 7
	}
	return 0
}

func markKingMoved(b *Board, c Color) {
	if c == White {
		b.Castling.WhiteKingMoved = true
	} else {
		b.Castling.BlackKingMoved = true
	}
}

func markRookMoved(b *Board, c Color, from Square) {
	if c == White && from.Row == 0 {
		if from.Col == 0 {
			b.Castling.WhiteARookMoved = true
		} else if from.Col == 7 {
			b.Castling.WhiteHRookMoved = true
		}
	} else if c == Black && from.Row == 7 {
		if from.Col == 0 {
			b.Castling.BlackARookMoved = true
		} else if from.Col == 7 {
			b.Castling.BlackHRookMoved = true
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ValidateAndApplyMove checks m against the side to move's legal move list,
// applies it, records the resulting position's fingerprint, and returns the
// automatic Outcome: Ongoing, Checkmate, Stalemate, or DrawSeventyFiveMove.
// Claimable draws (threefold repetition, fifty-move) are never returned
// here; callers use CurrentRepetitionCount and b.HalfMoveClock directly.
func ValidateAndApplyMove(b *Board, m Move) (Outcome, error) {
	if !m.From.InBounds() || !m.To.InBounds() {
		return Ongoing, ErrOutOfBounds
	}
	piece := b.At(m.From)
	if piece.IsEmpty() {
		return Ongoing, ErrNoPieceToMove
	}
	if piece.Color() != b.SideToMove {
		return Ongoing, ErrWrongSideToMove
	}

	var matched *Move
	for _, legal := range LegalMoves(b) {
		if legal.From == m.From && legal.To == m.To && legal.Promotion == m.Promotion {
			mm := legal
			matched = &mm
			break
		}
	}
	if matched == nil {
		return Ongoing, ErrIllegalMove
	}

	mover := b.SideToMove
	if err := applyMoveRaw(b, *matched); err != nil {
		return Ongoing, err
	}
	if err := b.recordFingerprint(); err != nil {
		return Ongoing, err
	}

	opponent := mover.Opponent()
	hasMoves := len(LegalMoves(b)) > 0
	inCheck := InCheck(b, opponent)

	switch {
	case !hasMoves && inCheck:
		return Checkmate, nil
	case !hasMoves:
		return Stalemate, nil
	case b.HalfMoveClock >= 150:
		return DrawSeventyFiveMove, nil
	default:
		return Ongoing, nil
	}
}
