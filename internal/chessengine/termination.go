package chessengine

// Claimable-draw thresholds: fifty full moves without a
// capture or pawn move (100 half-moves) makes a fifty-move claim available;
// three occurrences of the same position make a repetition claim
// available. Neither fires automatically — a player must submit the claim
// tx. The automatic seventy-five-move and fivefold-repetition limits are
// stricter than these and are enforced without a claim: the seventy-five-
// move cap is checked directly in ValidateAndApplyMove, and the fivefold
// case is handled the same way by CheckAutomaticRepetitionDraw below.
const (
	FiftyMoveClaimHalfMoves = 100
	ThreefoldClaimCount     = 3
	FivefoldAutomaticCount  = 5
)

func (o Outcome) String() string {
	switch o {
	case Ongoing:
		return "ongoing"
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case DrawSeventyFiveMove:
		return "draw-75-move"
	default:
		return "unknown"
	}
}

// ClaimFiftyMove validates a player's fifty-move draw claim against the
// current position. It never mutates the board; the caller (internal/game)
// is responsible for transitioning the Game's lifecycle state once the
// claim is accepted.
func ClaimFiftyMove(b *Board) error {
	if b.HalfMoveClock < FiftyMoveClaimHalfMoves {
		return ErrClaimNotAvailable
	}
	return nil
}

// ClaimRepetition validates a player's threefold-repetition draw claim
// against the current position.
func ClaimRepetition(b *Board) error {
	count, err := b.CurrentRepetitionCount()
	if err != nil {
		return err
	}
	if count < ThreefoldClaimCount {
		return ErrClaimNotAvailable
	}
	return nil
}

// CheckAutomaticRepetitionDraw reports whether the current position has
// recurred often enough (fivefold) to end the game without a claim, mirroring
// the seventy-five-move automatic cap's "no one has to ask" behavior. It is
// checked by internal/game immediately after ValidateAndApplyMove returns
// Ongoing, so that a fivefold repetition is never missed simply because
// neither player claims it.
func CheckAutomaticRepetitionDraw(b *Board) bool {
	return b.MaxRepetition >= FivefoldAutomaticCount
}
