package game

import (
	"testing"

	"onchainchess/internal/chessengine"
	"onchainchess/internal/state"
)

func sq(t *testing.T, s string) chessengine.Square {
	t.Helper()
	col := int(s[0] - 'a')
	row := int(s[1] - '1')
	return chessengine.Square{Row: row, Col: col}
}

func mv(t *testing.T, from, to string) chessengine.Move {
	return chessengine.Move{From: sq(t, from), To: sq(t, to), Promotion: chessengine.PromoteNone}
}

func newFundedState(t *testing.T, players ...string) *state.State {
	t.Helper()
	s := state.NewState()
	for _, p := range players {
		if err := s.Credit(p, 1_000); err != nil {
			t.Fatalf("fund %s: %v", p, err)
		}
	}
	return s
}

// TestFoolsMateThroughGameLayer drives scenario S1 end to end through the
// Game Instance rather than chessengine directly, checking the checkmate
// result, that a repeated finalize does not credit twice, and that the
// winner can withdraw the full pot.
func TestFoolsMateThroughGameLayer(t *testing.T) {
	s := newFundedState(t, "white", "black")
	g, err := Create(s, 1, "white", state.ModeFriendly, 100, TimeoutMediumBlocks)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	var c Collaborators
	if err := Join(s, c, 1, "black", 1); err != nil {
		t.Fatalf("join: %v", err)
	}
	if g.State != state.StateInProgress {
		t.Fatalf("expected in progress after join")
	}

	if err := Move(s, c, 1, "white", mv(t, "f2", "f3"), 2, 0); err != nil {
		t.Fatalf("move 1: %v", err)
	}
	if err := Move(s, c, 1, "black", mv(t, "e7", "e5"), 3, 0); err != nil {
		t.Fatalf("move 2: %v", err)
	}
	if err := Move(s, c, 1, "white", mv(t, "g2", "g4"), 4, 0); err != nil {
		t.Fatalf("move 3: %v", err)
	}
	if err := Move(s, c, 1, "black", mv(t, "d8", "h4"), 5, 0); err != nil {
		t.Fatalf("move 4 (mate): %v", err)
	}

	if g.State != state.StateBlackWins {
		t.Fatalf("expected black to win by checkmate, got %v", g.State)
	}
	if !g.Flags.WasCheckmate {
		t.Fatalf("expected WasCheckmate flag set")
	}
	if g.MoveCount != 4 {
		t.Fatalf("expected move count 4, got %d", g.MoveCount)
	}

	if err := FinalizePrizes(s, c, 1, 10); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !g.Flags.Finalized {
		t.Fatalf("expected finalized flag set")
	}
	if g.PendingPayout["black"] != 200 {
		t.Fatalf("expected black credited the full pot, got %d", g.PendingPayout["black"])
	}

	// Repeat finalize is a no-op.
	if err := FinalizePrizes(s, c, 1, 10); err != nil {
		t.Fatalf("repeat finalize should be a no-op, got error: %v", err)
	}
	if g.PendingPayout["black"] != 200 {
		t.Fatalf("repeat finalize must not double-credit")
	}

	if err := WithdrawPrize(s, 1, "black"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if s.Balance("black") != 900+200 {
		t.Fatalf("expected black's balance credited, got %d", s.Balance("black"))
	}
	if g.PendingPayout["black"] != 0 {
		t.Fatalf("expected pending payout zeroed after withdraw")
	}
	if err := WithdrawPrize(s, 1, "black"); err != ErrNothingToWithdraw {
		t.Fatalf("expected ErrNothingToWithdraw on repeat withdraw, got %v", err)
	}
}

// TestResignBeforeOpponentJoinsRefunds covers the NotStarted cancellation
// path: resigning before Black has joined refunds the creator's stake
// instead of awarding anyone a win.
func TestResignBeforeOpponentJoinsRefunds(t *testing.T) {
	s := newFundedState(t, "white")
	if _, err := Create(s, 1, "white", state.ModeFriendly, 100, TimeoutMediumBlocks); err != nil {
		t.Fatalf("create: %v", err)
	}
	var c Collaborators
	if err := Resign(s, c, 1, "white", 0); err != nil {
		t.Fatalf("resign: %v", err)
	}
	if s.Balance("white") != 1_000 {
		t.Fatalf("expected full refund, got %d", s.Balance("white"))
	}
	g := s.Games[1]
	if !g.Flags.Finalized {
		t.Fatalf("expected finalized after cancellation")
	}
}

// TestResignInProgressAwardsOpponent covers a mid-game resignation.
func TestResignInProgressAwardsOpponent(t *testing.T) {
	s := newFundedState(t, "white", "black")
	Create(s, 1, "white", state.ModeFriendly, 100, TimeoutMediumBlocks)
	var c Collaborators
	Join(s, c, 1, "black", 1)

	if err := Resign(s, c, 1, "white", 0); err != nil {
		t.Fatalf("resign: %v", err)
	}
	g := s.Games[1]
	if g.State != state.StateBlackWins {
		t.Fatalf("expected black to win on white's resignation, got %v", g.State)
	}
	if !g.Flags.WasResign {
		t.Fatalf("expected WasResign set")
	}
}

// TestDrawOfferAcceptSplitsPot covers the draw-offer quartet and the
// split-pot finalize path.
func TestDrawOfferAcceptSplitsPot(t *testing.T) {
	s := newFundedState(t, "white", "black")
	Create(s, 1, "white", state.ModeFriendly, 101, TimeoutMediumBlocks)
	var c Collaborators
	Join(s, c, 1, "black", 1)

	if err := OfferDraw(s, 1, "white"); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if err := OfferDraw(s, 1, "black"); err != ErrDrawOfferExists {
		t.Fatalf("expected ErrDrawOfferExists, got %v", err)
	}
	if err := AcceptDraw(s, c, 1, "white", 0); err != ErrNotOpponent {
		t.Fatalf("expected offerer cannot accept own offer, got %v", err)
	}
	if err := AcceptDraw(s, c, 1, "black", 0); err != nil {
		t.Fatalf("accept: %v", err)
	}
	g := s.Games[1]
	if g.State != state.StateDrawn {
		t.Fatalf("expected drawn state")
	}
	if err := FinalizePrizes(s, c, 1, 0); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	// pot = 2*101 = 202 splits evenly; a pot of twice the stake leaves no
	// odd unit
	if g.PendingPayout["white"] != 101 || g.PendingPayout["black"] != 101 {
		t.Fatalf("expected an even split of 101/101, got white=%d black=%d", g.PendingPayout["white"], g.PendingPayout["black"])
	}
}

// TestClaimVictoryByTimeout covers the clock-expiry claim.
func TestClaimVictoryByTimeout(t *testing.T) {
	s := newFundedState(t, "white", "black")
	Create(s, 1, "white", state.ModeFriendly, 100, TimeoutFastBlocks)
	var c Collaborators
	Join(s, c, 1, "black", 1)
	// White moves at block 1, which starts Black's clock.
	if err := Move(s, c, 1, "white", mv(t, "e2", "e4"), 1, 0); err != nil {
		t.Fatalf("move: %v", err)
	}

	if err := ClaimVictoryByTimeout(s, c, 1, "white", 1+TimeoutFastBlocks-1, 0); err != ErrNotTimedOut {
		t.Fatalf("expected ErrNotTimedOut before the deadline, got %v", err)
	}
	if err := ClaimVictoryByTimeout(s, c, 1, "black", 1+TimeoutFastBlocks, 0); err != ErrWrongTurn {
		t.Fatalf("expected the player on the clock cannot claim against themself, got %v", err)
	}
	if err := ClaimVictoryByTimeout(s, c, 1, "white", 1+TimeoutFastBlocks, 0); err != nil {
		t.Fatalf("claim: %v", err)
	}
	g := s.Games[1]
	if g.State != state.StateWhiteWins || !g.Flags.WasTimeout {
		t.Fatalf("expected white to win by timeout, got state=%v wasTimeout=%v", g.State, g.Flags.WasTimeout)
	}
}

// TestTournamentModeForfeitsOnIllegalMove covers the Tournament mode
// policy: an illegal move forfeits the game instead of just being
// rejected.
func TestTournamentModeForfeitsOnIllegalMove(t *testing.T) {
	s := newFundedState(t, "white", "black")
	Create(s, 1, "white", state.ModeTournament, 100, TimeoutMediumBlocks)
	var c Collaborators
	Join(s, c, 1, "black", 1)

	// a2 has no piece able to reach a5 in one pseudo-legal pawn move.
	if err := Move(s, c, 1, "white", mv(t, "a2", "a5"), 2, 0); err != nil {
		t.Fatalf("expected the illegal move to be absorbed as a forfeit, got error: %v", err)
	}
	g := s.Games[1]
	if g.State != state.StateBlackWins {
		t.Fatalf("expected white to forfeit to black, got %v", g.State)
	}
}

// TestFriendlyModeRejectsIllegalMove covers the Friendly mode policy: an
// illegal move is rejected with no state change.
func TestFriendlyModeRejectsIllegalMove(t *testing.T) {
	s := newFundedState(t, "white", "black")
	Create(s, 1, "white", state.ModeFriendly, 100, TimeoutMediumBlocks)
	var c Collaborators
	Join(s, c, 1, "black", 1)

	if err := Move(s, c, 1, "white", mv(t, "a2", "a5"), 2, 0); err == nil {
		t.Fatalf("expected an error for an illegal move in friendly mode")
	}
	g := s.Games[1]
	if g.State != state.StateInProgress {
		t.Fatalf("expected the game to remain in progress after a rejected illegal move")
	}
}

// TestClaimPrizeRejectsDraw covers Open Question decision #3: claimPrize
// is a win-only shortcut, not usable for a drawn outcome.
func TestClaimPrizeRejectsDraw(t *testing.T) {
	s := newFundedState(t, "white", "black")
	Create(s, 1, "white", state.ModeFriendly, 100, TimeoutMediumBlocks)
	var c Collaborators
	Join(s, c, 1, "black", 1)
	OfferDraw(s, 1, "white")
	AcceptDraw(s, c, 1, "black", 0)

	if err := ClaimPrize(s, c, 1, "white", 0); err != ErrDrawHasNoWinner {
		t.Fatalf("expected ErrDrawHasNoWinner, got %v", err)
	}
}

type fakeMatchRecorder struct {
	calls [][2]string
}

func (f *fakeMatchRecorder) RecordGame(addr, opponent string, now int64) {
	f.calls = append(f.calls, [2]string{addr, opponent})
}

// TestTerminalTransitionRecordsBothPlayers covers the Arbitrator Registry's
// recent-opponent exclusion feed: a terminal transition must record each
// player against the other exactly once.
func TestTerminalTransitionRecordsBothPlayers(t *testing.T) {
	s := newFundedState(t, "white", "black")
	Create(s, 1, "white", state.ModeFriendly, 100, TimeoutMediumBlocks)
	rec := &fakeMatchRecorder{}
	c := Collaborators{Match: rec}
	if err := Join(s, c, 1, "black", 1); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := Resign(s, c, 1, "white", 5); err != nil {
		t.Fatalf("resign: %v", err)
	}

	if len(rec.calls) != 2 {
		t.Fatalf("expected 2 RecordGame calls, got %d: %+v", len(rec.calls), rec.calls)
	}
	want := map[[2]string]bool{
		{"white", "black"}: true,
		{"black", "white"}: true,
	}
	for _, call := range rec.calls {
		if !want[call] {
			t.Fatalf("unexpected RecordGame call %+v", call)
		}
	}
}
