package arbitrator

import (
	"testing"

	"onchainchess/internal/state"
)

func TestTierOfBoundaries(t *testing.T) {
	cases := []struct {
		stake uint64
		want  state.Tier
	}{
		{999, state.TierNone},
		{1_000, state.TierOne},
		{4_999, state.TierOne},
		{5_000, state.TierTwo},
		{19_999, state.TierTwo},
		{20_000, state.TierThree},
		{1_000_000, state.TierThree},
	}
	for _, c := range cases {
		if got := TierOf(c.stake); got != c.want {
			t.Errorf("TierOf(%d) = %d, want %d", c.stake, got, c.want)
		}
	}
}

// TestVotingPowerActivationDelay covers invariant #10: votingPowerActiveAt
// is always stakedAt + 7 days, and voting power is zero before that time.
func TestVotingPowerActivationDelay(t *testing.T) {
	s := state.NewState()
	now := int64(1_000_000)
	if err := Register(s, "arb1", 2_000, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := s.Arbitrators["arb1"]
	if a.VotingPowerActiveAt != now+VotingPowerDelaySeconds {
		t.Fatalf("expected votingPowerActiveAt = stakedAt+7d, got %d want %d", a.VotingPowerActiveAt, now+VotingPowerDelaySeconds)
	}
	if vp := VotingPower(a, now); vp != 0 {
		t.Fatalf("expected zero voting power before activation, got %d", vp)
	}
	if vp := VotingPower(a, a.VotingPowerActiveAt); vp == 0 {
		t.Fatalf("expected nonzero voting power once active")
	}
}

func TestRegisterBelowMinimumRejected(t *testing.T) {
	s := state.NewState()
	if err := Register(s, "arb1", 999, 0); err != ErrStakeBelowMinimum {
		t.Fatalf("expected ErrStakeBelowMinimum, got %v", err)
	}
}

func TestRegisterTwiceRejected(t *testing.T) {
	s := state.NewState()
	if err := Register(s, "arb1", 1_000, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Register(s, "arb1", 1_000, 0); err != ErrAlreadyRegistered {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

// TestStakeRetiersAndMovesPool verifies that crossing a tier boundary via
// Stake removes the arbitrator from its old tier pool and adds it to the
// new one, using swap-and-pop bookkeeping that keeps other members' pool
// indices correct.
func TestStakeRetiersAndMovesPool(t *testing.T) {
	s := state.NewState()
	Register(s, "arb1", 1_000, 0)
	Register(s, "arb2", 1_200, 0)

	if len(s.ArbitratorTiers[state.TierOne].Addrs) != 2 {
		t.Fatalf("expected both arbitrators in tier one")
	}

	if err := Stake(s, "arb1", 4_500); err != nil { // 1000+4500 = 5500 -> TierTwo
		t.Fatalf("unexpected error: %v", err)
	}
	a1 := s.Arbitrators["arb1"]
	if a1.Tier != state.TierTwo {
		t.Fatalf("expected arb1 promoted to TierTwo, got %d", a1.Tier)
	}
	if len(s.ArbitratorTiers[state.TierOne].Addrs) != 1 || s.ArbitratorTiers[state.TierOne].Addrs[0] != "arb2" {
		t.Fatalf("expected tier one pool to retain only arb2, got %v", s.ArbitratorTiers[state.TierOne].Addrs)
	}
	a2 := s.Arbitrators["arb2"]
	if a2.PoolIndex != 0 {
		t.Fatalf("expected arb2's pool index fixed up to 0 after swap-remove, got %d", a2.PoolIndex)
	}
	if len(s.ArbitratorTiers[state.TierTwo].Addrs) != 1 || s.ArbitratorTiers[state.TierTwo].Addrs[0] != "arb1" {
		t.Fatalf("expected tier two pool to contain arb1, got %v", s.ArbitratorTiers[state.TierTwo].Addrs)
	}
}

// TestUnstakeBelowMinimumRemoves verifies that an arbitrator whose stake
// drops below Tier1Min is pulled from its pool and marked inactive.
func TestUnstakeBelowMinimumRemoves(t *testing.T) {
	s := state.NewState()
	Register(s, "arb1", 1_200, 0)
	if err := Unstake(s, "arb1", 300); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := s.Arbitrators["arb1"]
	if a.Active {
		t.Fatalf("expected arbitrator marked inactive after dropping below minimum")
	}
	if len(s.ArbitratorTiers[state.TierOne].Addrs) != 0 {
		t.Fatalf("expected arbitrator removed from tier pool")
	}
}

// TestCanVoteCooldownAndWeeklyCap covers the 48h vote cooldown and the
// 5-disputes-per-week cap, including its weekly reset.
func TestCanVoteCooldownAndWeeklyCap(t *testing.T) {
	s := state.NewState()
	now := int64(0)
	Register(s, "arb1", 2_000, now)
	a := s.Arbitrators["arb1"]
	active := a.VotingPowerActiveAt

	if !CanVote(a, active) {
		t.Fatalf("expected fresh arbitrator to be eligible to vote once active")
	}

	RecordVote(a, active)
	if CanVote(a, active+1) {
		t.Fatalf("expected cooldown to block an immediate second vote")
	}
	if !CanVote(a, active+VoteCooldownSeconds) {
		t.Fatalf("expected vote allowed again once cooldown elapses")
	}

	// A 48h cooldown lets at most four votes into one 7-day week, so the
	// weekly cap is exercised on a fresh week with the cooldown cleared
	// before each check.
	a.WeekStart, a.WeekCounter = 0, 0
	t2 := active
	for i := 0; i < MaxDisputesPerWeek; i++ {
		t2++
		a.LastVoteBlockTime = 0
		if !CanVote(a, t2) {
			t.Fatalf("expected vote %d within weekly cap to be allowed", i+1)
		}
		RecordVote(a, t2)
	}
	a.LastVoteBlockTime = 0
	if CanVote(a, t2+1) {
		t.Fatalf("expected 6th vote within the same week to be blocked by the weekly cap")
	}
	// Once the week rolls over, the counter resets.
	if !CanVote(a, a.WeekStart+WeekSeconds) {
		t.Fatalf("expected vote allowed again once the week resets")
	}
}

// TestShouldExcludePlayersAndRecentOpponents covers panel exclusion: a
// candidate who is a player in the dispute, or recently opposed either
// player, may not serve.
func TestShouldExcludePlayersAndRecentOpponents(t *testing.T) {
	s := state.NewState()
	Register(s, "arb1", 2_000, 0)
	a := s.Arbitrators["arb1"]

	if !shouldExclude(a, "arb1", "someoneElse", 0) {
		t.Fatalf("expected exclusion when candidate is a dispute player")
	}
	if shouldExclude(a, "alice", "bob", 0) {
		t.Fatalf("expected no exclusion for an unrelated candidate")
	}

	RecordGame(s, "arb1", "alice", 1_000)
	if !shouldExclude(a, "alice", "bob", 1_000+RecentOpponentWindow-1) {
		t.Fatalf("expected exclusion within the recent-opponent window")
	}
	if shouldExclude(a, "alice", "bob", 1_000+RecentOpponentWindow+1) {
		t.Fatalf("expected no exclusion once the recent-opponent window has passed")
	}
}

// TestUpdateReputationRemovesBelowFloor covers the reputation-driven
// removal path: repeated minority votes push reputation below 50 and the
// arbitrator is pulled from its pool.
func TestUpdateReputationRemovesBelowFloor(t *testing.T) {
	s := state.NewState()
	Register(s, "arb1", 2_000, 0)
	a := s.Arbitrators["arb1"]
	for i := 0; i < ReputationInit-ReputationRemoveBelow+1; i++ {
		UpdateReputation(s, a, false)
	}
	if a.Active {
		t.Fatalf("expected arbitrator removed from active set once reputation drops below floor")
	}
	if a.Reputation >= ReputationRemoveBelow {
		t.Fatalf("expected reputation below floor, got %d", a.Reputation)
	}
	if len(s.ArbitratorTiers[state.TierOne].Addrs) != 0 {
		t.Fatalf("expected arbitrator removed from tier pool")
	}
}

// TestSelectForDisputeExcludesPlayers verifies the draw never returns a
// dispute's own players even when they are themselves registered
// arbitrators.
func TestSelectForDisputeExcludesPlayers(t *testing.T) {
	s := state.NewState()
	now := int64(0)
	Register(s, "alice", 2_000, now)
	for i := 0; i < 5; i++ {
		Register(s, addrFor(i), 2_000, now)
	}
	activeAt := s.Arbitrators["alice"].VotingPowerActiveAt

	picks, err := SelectForDispute(s, 1, "alice", "bob", 2, activeAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range picks {
		if p == "alice" || p == "bob" {
			t.Fatalf("selection must never include a dispute player, got %v", picks)
		}
	}
}

func addrFor(i int) string {
	return string(rune('a'+i)) + "-arbitrator"
}
