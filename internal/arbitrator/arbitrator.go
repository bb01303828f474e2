// Package arbitrator implements the arbitrator registry: staking and
// tiering, time-locked voting power, swap-and-pop tier pools, reputation,
// and the pseudorandom selection procedure the Dispute Core drives for
// each dispute round. Grounded on the teacher's validator registry
// (staking.go) for stake/tier/active bookkeeping and its
// jailAndSlashValidator shape (slash.go) for the reputation-driven
// removal path.
package arbitrator

import (
	"errors"
	"fmt"

	"onchainchess/internal/chesscrypto"
	"onchainchess/internal/state"
)

// Tier thresholds, voting-power and reputation bounds, vote-rate limits,
// and the selection-attempt budget multiplier.
const (
	Tier1Min = 1_000
	Tier2Min = 5_000
	Tier3Min = 20_000

	VotingPowerDelaySeconds = 7 * 24 * 3600
	ReputationInit          = 100
	ReputationMax           = 200
	ReputationMin           = 0
	ReputationRemoveBelow   = 50

	VoteCooldownSeconds  = 48 * 3600
	MaxDisputesPerWeek   = 5
	WeekSeconds          = 7 * 24 * 3600
	RecentOpponentWindow = 30 * 24 * 3600

	TimeBonusCapPct  = 100
	YearSeconds      = 365 * 24 * 3600
	SelectionAttemptMultiplier = 2
)

var (
	ErrStakeBelowMinimum = errors.New("arbitrator: stake below Tier1 minimum")
	ErrNotRegistered     = errors.New("arbitrator: not registered")
	ErrAlreadyRegistered = errors.New("arbitrator: already registered")
)

// TierOf derives a stake's tier from the Tier1/Tier2/Tier3 thresholds.
func TierOf(stake uint64) state.Tier {
	switch {
	case stake >= Tier3Min:
		return state.TierThree
	case stake >= Tier2Min:
		return state.TierTwo
	case stake >= Tier1Min:
		return state.TierOne
	default:
		return state.TierNone
	}
}

// Register stakes a brand-new arbitrator. now is the current block
// header's Unix second.
func Register(s *state.State, addr string, stake uint64, now int64) error {
	if _, exists := s.Arbitrators[addr]; exists {
		return ErrAlreadyRegistered
	}
	if stake < Tier1Min {
		return ErrStakeBelowMinimum
	}
	tier := TierOf(stake)
	a := &state.Arbitrator{
		Addr:                addr,
		Tier:                tier,
		Stake:               stake,
		StakedAt:            now,
		VotingPowerActiveAt: now + VotingPowerDelaySeconds,
		Reputation:          ReputationInit,
		Active:              true,
	}
	pool := s.ArbitratorTiers[tier]
	a.PoolIndex = pool.Add(addr)
	s.Arbitrators[addr] = a
	return nil
}

// Stake increases an existing arbitrator's stake, re-evaluating (and
// moving, if needed) its tier. VotingPowerActiveAt is untouched: only the
// first stake starts the voting-power delay clock.
func Stake(s *state.State, addr string, amount uint64) error {
	a, ok := s.Arbitrators[addr]
	if !ok {
		return ErrNotRegistered
	}
	a.Stake += amount
	retierIfNeeded(s, a)
	return nil
}

// Unstake decreases an arbitrator's stake. If the result falls below
// Tier1's minimum they are removed from their tier pool and marked
// inactive; their record stays in s.Arbitrators.
func Unstake(s *state.State, addr string, amount uint64) error {
	a, ok := s.Arbitrators[addr]
	if !ok {
		return ErrNotRegistered
	}
	if amount > a.Stake {
		amount = a.Stake
	}
	a.Stake -= amount
	if a.Stake < Tier1Min {
		removeFromPool(s, a)
		a.Active = false
		return nil
	}
	retierIfNeeded(s, a)
	return nil
}

func retierIfNeeded(s *state.State, a *state.Arbitrator) {
	newTier := TierOf(a.Stake)
	if newTier == a.Tier {
		return
	}
	removeFromPool(s, a)
	a.Tier = newTier
	if a.Active {
		pool := s.ArbitratorTiers[newTier]
		a.PoolIndex = pool.Add(a.Addr)
	}
}

func removeFromPool(s *state.State, a *state.Arbitrator) {
	pool := s.ArbitratorTiers[a.Tier]
	if pool == nil {
		return
	}
	moved := pool.Remove(a.PoolIndex)
	if moved != "" {
		if other, ok := s.Arbitrators[moved]; ok {
			other.PoolIndex = a.PoolIndex
		}
	}
}

// VotingPower returns the arbitrator's selection weight at `now`: 0 if
// inactive, before VotingPowerActiveAt, or below the reputation floor;
// otherwise stake scaled up by a time-staked bonus, capped at
// TimeBonusCapPct once a full year has been staked.
func VotingPower(a *state.Arbitrator, now int64) uint64 {
	if !a.Active || now < a.VotingPowerActiveAt || a.Reputation < ReputationRemoveBelow {
		return 0
	}
	secondsStaked := now - a.StakedAt
	if secondsStaked < 0 {
		secondsStaked = 0
	}
	timeBonusPct := int64(100) * secondsStaked / YearSeconds
	if timeBonusPct > TimeBonusCapPct {
		timeBonusPct = TimeBonusCapPct
	}
	return a.Stake * uint64(100+timeBonusPct) / 100
}

// CanVote reports whether an arbitrator is eligible to vote right now:
// active, voting-power active, above the reputation floor, past the vote
// cooldown, and under the per-week dispute cap (reset lazily when a new
// week has begun).
func CanVote(a *state.Arbitrator, now int64) bool {
	if !a.Active || now < a.VotingPowerActiveAt || a.Reputation < ReputationRemoveBelow {
		return false
	}
	if a.LastVoteBlockTime != 0 && now-a.LastVoteBlockTime < VoteCooldownSeconds {
		return false
	}
	weekCounter := a.WeekCounter
	if a.WeekStart == 0 || now >= a.WeekStart+WeekSeconds {
		weekCounter = 0
	}
	return weekCounter < MaxDisputesPerWeek
}

// shouldExclude reports whether a candidate may not serve on a given
// dispute's panel: either player, or recently opposed either player.
func shouldExclude(a *state.Arbitrator, player1, player2 string, now int64) bool {
	if a.Addr == player1 || a.Addr == player2 {
		return true
	}
	if a.RecentOpponents == nil {
		return false
	}
	for _, p := range []string{player1, player2} {
		if last, ok := a.RecentOpponents[p]; ok && now-last < RecentOpponentWindow {
			return true
		}
	}
	return false
}

// RecordGame records that addr (an arbitrator who happens to also be a
// player, or simply a game participant tracked for exclusion purposes)
// played against opponent at `now`, feeding future shouldExclude
// checks. Called by the Game Instance when a game involving a registered
// arbitrator concludes.
func RecordGame(s *state.State, addr, opponent string, now int64) {
	a, ok := s.Arbitrators[addr]
	if !ok {
		return
	}
	if a.RecentOpponents == nil {
		a.RecentOpponents = map[string]int64{}
	}
	a.RecentOpponents[opponent] = now
}

// RecordVote resets the weekly counter if a new week has begun, then bumps
// lastVoteTime and the counter.
func RecordVote(a *state.Arbitrator, now int64) {
	if a.WeekStart == 0 || now >= a.WeekStart+WeekSeconds {
		a.WeekStart = now
		a.WeekCounter = 0
	}
	a.LastVoteBlockTime = now
	a.WeekCounter++
}

// UpdateReputation moves an arbitrator's reputation by +-1 clamped to
// [ReputationMin,ReputationMax]; falling below the removal floor removes
// them from their pool and marks them inactive.
func UpdateReputation(s *state.State, a *state.Arbitrator, votedWithMajority bool) {
	if votedWithMajority {
		a.Reputation++
	} else {
		a.Reputation--
	}
	if a.Reputation > ReputationMax {
		a.Reputation = ReputationMax
	}
	if a.Reputation < ReputationMin {
		a.Reputation = ReputationMin
	}
	if a.Reputation < ReputationRemoveBelow && a.Active {
		removeFromPool(s, a)
		a.Active = false
	}
}

// SelectForDispute draws up to 3k arbitrators for a dispute round: up to k
// independently from each of the three tiers. disputeID/blockTime/n feed
// the pseudorandom seed; the result may contain fewer than 3k addresses if
// a tier's pool is thin or heavily excluded.
func SelectForDispute(s *state.State, disputeID uint64, player1, player2 string, k int, blockTime int64) ([]string, error) {
	var selected []string
	for _, tier := range []state.Tier{state.TierOne, state.TierTwo, state.TierThree} {
		picks, err := selectFromTier(s, tier, disputeID, player1, player2, k, blockTime)
		if err != nil {
			return nil, err
		}
		selected = append(selected, picks...)
	}
	return selected, nil
}

func selectFromTier(s *state.State, tier state.Tier, disputeID uint64, player1, player2 string, k int, blockTime int64) ([]string, error) {
	pool := s.ArbitratorTiers[tier]
	n := len(pool.Addrs)
	if n == 0 || k <= 0 {
		return nil, nil
	}

	already := make(map[string]bool, k)
	var picks []string
	attemptBudget := 2 * n
	if attemptBudget < k {
		attemptBudget = k
	}

	for attempt := 0; attempt < attemptBudget && len(picks) < k; attempt++ {
		idx, err := selectionIndex(disputeID, blockTime, attempt, n)
		if err != nil {
			return nil, err
		}
		addr := pool.Addrs[idx]
		if already[addr] {
			continue
		}
		a, ok := s.Arbitrators[addr]
		if !ok {
			continue
		}
		if shouldExclude(a, player1, player2, blockTime) {
			continue
		}
		if !CanVote(a, blockTime) {
			continue
		}
		already[addr] = true
		picks = append(picks, addr)
	}
	return picks, nil
}

// selectionIndex derives a pseudorandom index in [0,n) from a
// domain-separated transcript over (disputeId, blockTimestamp, attempt, n).
func selectionIndex(disputeID uint64, blockTime int64, attempt, n int) (int, error) {
	t := chesscrypto.NewTranscript("occ/v1/arbitrator/select")
	if err := t.AppendMessage("disputeId", u64Bytes(disputeID)); err != nil {
		return 0, err
	}
	if err := t.AppendMessage("blockTime", u64Bytes(uint64(blockTime))); err != nil {
		return 0, err
	}
	if err := t.AppendMessage("attempt", u64Bytes(uint64(attempt))); err != nil {
		return 0, err
	}
	if err := t.AppendMessage("n", u64Bytes(uint64(n))); err != nil {
		return 0, err
	}
	draw, err := t.ChallengeUint64("index")
	if err != nil {
		return 0, err
	}
	return int(draw % uint64(n)), nil
}

func u64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// Describe renders a short diagnostic string for an arbitrator. Query
// responses do not use it; they return the arbitrator as JSON.
func Describe(a *state.Arbitrator) string {
	return fmt.Sprintf("%s tier=%d stake=%d reputation=%d active=%t", a.Addr, a.Tier, a.Stake, a.Reputation, a.Active)
}
