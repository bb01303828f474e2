// Package dispute implements the per-game challenge window,
// commit-reveal arbitration, quorum/supermajority resolution, and
// multi-round escalation that decides whether a completed game's result
// stands or a player is sanctioned for cheating. Grounded on the
// teacher's dealer commit-reveal machinery (dealer.go) for the
// hash-then-later-open shape, generalized from per-card secrets to a
// single vote-and-salt commitment per arbitrator.
package dispute

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"onchainchess/internal/arbitrator"
	"onchainchess/internal/bonding"
	"onchainchess/internal/state"
)

// Dispute timing windows and vote thresholds.
const (
	ChallengeWindowSeconds = 48 * 3600
	CommitPeriodSeconds    = 24 * 3600
	RevealPeriodSeconds    = 24 * 3600

	Quorum              = 10
	SupermajorityNum    = 66
	SupermajorityDen    = 100
	ChallengeDeposit    = 50
	MaxActiveChallenges = 3
	MaxEscalationLevel  = 3
	AbsoluteLifetimeSeconds = 30 * 24 * 3600

	InitialArbitratorsPerTier = 5
)

var (
	ErrNotPending           = errors.New("dispute: not in pending state")
	ErrNotChallenged        = errors.New("dispute: not in challenged state")
	ErrNotRevealing         = errors.New("dispute: not in revealing state")
	ErrWindowClosed         = errors.New("dispute: challenge window closed")
	ErrWindowStillOpen      = errors.New("dispute: challenge window still open")
	ErrTooManyActive        = errors.New("dispute: caller has too many active challenges")
	ErrNotSelected          = errors.New("dispute: caller is not a selected arbitrator")
	ErrAlreadyCommitted     = errors.New("dispute: arbitrator already committed")
	ErrCommitPhaseOver      = errors.New("dispute: commit phase over")
	ErrNoCommit             = errors.New("dispute: no commit on file")
	ErrAlreadyRevealed      = errors.New("dispute: arbitrator already revealed")
	ErrRevealPhaseOver      = errors.New("dispute: reveal phase over")
	ErrHashMismatch         = errors.New("dispute: revealed vote/salt does not match commit hash")
	ErrNotYetResolvable     = errors.New("dispute: reveal deadline not yet passed")
	ErrNoSuchDispute        = errors.New("dispute: no such dispute")
	ErrGameAlreadyRegistered = errors.New("dispute: game already has a dispute")
)

// Tracker carries the per-caller active-challenge counters the Dispute
// Core exclusively owns, alongside *state.State's Disputes map. It is
// kept out of state.State because it is internal bookkeeping, not part
// of the wire-visible data model; callers that need it to survive a
// restart should persist it alongside state.State under the same home
// directory.
type Tracker struct {
	ActiveChallenges map[string]int
}

func NewTracker() *Tracker {
	return &Tracker{ActiveChallenges: map[string]int{}}
}

// CommitHash computes H(vote || salt || arbitratorAddress) for the
// commit-reveal voting scheme: an arbitrator commits this hash, then later
// reveals the vote and salt it was built from.
func CommitHash(vote state.Vote, salt []byte, addr string) [32]byte {
	var buf bytes.Buffer
	buf.WriteString(string(vote))
	buf.Write(salt)
	buf.WriteString(addr)
	return sha256.Sum256(buf.Bytes())
}

// RegisterGame opens a Pending dispute for a just-concluded game, invoked
// by the Game Instance exactly once on terminal state. OtherPlayer is
// left empty here; Challenge records it once the accused is known.
func RegisterGame(s *state.State, disputeID, gameID uint64, gameStake uint64, now int64) error {
	if _, exists := s.Disputes[disputeID]; exists {
		return ErrGameAlreadyRegistered
	}
	s.Disputes[disputeID] = &state.Dispute{
		ID:           disputeID,
		GameID:       gameID,
		GameStake:    gameStake,
		State:        state.DisputePending,
		RegisteredAt: now,
		Commits:      map[string]*state.VoteCommit{},
	}
	// otherPlayer cannot be fixed yet since the accused player is not
	// known until challenge(); internal/app's challenge handler passes the
	// game's non-accused player as Challenge's otherPlayer argument.
	return nil
}

// Challenge opens a challenge against accused for disputeID. Only one of
// the game's two players may be named accused; the caller supplies
// otherPlayer explicitly since the dispute doesn't know the game's player
// pair until this point.
func Challenge(s *state.State, t *Tracker, disputeID uint64, challenger, accused, otherPlayer string, now int64) error {
	d, ok := s.Disputes[disputeID]
	if !ok {
		return ErrNoSuchDispute
	}
	if d.State != state.DisputePending {
		return ErrNotPending
	}
	if now > d.RegisteredAt+ChallengeWindowSeconds {
		return ErrWindowClosed
	}
	if t.ActiveChallenges[challenger] >= MaxActiveChallenges {
		return ErrTooManyActive
	}
	if err := s.FungibleDebit(challenger, ChallengeDeposit); err != nil {
		return fmt.Errorf("dispute: challenge deposit: %w", err)
	}
	if err := s.FungibleCredit(challengeEscrowHolder, ChallengeDeposit); err != nil {
		return fmt.Errorf("dispute: challenge deposit escrow: %w", err)
	}

	picks, err := arbitrator.SelectForDispute(s, disputeID, challenger, accused, InitialArbitratorsPerTier, now)
	if err != nil {
		s.FungibleCredit(challenger, ChallengeDeposit)
		return err
	}

	d.Challenger = challenger
	d.Accused = accused
	d.OtherPlayer = otherPlayer
	d.State = state.DisputeChallenged
	d.ChallengedAt = now
	d.CommitDeadline = now + CommitPeriodSeconds
	d.RevealDeadline = d.CommitDeadline + RevealPeriodSeconds
	d.SelectedArbitrators = picks
	d.ChallengeDepositAmount = ChallengeDeposit
	d.LegitVotes, d.CheatVotes, d.AbstainVotes = 0, 0, 0

	t.ActiveChallenges[challenger]++
	return nil
}

func isSelected(d *state.Dispute, addr string) bool {
	for _, a := range d.SelectedArbitrators {
		if a == addr {
			return true
		}
	}
	return false
}

// CommitVote records a selected arbitrator's sealed vote.
func CommitVote(s *state.State, disputeID uint64, arb string, commitHash []byte, now int64) error {
	d, ok := s.Disputes[disputeID]
	if !ok {
		return ErrNoSuchDispute
	}
	maybeAutoReveal(d, now)
	if d.State != state.DisputeChallenged {
		return ErrNotChallenged
	}
	if !isSelected(d, arb) {
		return ErrNotSelected
	}
	if now > d.CommitDeadline {
		return ErrCommitPhaseOver
	}
	if _, exists := d.Commits[arb]; exists {
		return ErrAlreadyCommitted
	}
	d.Commits[arb] = &state.VoteCommit{Arbitrator: arb, CommitHash: append([]byte(nil), commitHash...)}
	return nil
}

// RevealVote opens a prior commit. It auto-transitions Challenged to
// Revealing once the commit deadline has passed.
func RevealVote(s *state.State, disputeID uint64, arb string, vote state.Vote, salt []byte, now int64) error {
	d, ok := s.Disputes[disputeID]
	if !ok {
		return ErrNoSuchDispute
	}
	maybeAutoReveal(d, now)
	if d.State != state.DisputeRevealing {
		return ErrNotRevealing
	}
	if now > d.RevealDeadline {
		return ErrRevealPhaseOver
	}
	vc, ok := d.Commits[arb]
	if !ok {
		return ErrNoCommit
	}
	if vc.Revealed {
		return ErrAlreadyRevealed
	}
	got := CommitHash(vote, salt, arb)
	if !bytes.Equal(got[:], vc.CommitHash) {
		return ErrHashMismatch
	}
	vc.Revealed = true
	vc.Vote = vote
	vc.Salt = append([]byte(nil), salt...)

	switch vote {
	case state.VoteLegit:
		d.LegitVotes++
	case state.VoteCheat:
		d.CheatVotes++
	case state.VoteAbstain:
		d.AbstainVotes++
	}

	if a, ok := s.Arbitrators[arb]; ok {
		arbitrator.RecordVote(a, now)
	}
	return nil
}

// maybeAutoReveal flips a dispute whose commit deadline has elapsed from
// Challenged into Revealing.
func maybeAutoReveal(d *state.Dispute, now int64) {
	if d.State == state.DisputeChallenged && now > d.CommitDeadline {
		d.State = state.DisputeRevealing
	}
}

// ResolveOutcome is the resolved disposition returned by Resolve. On a
// Cheat decision Resolve has already slashed the accused's bond.
type ResolveOutcome struct {
	Decision  state.Decision
	Escalated bool
}

// Resolve applies the dispute resolution procedure: the 30-day absolute
// cap, quorum, supermajority, and escalation.
func Resolve(s *state.State, t *Tracker, disputeID uint64, now int64) (ResolveOutcome, error) {
	d, ok := s.Disputes[disputeID]
	if !ok {
		return ResolveOutcome{}, ErrNoSuchDispute
	}

	if now > d.RegisteredAt+AbsoluteLifetimeSeconds {
		return forceResolveNone(s, t, d)
	}

	maybeAutoReveal(d, now)
	if d.State != state.DisputeRevealing && d.State != state.DisputeChallenged {
		return ResolveOutcome{}, ErrNotRevealing
	}
	if now <= d.RevealDeadline {
		return ResolveOutcome{}, ErrNotYetResolvable
	}

	total := d.LegitVotes + d.CheatVotes
	if total < Quorum {
		return escalate(s, t, d, now)
	}

	if uint64(d.CheatVotes)*SupermajorityDen >= uint64(total)*SupermajorityNum {
		d.FinalDecision = state.DecisionCheat
		finalizeRound(s, t, d, now)
		return ResolveOutcome{Decision: state.DecisionCheat}, nil
	}
	if uint64(d.LegitVotes)*SupermajorityDen >= uint64(total)*SupermajorityNum {
		d.FinalDecision = state.DecisionLegit
		finalizeRound(s, t, d, now)
		return ResolveOutcome{Decision: state.DecisionLegit}, nil
	}
	return escalate(s, t, d, now)
}

func forceResolveNone(s *state.State, t *Tracker, d *state.Dispute) (ResolveOutcome, error) {
	d.State = state.DisputeResolved
	d.FinalDecision = state.DecisionNone
	refundDeposit(s, t, d)
	return ResolveOutcome{Decision: state.DecisionNone}, nil
}

// refundDeposit returns a dispute's escrowed challenge deposit to the
// challenger in full and frees their active-challenge slot. Used by
// every no-decision terminal path (absolute-lifetime cap, escalation
// cap).
func refundDeposit(s *state.State, t *Tracker, d *state.Dispute) {
	if d.Challenger == "" || d.ChallengeDepositAmount == 0 {
		return
	}
	if err := s.FungibleDebit(challengeEscrowHolder, d.ChallengeDepositAmount); err == nil {
		s.FungibleCredit(d.Challenger, d.ChallengeDepositAmount)
	}
	if t.ActiveChallenges[d.Challenger] > 0 {
		t.ActiveChallenges[d.Challenger]--
	}
}

// escalate bumps the escalation level, forcing a final no-decision
// resolution at the cap, or else drawing a larger panel and resetting
// tallies/deadlines for another round.
func escalate(s *state.State, t *Tracker, d *state.Dispute, now int64) (ResolveOutcome, error) {
	d.EscalationLevel++
	if d.EscalationLevel >= MaxEscalationLevel {
		d.State = state.DisputeResolved
		d.FinalDecision = state.DecisionNone
		refundDeposit(s, t, d)
		return ResolveOutcome{Decision: state.DecisionNone}, nil
	}

	k := InitialArbitratorsPerTier + 2*d.EscalationLevel
	picks, err := arbitrator.SelectForDispute(s, d.ID, d.Challenger, d.Accused, k, now)
	if err != nil {
		return ResolveOutcome{}, err
	}
	d.SelectedArbitrators = picks
	d.Commits = map[string]*state.VoteCommit{}
	d.LegitVotes, d.CheatVotes, d.AbstainVotes = 0, 0, 0
	d.CommitDeadline = now + CommitPeriodSeconds
	d.RevealDeadline = d.CommitDeadline + RevealPeriodSeconds
	d.State = state.DisputeChallenged
	return ResolveOutcome{Escalated: true}, nil
}

// finalizeRound pays out a non-escalation terminal resolution, updates
// every selected arbitrator's reputation, and clears the caller's active
// challenge slot.
func finalizeRound(s *state.State, t *Tracker, d *state.Dispute, now int64) {
	d.State = state.DisputeResolved

	switch d.FinalDecision {
	case state.DecisionCheat:
		if err := bonding.SlashGameBond(s, d.GameID, d.Accused); err == nil {
			payout := d.ChallengeDepositAmount * 3 / 2
			bal := s.FungibleBalance(challengeEscrowHolder)
			if payout > bal {
				payout = bal
			}
			if err := s.FungibleDebit(challengeEscrowHolder, payout); err == nil {
				s.FungibleCredit(d.Challenger, payout)
			}
		}
	case state.DecisionLegit:
		half := d.ChallengeDepositAmount / 2
		remainder := d.ChallengeDepositAmount - half
		if err := s.FungibleDebit(challengeEscrowHolder, half); err == nil {
			s.FungibleCredit(d.Accused, half)
		}
		// Burn the remainder: it stays debited from escrow and the total
		// tracked supply shrinks to match, rather than being re-credited
		// anywhere.
		if err := s.FungibleDebit(challengeEscrowHolder, remainder); err == nil {
			s.Bonding.TotalFungibleSupply -= remainder
			s.Bonding.TotalFungibleBurned += remainder
		}
	}

	for _, addr := range d.SelectedArbitrators {
		a, ok := s.Arbitrators[addr]
		if !ok {
			continue
		}
		vc, revealed := d.Commits[addr]
		votedWithMajority := revealed && vc.Revealed && voteMatchesDecision(vc.Vote, d.FinalDecision)
		arbitrator.UpdateReputation(s, a, votedWithMajority)
	}

	if d.Challenger != "" && t.ActiveChallenges[d.Challenger] > 0 {
		t.ActiveChallenges[d.Challenger]--
	}
}

func voteMatchesDecision(v state.Vote, decision state.Decision) bool {
	switch decision {
	case state.DecisionCheat:
		return v == state.VoteCheat
	case state.DecisionLegit:
		return v == state.VoteLegit
	default:
		return false
	}
}

// challengeEscrowHolder is the pseudo-account the Dispute Core debits
// challenge deposits from and pays Cheat-verdict rewards out of. Using a
// reserved address keeps the fungible ledger's total-supply invariant
// honest: a deposit is a transfer (debit challenger, credit escrow), not
// a burn, until resolution either redistributes or burns it.
const challengeEscrowHolder = "occ/dispute/escrow"

// CloseChallengeWindow force-resolves a Pending dispute whose challenge
// window has expired unchallenged, transitioning it straight to Resolved
// with no decision.
func CloseChallengeWindow(s *state.State, disputeID uint64, now int64) error {
	d, ok := s.Disputes[disputeID]
	if !ok {
		return ErrNoSuchDispute
	}
	if d.State != state.DisputePending {
		return ErrNotPending
	}
	if now <= d.RegisteredAt+ChallengeWindowSeconds {
		return ErrWindowStillOpen
	}
	d.State = state.DisputeResolved
	d.FinalDecision = state.DecisionNone
	return nil
}

// IsSettled reports whether a dispute has reached a terminal state that
// unblocks the Game Instance's finalizePrizes.
func IsSettled(s *state.State, disputeID uint64) bool {
	d, ok := s.Disputes[disputeID]
	if !ok {
		return true
	}
	return d.State == state.DisputeResolved
}
