package bonding

import (
	"testing"

	"onchainchess/internal/state"
)

func newMarket() *state.BondingMarket {
	return state.NewBondingMarket()
}

// TestCircuitBreakerBoundary checks the breaker's boundary condition: a
// 50% price change is accepted, 51% trips the breaker.
func TestCircuitBreakerBoundary(t *testing.T) {
	m := newMarket()
	m.LastPriceMicroUSD = 1_000_000

	if err := UpdatePrice(m, 1_500_000, 1); err != nil {
		t.Fatalf("expected 50%% change to be accepted: %v", err)
	}
	if m.Paused {
		t.Fatalf("market should not be paused after an accepted update")
	}

	m.LastPriceMicroUSD = 1_000_000
	m.Paused = false
	if err := UpdatePrice(m, 1_510_000, 2); err == nil {
		t.Fatalf("expected 51%% change to trip the circuit breaker")
	}
	if !m.Paused {
		t.Fatalf("expected market to be paused after a >50%% change")
	}
}

// TestMinPriceBoundary covers invariant 16: price at exactly MIN_PRICE is
// accepted; below it, required-bond computation fails.
func TestMinPriceBoundary(t *testing.T) {
	m := newMarket()
	m.LastPriceMicroUSD = MinPriceMicroUSD
	if _, _, err := RequiredBond(1000, m); err != nil {
		t.Fatalf("expected MIN_PRICE to be accepted: %v", err)
	}

	m.LastPriceMicroUSD = MinPriceMicroUSD - 1
	if _, _, err := RequiredBond(1000, m); err != ErrPriceTooLow {
		t.Fatalf("expected ErrPriceTooLow below MIN_PRICE, got %v", err)
	}
}

// TestDepositWithdrawRoundTripsThroughEscrow covers invariant 4: a deposit
// moves currency into BondEscrowHolder rather than destroying it, and a
// withdraw moves it back out rather than minting it from nothing.
func TestDepositWithdrawRoundTripsThroughEscrow(t *testing.T) {
	s := state.NewState()
	addr := "alice"
	if err := s.Credit(addr, 1_000); err != nil {
		t.Fatalf("unexpected error crediting: %v", err)
	}
	if err := s.MintFungible(addr, 500); err != nil {
		t.Fatalf("unexpected error minting: %v", err)
	}

	if err := Deposit(s, addr, 300, 200); err != nil {
		t.Fatalf("unexpected error depositing: %v", err)
	}
	if got := s.Balance(addr); got != 700 {
		t.Fatalf("expected liquid native balance 700, got %d", got)
	}
	if got := s.FungibleBalance(addr); got != 300 {
		t.Fatalf("expected liquid fungible balance 300, got %d", got)
	}
	if got := s.Balance(BondEscrowHolder); got != 300 {
		t.Fatalf("expected bond escrow native balance 300, got %d", got)
	}
	if got := s.FungibleBalance(BondEscrowHolder); got != 200 {
		t.Fatalf("expected bond escrow fungible balance 200, got %d", got)
	}

	ub := s.GetOrCreateUserBond(addr)
	if ub.NativeFree != 300 || ub.FungibleFree != 200 {
		t.Fatalf("expected bond ledger to record 300 native / 200 fungible free, got %+v", ub)
	}

	if err := Withdraw(s, addr, 300, 200); err != nil {
		t.Fatalf("unexpected error withdrawing: %v", err)
	}
	if got := s.Balance(addr); got != 1_000 {
		t.Fatalf("expected liquid native balance restored to 1000, got %d", got)
	}
	if got := s.FungibleBalance(addr); got != 500 {
		t.Fatalf("expected liquid fungible balance restored to 500, got %d", got)
	}
	if got := s.Balance(BondEscrowHolder); got != 0 {
		t.Fatalf("expected bond escrow native balance drained to 0, got %d", got)
	}
	if got := s.FungibleBalance(BondEscrowHolder); got != 0 {
		t.Fatalf("expected bond escrow fungible balance drained to 0, got %d", got)
	}
}

// TestLockGameBondsIdempotent covers invariant 13: lockBond for the same
// (gameId, player) twice fails the second time.
func TestLockGameBondsIdempotent(t *testing.T) {
	s := state.NewState()
	white, black := "alice", "bob"
	native, fungible, err := RequiredBond(100, s.Bonding)
	if err != nil {
		t.Fatalf("unexpected error computing required bond: %v", err)
	}
	wb := s.GetOrCreateUserBond(white)
	wb.NativeFree, wb.FungibleFree = native, fungible
	bb := s.GetOrCreateUserBond(black)
	bb.NativeFree, bb.FungibleFree = native, fungible

	if err := LockGameBonds(s, 1, white, black, 100); err != nil {
		t.Fatalf("unexpected error locking bonds: %v", err)
	}
	if err := LockGameBonds(s, 1, white, black, 100); err != ErrAlreadyLocked {
		t.Fatalf("expected ErrAlreadyLocked on second lock, got %v", err)
	}
}

// TestReleaseXorSlash covers invariant 5: a GameBond is released XOR
// slashed XOR neither, never both.
func TestReleaseXorSlash(t *testing.T) {
	s := state.NewState()
	white, black := "alice", "bob"
	native, fungible, _ := RequiredBond(100, s.Bonding)
	if err := s.MintFungible(white, fungible); err != nil {
		t.Fatalf("unexpected error minting: %v", err)
	}
	if err := s.MintFungible(black, fungible); err != nil {
		t.Fatalf("unexpected error minting: %v", err)
	}
	wb := s.GetOrCreateUserBond(white)
	wb.NativeFree, wb.FungibleFree = native, fungible
	bb := s.GetOrCreateUserBond(black)
	bb.NativeFree, bb.FungibleFree = native, fungible
	if err := LockGameBonds(s, 1, white, black, 100); err != nil {
		t.Fatalf("unexpected error locking bonds: %v", err)
	}

	if err := ReleaseGameBond(s, 1, white); err != nil {
		t.Fatalf("unexpected error releasing: %v", err)
	}
	if err := ReleaseGameBond(s, 1, white); err != ErrAlreadyReleased {
		t.Fatalf("expected ErrAlreadyReleased, got %v", err)
	}
	if err := SlashGameBond(s, 1, white); err != ErrAlreadyReleased {
		t.Fatalf("expected slash on an already-released slot to fail, got %v", err)
	}

	beforeSupply := s.Bonding.TotalFungibleSupply
	if err := SlashGameBond(s, 1, black); err != nil {
		t.Fatalf("unexpected error slashing: %v", err)
	}
	if s.Bonding.TotalFungibleSupply != beforeSupply-fungible {
		t.Fatalf("expected total fungible supply to drop by the slashed amount")
	}
	if err := SlashGameBond(s, 1, black); err != ErrAlreadySlashed {
		t.Fatalf("expected ErrAlreadySlashed, got %v", err)
	}
}
