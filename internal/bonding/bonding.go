// Package bonding implements the per-player hybrid bond ledger, the
// fungible token's admin-maintained price with a circuit breaker, and the
// atomic lock/release/slash/withdraw operations the Game Instance and
// Dispute Core drive through it. It is grounded on the bond/stake
// accounting shape of the teacher's staking module, generalized from a
// single native-currency bond to a two-currency bond priced off a
// fungible-token exchange rate.
package bonding

import (
	"errors"
	"fmt"

	"onchainchess/internal/state"
)

// Pricing constants governing the native/fungible bond mix and the
// circuit breaker's admissible price range.
const (
	EthMultiplier      = 2
	FungibleMultiplier = 3
	Scale              = 1_000_000 // fixed-point scale for price division

	MinPriceMicroUSD         = 1_000 // MIN_PRICE
	MaxPriceChangePercent    = 50
	MinBondNativeValueUnits  = Scale / 100 // 0.01 native units, in the same base-unit scale as Stake
)

var (
	ErrPriceTooLow          = errors.New("bonding: price below MIN_PRICE")
	ErrCircuitBreakerPaused = errors.New("bonding: circuit breaker paused, awaiting unpause")
	ErrPriceChangeTooLarge  = errors.New("bonding: price change exceeds circuit breaker threshold")
	ErrAlreadyLocked        = errors.New("bonding: game bond already locked")
	ErrInsufficientBond     = errors.New("bonding: insufficient available bond")
	ErrNoSuchGameBond       = errors.New("bonding: no bond locked for this game")
	ErrNoSuchPlayerSlot     = errors.New("bonding: player is not part of this game bond")
	ErrAlreadyReleased      = errors.New("bonding: game bond already released")
	ErrAlreadySlashed       = errors.New("bonding: game bond already slashed")
	ErrInsufficientFree     = errors.New("bonding: insufficient free balance")
	ErrZeroAmount           = errors.New("bonding: amount must be nonzero")
)

// RequiredBond computes the native and fungible amounts a player must have
// free in order to lock a bond for a game staking `stake` native units.
// The fungible leg is priced off the market's last admin-set rate and
// floored at MinBondNativeValueUnits worth of fungible tokens, so a stale
// low price can't be used to lock a near-zero fungible bond.
func RequiredBond(stake uint64, market *state.BondingMarket) (nativeAmount, fungibleAmount uint64, err error) {
	if market.Paused {
		return 0, 0, ErrCircuitBreakerPaused
	}
	if market.LastPriceMicroUSD < MinPriceMicroUSD {
		return 0, 0, ErrPriceTooLow
	}
	nativeAmount = stake * EthMultiplier

	floor := MinBondNativeValueUnits * Scale / market.LastPriceMicroUSD
	required := stake * FungibleMultiplier * Scale / market.LastPriceMicroUSD
	fungibleAmount = required
	if floor > fungibleAmount {
		fungibleAmount = floor
	}
	return nativeAmount, fungibleAmount, nil
}

// UpdatePrice applies an admin price update with the circuit breaker. On a
// change exceeding MaxPriceChangePercent it pauses the market instead of
// returning success: once paused, no lock or other price-dependent
// operation succeeds until an explicit Unpause.
func UpdatePrice(market *state.BondingMarket, newPrice uint64, nowBlock int64) error {
	last := market.LastPriceMicroUSD
	if last != 0 {
		var diff uint64
		if newPrice > last {
			diff = newPrice - last
		} else {
			diff = last - newPrice
		}
		if diff*100 > last*MaxPriceChangePercent {
			market.Paused = true
			return ErrPriceChangeTooLarge
		}
	}
	market.LastPriceMicroUSD = newPrice
	market.LastUpdateBlock = nowBlock
	return nil
}

// Unpause clears the circuit breaker. It performs no caller check, and
// auth.go only verifies signatures, so any registered account may call it
// in this v0 port.
func Unpause(market *state.BondingMarket) {
	market.Paused = false
}

// BondEscrowHolder is the reserved account holding every player's deposited
// bond, native and fungible alike, mirroring the Game Instance's
// GameEscrowHolder and the Dispute Core's challengeEscrowHolder: a player's
// UserBond.NativeFree/FungibleFree is bookkeeping against funds actually
// held here, not a separate pool conjured on deposit.
const BondEscrowHolder = "occ/bond/escrow"

// Deposit moves funds from a player's liquid balance into their bond
// ledger's free side, escrowing the underlying currency in BondEscrowHolder.
func Deposit(s *state.State, addr string, nativeAmount, fungibleAmount uint64) error {
	if nativeAmount == 0 && fungibleAmount == 0 {
		return ErrZeroAmount
	}
	if nativeAmount > 0 {
		if err := s.Debit(addr, nativeAmount); err != nil {
			return fmt.Errorf("bonding: deposit native: %w", err)
		}
		if err := s.Credit(BondEscrowHolder, nativeAmount); err != nil {
			return fmt.Errorf("bonding: escrow native: %w", err)
		}
	}
	if fungibleAmount > 0 {
		if err := s.FungibleDebit(addr, fungibleAmount); err != nil {
			return fmt.Errorf("bonding: deposit fungible: %w", err)
		}
		if err := s.FungibleCredit(BondEscrowHolder, fungibleAmount); err != nil {
			return fmt.Errorf("bonding: escrow fungible: %w", err)
		}
	}
	ub := s.GetOrCreateUserBond(addr)
	ub.NativeFree += nativeAmount
	ub.FungibleFree += fungibleAmount
	return nil
}

// Withdraw moves funds from a player's bond ledger's free side back to
// their liquid balance, up to what is available (total - locked), debiting
// BondEscrowHolder for the underlying currency.
func Withdraw(s *state.State, addr string, nativeAmount, fungibleAmount uint64) error {
	if nativeAmount == 0 && fungibleAmount == 0 {
		return ErrZeroAmount
	}
	ub := s.GetOrCreateUserBond(addr)
	if nativeAmount > ub.NativeFree || fungibleAmount > ub.FungibleFree {
		return ErrInsufficientFree
	}
	ub.NativeFree -= nativeAmount
	ub.FungibleFree -= fungibleAmount
	if nativeAmount > 0 {
		if err := s.Debit(BondEscrowHolder, nativeAmount); err != nil {
			return fmt.Errorf("bonding: unescrow native: %w", err)
		}
		if err := s.Credit(addr, nativeAmount); err != nil {
			return err
		}
	}
	if fungibleAmount > 0 {
		if err := s.FungibleDebit(BondEscrowHolder, fungibleAmount); err != nil {
			return fmt.Errorf("bonding: unescrow fungible: %w", err)
		}
		if err := s.FungibleCredit(addr, fungibleAmount); err != nil {
			return err
		}
	}
	return nil
}

// LockGameBonds locks both players' required bonds for one game in a
// single atomic operation: both bonds lock or neither does, so a game
// never starts with only one side covered. It is idempotent per gameId: a
// second call fails with ErrAlreadyLocked.
func LockGameBonds(s *state.State, gameID uint64, white, black string, stake uint64) error {
	if _, exists := s.GameBonds[gameID]; exists {
		return ErrAlreadyLocked
	}
	nativeAmount, fungibleAmount, err := RequiredBond(stake, s.Bonding)
	if err != nil {
		return err
	}

	whiteBond := s.GetOrCreateUserBond(white)
	blackBond := s.GetOrCreateUserBond(black)
	if whiteBond.NativeFree < nativeAmount || whiteBond.FungibleFree < fungibleAmount {
		return fmt.Errorf("%w: white %s", ErrInsufficientBond, white)
	}
	if blackBond.NativeFree < nativeAmount || blackBond.FungibleFree < fungibleAmount {
		return fmt.Errorf("%w: black %s", ErrInsufficientBond, black)
	}

	whiteBond.NativeFree -= nativeAmount
	whiteBond.NativeLocked += nativeAmount
	whiteBond.FungibleFree -= fungibleAmount
	whiteBond.FungibleLocked += fungibleAmount

	blackBond.NativeFree -= nativeAmount
	blackBond.NativeLocked += nativeAmount
	blackBond.FungibleFree -= fungibleAmount
	blackBond.FungibleLocked += fungibleAmount

	s.GameBonds[gameID] = &state.GameBond{
		GameID: gameID,
		White:  state.PlayerBond{Addr: white, NativeAmount: nativeAmount, FungibleAmount: fungibleAmount},
		Black:  state.PlayerBond{Addr: black, NativeAmount: nativeAmount, FungibleAmount: fungibleAmount},
	}
	return nil
}

func playerSlot(gb *state.GameBond, player string) (*state.PlayerBond, error) {
	switch player {
	case gb.White.Addr:
		return &gb.White, nil
	case gb.Black.Addr:
		return &gb.Black, nil
	default:
		return nil, ErrNoSuchPlayerSlot
	}
}

// ReleaseGameBond returns one player's locked bond for a game to their
// free balance. Callable only by the Game Instance role (enforced by the
// caller).
func ReleaseGameBond(s *state.State, gameID uint64, player string) error {
	gb, ok := s.GameBonds[gameID]
	if !ok {
		return ErrNoSuchGameBond
	}
	slot, err := playerSlot(gb, player)
	if err != nil {
		return err
	}
	if slot.Released {
		return ErrAlreadyReleased
	}
	if slot.Slashed {
		return ErrAlreadySlashed
	}
	ub := s.GetOrCreateUserBond(player)
	ub.NativeLocked -= slot.NativeAmount
	ub.NativeFree += slot.NativeAmount
	ub.FungibleLocked -= slot.FungibleAmount
	ub.FungibleFree += slot.FungibleAmount
	slot.Released = true
	return nil
}

// SlashGameBond destroys one player's locked bond for a game on a Cheat
// verdict. The native portion is tracked as held by the Bonding Core for
// later admin transfer to a treasury; the fungible portion is burned,
// reducing the tracked global supply. Callable only by the Dispute role.
func SlashGameBond(s *state.State, gameID uint64, player string) error {
	gb, ok := s.GameBonds[gameID]
	if !ok {
		return ErrNoSuchGameBond
	}
	slot, err := playerSlot(gb, player)
	if err != nil {
		return err
	}
	if slot.Released {
		return ErrAlreadyReleased
	}
	if slot.Slashed {
		return ErrAlreadySlashed
	}
	ub := s.GetOrCreateUserBond(player)
	ub.NativeLocked -= slot.NativeAmount
	ub.FungibleLocked -= slot.FungibleAmount

	s.Bonding.TotalNativeSlashed += slot.NativeAmount
	s.Bonding.TotalFungibleSupply -= slot.FungibleAmount
	s.Bonding.TotalFungibleBurned += slot.FungibleAmount

	slot.Slashed = true
	return nil
}
