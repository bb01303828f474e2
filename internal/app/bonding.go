package app

import (
	"encoding/json"
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainchess/internal/bonding"
	"onchainchess/internal/codec"
)

// dispatchBonding handles every "bond/*" tx type. Admin gating on
// updatePrice/unpause is left to a registered account's signature, same
// as the teacher's own v0 role model (no separate admin key space).
func (a *OCCApp) dispatchBonding(env codec.TxEnvelope, height int64) *abci.ExecTxResult {
	switch env.Type {
	case "bond/deposit":
		var msg codec.BondDepositTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad bond/deposit value")
		}
		if err := requireAccountAuth(a.st, env, msg.Addr); err != nil {
			return errResult(err.Error())
		}
		if err := bonding.Deposit(a.st, msg.Addr, msg.NativeAmount, msg.FungibleAmount); err != nil {
			return errResult(err.Error())
		}
		return okEvent("BondDeposited", map[string]string{
			"addr":           msg.Addr,
			"nativeAmount":   fmt.Sprintf("%d", msg.NativeAmount),
			"fungibleAmount": fmt.Sprintf("%d", msg.FungibleAmount),
		})

	case "bond/withdraw":
		var msg codec.BondWithdrawTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad bond/withdraw value")
		}
		if err := requireAccountAuth(a.st, env, msg.Addr); err != nil {
			return errResult(err.Error())
		}
		if err := bonding.Withdraw(a.st, msg.Addr, msg.NativeAmount, msg.FungibleAmount); err != nil {
			return errResult(err.Error())
		}
		return okEvent("BondWithdrawn", map[string]string{
			"addr":           msg.Addr,
			"nativeAmount":   fmt.Sprintf("%d", msg.NativeAmount),
			"fungibleAmount": fmt.Sprintf("%d", msg.FungibleAmount),
		})

	case "bond/update_price":
		var msg codec.BondUpdatePriceTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad bond/update_price value")
		}
		if err := requireAccountAuth(a.st, env, msg.Caller); err != nil {
			return errResult(err.Error())
		}
		if err := bonding.UpdatePrice(a.st.Bonding, msg.NewPriceMicroUSD, height); err != nil {
			return errResult(err.Error())
		}
		return okEvent("PriceUpdated", map[string]string{
			"caller":   msg.Caller,
			"newPrice": fmt.Sprintf("%d", msg.NewPriceMicroUSD),
		})

	case "bond/unpause":
		var msg codec.BondUnpauseTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad bond/unpause value")
		}
		if err := requireAccountAuth(a.st, env, msg.Caller); err != nil {
			return errResult(err.Error())
		}
		bonding.Unpause(a.st.Bonding)
		return okEvent("CircuitBreakerUnpaused", map[string]string{"caller": msg.Caller})

	default:
		return errResult("unknown tx type: " + env.Type)
	}
}
