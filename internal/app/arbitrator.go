package app

import (
	"encoding/json"
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainchess/internal/arbitrator"
	"onchainchess/internal/codec"
)

// dispatchArbitrator handles every "arbitrator/*" tx type.
func (a *OCCApp) dispatchArbitrator(env codec.TxEnvelope, now int64) *abci.ExecTxResult {
	switch env.Type {
	case "arbitrator/register":
		var msg codec.ArbitratorRegisterTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad arbitrator/register value")
		}
		if err := requireAccountAuth(a.st, env, msg.Addr); err != nil {
			return errResult(err.Error())
		}
		if err := arbitrator.Register(a.st, msg.Addr, msg.Stake, now); err != nil {
			return errResult(err.Error())
		}
		return okEvent("ArbitratorRegistered", map[string]string{
			"addr":  msg.Addr,
			"stake": fmt.Sprintf("%d", msg.Stake),
		})

	case "arbitrator/stake":
		var msg codec.ArbitratorStakeTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad arbitrator/stake value")
		}
		if err := requireAccountAuth(a.st, env, msg.Addr); err != nil {
			return errResult(err.Error())
		}
		if err := arbitrator.Stake(a.st, msg.Addr, msg.Amount); err != nil {
			return errResult(err.Error())
		}
		return okEvent("ArbitratorStaked", map[string]string{
			"addr":   msg.Addr,
			"amount": fmt.Sprintf("%d", msg.Amount),
		})

	case "arbitrator/unstake":
		var msg codec.ArbitratorUnstakeTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad arbitrator/unstake value")
		}
		if err := requireAccountAuth(a.st, env, msg.Addr); err != nil {
			return errResult(err.Error())
		}
		if err := arbitrator.Unstake(a.st, msg.Addr, msg.Amount); err != nil {
			return errResult(err.Error())
		}
		return okEvent("ArbitratorUnstaked", map[string]string{
			"addr":   msg.Addr,
			"amount": fmt.Sprintf("%d", msg.Amount),
		})

	default:
		return errResult("unknown tx type: " + env.Type)
	}
}
