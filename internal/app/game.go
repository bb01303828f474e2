package app

import (
	"encoding/json"
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainchess/internal/arbitrator"
	"onchainchess/internal/bonding"
	"onchainchess/internal/chessengine"
	"onchainchess/internal/codec"
	"onchainchess/internal/dispute"
	"onchainchess/internal/game"
	"onchainchess/internal/state"
)

// bondingAdapter satisfies game.BondingLocker over the live state,
// letting the Game Instance lock/release bonds without importing the
// Bonding Core package directly.
type bondingAdapter struct{ st *state.State }

func (b bondingAdapter) LockGameBonds(gameID uint64, white, black string, stake uint64) error {
	return bonding.LockGameBonds(b.st, gameID, white, black, stake)
}

func (b bondingAdapter) ReleaseGameBond(gameID uint64, player string) error {
	return bonding.ReleaseGameBond(b.st, gameID, player)
}

// disputeAdapter satisfies game.DisputeRegistrar over the live state.
type disputeAdapter struct{ st *state.State }

func (d disputeAdapter) RegisterGame(disputeID, gameID, gameStake uint64, now int64) error {
	return dispute.RegisterGame(d.st, disputeID, gameID, gameStake, now)
}

func (d disputeAdapter) IsSettled(disputeID uint64) bool {
	return dispute.IsSettled(d.st, disputeID)
}

// noopRating and noopReward are the default stand-ins for the
// out-of-scope rating and play-to-earn services; both are best-effort
// collaborators that the Game Instance never blocks on.
type noopRating struct{}

func (noopRating) ReportGame(white, black string, result int) error { return nil }

type noopReward struct{}

func (noopReward) DistributeReward(player, opponent string, isWinner, isDraw, isCheckmate bool, moveCount int, wasResign, wasTimeout bool) error {
	return nil
}

// matchRecorderAdapter satisfies game.MatchRecorder over the live state,
// feeding the Arbitrator Registry's recent-opponent exclusion rule.
type matchRecorderAdapter struct{ st *state.State }

func (m matchRecorderAdapter) RecordGame(addr, opponent string, now int64) {
	arbitrator.RecordGame(m.st, addr, opponent, now)
}

func (a *OCCApp) collaborators() game.Collaborators {
	return game.Collaborators{
		Bonding: bondingAdapter{a.st},
		Dispute: disputeAdapter{a.st},
		Rating:  noopRating{},
		Reward:  noopReward{},
		Match:   matchRecorderAdapter{a.st},
	}
}

func parseMode(s string) (state.Mode, error) {
	switch state.Mode(s) {
	case state.ModeFriendly:
		return state.ModeFriendly, nil
	case state.ModeTournament:
		return state.ModeTournament, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

func parsePromotion(s string) (chessengine.PromotionKind, error) {
	switch s {
	case "":
		return chessengine.PromoteNone, nil
	case "queen":
		return chessengine.PromoteQueen, nil
	case "rook":
		return chessengine.PromoteRook, nil
	case "bishop":
		return chessengine.PromoteBishop, nil
	case "knight":
		return chessengine.PromoteKnight, nil
	default:
		return 0, fmt.Errorf("unknown promotion %q", s)
	}
}

// dispatchGame handles every "game/*" tx type.
func (a *OCCApp) dispatchGame(env codec.TxEnvelope, height, now int64) *abci.ExecTxResult {
	switch env.Type {
	case "game/create":
		var msg codec.GameCreateTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad game/create value")
		}
		if err := requireAccountAuth(a.st, env, msg.Creator); err != nil {
			return errResult(err.Error())
		}
		mode, err := parseMode(msg.Mode)
		if err != nil {
			return errResult(err.Error())
		}
		if msg.Stake == 0 {
			return errResult("stake must be nonzero")
		}
		id := a.st.NextGameID
		a.st.NextGameID++
		if _, err := game.Create(a.st, id, msg.Creator, mode, msg.Stake, msg.TimeoutBlocks); err != nil {
			return errResult(err.Error())
		}
		return okEvent("GameCreated", map[string]string{
			"gameId":  fmt.Sprintf("%d", id),
			"creator": msg.Creator,
			"mode":    string(mode),
			"stake":   fmt.Sprintf("%d", msg.Stake),
		})

	case "game/join":
		var msg codec.GameJoinTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad game/join value")
		}
		if err := requireAccountAuth(a.st, env, msg.Player); err != nil {
			return errResult(err.Error())
		}
		if err := game.Join(a.st, a.collaborators(), msg.GameID, msg.Player, height); err != nil {
			return errResult(err.Error())
		}
		return okEvent("GameJoined", map[string]string{
			"gameId": fmt.Sprintf("%d", msg.GameID),
			"player": msg.Player,
		})

	case "game/move":
		var msg codec.GameMoveTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad game/move value")
		}
		if err := requireAccountAuth(a.st, env, msg.Player); err != nil {
			return errResult(err.Error())
		}
		promo, err := parsePromotion(msg.Promotion)
		if err != nil {
			return errResult(err.Error())
		}
		mv := chessengine.Move{
			From:      chessengine.Square{Row: msg.FromRow, Col: msg.FromCol},
			To:        chessengine.Square{Row: msg.ToRow, Col: msg.ToCol},
			Promotion: promo,
		}
		if err := game.Move(a.st, a.collaborators(), msg.GameID, msg.Player, mv, height, now); err != nil {
			return errResult(err.Error())
		}
		g := a.st.Games[msg.GameID]
		return okEvent("MoveApplied", map[string]string{
			"gameId": fmt.Sprintf("%d", msg.GameID),
			"player": msg.Player,
			"state":  string(g.State),
		})

	case "game/resign":
		var msg codec.GameResignTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad game/resign value")
		}
		if err := requireAccountAuth(a.st, env, msg.Player); err != nil {
			return errResult(err.Error())
		}
		if err := game.Resign(a.st, a.collaborators(), msg.GameID, msg.Player, now); err != nil {
			return errResult(err.Error())
		}
		return okEvent("GameResigned", map[string]string{
			"gameId": fmt.Sprintf("%d", msg.GameID),
			"player": msg.Player,
		})

	case "game/offer_draw":
		var msg codec.GameOfferDrawTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad game/offer_draw value")
		}
		if err := requireAccountAuth(a.st, env, msg.Player); err != nil {
			return errResult(err.Error())
		}
		if err := game.OfferDraw(a.st, msg.GameID, msg.Player); err != nil {
			return errResult(err.Error())
		}
		return okEvent("DrawOffered", map[string]string{"gameId": fmt.Sprintf("%d", msg.GameID), "player": msg.Player})

	case "game/accept_draw":
		var msg codec.GameAcceptDrawTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad game/accept_draw value")
		}
		if err := requireAccountAuth(a.st, env, msg.Player); err != nil {
			return errResult(err.Error())
		}
		if err := game.AcceptDraw(a.st, a.collaborators(), msg.GameID, msg.Player, now); err != nil {
			return errResult(err.Error())
		}
		return okEvent("DrawAccepted", map[string]string{"gameId": fmt.Sprintf("%d", msg.GameID), "player": msg.Player})

	case "game/decline_draw":
		var msg codec.GameDeclineDrawTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad game/decline_draw value")
		}
		if err := requireAccountAuth(a.st, env, msg.Player); err != nil {
			return errResult(err.Error())
		}
		if err := game.DeclineDraw(a.st, msg.GameID, msg.Player); err != nil {
			return errResult(err.Error())
		}
		return okEvent("DrawDeclined", map[string]string{"gameId": fmt.Sprintf("%d", msg.GameID), "player": msg.Player})

	case "game/cancel_draw_offer":
		var msg codec.GameCancelDrawOfferTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad game/cancel_draw_offer value")
		}
		if err := requireAccountAuth(a.st, env, msg.Player); err != nil {
			return errResult(err.Error())
		}
		if err := game.CancelDrawOffer(a.st, msg.GameID, msg.Player); err != nil {
			return errResult(err.Error())
		}
		return okEvent("DrawOfferCancelled", map[string]string{"gameId": fmt.Sprintf("%d", msg.GameID), "player": msg.Player})

	case "game/claim_repetition":
		var msg codec.GameClaimRepetitionTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad game/claim_repetition value")
		}
		if err := requireAccountAuth(a.st, env, msg.Player); err != nil {
			return errResult(err.Error())
		}
		if err := game.ClaimRepetition(a.st, a.collaborators(), msg.GameID, msg.Player, now); err != nil {
			return errResult(err.Error())
		}
		return okEvent("RepetitionClaimed", map[string]string{"gameId": fmt.Sprintf("%d", msg.GameID), "player": msg.Player})

	case "game/claim_fifty_move":
		var msg codec.GameClaimFiftyMoveTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad game/claim_fifty_move value")
		}
		if err := requireAccountAuth(a.st, env, msg.Player); err != nil {
			return errResult(err.Error())
		}
		if err := game.ClaimFiftyMove(a.st, a.collaborators(), msg.GameID, msg.Player, now); err != nil {
			return errResult(err.Error())
		}
		return okEvent("FiftyMoveClaimed", map[string]string{"gameId": fmt.Sprintf("%d", msg.GameID), "player": msg.Player})

	case "game/claim_victory_by_timeout":
		var msg codec.GameClaimVictoryByTimeoutTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad game/claim_victory_by_timeout value")
		}
		if err := requireAccountAuth(a.st, env, msg.Caller); err != nil {
			return errResult(err.Error())
		}
		if err := game.ClaimVictoryByTimeout(a.st, a.collaborators(), msg.GameID, msg.Caller, height, now); err != nil {
			return errResult(err.Error())
		}
		return okEvent("VictoryByTimeoutClaimed", map[string]string{"gameId": fmt.Sprintf("%d", msg.GameID), "caller": msg.Caller})

	case "game/finalize_prizes":
		var msg codec.GameFinalizePrizesTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad game/finalize_prizes value")
		}
		if err := requireAccountAuth(a.st, env, msg.Caller); err != nil {
			return errResult(err.Error())
		}
		if err := game.FinalizePrizes(a.st, a.collaborators(), msg.GameID, now); err != nil {
			return errResult(err.Error())
		}
		return okEvent("PrizesFinalized", map[string]string{"gameId": fmt.Sprintf("%d", msg.GameID)})

	case "game/withdraw_prize":
		var msg codec.GameWithdrawPrizeTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad game/withdraw_prize value")
		}
		if err := requireAccountAuth(a.st, env, msg.Player); err != nil {
			return errResult(err.Error())
		}
		if err := game.WithdrawPrize(a.st, msg.GameID, msg.Player); err != nil {
			return errResult(err.Error())
		}
		return okEvent("PrizeWithdrawn", map[string]string{"gameId": fmt.Sprintf("%d", msg.GameID), "player": msg.Player})

	case "game/claim_prize":
		var msg codec.GameClaimPrizeTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad game/claim_prize value")
		}
		if err := requireAccountAuth(a.st, env, msg.Caller); err != nil {
			return errResult(err.Error())
		}
		if err := game.ClaimPrize(a.st, a.collaborators(), msg.GameID, msg.Caller, now); err != nil {
			return errResult(err.Error())
		}
		return okEvent("PrizeClaimed", map[string]string{"gameId": fmt.Sprintf("%d", msg.GameID), "caller": msg.Caller})

	default:
		return errResult("unknown tx type: " + env.Type)
	}
}
