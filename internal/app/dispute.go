package app

import (
	"encoding/json"
	"fmt"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainchess/internal/codec"
	"onchainchess/internal/dispute"
	"onchainchess/internal/state"
)

func parseVote(s string) (state.Vote, error) {
	switch state.Vote(s) {
	case state.VoteLegit:
		return state.VoteLegit, nil
	case state.VoteCheat:
		return state.VoteCheat, nil
	case state.VoteAbstain:
		return state.VoteAbstain, nil
	default:
		return "", fmt.Errorf("unknown vote %q", s)
	}
}

// dispatchDispute handles every "dispute/*" tx type.
func (a *OCCApp) dispatchDispute(env codec.TxEnvelope, now int64) *abci.ExecTxResult {
	switch env.Type {
	case "dispute/register_game":
		// Recovery path: the Game Instance registers a dispute
		// automatically on a game's terminal transition; this tx exists
		// only to retry that registration if it was ever skipped (e.g.
		// the Dispute Core was disabled at the time).
		var msg codec.DisputeRegisterGameTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad dispute/register_game value")
		}
		if err := requireAccountAuth(a.st, env, msg.Caller); err != nil {
			return errResult(err.Error())
		}
		g, ok := a.st.Games[msg.GameID]
		if !ok {
			return errResult("game not found")
		}
		if g.Flags.DisputeRegistered {
			return errResult("dispute already registered for this game")
		}
		if err := dispute.RegisterGame(a.st, msg.GameID, msg.GameID, g.Stake, now); err != nil {
			return errResult(err.Error())
		}
		g.DisputeID = msg.GameID
		g.Flags.DisputeRegistered = true
		return okEvent("DisputeRegistered", map[string]string{"gameId": fmt.Sprintf("%d", msg.GameID)})

	case "dispute/challenge":
		var msg codec.DisputeChallengeTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad dispute/challenge value")
		}
		if err := requireAccountAuth(a.st, env, msg.Challenger); err != nil {
			return errResult(err.Error())
		}
		d, ok := a.st.Disputes[msg.DisputeID]
		if !ok {
			return errResult("dispute not found")
		}
		g, ok := a.st.Games[d.GameID]
		if !ok {
			return errResult("game not found")
		}
		otherPlayer := g.WhitePlayer
		if msg.Accused == g.WhitePlayer {
			otherPlayer = g.BlackPlayer
		} else if msg.Accused != g.BlackPlayer {
			return errResult("accused is not a player in this game")
		}
		if err := dispute.Challenge(a.st, a.disputeTracker, msg.DisputeID, msg.Challenger, msg.Accused, otherPlayer, now); err != nil {
			return errResult(err.Error())
		}
		return okEvent("DisputeChallenged", map[string]string{
			"disputeId":  fmt.Sprintf("%d", msg.DisputeID),
			"challenger": msg.Challenger,
			"accused":    msg.Accused,
		})

	case "dispute/commit_vote":
		var msg codec.DisputeCommitVoteTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad dispute/commit_vote value")
		}
		if err := requireAccountAuth(a.st, env, msg.Arbitrator); err != nil {
			return errResult(err.Error())
		}
		if err := dispute.CommitVote(a.st, msg.DisputeID, msg.Arbitrator, msg.CommitHash, now); err != nil {
			return errResult(err.Error())
		}
		return okEvent("VoteCommitted", map[string]string{
			"disputeId":  fmt.Sprintf("%d", msg.DisputeID),
			"arbitrator": msg.Arbitrator,
		})

	case "dispute/reveal_vote":
		var msg codec.DisputeRevealVoteTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad dispute/reveal_vote value")
		}
		if err := requireAccountAuth(a.st, env, msg.Arbitrator); err != nil {
			return errResult(err.Error())
		}
		vote, err := parseVote(msg.Vote)
		if err != nil {
			return errResult(err.Error())
		}
		if err := dispute.RevealVote(a.st, msg.DisputeID, msg.Arbitrator, vote, msg.Salt, now); err != nil {
			return errResult(err.Error())
		}
		return okEvent("VoteRevealed", map[string]string{
			"disputeId":  fmt.Sprintf("%d", msg.DisputeID),
			"arbitrator": msg.Arbitrator,
			"vote":       msg.Vote,
		})

	case "dispute/resolve":
		var msg codec.DisputeResolveTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad dispute/resolve value")
		}
		if err := requireAccountAuth(a.st, env, msg.Caller); err != nil {
			return errResult(err.Error())
		}
		outcome, err := dispute.Resolve(a.st, a.disputeTracker, msg.DisputeID, now)
		if err != nil {
			return errResult(err.Error())
		}
		return okEvent("DisputeResolved", map[string]string{
			"disputeId": fmt.Sprintf("%d", msg.DisputeID),
			"decision":  string(outcome.Decision),
			"escalated": fmt.Sprintf("%t", outcome.Escalated),
		})

	case "dispute/close_challenge_window":
		var msg codec.DisputeCloseChallengeWindowTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad dispute/close_challenge_window value")
		}
		if err := requireAccountAuth(a.st, env, msg.Caller); err != nil {
			return errResult(err.Error())
		}
		if err := dispute.CloseChallengeWindow(a.st, msg.DisputeID, now); err != nil {
			return errResult(err.Error())
		}
		return okEvent("ChallengeWindowClosed", map[string]string{"disputeId": fmt.Sprintf("%d", msg.DisputeID)})

	default:
		return errResult("unknown tx type: " + env.Type)
	}
}
