package app

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	abci "github.com/cometbft/cometbft/abci/types"

	"onchainchess/internal/codec"
	"onchainchess/internal/dispute"
	"onchainchess/internal/state"
)

const (
	AppVersion uint64 = 1
)

// OCCApp is the ABCI application driving the chain: one mutex-serialized
// state machine covering accounts, games, bonds, the arbitrator registry,
// and disputes.
type OCCApp struct {
	*abci.BaseApplication

	home string

	mu       sync.Mutex
	st       *state.State
	lastHash []byte

	// disputeTracker holds process-local, non-consensus-critical
	// bookkeeping (active-challenge counters) for the Dispute Core; New
	// rebuilds it from the disputes still Challenged or Revealing in state
	// rather than persisting it.
	disputeTracker *dispute.Tracker
}

func New(home string) (*OCCApp, error) {
	appHome := filepath.Join(home, "app")
	st, err := state.Load(appHome)
	if err != nil {
		return nil, err
	}
	tracker := dispute.NewTracker()
	for _, d := range st.Disputes {
		if d.State == state.DisputeChallenged || d.State == state.DisputeRevealing {
			tracker.ActiveChallenges[d.Challenger]++
		}
	}
	a := &OCCApp{
		BaseApplication: abci.NewBaseApplication(),
		home:            home,
		st:              st,
		lastHash:        st.AppHash(),
		disputeTracker:  tracker,
	}
	return a, nil
}

func (a *OCCApp) Info(_ context.Context, _ *abci.InfoRequest) (*abci.InfoResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return &abci.InfoResponse{
		Data:             "occ (v0)",
		Version:          "v0",
		AppVersion:       AppVersion,
		LastBlockHeight:  a.st.Height,
		LastBlockAppHash: a.lastHash,
	}, nil
}

func (a *OCCApp) CheckTx(_ context.Context, req *abci.CheckTxRequest) (*abci.CheckTxResponse, error) {
	_, err := codec.DecodeTxEnvelope(req.Tx)
	if err != nil {
		return &abci.CheckTxResponse{Code: 1, Log: err.Error()}, nil
	}
	// v0: only structural validation; signatures/auth are deferred to delivery.
	return &abci.CheckTxResponse{Code: 0}, nil
}

func (a *OCCApp) InitChain(_ context.Context, _ *abci.InitChainRequest) (*abci.InitChainResponse, error) {
	// v0: no special genesis handling.
	return &abci.InitChainResponse{}, nil
}

func (a *OCCApp) FinalizeBlock(_ context.Context, req *abci.FinalizeBlockRequest) (*abci.FinalizeBlockResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.st.Height = req.Height

	txResults := make([]*abci.ExecTxResult, 0, len(req.Txs))
	for _, txBytes := range req.Txs {
		res := a.deliverTx(txBytes, req.Height, req.Time.Unix())
		txResults = append(txResults, res)
	}

	a.lastHash = a.st.AppHash()

	return &abci.FinalizeBlockResponse{
		TxResults: txResults,
		AppHash:   a.lastHash,
	}, nil
}

func (a *OCCApp) Commit(_ context.Context, _ *abci.CommitRequest) (*abci.CommitResponse, error) {
	// Persist after each block for devnet durability.
	appHome := filepath.Join(a.home, "app")
	if err := a.st.Save(appHome); err != nil {
		// CometBFT expects Commit to not crash; return error so node halts loudly.
		return nil, err
	}
	return &abci.CommitResponse{}, nil
}

func (a *OCCApp) Query(_ context.Context, req *abci.QueryRequest) (*abci.QueryResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Paths:
	// - /account/<addr>
	// - /games
	// - /game/<id>
	// - /bond/<addr>
	// - /arbitrator/<addr>
	// - /dispute/<id>
	path := strings.TrimSpace(req.Path)
	switch {
	case path == "/games":
		ids := make([]uint64, 0, len(a.st.Games))
		for id := range a.st.Games {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		b, _ := json.Marshal(ids)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case strings.HasPrefix(path, "/account/"):
		addr := strings.TrimPrefix(path, "/account/")
		bal := a.st.Balance(addr)
		fbal := a.st.FungibleBalance(addr)
		b, _ := json.Marshal(map[string]any{"addr": addr, "balance": bal, "fungibleBalance": fbal})
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case strings.HasPrefix(path, "/game/"):
		raw := strings.TrimPrefix(path, "/game/")
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return &abci.QueryResponse{Code: 1, Log: "invalid game id", Height: a.st.Height}, nil
		}
		g, ok := a.st.Games[id]
		if !ok {
			return &abci.QueryResponse{Code: 1, Log: "game not found", Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(g)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case strings.HasPrefix(path, "/bond/"):
		addr := strings.TrimPrefix(path, "/bond/")
		ub := a.st.GetOrCreateUserBond(addr)
		b, _ := json.Marshal(ub)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case strings.HasPrefix(path, "/arbitrator/"):
		addr := strings.TrimPrefix(path, "/arbitrator/")
		arb, ok := a.st.Arbitrators[addr]
		if !ok {
			return &abci.QueryResponse{Code: 1, Log: "arbitrator not found", Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(arb)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	case strings.HasPrefix(path, "/dispute/"):
		raw := strings.TrimPrefix(path, "/dispute/")
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return &abci.QueryResponse{Code: 1, Log: "invalid dispute id", Height: a.st.Height}, nil
		}
		d, ok := a.st.Disputes[id]
		if !ok {
			return &abci.QueryResponse{Code: 1, Log: "dispute not found", Height: a.st.Height}, nil
		}
		b, _ := json.Marshal(d)
		return &abci.QueryResponse{Code: 0, Value: b, Height: a.st.Height}, nil

	default:
		return &abci.QueryResponse{Code: 1, Log: "unknown query path", Height: a.st.Height}, nil
	}
}

// deliverTx decodes and applies a single transaction. Domain-specific tx
// types are delegated by "<domain>/" prefix to the matching dispatch*
// function in this package; only identity and native-currency bookkeeping
// are handled inline, mirroring the teacher's per-domain-file split.
func (a *OCCApp) deliverTx(txBytes []byte, height int64, nowUnixOpt ...int64) *abci.ExecTxResult {
	env, err := codec.DecodeTxEnvelope(txBytes)
	if err != nil {
		return &abci.ExecTxResult{Code: 1, Log: err.Error()}
	}

	// v0: keep state height consistent even in tests that call deliverTx() directly.
	a.st.Height = height
	nowUnix := height
	if len(nowUnixOpt) > 0 {
		nowUnix = nowUnixOpt[0]
	}

	switch {
	case env.Type == "auth/register_account":
		var msg codec.AuthRegisterAccountTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad auth/register_account value")
		}
		if err := requireRegisterAccountAuth(a.st, env, msg); err != nil {
			return errResult(err.Error())
		}
		// Idempotent registration; key rotation is out of scope for v0.
		if existing := a.st.AccountKeys[msg.Account]; len(existing) != 0 {
			if string(existing) != string(msg.PubKey) {
				return errResult("account pubKey already set (rotation not supported in v0)")
			}
			return okEvent("AccountKeyRegistered", map[string]string{
				"account":  msg.Account,
				"existing": "true",
			})
		}
		a.st.AccountKeys[msg.Account] = append([]byte(nil), msg.PubKey...)
		return okEvent("AccountKeyRegistered", map[string]string{
			"account": msg.Account,
		})

	case env.Type == "bank/mint":
		var msg codec.BankMintTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad bank/mint value")
		}
		if msg.To == "" || msg.Amount == 0 {
			return errResult("missing to/amount")
		}
		a.st.Credit(msg.To, msg.Amount)
		return okEvent("BankMinted", map[string]string{
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		})

	case env.Type == "bank/mint_fungible":
		var msg codec.BankMintFungibleTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad bank/mint_fungible value")
		}
		if msg.To == "" || msg.Amount == 0 {
			return errResult("missing to/amount")
		}
		if err := a.st.MintFungible(msg.To, msg.Amount); err != nil {
			return errResult(err.Error())
		}
		return okEvent("FungibleMinted", map[string]string{
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		})

	case env.Type == "bank/send":
		var msg codec.BankSendTx
		if err := json.Unmarshal(env.Value, &msg); err != nil {
			return errResult("bad bank/send value")
		}
		if msg.From == "" || msg.To == "" || msg.Amount == 0 {
			return errResult("missing from/to/amount")
		}
		if err := requireAccountAuth(a.st, env, msg.From); err != nil {
			return errResult(err.Error())
		}
		if err := a.st.Debit(msg.From, msg.Amount); err != nil {
			return errResult(err.Error())
		}
		a.st.Credit(msg.To, msg.Amount)
		return okEvent("BankSent", map[string]string{
			"from":   msg.From,
			"to":     msg.To,
			"amount": fmt.Sprintf("%d", msg.Amount),
		})

	case strings.HasPrefix(env.Type, "game/"):
		return a.dispatchGame(env, height, nowUnix)

	case strings.HasPrefix(env.Type, "bond/"):
		return a.dispatchBonding(env, height)

	case strings.HasPrefix(env.Type, "arbitrator/"):
		return a.dispatchArbitrator(env, nowUnix)

	case strings.HasPrefix(env.Type, "dispute/"):
		return a.dispatchDispute(env, nowUnix)

	default:
		return errResult("unknown tx type: " + env.Type)
	}
}

func errResult(log string) *abci.ExecTxResult {
	return &abci.ExecTxResult{Code: 1, Log: log}
}

func okEvent(typ string, attrs map[string]string) *abci.ExecTxResult {
	ev := abci.Event{Type: typ}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return &abci.ExecTxResult{
		Code:   0,
		Events: []abci.Event{ev},
	}
}
