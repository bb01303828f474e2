package codec

import (
	"encoding/json"
	"fmt"
)

// TxEnvelope is the v0 transaction container.
//
// CometBFT transactions are opaque bytes. For v0 localnet we use JSON-encoded
// txs to move fast; this is NOT the final protocol encoding.
type TxEnvelope struct {
	// Basic routing.
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`

	// v0 tx auth (optional):
	// - Nonce: included in the signed message for replay protection (must increase per signer).
	// - Signer: logical signer id (address for account-signed txs, arbitrator address for arbitrator-signed txs).
	// - Sig: Ed25519 signature over (type, nonce, signer, sha256(value)).
	//
	// Note: This is still a scaffold; it is NOT the final protocol encoding.
	Nonce  string `json:"nonce,omitempty"`
	Signer string `json:"signer,omitempty"`
	Sig    []byte `json:"sig,omitempty"`
}

func DecodeTxEnvelope(txBytes []byte) (TxEnvelope, error) {
	var env TxEnvelope
	if err := json.Unmarshal(txBytes, &env); err != nil {
		return TxEnvelope{}, fmt.Errorf("invalid tx json: %w", err)
	}
	if env.Type == "" {
		return TxEnvelope{}, fmt.Errorf("missing tx.type")
	}
	return env, nil
}

// ---- Bank ----

type BankMintTx struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type BankSendTx struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// BankMintFungibleTx is the devnet faucet for the bonding fungible token,
// mirroring BankMintTx for the native currency.
type BankMintFungibleTx struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// ---- Auth (v0) ----

// v0: account pubkey registration for tx authentication.
type AuthRegisterAccountTx struct {
	Account string `json:"account"`
	PubKey  []byte `json:"pubKey"` // base64 (32 bytes)
}

// ---- Game instance ----

type GameCreateTx struct {
	Creator       string `json:"creator"`
	Mode          string `json:"mode"` // "friendly" | "tournament"
	Stake         uint64 `json:"stake"`
	TimeoutBlocks int64  `json:"timeoutBlocks,omitempty"`
}

type GameJoinTx struct {
	GameID uint64 `json:"gameId"`
	Player string `json:"player"`
}

type GameMoveTx struct {
	GameID    uint64 `json:"gameId"`
	Player    string `json:"player"`
	FromRow   int    `json:"fromRow"`
	FromCol   int    `json:"fromCol"`
	ToRow     int    `json:"toRow"`
	ToCol     int    `json:"toCol"`
	Promotion string `json:"promotion,omitempty"` // "", "queen", "rook", "bishop", "knight"
}

type GameResignTx struct {
	GameID uint64 `json:"gameId"`
	Player string `json:"player"`
}

type GameOfferDrawTx struct {
	GameID uint64 `json:"gameId"`
	Player string `json:"player"`
}

type GameAcceptDrawTx struct {
	GameID uint64 `json:"gameId"`
	Player string `json:"player"`
}

type GameDeclineDrawTx struct {
	GameID uint64 `json:"gameId"`
	Player string `json:"player"`
}

type GameCancelDrawOfferTx struct {
	GameID uint64 `json:"gameId"`
	Player string `json:"player"`
}

type GameClaimRepetitionTx struct {
	GameID uint64 `json:"gameId"`
	Player string `json:"player"`
}

type GameClaimFiftyMoveTx struct {
	GameID uint64 `json:"gameId"`
	Player string `json:"player"`
}

type GameClaimVictoryByTimeoutTx struct {
	GameID uint64 `json:"gameId"`
	Caller string `json:"caller"`
}

type GameFinalizePrizesTx struct {
	GameID uint64 `json:"gameId"`
	Caller string `json:"caller"`
}

type GameWithdrawPrizeTx struct {
	GameID uint64 `json:"gameId"`
	Player string `json:"player"`
}

type GameClaimPrizeTx struct {
	GameID uint64 `json:"gameId"`
	Caller string `json:"caller"`
}

// ---- Bonding core ----

type BondDepositTx struct {
	Addr           string `json:"addr"`
	NativeAmount   uint64 `json:"nativeAmount,omitempty"`
	FungibleAmount uint64 `json:"fungibleAmount,omitempty"`
}

type BondWithdrawTx struct {
	Addr           string `json:"addr"`
	NativeAmount   uint64 `json:"nativeAmount,omitempty"`
	FungibleAmount uint64 `json:"fungibleAmount,omitempty"`
}

type BondUpdatePriceTx struct {
	Caller            string `json:"caller"`
	NewPriceMicroUSD  uint64 `json:"newPriceMicroUsd"`
}

type BondUnpauseTx struct {
	Caller string `json:"caller"`
}

// ---- Arbitrator registry ----

type ArbitratorRegisterTx struct {
	Addr  string `json:"addr"`
	Stake uint64 `json:"stake"`
}

type ArbitratorStakeTx struct {
	Addr   string `json:"addr"`
	Amount uint64 `json:"amount"`
}

type ArbitratorUnstakeTx struct {
	Addr   string `json:"addr"`
	Amount uint64 `json:"amount"`
}

// ---- Dispute core ----

type DisputeRegisterGameTx struct {
	GameID uint64 `json:"gameId"`
	Caller string `json:"caller"`
}

type DisputeChallengeTx struct {
	DisputeID  uint64 `json:"disputeId"`
	Challenger string `json:"challenger"`
	Accused    string `json:"accused"`
}

type DisputeCommitVoteTx struct {
	DisputeID  uint64 `json:"disputeId"`
	Arbitrator string `json:"arbitrator"`
	CommitHash []byte `json:"commitHash"` // sha256(vote || salt || arbitratorAddress)
}

type DisputeRevealVoteTx struct {
	DisputeID  uint64 `json:"disputeId"`
	Arbitrator string `json:"arbitrator"`
	Vote       string `json:"vote"` // "legit" | "cheat" | "abstain"
	Salt       []byte `json:"salt"`
}

type DisputeResolveTx struct {
	DisputeID uint64 `json:"disputeId"`
	Caller    string `json:"caller"`
}

type DisputeCloseChallengeWindowTx struct {
	DisputeID uint64 `json:"disputeId"`
	Caller    string `json:"caller"`
}
