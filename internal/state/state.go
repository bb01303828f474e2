package state

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"onchainchess/internal/chessengine"
)

// State is the single flat, JSON-serialized application state. Every
// top-level field here is either a scalar, a slice, or a map keyed by a
// stable string (address, game id) so that AppHash can normalize it into a
// deterministic byte stream regardless of Go's randomized map iteration.
type State struct {
	Height int64 `json:"height"`

	NextGameID  uint64            `json:"nextGameId"`
	Accounts    map[string]uint64 `json:"accounts"`
	AccountKeys map[string][]byte `json:"accountKeys,omitempty"` // addr -> ed25519 pubkey
	NonceMax    map[string]uint64 `json:"nonceMax,omitempty"`    // signer -> last accepted tx.nonce

	// FungibleAccounts is the liquid (not-yet-deposited-as-bond) balance of
	// the bonding fungible token, minted the same devnet-faucet way as the
	// native Accounts ledger.
	FungibleAccounts map[string]uint64 `json:"fungibleAccounts,omitempty"`

	Games map[uint64]*Game `json:"games"`

	UserBonds map[string]*UserBond `json:"userBonds,omitempty"`
	GameBonds map[uint64]*GameBond `json:"gameBonds,omitempty"`
	Bonding   *BondingMarket       `json:"bonding,omitempty"`

	Arbitrators   map[string]*Arbitrator `json:"arbitrators,omitempty"`
	ArbitratorTiers map[Tier]*TierPool   `json:"arbitratorTiers,omitempty"`

	Disputes map[uint64]*Dispute `json:"disputes,omitempty"`
}

func NewState() *State {
	return &State{
		Height:      0,
		NextGameID:  1,
		Accounts:         map[string]uint64{},
		AccountKeys:      map[string][]byte{},
		NonceMax:         map[string]uint64{},
		FungibleAccounts: map[string]uint64{},
		Games:            map[uint64]*Game{},
		UserBonds:        map[string]*UserBond{},
		GameBonds:        map[uint64]*GameBond{},
		Bonding:          NewBondingMarket(),
		Arbitrators:      map[string]*Arbitrator{},
		ArbitratorTiers: map[Tier]*TierPool{
			TierOne:   {},
			TierTwo:   {},
			TierThree: {},
		},
		Disputes: map[uint64]*Dispute{},
	}
}

func Load(home string) (*State, error) {
	path := filepath.Join(home, "state.json")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	st.fillDefaults()
	return &st, nil
}

func (s *State) fillDefaults() {
	if s.Accounts == nil {
		s.Accounts = map[string]uint64{}
	}
	if s.AccountKeys == nil {
		s.AccountKeys = map[string][]byte{}
	}
	if s.NonceMax == nil {
		s.NonceMax = map[string]uint64{}
	}
	if s.FungibleAccounts == nil {
		s.FungibleAccounts = map[string]uint64{}
	}
	if s.Games == nil {
		s.Games = map[uint64]*Game{}
	}
	if s.NextGameID == 0 {
		s.NextGameID = 1
	}
	if s.UserBonds == nil {
		s.UserBonds = map[string]*UserBond{}
	}
	if s.GameBonds == nil {
		s.GameBonds = map[uint64]*GameBond{}
	}
	if s.Bonding == nil {
		s.Bonding = NewBondingMarket()
	}
	if s.Arbitrators == nil {
		s.Arbitrators = map[string]*Arbitrator{}
	}
	if s.ArbitratorTiers == nil {
		s.ArbitratorTiers = map[Tier]*TierPool{}
	}
	for _, t := range []Tier{TierOne, TierTwo, TierThree} {
		if s.ArbitratorTiers[t] == nil {
			s.ArbitratorTiers[t] = &TierPool{}
		}
	}
	if s.Disputes == nil {
		s.Disputes = map[uint64]*Dispute{}
	}
}

func (s *State) Save(home string) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("mkdir home: %w", err)
	}
	path := filepath.Join(home, "state.json")
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// Clone returns a deep copy of state via a JSON roundtrip. The app layer
// does not call it: deliverTx applies each transaction to the live state
// directly.
func (s *State) Clone() (*State, error) {
	if s == nil {
		return nil, fmt.Errorf("state is nil")
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state clone: %w", err)
	}
	var out State
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode state clone: %w", err)
	}
	out.fillDefaults()
	return &out, nil
}

func (s *State) AppHash() []byte {
	type accountKV struct {
		Addr    string `json:"addr"`
		Balance uint64 `json:"balance"`
	}
	type accountKeyKV struct {
		Addr   string `json:"addr"`
		PubKey []byte `json:"pubKey"`
	}
	type nonceKV struct {
		Signer string `json:"signer"`
		Nonce  uint64 `json:"nonce"`
	}
	type gameKV struct {
		ID   uint64 `json:"id"`
		Game *Game  `json:"game"`
	}
	type userBondKV struct {
		Addr string    `json:"addr"`
		Bond *UserBond `json:"bond"`
	}
	type gameBondKV struct {
		ID   uint64    `json:"id"`
		Bond *GameBond `json:"bond"`
	}
	type arbitratorKV struct {
		Addr       string      `json:"addr"`
		Arbitrator *Arbitrator `json:"arbitrator"`
	}
	type disputeKV struct {
		ID      uint64   `json:"id"`
		Dispute *Dispute `json:"dispute"`
	}

	accounts := make([]accountKV, 0, len(s.Accounts))
	for k, v := range s.Accounts {
		accounts = append(accounts, accountKV{Addr: k, Balance: v})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Addr < accounts[j].Addr })

	accountKeys := make([]accountKeyKV, 0, len(s.AccountKeys))
	for k, v := range s.AccountKeys {
		accountKeys = append(accountKeys, accountKeyKV{Addr: k, PubKey: v})
	}
	sort.Slice(accountKeys, func(i, j int) bool { return accountKeys[i].Addr < accountKeys[j].Addr })

	nonces := make([]nonceKV, 0, len(s.NonceMax))
	for k, v := range s.NonceMax {
		nonces = append(nonces, nonceKV{Signer: k, Nonce: v})
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i].Signer < nonces[j].Signer })

	fungibleAccounts := make([]accountKV, 0, len(s.FungibleAccounts))
	for k, v := range s.FungibleAccounts {
		fungibleAccounts = append(fungibleAccounts, accountKV{Addr: k, Balance: v})
	}
	sort.Slice(fungibleAccounts, func(i, j int) bool { return fungibleAccounts[i].Addr < fungibleAccounts[j].Addr })

	games := make([]gameKV, 0, len(s.Games))
	for id, g := range s.Games {
		games = append(games, gameKV{ID: id, Game: g})
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })

	userBonds := make([]userBondKV, 0, len(s.UserBonds))
	for addr, ub := range s.UserBonds {
		userBonds = append(userBonds, userBondKV{Addr: addr, Bond: ub})
	}
	sort.Slice(userBonds, func(i, j int) bool { return userBonds[i].Addr < userBonds[j].Addr })

	gameBonds := make([]gameBondKV, 0, len(s.GameBonds))
	for id, gb := range s.GameBonds {
		gameBonds = append(gameBonds, gameBondKV{ID: id, Bond: gb})
	}
	sort.Slice(gameBonds, func(i, j int) bool { return gameBonds[i].ID < gameBonds[j].ID })

	arbitrators := make([]arbitratorKV, 0, len(s.Arbitrators))
	for addr, a := range s.Arbitrators {
		arbitrators = append(arbitrators, arbitratorKV{Addr: addr, Arbitrator: a})
	}
	sort.Slice(arbitrators, func(i, j int) bool { return arbitrators[i].Addr < arbitrators[j].Addr })

	disputes := make([]disputeKV, 0, len(s.Disputes))
	for id, d := range s.Disputes {
		disputes = append(disputes, disputeKV{ID: id, Dispute: d})
	}
	sort.Slice(disputes, func(i, j int) bool { return disputes[i].ID < disputes[j].ID })

	normalized := struct {
		Height           int64          `json:"height"`
		NextGameID       uint64         `json:"nextGameId"`
		Accounts         []accountKV    `json:"accounts"`
		AccountKeys      []accountKeyKV `json:"accountKeys,omitempty"`
		NonceMax         []nonceKV      `json:"nonceMax,omitempty"`
		FungibleAccounts []accountKV    `json:"fungibleAccounts,omitempty"`
		Games            []gameKV       `json:"games"`
		UserBonds        []userBondKV   `json:"userBonds,omitempty"`
		GameBonds        []gameBondKV   `json:"gameBonds,omitempty"`
		Bonding          *BondingMarket `json:"bonding,omitempty"`
		Arbitrators      []arbitratorKV `json:"arbitrators,omitempty"`
		Disputes         []disputeKV    `json:"disputes,omitempty"`
	}{
		Height:           s.Height,
		NextGameID:       s.NextGameID,
		Accounts:         accounts,
		AccountKeys:      accountKeys,
		NonceMax:         nonces,
		FungibleAccounts: fungibleAccounts,
		Games:            games,
		UserBonds:        userBonds,
		GameBonds:        gameBonds,
		Bonding:          s.Bonding,
		Arbitrators:      arbitrators,
		Disputes:         disputes,
	}

	b, _ := json.Marshal(normalized)
	sum := sha256.Sum256(b)
	return sum[:]
}

// ---- Bank ----

func (s *State) Balance(addr string) uint64 {
	return s.Accounts[addr]
}

func (s *State) Credit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal > ^uint64(0)-amount {
		return fmt.Errorf("balance overflow: have=%d add=%d", bal, amount)
	}
	s.Accounts[addr] = bal + amount
	return nil
}

func (s *State) Debit(addr string, amount uint64) error {
	bal := s.Accounts[addr]
	if bal < amount {
		return fmt.Errorf("insufficient funds: have=%d need=%d", bal, amount)
	}
	s.Accounts[addr] = bal - amount
	return nil
}

// ---- Fungible token (liquid, pre-bond) ----

func (s *State) FungibleBalance(addr string) uint64 {
	return s.FungibleAccounts[addr]
}

func (s *State) FungibleCredit(addr string, amount uint64) error {
	bal := s.FungibleAccounts[addr]
	if bal > ^uint64(0)-amount {
		return fmt.Errorf("fungible balance overflow: have=%d add=%d", bal, amount)
	}
	s.FungibleAccounts[addr] = bal + amount
	return nil
}

func (s *State) FungibleDebit(addr string, amount uint64) error {
	bal := s.FungibleAccounts[addr]
	if bal < amount {
		return fmt.Errorf("insufficient fungible funds: have=%d need=%d", bal, amount)
	}
	s.FungibleAccounts[addr] = bal - amount
	return nil
}

// MintFungible is the devnet faucet path: it credits addr's liquid
// fungible balance and grows the tracked global supply, so that a later
// slash's burn is a real supply decrease rather than bookkeeping plucked
// from nowhere.
func (s *State) MintFungible(addr string, amount uint64) error {
	if err := s.FungibleCredit(addr, amount); err != nil {
		return err
	}
	s.Bonding.TotalFungibleSupply += amount
	return nil
}

// ---- Chess game instances ----

// Mode distinguishes the illegal-move and timeout handling policy a game
// runs under.
type Mode string

const (
	// ModeFriendly rejects an illegal move tx with an error and no penalty.
	ModeFriendly Mode = "friendly"
	// ModeTournament forfeits the game to the opponent on an illegal move
	// submission, since a bonded match treats an illegal move as
	// equivalent to a rules violation rather than a harmless client bug.
	ModeTournament Mode = "tournament"
)

// LifecycleState is the Game's own top-level status, independent of the
// chess engine's per-move Outcome.
type LifecycleState string

const (
	StateNotStarted LifecycleState = "not_started"
	StateInProgress LifecycleState = "in_progress"
	StateDrawn      LifecycleState = "drawn"
	StateWhiteWins  LifecycleState = "white_wins"
	StateBlackWins  LifecycleState = "black_wins"
)

// Game is one on-chain chess match: the engine board plus every piece of
// lifecycle bookkeeping the engine itself does not track (clocks, stake,
// draw-offer negotiation, payout flags).
type Game struct {
	ID    uint64 `json:"id"`
	Mode  Mode   `json:"mode"`
	Stake uint64 `json:"stake"`

	WhitePlayer string `json:"whitePlayer"`
	BlackPlayer string `json:"blackPlayer,omitempty"`

	Board *chessengine.Board `json:"board"`

	State         LifecycleState `json:"state"`
	TimeoutBlocks int64          `json:"timeoutBlocks"`

	WhiteLastMoveBlock int64 `json:"whiteLastMoveBlock"`
	BlackLastMoveBlock int64 `json:"blackLastMoveBlock"`

	// DrawOfferedBy holds the offering player's address, or "" if no draw
	// offer is outstanding. A new move or an explicit decline/cancel clears
	// it.
	DrawOfferedBy string `json:"drawOfferedBy,omitempty"`

	// Flags are monotone, once-true lifecycle markers; none of them ever
	// transitions back to false.
	Flags GameFlags `json:"flags"`

	// PendingPayout is the pull-payment credit ledger per player address,
	// populated by finalizePrizes and drained by
	// withdrawPrize. Payouts never move funds directly.
	PendingPayout map[string]uint64 `json:"pendingPayout,omitempty"`

	DisputeID uint64 `json:"disputeId,omitempty"`

	// MoveCount is the number of half-moves successfully applied, fed to
	// the Reward collaborator's distributeReward contract.
	MoveCount int `json:"moveCount,omitempty"`
}

// GameFlags tracks monotone once-set booleans for a Game.
type GameFlags struct {
	BondsLocked        bool `json:"bondsLocked,omitempty"`
	DisputeRegistered  bool `json:"disputeRegistered,omitempty"`
	RatingReported     bool `json:"ratingReported,omitempty"`
	Finalized          bool `json:"finalized,omitempty"`
	RewardsDistributed bool `json:"rewardsDistributed,omitempty"`
	WasCheckmate       bool `json:"wasCheckmate,omitempty"`
	WasResign          bool `json:"wasResign,omitempty"`
	WasTimeout         bool `json:"wasTimeout,omitempty"`
}

// ---- Bonding core ----

// UserBond is one user's hybrid bond ledger: native currency and a
// fungible token, each split between a locked (escrowed against one or
// more games) and a free (withdrawable) balance.
type UserBond struct {
	Addr string `json:"addr"`

	NativeFree   uint64 `json:"nativeFree"`
	NativeLocked uint64 `json:"nativeLocked"`

	FungibleFree   uint64 `json:"fungibleFree"`
	FungibleLocked uint64 `json:"fungibleLocked"`
}

// GameBond records the per-player bond amounts locked against one game, so
// that release/slash can act on exactly what was escrowed for that match
// without re-deriving it from the (possibly since-changed) pricing curve.
// Keyed by gameId; White/Black hold the two players' slots for this game.
type GameBond struct {
	GameID uint64 `json:"gameId"`

	White PlayerBond `json:"white"`
	Black PlayerBond `json:"black"`
}

// PlayerBond is one player's locked bond for one game. Released and
// Slashed start false and at most one of them ever becomes true.
type PlayerBond struct {
	Addr            string `json:"addr"`
	FungibleAmount  uint64 `json:"fungibleAmount"`
	NativeAmount    uint64 `json:"nativeAmount"`
	Released        bool   `json:"released"`
	Slashed         bool   `json:"slashed"`
}

// BondingMarket is the shared pricing state for the fungible token's
// bonding curve: a TWAP-style last price plus the circuit breaker that, on
// an implausible single-step move, pauses bond locking and other
// price-dependent operations until Unpause. It also tracks the fungible
// token's global supply so that a slash's burn is auditable
// (TotalFungibleSupply grows only through minting and shrinks by exactly
// the burned amount on a Cheat slash or a Legit-verdict deposit burn).
type BondingMarket struct {
	LastPriceMicroUSD uint64 `json:"lastPriceMicroUsd"`
	LastUpdateBlock   int64  `json:"lastUpdateBlock"`
	Paused            bool   `json:"paused"`

	TotalFungibleSupply uint64 `json:"totalFungibleSupply"`
	TotalFungibleBurned uint64 `json:"totalFungibleBurned"`
	TotalNativeSlashed  uint64 `json:"totalNativeSlashed"`
}

func NewBondingMarket() *BondingMarket {
	return &BondingMarket{LastPriceMicroUSD: 1_000_000}
}

// GetOrCreateUserBond returns addr's bond ledger, creating an empty one on
// first access.
func (s *State) GetOrCreateUserBond(addr string) *UserBond {
	ub, ok := s.UserBonds[addr]
	if !ok {
		ub = &UserBond{Addr: addr}
		s.UserBonds[addr] = ub
	}
	return ub
}

// ---- Arbitrator registry ----

// Tier is a stake-derived arbitrator tier; higher tiers require a larger
// stake and are drawn from a separate swap-and-pop selection pool.
type Tier uint8

const (
	TierNone   Tier = 0
	TierOne    Tier = 1
	TierTwo    Tier = 2
	TierThree  Tier = 3
)

// Arbitrator is one registered arbitrator's stake, tier, reputation, and
// pool-membership bookkeeping. All timestamps are Unix seconds derived
// from the block header time — wall-clock for all deadlines other than
// the chess clock itself, which runs on block height.
type Arbitrator struct {
	Addr string `json:"addr"`
	Tier Tier   `json:"tier"`

	Stake uint64 `json:"stake"`

	StakedAt int64 `json:"stakedAt"`
	// VotingPowerActiveAt = StakedAt + 7 days. This prevents a
	// just-in-time stake from buying influence over a dispute already in
	// flight.
	VotingPowerActiveAt int64 `json:"votingPowerActiveAt"`

	Reputation int64 `json:"reputation"`

	LastVoteBlockTime int64  `json:"lastVoteBlockTime,omitempty"`
	WeekCounter        uint32 `json:"weekCounter,omitempty"`
	WeekStart          int64  `json:"weekStart,omitempty"`

	// RecentOpponents maps a player address to the Unix second of the most
	// recent game this arbitrator shared with them, for the 30-day
	// exclusion rule in §4.D's selection procedure.
	RecentOpponents map[string]int64 `json:"recentOpponents,omitempty"`

	Active bool `json:"active"`
	// PoolIndex is this arbitrator's position in its tier's pool slice,
	// maintained by TierPool's swap-and-pop Remove so selection and
	// removal both stay O(1).
	PoolIndex int `json:"poolIndex"`
}

// TierPool is a dense, swap-and-pop array of arbitrator addresses for one
// tier, used so that Remove never has to shift the remainder of the slice.
type TierPool struct {
	Addrs []string `json:"addrs,omitempty"`
}

func (p *TierPool) Add(addr string) int {
	p.Addrs = append(p.Addrs, addr)
	return len(p.Addrs) - 1
}

// Remove deletes the address at idx by swapping in the last element and
// truncating, and returns the address that now occupies idx (empty string
// if idx was the last element or the pool is now empty) so the caller can
// update that address's PoolIndex.
func (p *TierPool) Remove(idx int) string {
	last := len(p.Addrs) - 1
	if idx < 0 || idx > last {
		return ""
	}
	if idx != last {
		p.Addrs[idx] = p.Addrs[last]
	}
	p.Addrs = p.Addrs[:last]
	if idx < len(p.Addrs) {
		return p.Addrs[idx]
	}
	return ""
}

// ---- Dispute core ----

type DisputeStatus string

const (
	DisputePending    DisputeStatus = "pending"
	DisputeChallenged DisputeStatus = "challenged"
	DisputeRevealing  DisputeStatus = "revealing"
	DisputeResolved   DisputeStatus = "resolved"
)

// Vote is an arbitrator's ballot value: one of None, Legit, Cheat, or
// Abstain.
type Vote string

const (
	VoteNone    Vote = "none"
	VoteLegit   Vote = "legit"
	VoteCheat   Vote = "cheat"
	VoteAbstain Vote = "abstain"
)

// Decision is a resolved dispute's final verdict.
type Decision string

const (
	DecisionNone  Decision = "none"
	DecisionLegit Decision = "legit"
	DecisionCheat Decision = "cheat"
)

// VoteCommit is one arbitrator's commit-reveal ballot for a dispute round.
// CommitHash is sha256(vote || salt || arbitratorAddress); Vote and Salt
// are populated only once Revealed is true.
type VoteCommit struct {
	Arbitrator string `json:"arbitrator"`
	CommitHash []byte `json:"commitHash"`
	Revealed   bool   `json:"revealed"`
	Vote       Vote   `json:"vote,omitempty"`
	Salt       []byte `json:"salt,omitempty"`
}

// Dispute is one game's arbitration process. A dispute may escalate
// through additional rounds (EscalationLevel increasing) if a round fails
// to reach supermajority, up to a cap of two additional rounds. All
// timestamps are Unix seconds.
type Dispute struct {
	ID     uint64 `json:"id"`
	GameID uint64 `json:"gameId"`

	Challenger  string `json:"challenger,omitempty"`
	Accused     string `json:"accused,omitempty"`
	OtherPlayer string `json:"otherPlayer,omitempty"`
	GameStake   uint64 `json:"gameStake"`

	State DisputeStatus `json:"state"`

	RegisteredAt  int64 `json:"registeredAt"`
	ChallengedAt  int64 `json:"challengedAt,omitempty"`
	CommitDeadline int64 `json:"commitDeadline,omitempty"`
	RevealDeadline int64 `json:"revealDeadline,omitempty"`

	LegitVotes   uint32 `json:"legitVotes"`
	CheatVotes   uint32 `json:"cheatVotes"`
	AbstainVotes uint32 `json:"abstainVotes"`

	FinalDecision Decision `json:"finalDecision,omitempty"`

	SelectedArbitrators []string               `json:"selectedArbitrators,omitempty"`
	Commits             map[string]*VoteCommit `json:"commits,omitempty"`

	EscalationLevel int `json:"escalationLevel"`

	// ChallengeDepositAmount is the fungible deposit the challenger paid,
	// held by the Dispute Core until resolution distributes or refunds it.
	ChallengeDepositAmount uint64 `json:"challengeDepositAmount,omitempty"`
}
