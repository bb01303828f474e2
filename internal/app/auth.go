package app

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"

	"onchainchess/internal/codec"
	"onchainchess/internal/state"
)

const txAuthDomainV0 = "occ/tx/v0"

// txAuthSignBytesV0 builds the domain-separated message every tx type signs,
// regardless of whether the signer is a player, an arbitrator, or an admin
// account — there is a single identity registry (auth/register_account), not
// a separate key space per role.
func txAuthSignBytesV0(typ string, value []byte, nonce string, signer string) []byte {
	sum := sha256.Sum256(value)
	out := make([]byte, 0, len(txAuthDomainV0)+1+len(typ)+1+len(nonce)+1+len(signer)+1+sha256.Size)
	out = append(out, []byte(txAuthDomainV0)...)
	out = append(out, 0)
	out = append(out, []byte(typ)...)
	out = append(out, 0)
	out = append(out, []byte(nonce)...)
	out = append(out, 0)
	out = append(out, []byte(signer)...)
	out = append(out, 0)
	out = append(out, sum[:]...)
	return out
}

func requireSignedEnvelope(env codec.TxEnvelope) error {
	if env.Nonce == "" {
		return fmt.Errorf("missing tx.nonce")
	}
	if env.Signer == "" {
		return fmt.Errorf("missing tx.signer")
	}
	if len(env.Sig) == 0 {
		return fmt.Errorf("missing tx.sig")
	}
	if len(env.Sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid tx.sig length: got %d want %d", len(env.Sig), ed25519.SignatureSize)
	}
	return nil
}

// requireNonceIncreasing enforces the replay-protection invariant: a
// signer's nonce must strictly increase across accepted txs.
func requireNonceIncreasing(st *state.State, env codec.TxEnvelope) error {
	var n uint64
	if _, err := fmt.Sscanf(env.Nonce, "%d", &n); err != nil {
		return fmt.Errorf("tx.nonce must be a base-10 integer")
	}
	if n <= st.NonceMax[env.Signer] {
		return fmt.Errorf("nonce %d not greater than last seen %d for signer %q", n, st.NonceMax[env.Signer], env.Signer)
	}
	st.NonceMax[env.Signer] = n
	return nil
}

// requireAccountAuth authenticates `account` as the envelope's signer using
// the identity registered via auth/register_account. It is the sole
// authentication path for every signed tx in this chain — player moves,
// arbitrator stake/vote operations, and admin bonding-parameter updates
// alike all resolve to a registered account's Ed25519 key.
func requireAccountAuth(st *state.State, env codec.TxEnvelope, account string) error {
	if st == nil {
		return fmt.Errorf("state is nil")
	}
	if account == "" {
		return fmt.Errorf("missing account")
	}
	if err := requireSignedEnvelope(env); err != nil {
		return err
	}
	if env.Signer != account {
		return fmt.Errorf("tx signer mismatch: signer=%q want=%q", env.Signer, account)
	}
	pub := st.AccountKeys[account]
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("account %q missing pubKey (auth/register_account required)", account)
	}
	msg := txAuthSignBytesV0(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, env.Sig) {
		return fmt.Errorf("invalid signature")
	}
	if err := requireNonceIncreasing(st, env); err != nil {
		return err
	}
	return nil
}

func requireRegisterAccountAuth(st *state.State, env codec.TxEnvelope, msg codec.AuthRegisterAccountTx) error {
	if msg.Account == "" {
		return fmt.Errorf("missing account")
	}
	if len(msg.PubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("pubKey must be %d bytes", ed25519.PublicKeySize)
	}
	if err := requireSignedEnvelope(env); err != nil {
		return err
	}
	if env.Signer != msg.Account {
		return fmt.Errorf("tx signer mismatch: signer=%q want=%q", env.Signer, msg.Account)
	}
	pub := ed25519.PublicKey(msg.PubKey)
	msgBytes := txAuthSignBytesV0(env.Type, env.Value, env.Nonce, env.Signer)
	if !ed25519.Verify(pub, msgBytes, env.Sig) {
		return fmt.Errorf("invalid signature")
	}
	return requireNonceIncreasing(st, env)
}
