package chesscrypto

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

var (
	transcriptPrefix = []byte("occ/v1/transcript|")
)

// Transcript is a Fiat-Shamir-style domain-separated hash transcript,
// adapted from the dealer module's verifiable-shuffle transcript (which
// drove challenges over sha512 into a ristretto255 scalar field). Nothing
// here needs a scalar field: every consumer just wants a deterministic,
// hard-to-grind stream of bytes derived from public on-chain values, so
// this version stops at sha256.
//
// It intentionally stores the transcript bytes rather than a mutable hash
// state, since Go's sha256 implementation does not support cloning.
type Transcript struct {
	state []byte
}

func NewTranscript(domainSep string) *Transcript {
	dst := []byte(domainSep)
	st := make([]byte, 0, len(transcriptPrefix)+4+len(dst))
	st = append(st, transcriptPrefix...)
	st = append(st, u32le(uint32(len(dst)))...)
	st = append(st, dst...)
	return &Transcript{state: st}
}

func (t *Transcript) AppendMessage(label string, msg []byte) error {
	if t == nil {
		return fmt.Errorf("transcript: nil receiver")
	}
	if msg == nil {
		return fmt.Errorf("transcript: nil msg")
	}
	lb := []byte(label)
	t.state = append(t.state, []byte("msg")...)
	t.state = append(t.state, u32le(uint32(len(lb)))...)
	t.state = append(t.state, lb...)
	t.state = append(t.state, u32le(uint32(len(msg)))...)
	t.state = append(t.state, msg...)
	return nil
}

// ChallengeBytes derives a labeled 32-byte challenge from the transcript
// built up so far, without consuming it (repeated calls with different
// labels draw independent challenges from the same transcript state).
func (t *Transcript) ChallengeBytes(label string) ([32]byte, error) {
	var out [32]byte
	if t == nil {
		return out, fmt.Errorf("transcript: nil receiver")
	}
	lb := []byte(label)
	h := sha256.New()
	h.Write(t.state)
	h.Write([]byte("challenge"))
	h.Write(u32le(uint32(len(lb))))
	h.Write(lb)
	copy(out[:], h.Sum(nil))
	return out, nil
}

// ChallengeUint64 draws a labeled challenge and reduces it to a uint64,
// used by the arbitrator registry's bounded pseudorandom index draws.
func (t *Transcript) ChallengeUint64(label string) (uint64, error) {
	b, err := t.ChallengeBytes(label)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:8]), nil
}

