// Package chesscrypto holds the small set of deterministic hashing helpers
// shared by the chess engine (position fingerprints) and the arbitrator
// registry (pseudorandom selection). It is adapted from the on-chain poker
// dealer's ocpcrypto package, trimmed to the hash-transcript primitives:
// chess has no hidden information to encrypt or shuffle, so the
// ristretto255 group arithmetic that package built on has no consumer here.
package chesscrypto

import "encoding/binary"

func u16le(x uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, x)
	return b
}

func u32le(x uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, x)
	return b
}

func u64le(x uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, x)
	return b
}

func concatBytes(chunks ...[]byte) []byte {
	var n int
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]byte, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
