package chesscrypto

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// BytesFromHex decodes a "0x"-prefixed or bare hex string. No tx field or
// event in this repo currently goes through it.
func BytesFromHex(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("hex: empty string")
	}
	ss := strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(ss)%2 != 0 {
		return nil, fmt.Errorf("hex: odd length")
	}
	b, err := hex.DecodeString(ss)
	if err != nil {
		return nil, fmt.Errorf("hex: %w", err)
	}
	return b, nil
}

// BytesToHex renders bytes as a "0x"-prefixed lowercase hex string. No
// event in this repo currently goes through it.
func BytesToHex(b []byte) string {
	return "0x" + strings.ToLower(hex.EncodeToString(b))
}
