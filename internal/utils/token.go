package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// TokenHex returns n random bytes hex encoded.
func TokenHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
