package ident

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// FingerprintSample is the number of bytes sampled from each end of the content.
const FingerprintSample = 64

// Fingerprint is a cheap content signature built from the content length and a
// fixed-size prefix and suffix. It is not a cryptographic hash: two contents of
// equal length that only differ outside the sampled window share a fingerprint.
// Equal fingerprints mean "no observable change" for echo suppression.
type Fingerprint string

// FingerprintOf returns the fingerprint of content. The work done is bounded
// by FingerprintSample regardless of content size.
func FingerprintOf(content []byte) Fingerprint {
	n := len(content)
	head := content
	if n > FingerprintSample {
		head = content[:FingerprintSample]
	}
	tail := content
	if n > FingerprintSample {
		tail = content[n-FingerprintSample:]
	}
	return Fingerprint(fmt.Sprintf("%d:%08x:%08x", n, mix32(head), mix32(tail)))
}

// FingerprintString is FingerprintOf for string content.
func FingerprintString(content string) Fingerprint {
	return FingerprintOf([]byte(content))
}

func (f Fingerprint) String() string {
	return string(f)
}

// Digest returns the hex encoded blake3 sum of content. Used where the full
// content is at hand and an exact comparison is needed.
func Digest(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// mix32 is a 32-bit multiplicative hash over the sample.
func mix32(b []byte) uint32 {
	h := uint32(2166136261)
	for _, c := range b {
		h ^= uint32(c)
		h *= 16777619
	}
	return h
}
