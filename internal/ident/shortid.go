package ident

import "strings"

// DefaultShortIDLength is the length of a project short id.
const DefaultShortIDLength = 8

// base58 without 0, O, I and l.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// ShortenID derives a fixed-length base58 identifier from fullID.
//
// Two independent 32-bit multiplicative accumulators run over the input and
// are folded into a 53-bit value which is then base58 encoded. The result is
// padded with the alphabet's zero symbol when the encoding is shorter than
// length and truncated when it is longer. An input that already has the
// target length is returned unchanged, so ShortenID is idempotent.
func ShortenID(fullID string, length int) string {
	if length <= 0 {
		length = DefaultShortIDLength
	}
	if len(fullID) == length {
		return fullID
	}

	h1 := uint32(0xdeadbeef)
	h2 := uint32(0x41c6ce57)
	for i := 0; i < len(fullID); i++ {
		c := uint32(fullID[i])
		h1 = (h1 ^ c) * 2654435761
		h2 = (h2 ^ c) * 1597334677
	}
	h1 = ((h1 ^ (h1 >> 16)) * 2246822507) ^ ((h2 ^ (h2 >> 13)) * 3266489909)
	h2 = ((h2 ^ (h2 >> 16)) * 2246822507) ^ ((h1 ^ (h1 >> 13)) * 3266489909)
	folded := uint64(h2&0x1fffff)<<32 | uint64(h1)

	encoded := encodeBase58(folded)
	if len(encoded) < length {
		encoded += strings.Repeat(string(base58Alphabet[0]), length-len(encoded))
	}
	return encoded[:length]
}

// ShortID returns the default-length short id for fullID.
func ShortID(fullID string) string {
	return ShortenID(fullID, DefaultShortIDLength)
}

func encodeBase58(v uint64) string {
	if v == 0 {
		return string(base58Alphabet[0])
	}
	var buf [16]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = base58Alphabet[v%58]
		v /= 58
	}
	return string(buf[i:])
}
