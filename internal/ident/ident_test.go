package ident

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortenID_LengthAndAlphabet(t *testing.T) {
	inputs := []string{"", "a", "3f9a8c2b1d7e4f6a9b0c", strings.Repeat("x", 500), "project-hash-with-dashes"}
	for _, in := range inputs {
		for _, length := range []int{4, 8, 12, 16} {
			out := ShortenID(in, length)
			if len(in) == length {
				assert.Equal(t, in, out)
				continue
			}
			require.Len(t, out, length, "input %q", in)
			for _, c := range out {
				assert.Contains(t, base58Alphabet, string(c))
			}
		}
	}
}

func TestShortenID_Idempotent(t *testing.T) {
	full := "e4b1c0d9a87f6e5d4c3b2a1908f7e6d5"
	short := ShortenID(full, 8)
	assert.Equal(t, short, ShortenID(short, 8))
	assert.Equal(t, short, ShortID(full))
}

func TestShortenID_Deterministic(t *testing.T) {
	assert.Equal(t, ShortID("abc123abc123abc"), ShortID("abc123abc123abc"))
	assert.NotEqual(t, ShortID("abc123abc123abc"), ShortID("abc123abc123abd"))
}

func TestShortenID_DefaultLength(t *testing.T) {
	assert.Len(t, ShortenID("some-long-project-hash", 0), DefaultShortIDLength)
}

func TestShortenID_Pads(t *testing.T) {
	// 53 bits never encode to more than 10 base58 symbols.
	out := ShortenID("pad-me", 16)
	require.Len(t, out, 16)
	assert.True(t, strings.HasSuffix(out, "1"))
}

func TestPortFor_WithinWindow(t *testing.T) {
	for i := 0; i < 2000; i++ {
		id := strings.Repeat("p", i%7) + string(rune('a'+i%26)) + strings.Repeat("z", i%13)
		port := PortFor(id)
		assert.GreaterOrEqual(t, port, PortRangeStart)
		assert.Less(t, port, PortRangeStart+PortWindow)
	}
}

func TestPortFor_FullHashAndShortIDAgree(t *testing.T) {
	full := "0b8f1c9e7d6a5b4c3d2e1f0a9b8c7d6e"
	assert.Equal(t, PortFor(full), PortFor(ShortID(full)))
	assert.Equal(t, PortFor(full), PortFor(full))
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, FingerprintString("hello"), FingerprintString("hello"))
	assert.NotEqual(t, FingerprintString("hello"), FingerprintString("world"))
	assert.NotEqual(t, FingerprintString("hello"), FingerprintString("hello!"))
	assert.True(t, strings.HasPrefix(FingerprintString("hello").String(), "5:"))
}

func TestFingerprint_SampledWindowCollision(t *testing.T) {
	// Same length, same first and last FingerprintSample bytes, different middle.
	prefix := strings.Repeat("a", FingerprintSample)
	suffix := strings.Repeat("z", FingerprintSample)
	a := prefix + "111" + suffix
	b := prefix + "222" + suffix

	assert.Equal(t, FingerprintString(a), FingerprintString(b))
	assert.NotEqual(t, Digest([]byte(a)), Digest([]byte(b)))
}

func TestProjectInfo(t *testing.T) {
	_, err := NewProjectInfo("  ")
	assert.ErrorIs(t, err, ErrEmptyProjectHash)

	p, err := NewProjectInfo("f00dfeedf00dfeedf00dfeed")
	require.NoError(t, err)
	assert.Equal(t, ShortID("f00dfeedf00dfeedf00dfeed"), p.ShortID)
	assert.True(t, p.Matches("f00dfeedf00dfeedf00dfeed"))
	assert.True(t, p.Matches(p.ShortID))
	assert.False(t, p.Matches("some-other-project-hash"))
	assert.False(t, p.Matches(""))
	assert.Equal(t, PortFor(p.FullHash), p.Port())

	assert.True(t, p.HasFullHash())

	short, err := NewProjectInfo(p.ShortID)
	require.NoError(t, err)
	assert.False(t, short.HasFullHash())
	assert.True(t, short.Matches(p.FullHash))
	assert.True(t, IsShortID(p.ShortID))
	assert.False(t, IsShortID(p.FullHash))
	assert.False(t, IsShortID(""))
}
