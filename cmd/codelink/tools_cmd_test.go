package main

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framer/codelink/internal/ident"
	"github.com/framer/codelink/internal/syncpath"
)

const testHash = "9d2f41c07ab34e85b6c1e0f7a2d3c4b5"

func TestPortCommand(t *testing.T) {
	out, err := execute(t, "port", testHash)
	require.NoError(t, err)

	port, err := strconv.Atoi(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, ident.PortFor(testHash), port)

	// the short id maps to the same port as the full hash
	out, err = execute(t, "port", ident.ShortenID(testHash, ident.DefaultShortIDLength))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(port), strings.TrimSpace(out))

	_, err = execute(t, "port")
	require.Error(t, err)
}

func TestShortIDCommand(t *testing.T) {
	out, err := execute(t, "shortid", testHash)
	require.NoError(t, err)
	assert.Equal(t, ident.ShortenID(testHash, ident.DefaultShortIDLength), strings.TrimSpace(out))

	out, err = execute(t, "shortid", "-n", "4", testHash)
	require.NoError(t, err)
	assert.Equal(t, ident.ShortenID(testHash, 4), strings.TrimSpace(out))
}

func TestNormalizeCommand(t *testing.T) {
	paths := []string{"./src\\App.tsx", "/lib//util.ts"}

	out, err := execute(t, append([]string{"normalize"}, paths...)...)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, syncpath.Normalize(paths[0]), lines[0])
	assert.Equal(t, syncpath.Normalize(paths[1]), lines[1])

	out, err = execute(t, "normalize", "--canonical", "src/My File.tsx")
	require.NoError(t, err)
	assert.Equal(t, syncpath.Canonical("src/My File.tsx"), strings.TrimSpace(out))
}
