package main

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/framer/codelink/internal/version"
)

func TestVersionCommand_PrintsDetailedVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Equal(t, version.Detailed(), strings.TrimSpace(out))
}

func TestVersionCommand_Structured(t *testing.T) {
	out, err := execute(t, "version", "-o", "json")
	require.NoError(t, err)

	var info version.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	require.Equal(t, version.Get(), info)

	out, err = execute(t, "version", "--output", "yaml")
	require.NoError(t, err)

	info = version.Info{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &info))
	require.Equal(t, version.AppName, info.App)

	_, err = execute(t, "version", "-o", "xml")
	require.ErrorContains(t, err, `unknown output format "xml"`)
}
