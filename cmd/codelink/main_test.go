package main

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framer/codelink/internal/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, _, err := loadConfig(parsed(t, "--dir", dir, "--hash", testHash))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	d := config.Default()
	assert.Equal(t, testHash, cfg.ProjectHash)
	assert.Equal(t, config.RoleListen, cfg.Role)
	assert.Equal(t, d.Encoding, cfg.Encoding)
	assert.Equal(t, d.Debounce, cfg.Debounce)
	assert.Equal(t, d.HTTPAddr, cfg.HTTPAddr)
	assert.ElementsMatch(t, d.Extensions, cfg.Extensions)
}

func TestLoadConfigEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CODELINK_PROJECT_DIR", dir)
	t.Setenv("CODELINK_PROJECT_HASH", testHash)
	t.Setenv("CODELINK_ROLE", "dial")
	t.Setenv("CODELINK_REMOTE_HOST", "10.0.0.7")
	t.Setenv("CODELINK_ENCODING", "msgpack")
	t.Setenv("CODELINK_DEBOUNCE", "75ms")
	t.Setenv("CODELINK_CONFIRM_REMOTE_DELETES", "true")
	t.Setenv("CODELINK_LOG_LEVEL", "debug")

	cfg, _, err := loadConfig(parsed(t))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, dir, cfg.ProjectDir)
	assert.Equal(t, testHash, cfg.ProjectHash)
	assert.Equal(t, config.RoleDial, cfg.Role)
	assert.Equal(t, "10.0.0.7", cfg.RemoteHost)
	assert.Equal(t, "msgpack", cfg.Encoding)
	assert.Equal(t, 75*time.Millisecond, cfg.Debounce)
	assert.True(t, cfg.ConfirmRemoteDeletes)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigJSON(t *testing.T) {
	dir := t.TempDir()
	stateDir := filepath.Join(dir, config.StateDirName)
	require.NoError(t, os.MkdirAll(stateDir, 0o755))

	doc := `{
	"project_hash": "` + testHash + `",
	"port": 7400,
	"extensions": [".ts", ".css"],
	"debounce": "120ms",
	"http_addr": "127.0.0.1:9010"
}`
	require.NoError(t, os.WriteFile(filepath.Join(stateDir, config.ConfigFileName), []byte(doc), 0o644))

	cfg, _, err := loadConfig(parsed(t, "--dir", dir))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, testHash, cfg.ProjectHash)
	assert.Equal(t, 7400, cfg.Port)
	assert.Equal(t, 120*time.Millisecond, cfg.Debounce)
	assert.Equal(t, "127.0.0.1:9010", cfg.HTTPAddr)
	assert.Contains(t, cfg.Extensions, ".css")
}

func TestLoadConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(t.TempDir(), "custom.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"project_hash": "from-file", "port": 7401, "role": "dial"}`), 0o644))

	t.Setenv("CODELINK_PORT", "7402")

	cfg, _, err := loadConfig(parsed(t, "--dir", dir, "--config", file, "--role", "listen"))
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.ProjectHash)
	assert.Equal(t, 7402, cfg.Port, "env beats the config file")
	assert.Equal(t, config.RoleListen, cfg.Role, "flags beat everything")
}

func TestLoadConfigBadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"port": `), 0o644))

	_, _, err := loadConfig(parsed(t, "--config", file))
	require.ErrorContains(t, err, "config read")
}

func TestRunRequiresHash(t *testing.T) {
	_, err := execute(t, "run", "--dir", t.TempDir())
	require.ErrorIs(t, err, config.ErrNoProjectHash)
}

func TestRunBusyHTTPAddrLeavesProjectUnlocked(t *testing.T) {
	dir := t.TempDir()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	_, err = execute(t, "run", "--dir", dir, "--hash", testHash, "--http-addr", ln.Addr().String())
	require.ErrorContains(t, err, "listen")

	stateDir := filepath.Join(dir, config.StateDirName)
	require.NoError(t, os.MkdirAll(stateDir, 0o755))
	lock := flock.New(filepath.Join(stateDir, config.LockFileName))
	locked, err := lock.TryLock()
	require.NoError(t, err)
	assert.True(t, locked)
	require.NoError(t, lock.Unlock())
}
