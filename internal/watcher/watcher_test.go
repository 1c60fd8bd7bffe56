package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framer/codelink/internal/ident"
	"github.com/framer/codelink/internal/syncpath"
)

func startWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	w := New(dir, Options{Debounce: 20 * time.Millisecond})
	require.NoError(t, w.Start(t.Context()), "failed to start watcher")
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func nextEvent(t *testing.T, w *Watcher) SyncEvent {
	t.Helper()
	select {
	case ev, ok := <-w.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(3 * time.Second):
		require.FailNow(t, "timeout waiting for sync event")
	}
	return SyncEvent{}
}

func noEvent(t *testing.T, w *Watcher, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-w.Events():
		assert.Failf(t, "unexpected event", "%s", ev)
	case <-time.After(wait):
	}
}

func TestWatcher_AddChangeUnlink(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	file := filepath.Join(w.Root(), "app.tsx")
	require.NoError(t, os.WriteFile(file, []byte("one"), 0o644))

	ev := nextEvent(t, w)
	assert.Equal(t, EventAdd, ev.Kind)
	assert.Equal(t, "app.tsx", ev.Path)
	assert.Equal(t, []byte("one"), ev.Content)
	assert.Equal(t, ident.FingerprintString("one"), ev.Fingerprint)

	require.NoError(t, os.WriteFile(file, []byte("two"), 0o644))
	ev = nextEvent(t, w)
	assert.Equal(t, EventChange, ev.Kind)
	assert.Equal(t, []byte("two"), ev.Content)

	require.NoError(t, os.Remove(file))
	ev = nextEvent(t, w)
	assert.Equal(t, EventUnlink, ev.Kind)
	assert.Equal(t, "app.tsx", ev.Path)
	assert.Nil(t, ev.Content)
}

func TestWatcher_SanitizesAndRenames(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	raw := filepath.Join(w.Root(), "bad name!.tsx")
	require.NoError(t, os.WriteFile(raw, []byte("export const X = 1;"), 0o644))

	ev := nextEvent(t, w)
	assert.Equal(t, EventAdd, ev.Kind)
	assert.Equal(t, "bad_name_.tsx", ev.Path)
	assert.Contains(t, string(ev.Content), "export const X = 1;")

	_, err := os.Stat(filepath.Join(w.Root(), "bad_name_.tsx"))
	assert.NoError(t, err, "file should be renamed on disk")
	_, err = os.Stat(raw)
	assert.True(t, os.IsNotExist(err), "raw name should be gone")

	// the rename itself must not surface as another event
	noEvent(t, w, 200*time.Millisecond)
}

func TestWatcher_SanitizeCollisionReported(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_b.ts"), []byte("existing"), 0o644))
	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(w.Root(), "a b.ts"), []byte("new"), 0o644))

	select {
	case err := <-w.Errors():
		assert.ErrorIs(t, err, syncpath.ErrNameCollision)
		var perr *PathError
		assert.True(t, errors.As(err, &perr))
	case <-time.After(3 * time.Second):
		require.FailNow(t, "timeout waiting for collision error")
	}

	content, err := os.ReadFile(filepath.Join(w.Root(), "a_b.ts"))
	require.NoError(t, err)
	assert.Equal(t, "existing", string(content), "existing file must not be overwritten")
	noEvent(t, w, 150*time.Millisecond)
}

func TestWatcher_UnsupportedExtensionIgnored(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(w.Root(), "notes.txt"), []byte("hello"), 0o644))
	noEvent(t, w, 300*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(w.Root(), "notes.txt")))
	noEvent(t, w, 200*time.Millisecond)
}

func TestWatcher_IgnoredDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules", "react"), 0o755))
	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(w.Root(), "node_modules", "react", "index.js"), []byte("x"), 0o644))
	noEvent(t, w, 300*time.Millisecond)
}

func TestWatcher_NestedDirectories(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir)

	sub := filepath.Join(w.Root(), "src", "components")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "Button.tsx"), []byte("btn"), 0o644))

	ev := nextEvent(t, w)
	assert.Equal(t, EventAdd, ev.Kind)
	assert.Equal(t, "src/components/Button.tsx", ev.Path)

	require.NoError(t, os.RemoveAll(filepath.Join(w.Root(), "src")))
	ev = nextEvent(t, w)
	assert.Equal(t, EventUnlink, ev.Kind)
	assert.Equal(t, "src/components/Button.tsx", ev.Path)
}

func TestWatcher_ExistingFilesAreKnown(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.ts"), []byte("v1"), 0o644))
	w := startWatcher(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(w.Root(), "index.ts"), []byte("v2"), 0o644))
	ev := nextEvent(t, w)
	assert.Equal(t, EventChange, ev.Kind)
}

func TestWatcher_ExistingUnsanitizedFileRenamedAtStart(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old name!.tsx"), []byte("v1"), 0o644))
	w := startWatcher(t, dir)

	_, err := os.Stat(filepath.Join(w.Root(), "old_name_.tsx"))
	require.NoError(t, err, "file should be renamed before watching starts")
	_, err = os.Stat(filepath.Join(w.Root(), "old name!.tsx"))
	assert.True(t, os.IsNotExist(err))
	noEvent(t, w, 150*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(w.Root(), "old_name_.tsx"), []byte("v2"), 0o644))
	ev := nextEvent(t, w)
	assert.Equal(t, EventChange, ev.Kind)
	assert.Equal(t, "old_name_.tsx", ev.Path)
}

func TestWatcher_ExistingCollisionNotKnown(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_b.ts"), []byte("existing"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a b.ts"), []byte("other"), 0o644))
	w := startWatcher(t, dir)

	select {
	case err := <-w.Errors():
		assert.ErrorIs(t, err, syncpath.ErrNameCollision)
	default:
		require.FailNow(t, "collision at start should be reported")
	}
	assert.Equal(t, 1, w.known.Cardinality())
	assert.True(t, w.known.Contains("a_b.ts"))

	content, err := os.ReadFile(filepath.Join(w.Root(), "a_b.ts"))
	require.NoError(t, err)
	assert.Equal(t, "existing", string(content))
}

func TestWatcher_Lifecycle(t *testing.T) {
	w := New(t.TempDir(), Options{})
	require.NoError(t, w.Start(t.Context()))
	assert.ErrorIs(t, w.Start(t.Context()), ErrAlreadyStarted)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "close is idempotent")
	assert.ErrorIs(t, w.Start(t.Context()), ErrWatcherClosed)

	_, ok := <-w.Events()
	assert.False(t, ok, "events closed after Close")
}

func TestWatcher_CloseBeforeStart(t *testing.T) {
	w := New(t.TempDir(), Options{})
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

func TestWatcher_MissingDir(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"), Options{})
	assert.ErrorIs(t, w.Start(t.Context()), ErrDirNotExist)
}

func TestWatcher_IndependentInstances(t *testing.T) {
	a := startWatcher(t, t.TempDir())
	b := startWatcher(t, t.TempDir())

	require.NoError(t, os.WriteFile(filepath.Join(a.Root(), "a.ts"), []byte("a"), 0o644))
	ev := nextEvent(t, a)
	assert.Equal(t, "a.ts", ev.Path)
	noEvent(t, b, 150*time.Millisecond)
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendFsnotify, b)

	b, err = ParseBackend("Notify")
	require.NoError(t, err)
	assert.Equal(t, BackendNotify, b)

	_, err = ParseBackend("inotifywait")
	assert.Error(t, err)
}
