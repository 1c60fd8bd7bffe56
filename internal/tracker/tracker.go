// Package tracker remembers the content this process wrote on behalf of the
// remote peer so the local watcher can recognise those writes as echoes.
package tracker

import (
	"sync"

	"github.com/framer/codelink/internal/ident"
	"github.com/framer/codelink/internal/syncpath"
)

// Tracker maps canonical paths to the fingerprint of the last remote-origin write.
// A path present in the map means the latest write observed for it came from sync,
// not from the user. Safe for concurrent use by the inbound and outbound paths.
type Tracker struct {
	mu    sync.Mutex
	files map[string]ident.Fingerprint
}

func New() *Tracker {
	return &Tracker{files: make(map[string]ident.Fingerprint)}
}

// Remember records content as written by sync. Call it right after applying remote content.
func (t *Tracker) Remember(path string, content []byte) {
	fp := ident.FingerprintOf(content)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[syncpath.Canonical(path)] = fp
}

// ShouldSkip reports whether content at path is indistinguishable from the last
// remote-origin write. Fingerprints are sampled, so a local edit that keeps the
// length, prefix and suffix of that write is also skipped.
func (t *Tracker) ShouldSkip(path string, content []byte) bool {
	fp := ident.FingerprintOf(content)

	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.files[syncpath.Canonical(path)]
	return ok && last == fp
}

// Forget drops the entry for path.
func (t *Tracker) Forget(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.files, syncpath.Canonical(path))
}

// Clear drops every entry. Used on reconnect and full resync.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.files)
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.files)
}
