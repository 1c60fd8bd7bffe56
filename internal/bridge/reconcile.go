package bridge

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"

	"github.com/framer/codelink/internal/conflict"
	"github.com/framer/codelink/internal/ident"
	"github.com/framer/codelink/internal/journal"
	"github.com/framer/codelink/internal/pending"
	"github.com/framer/codelink/internal/syncmsg"
	"github.com/framer/codelink/internal/syncpath"
)

// snapshotEntry is one local file as seen during a scan.
type snapshotEntry struct {
	conflict.Entry
	Digest string
}

type localSnapshot map[string]snapshotEntry

func (l localSnapshot) entries() conflict.Snapshot {
	snap := make(conflict.Snapshot, len(l))
	for p, e := range l {
		snap[p] = e.Entry
	}
	return snap
}

func (l localSnapshot) files() []syncmsg.FileState {
	files := make([]syncmsg.FileState, 0, len(l))
	for p, e := range l {
		files = append(files, syncmsg.FileState{
			Path:        p,
			Fingerprint: e.Fingerprint,
			Digest:      e.Digest,
			Size:        e.Size,
		})
	}
	slices.SortFunc(files, func(a, b syncmsg.FileState) int {
		if a.Path < b.Path {
			return -1
		}
		if a.Path > b.Path {
			return 1
		}
		return 0
	})
	return files
}

// localState walks the project and fingerprints every synced file. Names that still
// need sanitizing are left for the watcher to rename.
func (b *Bridge) localState() (localSnapshot, error) {
	snap := localSnapshot{}
	err := afero.Walk(b.fs, b.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == b.root {
				return err
			}
			slog.Debug("scan skip", "path", path, "error", err)
			return nil
		}
		if path == b.root {
			return nil
		}

		rel, err := syncpath.RelFromRoot(b.root, path)
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if b.ignore.ShouldIgnoreDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || b.ignore.ShouldIgnore(rel) || !b.exts.IsSupported(rel) {
			return nil
		}
		if syncpath.Canonical(rel) != rel {
			return nil
		}

		content, err := afero.ReadFile(b.fs, path)
		if err != nil {
			slog.Warn("scan read", "path", rel, "error", err)
			return nil
		}
		snap[rel] = snapshotEntry{
			Entry: conflict.Entry{
				Fingerprint: ident.FingerprintOf(content).String(),
				Size:        int64(len(content)),
			},
			Digest: ident.Digest(content),
		}
		b.cache.Put(rel, content)
		b.deps.Update(rel, content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", b.root, err)
	}
	return snap, nil
}

// reconcile compares the peer's announced state with ours and the journal, then
// acts on our half of the plan. The peer runs the mirror image.
func (b *Bridge) reconcile(s *session, state *syncmsg.ProjectState) error {
	local, err := b.localState()
	if err != nil {
		return err
	}

	remote := make(conflict.Snapshot, len(state.Files))
	for _, f := range state.Files {
		remote[f.Path] = conflict.Entry{Fingerprint: f.Fingerprint, Size: f.Size}
	}

	base, err := b.journal.Fingerprints()
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	plan := conflict.Compare(local.entries(), remote, base)

	for _, p := range plan.Agreed {
		e := local[p]
		if err := b.journal.Set(journal.Entry{Path: p, Fingerprint: e.Fingerprint, Digest: e.Digest, Size: e.Size}); err != nil {
			slog.Warn("journal set", "path", p, "error", err)
		}
		b.conflicts.Clear(p)
	}

	for _, p := range plan.Push {
		if err := b.pushFile(s, p, base[p]); err != nil {
			slog.Warn("sync push", "path", p, "error", err)
		}
	}

	for _, p := range plan.Delete {
		msg := syncmsg.NewFileDelete(p, base[p])
		b.pending.Add(p, pending.OriginLocal, msg.Id, base[p])
		if err := s.send(msg); err != nil {
			b.pending.Resolve(p)
			slog.Warn("sync delete", "path", p, "error", err)
		}
	}

	for _, c := range plan.Conflicts {
		b.reportConflict(s, c, nil, nil)
	}

	slog.Info("sync reconciled",
		"local", len(local),
		"remote", len(remote),
		"agreed", len(plan.Agreed),
		"pushed", len(plan.Push),
		"remoteAhead", len(plan.RemoteAhead),
		"remoteOnly", len(plan.RemoteOnly),
		"deletes", len(plan.Delete),
		"conflicts", len(plan.Conflicts),
	)
	return nil
}

// pushFile sends the current content of rel and records it as agreed.
func (b *Bridge) pushFile(s *session, rel, base string) error {
	content, err := b.readLocal(rel)
	if err != nil {
		return err
	}
	if content == nil {
		return nil
	}
	return b.sendUpsert(s, rel, content, base)
}
