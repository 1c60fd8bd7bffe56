package bridge

import (
	"context"
	"errors"
	"log/slog"

	"github.com/framer/codelink/internal/ident"
	"github.com/framer/codelink/internal/journal"
	"github.com/framer/codelink/internal/pending"
	"github.com/framer/codelink/internal/syncmsg"
	"github.com/framer/codelink/internal/utils"
	"github.com/framer/codelink/internal/watcher"
)

// watchLoop forwards local changes to the peer until the watcher closes.
func (b *Bridge) watchLoop(ctx context.Context) error {
	events := b.watcher.Events()
	errs := b.watcher.Errors()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			var pathErr *watcher.PathError
			if errors.As(err, &pathErr) {
				slog.Warn("file watcher path error", "path", pathErr.Path, "op", pathErr.Op, "error", pathErr.Err)
			} else {
				slog.Warn("file watcher", "error", err)
			}

		case ev, ok := <-events:
			if !ok {
				return watcher.ErrWatcherClosed
			}
			b.publish(ev)
			b.handleLocal(ev)
		}
	}
}

func (b *Bridge) publish(ev watcher.SyncEvent) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// handleLocal is the outbound path for one watcher event.
func (b *Bridge) handleLocal(ev watcher.SyncEvent) {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()

	switch ev.Kind {
	case watcher.EventAdd, watcher.EventChange:
		b.deps.Update(ev.Path, ev.Content)

		if b.tracker.ShouldSkip(ev.Path, ev.Content) {
			b.stats.suppressed.Add(1)
			slog.Debug("sync echo suppressed", "path", ev.Path, "fingerprint", ev.Fingerprint)
			return
		}
		// the remembered write is stale once the user edits the file
		b.tracker.Forget(ev.Path)
		b.cache.Put(ev.Path, ev.Content)

		if b.pending.Has(ev.Path, pending.OriginLocal) {
			slog.Debug("sync file recreated while delete pending", "path", ev.Path)
		}

		s := b.active()
		if s == nil {
			slog.Debug("sync offline, change kept for reconnect", "path", ev.Path)
			return
		}
		base, err := b.journal.Fingerprint(ev.Path)
		if err != nil {
			slog.Warn("journal read", "path", ev.Path, "error", err)
			return
		}
		if err := b.sendUpsert(s, ev.Path, ev.Content, base); err != nil {
			slog.Warn("sync upsert", "path", ev.Path, "error", err)
		}

	case watcher.EventUnlink:
		b.deps.Remove(ev.Path)
		b.tracker.Forget(ev.Path)

		base, err := b.journal.Fingerprint(ev.Path)
		if err != nil {
			slog.Warn("journal read", "path", ev.Path, "error", err)
			return
		}
		if base == "" {
			// never agreed, or the delete came from the peer
			slog.Debug("sync unlink not forwarded", "path", ev.Path)
			return
		}

		s := b.active()
		if s == nil {
			slog.Debug("sync offline, delete kept for reconnect", "path", ev.Path)
			return
		}
		msg := syncmsg.NewFileDelete(ev.Path, base)
		b.pending.Add(ev.Path, pending.OriginLocal, msg.Id, base)
		if err := s.send(msg); err != nil {
			b.pending.Resolve(ev.Path)
			slog.Warn("sync delete", "path", ev.Path, "error", err)
			return
		}
		slog.Info("sync delete requested", "path", ev.Path)
	}
}

// sendUpsert sends content and moves the agreed state to it.
func (b *Bridge) sendUpsert(s *session, rel string, content []byte, base string) error {
	fp := ident.FingerprintOf(content).String()
	if err := s.send(syncmsg.NewFileUpsert(rel, content, fp, base)); err != nil {
		return err
	}
	b.pending.Resolve(rel)
	b.recordAgreed(rel, content)
	slog.Debug("sync upsert sent", "path", rel, "size", len(content))
	return nil
}

func (b *Bridge) recordAgreed(rel string, content []byte) {
	err := b.journal.Set(journal.Entry{
		Path:        rel,
		Fingerprint: ident.FingerprintOf(content).String(),
		Digest:      ident.Digest(content),
		Size:        int64(len(content)),
	})
	if err != nil {
		slog.Warn("journal set", "path", rel, "error", err)
	}
}

// readLocal returns nil for a missing file. Reads are bounded by the io timeout.
func (b *Bridge) readLocal(rel string) ([]byte, error) {
	return utils.WithTimeout(context.Background(), b.cfg.IOTimeout, func() ([]byte, error) {
		return utils.ReadFileIfExists(b.fs, b.osPath(rel))
	})
}

func fingerprintOf(content []byte) string {
	if content == nil {
		return ""
	}
	return ident.FingerprintOf(content).String()
}
