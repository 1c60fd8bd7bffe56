package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/framer/codelink/internal/conflict"
	"github.com/framer/codelink/internal/ident"
	"github.com/framer/codelink/internal/syncmsg"
)

// reportConflict records c with a diff preview when content is at hand and tells
// the peer. Nothing is written.
func (b *Bridge) reportConflict(s *session, c conflict.Summary, local, remote []byte) {
	if local == nil {
		local, _ = b.cache.Get(c.Path)
	}
	if local != nil || remote != nil {
		c.Diff = conflict.Preview(c.Path, local, remote, previewMaxBytes)
	}

	c = b.conflicts.Record(c)
	slog.Warn("sync conflict", "path", c.Path, "local", c.LocalFingerprint, "remote", c.RemoteFingerprint, "reason", c.Reason)

	if s == nil {
		return
	}
	if err := s.send(syncmsg.NewConflict(c.Path, c.LocalFingerprint, c.RemoteFingerprint, c.Reason, c.DetectedAt)); err != nil {
		slog.Warn("sync conflict notify", "path", c.Path, "error", err)
	}
}

// ResolveConflict settles a conflict in favour of the local copy: its content, or
// its absence, becomes the agreed state on both sides.
func (b *Bridge) ResolveConflict(ctx context.Context, rel string) error {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()

	if _, ok := b.conflicts.Get(rel); !ok {
		return fmt.Errorf("%w: %s", conflict.ErrNoConflict, rel)
	}
	s := b.active()
	if s == nil {
		return ErrNotConnected
	}

	content, err := b.readLocal(rel)
	if err != nil {
		return err
	}

	if content == nil {
		if err := s.send(syncmsg.NewForcedDelete(rel)); err != nil {
			return err
		}
		b.forgetAgreed(rel)
	} else {
		fp := ident.FingerprintOf(content).String()
		if err := s.send(syncmsg.NewForcedUpsert(rel, content, fp)); err != nil {
			return err
		}
		b.recordAgreed(rel, content)
	}

	b.pending.Resolve(rel)
	b.conflicts.Clear(rel)
	slog.Info("sync conflict resolved", "path", rel, "kept", "local")
	return nil
}
