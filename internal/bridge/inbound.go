package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/framer/codelink/internal/conflict"
	"github.com/framer/codelink/internal/ident"
	"github.com/framer/codelink/internal/pending"
	"github.com/framer/codelink/internal/syncmsg"
	"github.com/framer/codelink/internal/utils"
	"github.com/framer/codelink/internal/watcher"
)

const filePerm = 0o644

// receiveUpsert is the inbound path for file content from the peer.
func (b *Bridge) receiveUpsert(s *session, u *syncmsg.FileUpsert) error {
	incoming := ident.FingerprintOf(u.Content).String()
	if u.Fingerprint != "" && u.Fingerprint != incoming {
		slog.Warn("sync upsert fingerprint differs from content", "path", u.Path, "announced", u.Fingerprint, "computed", incoming)
	}

	if d, ok := b.pending.Get(u.Path); ok {
		switch {
		case u.Force:
			b.pending.Resolve(u.Path)
		case d.Origin == pending.OriginLocal:
			b.reportConflict(s, conflict.Summary{
				Path:              u.Path,
				RemoteFingerprint: incoming,
				Reason:            "edited remotely while delete pending",
			}, nil, u.Content)
			return nil
		default:
			// the peer recreated the file it asked us to delete
			b.pending.Resolve(u.Path)
		}
	}

	local, err := b.readLocal(u.Path)
	if err != nil {
		return &watcher.PathError{Path: u.Path, Op: "read", Err: err}
	}
	localFP := fingerprintOf(local)

	agreed, err := b.journal.Fingerprint(u.Path)
	if err != nil {
		return fmt.Errorf("journal read %s: %w", u.Path, err)
	}

	decision := conflict.Apply
	if !u.Force {
		decision = conflict.DecideUpsert(localFP, agreed, u.Base, incoming)
	}

	switch decision {
	case conflict.Agree:
		b.recordAgreed(u.Path, u.Content)
		b.conflicts.Clear(u.Path)
		return nil

	case conflict.Diverged:
		reason := "changed on both sides"
		if agreed == "" {
			reason = "differs on first sync"
		}
		b.reportConflict(s, conflict.Summary{
			Path:              u.Path,
			LocalFingerprint:  localFP,
			RemoteFingerprint: incoming,
			Reason:            reason,
		}, local, u.Content)
		return nil
	}

	if err := b.apply(s.ctx, u.Path, u.Content); err != nil {
		_ = s.send(syncmsg.NewError(syncmsg.CodeWriteFailed, u.Path, err.Error()))
		return err
	}
	b.conflicts.Clear(u.Path)
	return nil
}

// Apply writes remote content to rel as if it had arrived from the peer. The
// watcher will not echo it back.
func (b *Bridge) Apply(ctx context.Context, rel string, content []byte) error {
	if err := b.acceptsPath(rel); err != nil {
		return err
	}
	b.syncMu.Lock()
	defer b.syncMu.Unlock()
	return b.apply(ctx, rel, content)
}

func (b *Bridge) apply(ctx context.Context, rel string, content []byte) error {
	// remember first: the watcher may see the write before WriteFileAtomic returns
	b.tracker.Remember(rel, content)

	_, err := utils.WithTimeout(ctx, b.cfg.IOTimeout, func() (struct{}, error) {
		return struct{}{}, utils.WriteFileAtomic(b.fs, b.osPath(rel), content, filePerm)
	})
	if err != nil {
		b.tracker.Forget(rel)
		return &watcher.PathError{Path: rel, Op: "write", Err: err}
	}

	b.recordAgreed(rel, content)
	b.cache.Put(rel, content)
	b.deps.Update(rel, content)
	b.stats.applied.Add(1)
	slog.Info("sync applied", "path", rel, "size", len(content))
	return nil
}
