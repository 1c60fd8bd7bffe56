package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/framer/codelink/internal/conflict"
	"github.com/framer/codelink/internal/pending"
	"github.com/framer/codelink/internal/syncmsg"
	"github.com/framer/codelink/internal/utils"
	"github.com/framer/codelink/internal/watcher"
)

var ErrNotRemoteDelete = errors.New("pending delete was not requested by the peer")

const (
	reasonChangedLocally = "changed locally since last sync"
	reasonRejected       = "rejected locally"
)

// receiveDelete handles the peer's request to remove a file.
func (b *Bridge) receiveDelete(s *session, msg *syncmsg.Message, d *syncmsg.FileDelete) error {
	local, err := b.readLocal(d.Path)
	if err != nil {
		return &watcher.PathError{Path: d.Path, Op: "read", Err: err}
	}
	localFP := fingerprintOf(local)

	if !d.Force && !conflict.DecideDelete(localFP, d.Base) {
		if err := s.send(syncmsg.NewDeleteAck(msg.Id, d.Path, false, reasonChangedLocally)); err != nil {
			return err
		}
		b.reportConflict(s, conflict.Summary{
			Path:             d.Path,
			LocalFingerprint: localFP,
			Reason:           "deleted remotely, changed locally",
		}, local, nil)

		base, err := b.journal.Fingerprint(d.Path)
		if err != nil {
			return err
		}
		return b.sendUpsert(s, d.Path, local, base)
	}

	if local != nil && b.cfg.ConfirmRemoteDeletes && !d.Force {
		p := b.pending.Add(d.Path, pending.OriginRemote, msg.Id, d.Base)
		slog.Info("sync delete awaiting confirmation", "path", d.Path, "expires", p.ExpiresAt)
		return nil
	}

	if err := b.applyDelete(s.ctx, d.Path); err != nil {
		_ = s.send(syncmsg.NewDeleteAck(msg.Id, d.Path, false, err.Error()))
		return err
	}
	return s.send(syncmsg.NewDeleteAck(msg.Id, d.Path, true, ""))
}

// receiveDeleteAck completes a delete this side requested.
func (b *Bridge) receiveDeleteAck(ack *syncmsg.DeleteAck) error {
	d, ok := b.pending.Get(ack.Path)
	if !ok || d.Origin != pending.OriginLocal {
		slog.Debug("sync ack without pending delete", "path", ack.Path, "id", ack.OriginalId)
		return nil
	}
	if ack.OriginalId != "" && d.MsgId != "" && ack.OriginalId != d.MsgId {
		slog.Debug("sync ack for an older delete", "path", ack.Path, "id", ack.OriginalId)
		return nil
	}
	b.pending.Resolve(ack.Path)

	if !ack.Accepted {
		// the peer sends its copy right after a refusal
		slog.Warn("sync delete refused by peer", "path", ack.Path, "reason", ack.Reason)
		return nil
	}

	b.forgetAgreed(ack.Path)
	slog.Info("sync delete confirmed", "path", ack.Path)
	return nil
}

// applyDelete removes rel locally. The journal entry goes first, so the watcher's
// unlink is not forwarded back.
func (b *Bridge) applyDelete(ctx context.Context, rel string) error {
	b.forgetAgreed(rel)
	b.tracker.Forget(rel)
	b.deps.Remove(rel)

	_, err := utils.WithTimeout(ctx, b.cfg.IOTimeout, func() (struct{}, error) {
		return struct{}{}, utils.RemoveFile(b.fs, b.osPath(rel))
	})
	if err != nil {
		return &watcher.PathError{Path: rel, Op: "remove", Err: err}
	}
	b.stats.applied.Add(1)
	slog.Info("sync deleted", "path", rel)
	return nil
}

func (b *Bridge) forgetAgreed(rel string) {
	if err := b.journal.Delete(rel); err != nil {
		slog.Warn("journal delete", "path", rel, "error", err)
	}
	b.cache.Remove(rel)
}

// expirePending resolves deletes nobody answered in time by going ahead with them.
func (b *Bridge) expirePending(ctx context.Context) {
	expired := b.pending.Expire()
	if len(expired) == 0 {
		return
	}

	b.syncMu.Lock()
	defer b.syncMu.Unlock()

	s := b.active()
	for _, d := range expired {
		switch d.Origin {
		case pending.OriginLocal:
			if s == nil {
				// keep the agreed entry so the next reconcile asks again
				slog.Info("sync delete expired offline", "path", d.Path)
				continue
			}
			b.forgetAgreed(d.Path)
			slog.Info("sync delete expired, proceeding", "path", d.Path)

		case pending.OriginRemote:
			if err := b.applyDelete(ctx, d.Path); err != nil {
				slog.Warn("sync delete on expiry", "path", d.Path, "error", err)
				continue
			}
			if s != nil {
				if err := s.send(syncmsg.NewDeleteAck(d.MsgId, d.Path, true, "")); err != nil {
					slog.Warn("sync ack", "path", d.Path, "error", err)
				}
			}
		}
	}
}

// ConfirmDelete applies a delete the peer requested and acknowledges it.
func (b *Bridge) ConfirmDelete(ctx context.Context, rel string) (pending.Delete, error) {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()

	d, err := b.takeRemoteDelete(rel)
	if err != nil {
		return d, err
	}
	if err := b.applyDelete(ctx, d.Path); err != nil {
		return d, err
	}
	if s := b.active(); s != nil {
		if err := s.send(syncmsg.NewDeleteAck(d.MsgId, d.Path, true, "")); err != nil {
			return d, err
		}
	}
	return d, nil
}

// RejectDelete keeps the local file, refuses the peer's delete and sends our copy back.
func (b *Bridge) RejectDelete(ctx context.Context, rel string) (pending.Delete, error) {
	b.syncMu.Lock()
	defer b.syncMu.Unlock()

	d, err := b.takeRemoteDelete(rel)
	if err != nil {
		return d, err
	}

	s := b.active()
	if s == nil {
		return d, ErrNotConnected
	}
	if err := s.send(syncmsg.NewDeleteAck(d.MsgId, d.Path, false, reasonRejected)); err != nil {
		return d, err
	}
	content, err := b.readLocal(d.Path)
	if err != nil || content == nil {
		return d, err
	}
	base, err := b.journal.Fingerprint(d.Path)
	if err != nil {
		return d, err
	}
	return d, b.sendUpsert(s, d.Path, content, base)
}

func (b *Bridge) takeRemoteDelete(rel string) (pending.Delete, error) {
	d, ok := b.pending.Get(rel)
	if !ok {
		return d, fmt.Errorf("%w: %s", pending.ErrNotPending, rel)
	}
	if d.Origin != pending.OriginRemote {
		return d, fmt.Errorf("%w: %s", ErrNotRemoteDelete, rel)
	}
	return b.pending.Resolve(rel)
}
