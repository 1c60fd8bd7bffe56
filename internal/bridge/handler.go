package bridge

import (
	"fmt"
	"log/slog"

	"github.com/framer/codelink/internal/conflict"
	"github.com/framer/codelink/internal/ident"
	"github.com/framer/codelink/internal/syncmsg"
	"github.com/framer/codelink/internal/transport"
)

var _ syncmsg.Handler = (*session)(nil)

func (s *session) HandleHello(msg *syncmsg.Message, hello *syncmsg.Hello) error {
	if s.established {
		slog.Debug("sync duplicate hello", "remote", s.peer.Remote(), "peer", hello.Peer)
		return nil
	}

	identity := hello.ShortID
	if identity == "" {
		identity = hello.ProjectHash
	}
	if !s.b.project.Matches(identity) {
		return s.rejectHello(hello, identity, s.b.project.ShortID)
	}
	// Full hashes are compared only when both sides know theirs.
	if hello.ProjectHash != "" && !ident.IsShortID(hello.ProjectHash) && s.b.project.HasFullHash() &&
		hello.ProjectHash != s.b.project.FullHash {
		return s.rejectHello(hello, hello.ProjectHash, s.b.project.FullHash)
	}

	s.b.sessMu.Lock()
	s.established = true
	s.hello = hello
	s.b.sessMu.Unlock()

	slog.Info("sync peer verified",
		"remote", s.peer.Remote(),
		"peer", hello.Peer,
		"session", hello.Session,
		"version", hello.Version,
	)

	state, err := s.b.localState()
	if err != nil {
		return fmt.Errorf("build project state: %w", err)
	}
	return s.send(syncmsg.NewProjectState(s.b.project.ShortID, state.files()))
}

func (s *session) rejectHello(hello *syncmsg.Hello, announced, expected string) error {
	_ = s.send(syncmsg.NewError(syncmsg.CodeMismatch, "", transport.ErrProjectMismatch.Error()))
	return fmt.Errorf("%w: peer %s announced %q, expected %q", transport.ErrProjectMismatch, hello.Peer, announced, expected)
}

func (s *session) HandleProjectState(msg *syncmsg.Message, state *syncmsg.ProjectState) error {
	if state.ShortID != "" && !s.b.project.Matches(state.ShortID) {
		return fmt.Errorf("%w: project state for %q", transport.ErrProjectMismatch, state.ShortID)
	}
	return s.b.reconcile(s, state)
}

func (s *session) HandleFileUpsert(msg *syncmsg.Message, upsert *syncmsg.FileUpsert) error {
	if err := s.b.acceptsPath(upsert.Path); err != nil {
		_ = s.send(syncmsg.NewError(syncmsg.CodeNameRejected, upsert.Path, err.Error()))
		return err
	}
	return s.b.receiveUpsert(s, upsert)
}

func (s *session) HandleFileDelete(msg *syncmsg.Message, del *syncmsg.FileDelete) error {
	if err := s.b.acceptsPath(del.Path); err != nil {
		_ = s.send(syncmsg.NewError(syncmsg.CodeNameRejected, del.Path, err.Error()))
		return err
	}
	return s.b.receiveDelete(s, msg, del)
}

func (s *session) HandleDeleteAck(msg *syncmsg.Message, ack *syncmsg.DeleteAck) error {
	return s.b.receiveDeleteAck(ack)
}

// HandleConflict records the peer's view. Its local is our remote.
func (s *session) HandleConflict(msg *syncmsg.Message, c *syncmsg.Conflict) error {
	existing, ok := s.b.conflicts.Get(c.Path)
	if ok && existing.LocalFingerprint == c.Remote && existing.RemoteFingerprint == c.Local {
		return nil
	}
	s.b.conflicts.Record(conflict.Summary{
		Path:              c.Path,
		LocalFingerprint:  c.Remote,
		RemoteFingerprint: c.Local,
		Reason:            c.Reason,
	})
	slog.Warn("sync conflict reported by peer", "path", c.Path, "reason", c.Reason)
	return nil
}

func (s *session) HandleError(msg *syncmsg.Message, e *syncmsg.Error) error {
	slog.Warn("sync peer error", "remote", s.peer.Remote(), "code", e.Code, "path", e.Path, "message", e.Message)
	if e.Code == syncmsg.CodeMismatch {
		return transport.ErrProjectMismatch
	}
	return nil
}
