package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/framer/codelink/internal/syncmsg"
	"github.com/framer/codelink/internal/transport"
	"github.com/framer/codelink/internal/version"
)

const closeReasonBusy = "project already has a peer"

// peer is the sending side of a connection.
type peer interface {
	Send(ctx context.Context, msg *syncmsg.Message) error
	CloseWith(status websocket.StatusCode, reason string)
	Remote() string
}

// session is one connection to the other side. It becomes established once the
// peer's hello names the same project.
type session struct {
	b    *Bridge
	peer peer
	ctx  context.Context

	established bool
	hello       *syncmsg.Hello
	connectedAt time.Time
}

func newSession(ctx context.Context, b *Bridge, p peer) *session {
	return &session{b: b, peer: p, ctx: ctx, connectedAt: b.clock.Now()}
}

func (s *session) send(msg *syncmsg.Message) error {
	if err := s.peer.Send(s.ctx, msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	s.b.stats.sent.Add(1)
	return nil
}

// handle runs msg through the dispatcher. Before the hello, everything else is dropped.
func (s *session) handle(msg *syncmsg.Message) error {
	s.b.stats.received.Add(1)

	s.b.syncMu.Lock()
	defer s.b.syncMu.Unlock()

	if !s.established && msg.Type != syncmsg.MsgHello {
		slog.Warn("sync dropped message before hello", "remote", s.peer.Remote(), "type", msg.Type, "id", msg.Id)
		return nil
	}
	return syncmsg.Dispatch(msg, s)
}

// attach makes s the current session unless one is already active.
func (b *Bridge) attach(s *session) bool {
	b.sessMu.Lock()
	defer b.sessMu.Unlock()
	if b.session != nil {
		return false
	}
	b.session = s
	return true
}

func (b *Bridge) detach(s *session) {
	b.sessMu.Lock()
	if b.session == s {
		b.session = nil
	}
	b.sessMu.Unlock()
	b.tracker.Clear()
}

// active returns the established session, or nil.
func (b *Bridge) active() *session {
	b.sessMu.RLock()
	defer b.sessMu.RUnlock()
	if b.session == nil || !b.session.established {
		return nil
	}
	return b.session
}

func (b *Bridge) helloMessage() *syncmsg.Message {
	return syncmsg.NewHello(b.project.FullHash, b.project.ShortID, b.peerID, b.sessionID, version.Version)
}

// runSession owns conn until it closes or ctx is done.
func (b *Bridge) runSession(ctx context.Context, conn *transport.Conn) {
	s := newSession(ctx, b, conn)
	if !b.attach(s) {
		slog.Warn("sync rejected second peer", "remote", conn.Remote())
		conn.CloseWith(transport.StatusAlreadyConnected, closeReasonBusy)
		return
	}
	defer b.detach(s)

	// fingerprints from an earlier connection say nothing about this one
	b.tracker.Clear()

	if err := s.send(b.helloMessage()); err != nil {
		slog.Warn("sync hello", "remote", conn.Remote(), "error", err)
		conn.Close()
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return

		case msg, ok := <-conn.Messages():
			if !ok {
				slog.Info("sync peer disconnected", "remote", conn.Remote(), "status", conn.CloseStatus())
				return
			}
			if err := s.handle(msg); err != nil {
				if errors.Is(err, transport.ErrProjectMismatch) {
					slog.Warn("sync closing peer", "remote", conn.Remote(), "error", err)
					conn.CloseWith(transport.StatusProjectMismatch, err.Error())
					return
				}
				slog.Warn("sync handle", "remote", conn.Remote(), "type", msg.Type, "id", msg.Id, "error", err)
			}
		}
	}
}

// acceptLoop hands accepted connections to sessions.
func (b *Bridge) acceptLoop(ctx context.Context, server *transport.Server) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case conn := <-server.Conns():
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.runSession(ctx, conn)
			}()
		}
	}
}

// dialLoop keeps one connection to the listening side, reconnecting with backoff.
func (b *Bridge) dialLoop(ctx context.Context) error {
	var backoff transport.Backoff
	url := b.remoteURL()

	for {
		conn, err := transport.Dial(ctx, transport.DialOptions{
			URL:     url,
			ShortID: b.project.ShortID,
			Conn:    b.connOptions(),
		})
		if err == nil {
			backoff.Reset()
			b.runSession(ctx, conn)
		} else if ctx.Err() == nil {
			level := slog.LevelDebug
			if errors.Is(err, transport.ErrProjectMismatch) {
				level = slog.LevelWarn
			}
			slog.Log(ctx, level, "sync dial", "url", url, "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff.Next()):
		}
	}
}
