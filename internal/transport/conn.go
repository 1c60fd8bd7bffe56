package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/framer/codelink/internal/syncmsg"
	"github.com/framer/codelink/internal/wsproto"
)

const (
	connChannelSize         = 256
	connPingPeriod          = 15 * time.Second
	connPingTimeout         = 5 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultSendTimeout      = 5 * time.Second
	DefaultMalformedLimit   = 5
	maxMessageSize          = 16 * 1024 * 1024
	StatusMalformed         = websocket.StatusUnsupportedData
	StatusProjectMismatch   = websocket.StatusPolicyViolation
	StatusAlreadyConnected  = websocket.StatusTryAgainLater
	closeReasonShutdown     = "shutdown"
	closeReasonMalformed    = "too many malformed frames"
	closeReasonPeerGone     = "peer gone"
	closeReasonWriteFailure = "write failed"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrQueueFull    = errors.New("send queue full")
)

type ConnOptions struct {
	Encoding       wsproto.Encoding
	WriteTimeout   time.Duration
	SendTimeout    time.Duration
	MalformedLimit int
	// Remote is a label for logs.
	Remote string
}

func (o *ConnOptions) defaults() {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = DefaultSendTimeout
	}
	if o.MalformedLimit <= 0 {
		o.MalformedLimit = DefaultMalformedLimit
	}
}

// Conn is one websocket peer with separate read and write loops.
// Incoming frames are decoded and validated before they reach Messages.
type Conn struct {
	conn *websocket.Conn
	opts ConnOptions

	msgRx   chan *syncmsg.Message
	msgTx   chan *syncmsg.Message
	closed  chan struct{}
	closing chan struct{}

	malformed atomic.Int32
	closeOnce sync.Once
	closeCode atomic.Int32
	wg        sync.WaitGroup
}

func newConn(conn *websocket.Conn, opts ConnOptions) *Conn {
	opts.defaults()
	conn.SetReadLimit(maxMessageSize)
	return &Conn{
		conn:    conn,
		opts:    opts,
		msgRx:   make(chan *syncmsg.Message, connChannelSize),
		msgTx:   make(chan *syncmsg.Message, connChannelSize),
		closed:  make(chan struct{}),
		closing: make(chan struct{}),
	}
}

func (c *Conn) start(ctx context.Context) {
	c.wg.Add(2)
	go c.writeLoop(ctx)
	go c.readLoop(ctx)
}

// Messages yields validated incoming messages. It is closed when the connection closes.
func (c *Conn) Messages() <-chan *syncmsg.Message {
	return c.msgRx
}

// Closed is closed once both loops have exited.
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

func (c *Conn) Encoding() wsproto.Encoding {
	return c.opts.Encoding
}

func (c *Conn) Remote() string {
	return c.opts.Remote
}

// CloseStatus is the status the connection was closed with by this side, or -1.
func (c *Conn) CloseStatus() websocket.StatusCode {
	select {
	case <-c.closed:
		return websocket.StatusCode(c.closeCode.Load())
	default:
		return -1
	}
}

// Send queues msg, waiting at most SendTimeout for room in the queue.
func (c *Conn) Send(ctx context.Context, msg *syncmsg.Message) error {
	timer := time.NewTimer(c.opts.SendTimeout)
	defer timer.Stop()

	select {
	case <-c.closing:
		return ErrNotConnected
	default:
	}

	select {
	case c.msgTx <- msg:
		return nil
	case <-c.closing:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrQueueFull
	}
}

// Close closes the connection with a normal status and waits for the loops to exit.
func (c *Conn) Close() {
	c.CloseWith(websocket.StatusNormalClosure, closeReasonShutdown)
}

// CloseWith closes the connection with status. Safe to call more than once.
func (c *Conn) CloseWith(status websocket.StatusCode, reason string) {
	c.closeConnection(status, reason)
	<-c.closed
}

func (c *Conn) closeConnection(status websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.closeCode.Store(int32(status))
		close(c.closing)
		go func() {
			_ = c.conn.Close(status, reason)
			c.wg.Wait()
			close(c.msgRx)
			close(c.closed)
		}()
	})
}

func (c *Conn) readLoop(ctx context.Context) {
	defer func() {
		slog.Debug("socket reader shutdown", "remote", c.opts.Remote)
		c.wg.Done()
		c.closeConnection(websocket.StatusNormalClosure, closeReasonPeerGone)
	}()

	for {
		typ, raw, err := c.conn.Read(ctx)
		if err != nil {
			if !isExpectedCloseError(err) {
				slog.Warn("socket RECV", "remote", c.opts.Remote, "error", err)
			}
			return
		}

		msg, _, err := wsproto.Unmarshal(typ, raw)
		if err != nil {
			n := c.malformed.Add(1)
			slog.Warn("socket RECV protocol error", "remote", c.opts.Remote, "error", err, "consecutive", n)
			if int(n) >= c.opts.MalformedLimit {
				c.closeConnection(StatusMalformed, closeReasonMalformed)
				return
			}
			select {
			case c.msgTx <- syncmsg.NewError(syncmsg.CodeMalformed, "", err.Error()):
			default:
			}
			continue
		}
		c.malformed.Store(0)

		select {
		case <-c.closing:
			return
		case <-ctx.Done():
			return
		case c.msgRx <- msg:
		}
	}
}

func (c *Conn) writeLoop(ctx context.Context) {
	pingTicker := time.NewTicker(connPingPeriod)
	defer func() {
		slog.Debug("socket writer shutdown", "remote", c.opts.Remote)
		pingTicker.Stop()
		c.wg.Done()
		c.closeConnection(websocket.StatusNormalClosure, closeReasonShutdown)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-c.closing:
			return

		case msg := <-c.msgTx:
			slog.Debug("socket SEND", "id", msg.Id, "type", msg.Type)

			typ, payload, err := wsproto.Marshal(msg, c.opts.Encoding)
			if err != nil {
				slog.Error("socket SEND encode", "id", msg.Id, "type", msg.Type, "error", err)
				continue
			}

			ctxWrite, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
			err = c.conn.Write(ctxWrite, typ, payload)
			cancel()

			if err != nil {
				slog.Error("socket SEND", "error", err)
				c.closeConnection(websocket.StatusInternalError, closeReasonWriteFailure)
				return
			}

		case <-pingTicker.C:
			ctxPing, cancel := context.WithTimeout(ctx, connPingTimeout)
			err := c.conn.Ping(ctxPing)
			cancel()

			if err != nil {
				slog.Error("socket PING", "error", err)
				return
			}
		}
	}
}

// isExpectedCloseError returns true if the error is an expected connection closure
func isExpectedCloseError(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, net.ErrClosed)
}
