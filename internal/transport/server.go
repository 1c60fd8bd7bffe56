package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/framer/codelink/internal/wsproto"
)

const (
	SyncPath = "/v1/sync"

	HeaderEncodings = "X-Codelink-Encodings"
	HeaderEncoding  = "X-Codelink-Encoding"
	HeaderProject   = "X-Codelink-Project"
	HeaderVersion   = "X-Codelink-Version"

	serverShutdownTimeout = 5 * time.Second
)

var ErrProjectMismatch = errors.New("project identity mismatch")

type ServerOptions struct {
	// Host defaults to 127.0.0.1.
	Host string
	Port int
	// ShortID is compared against the dialer's project header before upgrading.
	ShortID string
	Conn    ConnOptions
}

// Server accepts sync peers on the derived port.
type Server struct {
	opts     ServerOptions
	listener net.Listener
	server   *http.Server
	conns    chan *Conn

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(opts ServerOptions) *Server {
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	return &Server{opts: opts, conns: make(chan *Conn)}
}

// Listen binds the port. Use Addr to learn the actual address when Port is 0.
func (s *Server) Listen() error {
	addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	return nil
}

func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// URL is the websocket URL dialers use to reach this server.
func (s *Server) URL() string {
	return "ws://" + s.Addr() + SyncPath
}

// Conns delivers each accepted peer. The accepting handler waits until the peer is taken.
func (s *Server) Conns() <-chan *Conn {
	return s.conns
}

// Serve runs until ctx is done. Listen must have been called.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(SyncPath, s.handleSync)

	s.server = &http.Server{
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("sync server start", "addr", s.Addr())
		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-s.ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		err := s.server.Shutdown(shutdownCtx)
		slog.Info("sync server stopped", "addr", s.Addr())
		return err
	case err := <-errCh:
		s.cancel()
		return err
	}
}

func (s *Server) handleSync(c *gin.Context) {
	if project := c.GetHeader(HeaderProject); project != "" && s.opts.ShortID != "" && project != s.opts.ShortID {
		slog.Warn("sync server rejected peer", "reason", ErrProjectMismatch, "remote", c.ClientIP(), "project", project)
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": ErrProjectMismatch.Error()})
		return
	}

	enc := wsproto.PreferredEncoding(c.GetHeader(HeaderEncodings))
	if c.GetHeader(HeaderEncodings) == "" {
		enc = s.opts.Conn.Encoding
	}
	c.Writer.Header().Set(HeaderEncoding, strings.ToLower(enc.String()))

	ws, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("sync server accept", "error", err)
		return
	}

	opts := s.opts.Conn
	opts.Encoding = enc
	opts.Remote = c.ClientIP()

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	conn := newConn(ws, opts)
	conn.start(ctx)

	select {
	case s.conns <- conn:
		slog.Info("sync server accepted peer", "remote", opts.Remote, "encoding", enc)
	case <-ctx.Done():
		conn.Close()
	}
}
