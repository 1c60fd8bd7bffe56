// Package bridge runs one project's two-way sync: the local watcher on one end,
// a websocket peer on the other, with echo suppression, pending deletes and
// conflict reporting in between.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/framer/codelink/internal/config"
	"github.com/framer/codelink/internal/conflict"
	"github.com/framer/codelink/internal/deps"
	"github.com/framer/codelink/internal/ident"
	"github.com/framer/codelink/internal/journal"
	"github.com/framer/codelink/internal/pending"
	"github.com/framer/codelink/internal/syncpath"
	"github.com/framer/codelink/internal/tracker"
	"github.com/framer/codelink/internal/transport"
	"github.com/framer/codelink/internal/utils"
	"github.com/framer/codelink/internal/watcher"
)

const (
	expiryInterval   = 250 * time.Millisecond
	contentCacheSize = 256
	previewMaxBytes  = 64 * 1024
	machineIDAppKey  = "codelink"
)

var (
	ErrAlreadyRunning = errors.New("another bridge is running for this project")
	ErrRejectedPath   = errors.New("path rejected")
	ErrNotConnected   = errors.New("no connected peer")
)

type Option func(*Bridge)

// WithFs replaces the filesystem used to read and apply files.
func WithFs(fs afero.Fs) Option {
	return func(b *Bridge) { b.fs = fs }
}

// WithClock drives pending delete expiry and conflict timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(b *Bridge) { b.clock = clock }
}

// WithPeerID overrides the machine id announced in hello.
func WithPeerID(id string) Option {
	return func(b *Bridge) { b.peerID = id }
}

// WithListenPort overrides the derived port. 0 picks a free port.
func WithListenPort(port int) Option {
	return func(b *Bridge) { b.listenPort = &port }
}

// WithDialURL overrides the URL a dialing bridge connects to.
func WithDialURL(url string) Option {
	return func(b *Bridge) { b.dialURL = url }
}

// Bridge owns every piece of sync state for one project directory.
type Bridge struct {
	cfg     *config.Config
	project ident.ProjectInfo
	root    string

	fs         afero.Fs
	clock      clockwork.Clock
	peerID     string
	sessionID  string
	listenPort *int
	dialURL    string

	lock      *flock.Flock
	tracker   *tracker.Tracker
	journal   *journal.Journal
	pending   *pending.Registry
	conflicts *conflict.Store
	cache     *conflict.ContentCache
	deps      *deps.Index
	exts      *syncpath.Extensions
	ignore    *syncpath.IgnoreList
	watcher   *watcher.Watcher

	// syncMu serializes inbound messages and outbound events so a decision
	// for one path never interleaves with another for the same path.
	syncMu sync.Mutex

	sessMu  sync.RWMutex
	session *session

	subMu       sync.Mutex
	subscribers []chan<- watcher.SyncEvent

	addrMu    sync.RWMutex
	syncAddr  string
	ready     chan struct{}
	readyOnce sync.Once
	startedAt time.Time
	running   atomic.Bool

	stats stats
}

type stats struct {
	sent       atomic.Uint64
	received   atomic.Uint64
	applied    atomic.Uint64
	suppressed atomic.Uint64
}

// New prepares a bridge. cfg must have passed Validate. Nothing is opened until Run.
func New(cfg *config.Config, opts ...Option) (*Bridge, error) {
	project, err := ident.NewProjectInfo(cfg.ProjectHash)
	if err != nil {
		return nil, err
	}

	root := cfg.ProjectDir
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	b := &Bridge{
		cfg:       cfg,
		project:   project,
		root:      root,
		fs:        afero.NewOsFs(),
		clock:     clockwork.NewRealClock(),
		sessionID: uuid.NewString(),
		tracker:   tracker.New(),
		cache:     conflict.NewContentCache(contentCacheSize),
		deps:      deps.NewIndex(),
		exts:      syncpath.NewExtensions(cfg.Extensions...),
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.peerID == "" {
		b.peerID = machinePeerID()
	}

	b.ignore = syncpath.NewIgnoreList(root)
	b.ignore.Load()

	b.lock = flock.New(cfg.LockPath())
	b.journal = journal.New(cfg.JournalPath())
	b.pending = pending.NewRegistry(b.clock, cfg.DeleteTimeout)
	b.conflicts = conflict.NewStore(b.clock)
	b.watcher = watcher.New(root, watcher.Options{
		Backend:    cfg.Backend(),
		Extensions: b.exts,
		Ignore:     b.ignore,
		Debounce:   cfg.Debounce,
		IOTimeout:  cfg.IOTimeout,
	})

	return b, nil
}

func machinePeerID() string {
	id, err := machineid.ProtectedID(machineIDAppKey)
	if err != nil {
		slog.Debug("machine id unavailable", "error", err)
		host, _ := os.Hostname()
		return host + "-" + uuid.NewString()[:8]
	}
	return id[:16]
}

// Project is the identity this bridge syncs.
func (b *Bridge) Project() ident.ProjectInfo {
	return b.project
}

// Root is the resolved project directory.
func (b *Bridge) Root() string {
	return b.root
}

// Ready is closed once the watcher runs and, for a listening bridge, the port is bound.
func (b *Bridge) Ready() <-chan struct{} {
	return b.ready
}

// SyncAddr is the bound sync address of a listening bridge.
func (b *Bridge) SyncAddr() string {
	b.addrMu.RLock()
	defer b.addrMu.RUnlock()
	return b.syncAddr
}

// Subscribe delivers every normalized local event to ch. Slow subscribers miss events.
func (b *Bridge) Subscribe(ch chan<- watcher.SyncEvent) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.subscribers = append(b.subscribers, ch)
}

// SubscribeConflicts delivers every recorded conflict to ch.
func (b *Bridge) SubscribeConflicts(ch chan<- conflict.Summary) {
	b.conflicts.Subscribe(ch)
}

// Run syncs until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.open(); err != nil {
		return err
	}
	defer b.close()

	if err := b.watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer b.watcher.Close()

	b.startedAt = b.clock.Now()
	b.running.Store(true)
	defer b.running.Store(false)

	slog.Info("bridge start",
		"dir", b.root,
		"project", b.project.ShortID,
		"role", b.cfg.Role,
		"encoding", b.cfg.Encoding,
		"peer", b.peerID,
		"session", b.sessionID,
	)

	var server *transport.Server
	if b.cfg.Role != config.RoleDial {
		server = transport.NewServer(transport.ServerOptions{
			Port:    b.port(),
			ShortID: b.project.ShortID,
			Conn:    b.connOptions(),
		})
		if err := server.Listen(); err != nil {
			return err
		}
		b.addrMu.Lock()
		b.syncAddr = server.Addr()
		b.addrMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.watchLoop(gctx) })
	g.Go(func() error { return b.expiryLoop(gctx) })
	if server != nil {
		g.Go(func() error { return server.Serve(gctx) })
		g.Go(func() error { return b.acceptLoop(gctx, server) })
	} else {
		g.Go(func() error { return b.dialLoop(gctx) })
	}
	b.markReady()

	err := g.Wait()
	slog.Info("bridge stop", "dir", b.root)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (b *Bridge) markReady() {
	b.readyOnce.Do(func() { close(b.ready) })
}

func (b *Bridge) port() int {
	if b.listenPort != nil {
		return *b.listenPort
	}
	return b.cfg.SyncPort()
}

func (b *Bridge) remoteURL() string {
	if b.dialURL != "" {
		return b.dialURL
	}
	return "ws://" + net.JoinHostPort(b.cfg.RemoteHost, strconv.Itoa(b.port())) + transport.SyncPath
}

func (b *Bridge) connOptions() transport.ConnOptions {
	return transport.ConnOptions{
		Encoding:       b.cfg.WireEncoding(),
		WriteTimeout:   b.cfg.IOTimeout,
		SendTimeout:    b.cfg.SendTimeout,
		MalformedLimit: b.cfg.MalformedThreshold,
	}
}

func (b *Bridge) open() error {
	if err := utils.EnsureDir(b.cfg.StateDir()); err != nil {
		return fmt.Errorf("state dir: %w", err)
	}

	locked, err := b.lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", b.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, b.root)
	}

	if err := b.journal.Open(); err != nil {
		b.lock.Unlock()
		return fmt.Errorf("open journal: %w", err)
	}
	return nil
}

func (b *Bridge) close() {
	b.tracker.Clear()
	b.pending.Clear()
	b.cache.Purge()
	if err := b.journal.Close(); err != nil {
		slog.Warn("journal close", "error", err)
	}
	if err := b.lock.Unlock(); err != nil {
		slog.Warn("unlock", "path", b.lock.Path(), "error", err)
	}
}

// expiryLoop resolves pending deletes whose deadline passed.
func (b *Bridge) expiryLoop(ctx context.Context) error {
	ticker := b.clock.NewTicker(expiryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			b.expirePending(ctx)
		}
	}
}

// osPath maps a canonical path onto the project directory.
func (b *Bridge) osPath(rel string) string {
	return syncpath.ToOS(b.root, rel)
}

// acceptsPath reports whether a canonical path from the peer may touch disk here.
func (b *Bridge) acceptsPath(rel string) error {
	canonical := syncpath.Canonical(rel)
	if canonical != rel || canonical == "." || canonical == "" || rel[0] == '/' {
		return fmt.Errorf("%w: %q is not canonical", ErrRejectedPath, rel)
	}
	if !b.exts.IsSupported(rel) {
		return fmt.Errorf("%w: unsupported extension %q", ErrRejectedPath, rel)
	}
	if b.ignore.ShouldIgnore(rel) {
		return fmt.Errorf("%w: ignored %q", ErrRejectedPath, rel)
	}
	return nil
}
