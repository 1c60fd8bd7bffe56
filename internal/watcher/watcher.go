package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/framer/codelink/internal/ident"
	"github.com/framer/codelink/internal/syncpath"
	"github.com/framer/codelink/internal/utils"
)

const (
	DefaultDebounce  = 50 * time.Millisecond
	DefaultIOTimeout = 5 * time.Second

	renameIgnoreTimeout = time.Second
	eventBufferSize     = 64
	readyBufferSize     = 256
)

type state uint8

const (
	stateIdle state = iota
	stateWatching
	stateClosed
)

type Options struct {
	Backend    Backend
	Extensions *syncpath.Extensions
	Ignore     *syncpath.IgnoreList
	Debounce   time.Duration
	IOTimeout  time.Duration
}

// Watcher turns raw notifications under one directory into SyncEvents.
// Each Watcher owns its OS watch; several can run side by side in one process.
type Watcher struct {
	root string
	opts Options

	mu     sync.Mutex
	state  state
	source rawSource
	cancel context.CancelFunc
	wg     sync.WaitGroup

	events chan SyncEvent
	errors chan error
	ready  chan string

	debounceMu sync.Mutex
	timers     map[string]*time.Timer

	// only touched by the process goroutine
	known   mapset.Set[string]
	renamed map[string]renameMark
}

type renameMark struct {
	fp     ident.Fingerprint
	expiry time.Time
}

func New(root string, opts Options) *Watcher {
	if opts.Extensions == nil {
		opts.Extensions = syncpath.NewExtensions()
	}
	if opts.Ignore == nil {
		opts.Ignore = syncpath.NewIgnoreList(root)
		opts.Ignore.Load()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = DefaultIOTimeout
	}
	if opts.Backend == "" {
		opts.Backend = BackendFsnotify
	}

	return &Watcher{
		root:    root,
		opts:    opts,
		events:  make(chan SyncEvent, eventBufferSize),
		errors:  make(chan error, eventBufferSize),
		ready:   make(chan string, readyBufferSize),
		timers:  make(map[string]*time.Timer),
		known:   mapset.NewThreadUnsafeSet[string](),
		renamed: make(map[string]renameMark),
	}
}

// Root is the resolved directory being watched.
func (w *Watcher) Root() string {
	return w.root
}

// Events is closed after Close returns.
func (w *Watcher) Events() <-chan SyncEvent {
	return w.events
}

// Errors delivers *PathError values. Errors are dropped when nobody reads them.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start moves the watcher from idle to watching.
// Files already present are recorded as known but not reported; unsanitized
// names among them are renamed first.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case stateWatching:
		return ErrAlreadyStarted
	case stateClosed:
		return ErrWatcherClosed
	}

	if !utils.DirExists(w.root) {
		return fmt.Errorf("%w: %s", ErrDirNotExist, w.root)
	}
	// tmp dirs on macos are symlinks into /private
	root, err := filepath.EvalSymlinks(w.root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	w.root = root

	if err := w.seedKnown(); err != nil {
		return err
	}

	source, err := newSource(w.opts.Backend, w.root, w.skipDir)
	if err != nil {
		return fmt.Errorf("start %s watcher: %w", w.opts.Backend, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.source = source
	w.cancel = cancel
	w.state = stateWatching

	w.wg.Add(2)
	go w.collect(ctx)
	go w.process(ctx)

	slog.Info("file watcher start", "dir", w.root, "backend", w.opts.Backend, "known", w.known.Cardinality())
	return nil
}

// Close releases the OS watch. It is safe to call more than once and before Start.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.state == stateClosed {
		w.mu.Unlock()
		return nil
	}
	prev := w.state
	w.state = stateClosed
	w.mu.Unlock()

	if prev == stateIdle {
		close(w.events)
		return nil
	}

	slog.Info("file watcher stopping", "dir", w.root)
	w.cancel()
	err := w.source.Close()

	w.debounceMu.Lock()
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.debounceMu.Unlock()

	w.wg.Wait()
	close(w.events)
	slog.Info("file watcher stopped", "dir", w.root)
	return err
}

func (w *Watcher) skipDir(path string) bool {
	rel, err := syncpath.RelFromRoot(w.root, path)
	if err != nil {
		return false
	}
	return w.opts.Ignore.ShouldIgnoreDir(rel)
}

func (w *Watcher) seedKnown() error {
	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == w.root {
			return nil
		}
		if d.IsDir() {
			if w.skipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := syncpath.RelFromRoot(w.root, path)
		if err != nil || w.opts.Ignore.ShouldIgnore(rel) || !w.opts.Extensions.IsSupported(rel) {
			return nil
		}
		canonical := syncpath.Canonical(rel)
		if canonical != syncpath.Normalize(rel) {
			if _, err := w.rename(path, rel, canonical); err != nil {
				w.report(err)
				return nil
			}
			// no source yet, so no create notification will follow
			delete(w.renamed, canonical)
		}
		w.known.Add(canonical)
		return nil
	})
}

// collect debounces raw notifications per path.
func (w *Watcher) collect(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.source.Events():
			if !ok {
				return
			}
			// On linux a single save can produce a burst of writes
			w.debounce(ctx, ev.Path)
		case err, ok := <-w.source.Errors():
			if !ok {
				return
			}
			w.report(&PathError{Path: w.root, Op: "watch", Err: err})
		}
	}
}

func (w *Watcher) debounce(ctx context.Context, path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.opts.Debounce, func() {
		w.debounceMu.Lock()
		delete(w.timers, path)
		w.debounceMu.Unlock()

		select {
		case w.ready <- path:
		case <-ctx.Done():
		}
	})
}

// process handles settled paths one at a time, in the order they settled.
func (w *Watcher) process(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.ready:
			for _, ev := range w.handle(ctx, path) {
				select {
				case w.events <- ev:
					slog.Debug("file watcher", "event", ev.Kind, "path", ev.Path)
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (w *Watcher) handle(ctx context.Context, absPath string) []SyncEvent {
	rel, err := syncpath.RelFromRoot(w.root, absPath)
	if err != nil {
		return nil
	}
	if w.opts.Ignore.ShouldIgnore(rel) {
		return nil
	}

	info, statErr := os.Stat(absPath)
	if statErr != nil {
		if !errors.Is(statErr, fs.ErrNotExist) {
			w.report(&PathError{Path: rel, Op: "stat", Err: statErr})
			return nil
		}
		return w.removed(rel)
	}
	if info.IsDir() {
		return nil
	}

	// (a) extension filter
	if !w.opts.Extensions.IsSupported(rel) {
		return nil
	}

	// (b) sanitize, renaming on disk
	canonical := syncpath.Canonical(rel)
	justRenamed := false
	if canonical != syncpath.Normalize(rel) {
		renamed, err := w.rename(absPath, rel, canonical)
		if err != nil {
			w.report(err)
			return nil
		}
		absPath = renamed
		justRenamed = true
	}

	// (c) read
	content, err := readFile(ctx, absPath, w.opts.IOTimeout)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return w.removed(canonical)
		}
		w.report(&PathError{Path: canonical, Op: "read", Err: err})
		return nil
	}

	fp := ident.FingerprintOf(content)
	if mark, ok := w.renamed[canonical]; ok && !justRenamed {
		delete(w.renamed, canonical)
		if mark.fp == fp && time.Now().Before(mark.expiry) {
			// create notification caused by our own rename
			return nil
		}
	}

	kind := EventChange
	if !w.known.Contains(canonical) {
		kind = EventAdd
		w.known.Add(canonical)
	}
	return []SyncEvent{{Kind: kind, Path: canonical, Content: content, Fingerprint: fp}}
}

// removed reports unlinks for rel, or for every known file below it when rel was a directory.
func (w *Watcher) removed(rel string) []SyncEvent {
	name := rel[strings.LastIndex(rel, "/")+1:]
	if syncpath.NeedsSanitize(name) && w.opts.Extensions.IsSupported(rel) {
		// never entered the sync namespace under this name
		return nil
	}

	canonical := syncpath.Canonical(rel)
	if w.known.Contains(canonical) {
		w.known.Remove(canonical)
		return []SyncEvent{{Kind: EventUnlink, Path: canonical}}
	}

	var out []SyncEvent
	prefix := canonical + "/"
	for _, p := range w.known.ToSlice() {
		if strings.HasPrefix(p, prefix) {
			w.known.Remove(p)
			out = append(out, SyncEvent{Kind: EventUnlink, Path: p})
		}
	}
	return out
}

func (w *Watcher) rename(absPath, rel, canonical string) (string, error) {
	if _, err := syncpath.SanitizeFileName(rel[strings.LastIndex(rel, "/")+1:]); err != nil {
		return "", &PathError{Path: rel, Op: "sanitize", Err: err}
	}

	target := syncpath.ToOS(w.root, canonical)
	if _, err := os.Lstat(target); err == nil {
		return "", &PathError{Path: rel, Op: "sanitize", Err: &syncpath.SanitizeError{
			Raw: rel, Sanitized: canonical, Err: syncpath.ErrNameCollision,
		}}
	}
	if err := os.Rename(absPath, target); err != nil {
		return "", &PathError{Path: rel, Op: "rename", Err: err}
	}

	slog.Info("file watcher renamed", "from", rel, "to", canonical)
	if content, err := os.ReadFile(target); err == nil {
		w.renamed[canonical] = renameMark{fp: ident.FingerprintOf(content), expiry: time.Now().Add(renameIgnoreTimeout)}
	}
	return target, nil
}

func (w *Watcher) report(err error) {
	slog.Warn("file watcher", "error", err)
	select {
	case w.errors <- err:
	default:
	}
}

// readFile bounds os.ReadFile by timeout. A read that overruns is abandoned.
func readFile(ctx context.Context, path string, timeout time.Duration) ([]byte, error) {
	content, err := utils.WithTimeout(ctx, timeout, func() ([]byte, error) {
		return os.ReadFile(path)
	})
	if errors.Is(err, utils.ErrTimeout) {
		return nil, ErrIOTimeout
	}
	return content, err
}
