package watcher

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const sourceBufferSize = 256

// fsnotifySource watches a tree with fsnotify, adding a watch for every directory
// it finds, including directories created while running.
type fsnotifySource struct {
	watcher *fsnotify.Watcher
	skipDir skipDirFunc
	events  chan rawEvent
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func newFsnotifySource(root string, skipDir skipDirFunc) (*fsnotifySource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	s := &fsnotifySource{
		watcher: w,
		skipDir: skipDir,
		events:  make(chan rawEvent, sourceBufferSize),
		errors:  make(chan error, 16),
		done:    make(chan struct{}),
	}
	if err := s.addRecursive(root); err != nil {
		w.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.run()
	return s, nil
}

func (s *fsnotifySource) Events() <-chan rawEvent { return s.events }
func (s *fsnotifySource) Errors() <-chan error    { return s.errors }

func (s *fsnotifySource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.watcher.Close()
		s.wg.Wait()
	})
	return err
}

func (s *fsnotifySource) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleEvent(event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.handleError(err)
		}
	}
}

func (s *fsnotifySource) handleEvent(event fsnotify.Event) {
	var op rawOp
	switch {
	case event.Has(fsnotify.Create):
		op = opCreate
		if err := s.onCreate(event.Name); err != nil {
			s.handleError(err)
		}
	case event.Has(fsnotify.Write):
		op = opWrite
	case event.Has(fsnotify.Remove):
		op = opRemove
		s.onRemove(event.Name)
	case event.Has(fsnotify.Rename):
		op = opRename
		s.onRemove(event.Name)
	default:
		// chmod
		return
	}

	select {
	case s.events <- rawEvent{Path: event.Name, Op: op}:
	case <-s.done:
	}
}

func (s *fsnotifySource) handleError(err error) {
	select {
	case s.errors <- err:
	default:
		slog.Warn("watcher dropped error", "reason", "channel full", "error", err)
	}
}

func (s *fsnotifySource) onCreate(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		// already gone, the follow-up remove event covers it
		return nil
	}
	if info.IsDir() {
		if err := s.addRecursive(path); err != nil {
			return fmt.Errorf("recursive add watch: %w", err)
		}
		// files created before the watch was in place
		return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil || p == path {
				return nil
			}
			if d.IsDir() && s.skipDir != nil && s.skipDir(p) {
				return filepath.SkipDir
			}
			if !d.IsDir() {
				select {
				case s.events <- rawEvent{Path: p, Op: opCreate}:
				case <-s.done:
					return filepath.SkipAll
				}
			}
			return nil
		})
	}
	return nil
}

func (s *fsnotifySource) onRemove(path string) {
	if err := s.watcher.Remove(path); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		slog.Debug("watcher remove", "path", path, "error", err)
	}
}

func (s *fsnotifySource) addRecursive(dir string) error {
	slog.Debug("watcher add", "dir", dir)
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk dir: %w", err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && s.skipDir != nil && s.skipDir(path) {
			return filepath.SkipDir
		}
		if err := s.watcher.Add(path); err != nil {
			return fmt.Errorf("fsnotify add watch: %w", err)
		}
		return nil
	})
}
