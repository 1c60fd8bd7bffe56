package watcher

import (
	"errors"
	"fmt"

	"github.com/framer/codelink/internal/ident"
)

type EventKind string

const (
	EventAdd    EventKind = "add"
	EventChange EventKind = "change"
	EventUnlink EventKind = "unlink"
)

// SyncEvent is a normalized change for one canonical, supported path.
// Content and Fingerprint are empty for EventUnlink.
type SyncEvent struct {
	Kind        EventKind
	Path        string
	Content     []byte
	Fingerprint ident.Fingerprint
}

func (e SyncEvent) String() string {
	return fmt.Sprintf("%s %s", e.Kind, e.Path)
}

var (
	ErrWatcherClosed  = errors.New("watcher closed")
	ErrAlreadyStarted = errors.New("watcher already started")
	ErrDirNotExist    = errors.New("directory to watch does not exist")
	ErrIOTimeout      = errors.New("file operation timed out")
)

// PathError is a recoverable failure for a single path. Watching continues.
type PathError struct {
	Path string
	Op   string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}
