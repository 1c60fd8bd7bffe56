package watcher

import (
	"fmt"
	"strings"
)

// Backend selects the OS notification library.
type Backend string

const (
	BackendFsnotify Backend = "fsnotify"
	BackendNotify   Backend = "notify"
)

func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "", BackendFsnotify:
		return BackendFsnotify, nil
	case BackendNotify:
		return BackendNotify, nil
	default:
		return "", fmt.Errorf("unknown watch backend %q", s)
	}
}

type rawOp uint8

const (
	opCreate rawOp = iota + 1
	opWrite
	opRemove
	opRename
)

func (o rawOp) String() string {
	switch o {
	case opCreate:
		return "create"
	case opWrite:
		return "write"
	case opRemove:
		return "remove"
	case opRename:
		return "rename"
	default:
		return "unknown"
	}
}

type rawEvent struct {
	Path string
	Op   rawOp
}

// rawSource delivers unfiltered notifications for every path under a root.
// Close must unblock any goroutine reading from Events or Errors.
type rawSource interface {
	Events() <-chan rawEvent
	Errors() <-chan error
	Close() error
}

// skipDirFunc reports whether a directory should not be watched at all.
type skipDirFunc func(path string) bool

func newSource(backend Backend, root string, skipDir skipDirFunc) (rawSource, error) {
	switch backend {
	case BackendNotify:
		return newNotifySource(root)
	default:
		return newFsnotifySource(root, skipDir)
	}
}
