// Package conflict detects divergent edits between the two sides. It reports, it never merges.
package conflict

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var ErrNoConflict = errors.New("no conflict recorded for path")

type Summary struct {
	Path              string    `json:"path" yaml:"path"`
	LocalFingerprint  string    `json:"localFingerprint" yaml:"localFingerprint"`
	RemoteFingerprint string    `json:"remoteFingerprint" yaml:"remoteFingerprint"`
	Reason            string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	Diff              string    `json:"diff,omitempty" yaml:"diff,omitempty"`
	DetectedAt        time.Time `json:"detectedAt" yaml:"detectedAt"`
}

// Store keeps the latest conflict per path until it is cleared.
type Store struct {
	clock clockwork.Clock

	mu        sync.RWMutex
	conflicts map[string]Summary
	listeners []chan<- Summary
}

func NewStore(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{clock: clock, conflicts: make(map[string]Summary)}
}

// Record stores s, stamping DetectedAt when it is unset, and notifies subscribers.
func (s *Store) Record(c Summary) Summary {
	if c.DetectedAt.IsZero() {
		c.DetectedAt = s.clock.Now()
	}

	s.mu.Lock()
	s.conflicts[c.Path] = c
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		select {
		case l <- c:
		default:
		}
	}
	return c
}

// Subscribe delivers every recorded conflict to ch without blocking the recorder.
func (s *Store) Subscribe(ch chan<- Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, ch)
}

func (s *Store) Get(path string) (Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conflicts[path]
	return c, ok
}

// Clear drops the conflict for path, typically once both sides agree again.
func (s *Store) Clear(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conflicts[path]
	delete(s.conflicts, path)
	return ok
}

// List returns conflicts sorted by path.
func (s *Store) List() []Summary {
	s.mu.RLock()
	out := make([]Summary, 0, len(s.conflicts))
	for _, c := range s.conflicts {
		out = append(out, c)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Summary) int { return strings.Compare(a.Path, b.Path) })
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conflicts)
}
