// Package pending keeps deletes that wait for the other side before they are applied.
package pending

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/framer/codelink/internal/syncpath"
)

const DefaultTimeout = 10 * time.Second

var ErrNotPending = errors.New("no pending delete for path")

// Origin is the side that asked for the delete.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

type Delete struct {
	Path        string    `json:"path" yaml:"path"`
	Origin      Origin    `json:"origin" yaml:"origin"`
	MsgId       string    `json:"msgId,omitempty" yaml:"msgId,omitempty"`
	Base        string    `json:"base,omitempty" yaml:"base,omitempty"`
	RequestedAt time.Time `json:"requestedAt" yaml:"requestedAt"`
	ExpiresAt   time.Time `json:"expiresAt" yaml:"expiresAt"`
}

// Registry holds at most one pending delete per canonical path.
type Registry struct {
	clock   clockwork.Clock
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]Delete
}

func NewRegistry(clock clockwork.Clock, timeout time.Duration) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{clock: clock, timeout: timeout, entries: make(map[string]Delete)}
}

// Add records a pending delete, replacing any earlier one for the same path.
func (r *Registry) Add(path string, origin Origin, msgId, base string) Delete {
	now := r.clock.Now()
	d := Delete{
		Path:        syncpath.Canonical(path),
		Origin:      origin,
		MsgId:       msgId,
		Base:        base,
		RequestedAt: now,
		ExpiresAt:   now.Add(r.timeout),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[d.Path] = d
	return d
}

func (r *Registry) Get(path string) (Delete, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.entries[syncpath.Canonical(path)]
	return d, ok
}

// Has reports whether path has a pending delete from origin.
func (r *Registry) Has(path string, origin Origin) bool {
	d, ok := r.Get(path)
	return ok && d.Origin == origin
}

// Resolve removes and returns the pending delete for path.
func (r *Registry) Resolve(path string) (Delete, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := syncpath.Canonical(path)
	d, ok := r.entries[key]
	if !ok {
		return Delete{}, ErrNotPending
	}
	delete(r.entries, key)
	return d, nil
}

// Expire removes and returns every entry whose deadline has passed, oldest first.
func (r *Registry) Expire() []Delete {
	now := r.clock.Now()

	r.mu.Lock()
	var out []Delete
	for key, d := range r.entries {
		if !now.Before(d.ExpiresAt) {
			out = append(out, d)
			delete(r.entries, key)
		}
	}
	r.mu.Unlock()

	sortDeletes(out)
	return out
}

// List returns a copy of all pending deletes, oldest first.
func (r *Registry) List() []Delete {
	r.mu.Lock()
	out := make([]Delete, 0, len(r.entries))
	for _, d := range r.entries {
		out = append(out, d)
	}
	r.mu.Unlock()

	sortDeletes(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Clear drops all entries without resolving them.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.entries)
}

func sortDeletes(d []Delete) {
	slices.SortFunc(d, func(a, b Delete) int {
		if c := a.RequestedAt.Compare(b.RequestedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
}
