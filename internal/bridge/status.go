package bridge

import (
	"log/slog"
	"time"

	"github.com/framer/codelink/internal/conflict"
	"github.com/framer/codelink/internal/ident"
	"github.com/framer/codelink/internal/pending"
	"github.com/framer/codelink/internal/version"
)

type PeerInfo struct {
	Remote      string    `json:"remote" yaml:"remote"`
	Peer        string    `json:"peer" yaml:"peer"`
	Session     string    `json:"session" yaml:"session"`
	Version     string    `json:"version" yaml:"version"`
	ConnectedAt time.Time `json:"connectedAt" yaml:"connectedAt"`
}

type Counters struct {
	Sent       uint64 `json:"sent" yaml:"sent"`
	Received   uint64 `json:"received" yaml:"received"`
	Applied    uint64 `json:"applied" yaml:"applied"`
	Suppressed uint64 `json:"suppressed" yaml:"suppressed"`
}

// Status is a point-in-time view of the bridge for the control plane.
type Status struct {
	Project        ident.ProjectInfo `json:"project" yaml:"project"`
	Dir            string            `json:"dir" yaml:"dir"`
	Role           string            `json:"role" yaml:"role"`
	Port           int               `json:"port" yaml:"port"`
	Addr           string            `json:"addr,omitempty" yaml:"addr,omitempty"`
	Encoding       string            `json:"encoding" yaml:"encoding"`
	Running        bool              `json:"running" yaml:"running"`
	StartedAt      time.Time         `json:"startedAt" yaml:"startedAt"`
	Peer           *PeerInfo         `json:"peer,omitempty" yaml:"peer,omitempty"`
	Tracked        int               `json:"tracked" yaml:"tracked"`
	Agreed         int               `json:"agreed" yaml:"agreed"`
	Conflicts      int               `json:"conflicts" yaml:"conflicts"`
	PendingDeletes int               `json:"pendingDeletes" yaml:"pendingDeletes"`
	Dependencies   int               `json:"dependencies" yaml:"dependencies"`
	Counters       Counters          `json:"counters" yaml:"counters"`
	Process        *ProcessStats     `json:"process,omitempty" yaml:"process,omitempty"`
	Version        string            `json:"version" yaml:"version"`
}

func (b *Bridge) Status() Status {
	agreed, err := b.journal.Count()
	if err != nil {
		slog.Debug("journal count", "error", err)
	}

	st := Status{
		Project:        b.project,
		Dir:            b.root,
		Role:           string(b.cfg.Role),
		Port:           b.port(),
		Addr:           b.SyncAddr(),
		Encoding:       b.cfg.Encoding,
		Running:        b.running.Load(),
		StartedAt:      b.startedAt,
		Tracked:        b.tracker.Len(),
		Agreed:         agreed,
		Conflicts:      b.conflicts.Len(),
		PendingDeletes: b.pending.Len(),
		Dependencies:   len(b.deps.Packages()),
		Counters: Counters{
			Sent:       b.stats.sent.Load(),
			Received:   b.stats.received.Load(),
			Applied:    b.stats.applied.Load(),
			Suppressed: b.stats.suppressed.Load(),
		},
		Process: processStats(time.Now()),
		Version: version.Short(),
	}

	b.sessMu.RLock()
	if s := b.session; s != nil && s.established {
		st.Peer = &PeerInfo{
			Remote:      s.peer.Remote(),
			Peer:        s.hello.Peer,
			Session:     s.hello.Session,
			Version:     s.hello.Version,
			ConnectedAt: s.connectedAt,
		}
	}
	b.sessMu.RUnlock()

	return st
}

// Connected reports whether a verified peer is attached.
func (b *Bridge) Connected() bool {
	return b.active() != nil
}

func (b *Bridge) Conflicts() []conflict.Summary {
	return b.conflicts.List()
}

func (b *Bridge) Conflict(rel string) (conflict.Summary, bool) {
	return b.conflicts.Get(rel)
}

func (b *Bridge) PendingDeletes() []pending.Delete {
	return b.pending.List()
}

// Dependencies is the sorted set of packages imported across the project.
func (b *Bridge) Dependencies() []string {
	return b.deps.Packages()
}

// DependencyFiles maps each scanned file to the packages it imports.
func (b *Bridge) DependencyFiles() map[string][]string {
	return b.deps.Files()
}
