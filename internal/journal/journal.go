// Package journal persists the last state both sides agreed on, per file.
package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/framer/codelink/internal/db"
)

const schema = `
CREATE TABLE IF NOT EXISTS agreed_state (
    path TEXT PRIMARY KEY,
    fingerprint TEXT NOT NULL,
    digest TEXT NOT NULL,
    size INTEGER NOT NULL,
    updated_at TEXT NOT NULL -- RFC3339Nano
);
`

var ErrNotOpen = errors.New("journal not open")

// Entry is the agreed state of one file.
type Entry struct {
	Path        string    `json:"path"`
	Fingerprint string    `json:"fingerprint"`
	Digest      string    `json:"digest"`
	Size        int64     `json:"size"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type dbEntry struct {
	Path        string `db:"path"`
	Fingerprint string `db:"fingerprint"`
	Digest      string `db:"digest"`
	Size        int64  `db:"size"`
	UpdatedAt   string `db:"updated_at"`
}

func (e dbEntry) entry() (*Entry, error) {
	updated, err := time.Parse(time.RFC3339Nano, e.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at for %s: %w", e.Path, err)
	}
	return &Entry{
		Path:        e.Path,
		Fingerprint: e.Fingerprint,
		Digest:      e.Digest,
		Size:        e.Size,
		UpdatedAt:   updated,
	}, nil
}

type Journal struct {
	mu     sync.RWMutex
	db     *sqlx.DB
	dbPath string
}

// New returns a journal stored at dbPath. Use ":memory:" for a throwaway journal.
func New(dbPath string) *Journal {
	return &Journal{dbPath: dbPath}
}

func (j *Journal) Open() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db != nil {
		return fmt.Errorf("journal already open")
	}

	database, err := db.NewSqliteDB(db.WithPath(j.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return fmt.Errorf("init journal schema: %w", err)
	}

	j.db = database
	return nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return ErrNotOpen
	}
	err := j.db.Close()
	j.db = nil
	if err != nil {
		return err
	}
	slog.Debug("journal closed")
	return nil
}

func (j *Journal) conn() (*sqlx.DB, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.db == nil {
		return nil, ErrNotOpen
	}
	return j.db, nil
}

// Get returns nil without error when path has no entry.
func (j *Journal) Get(path string) (*Entry, error) {
	conn, err := j.conn()
	if err != nil {
		return nil, err
	}

	var row dbEntry
	err = conn.Get(&row, "SELECT path, fingerprint, digest, size, updated_at FROM agreed_state WHERE path = ?", path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query %s: %w", path, err)
	}
	return row.entry()
}

// Fingerprint returns the agreed fingerprint of path, or "" when there is none.
func (j *Journal) Fingerprint(path string) (string, error) {
	e, err := j.Get(path)
	if err != nil || e == nil {
		return "", err
	}
	return e.Fingerprint, nil
}

// Set inserts or replaces the entry for e.Path.
func (j *Journal) Set(e Entry) error {
	conn, err := j.conn()
	if err != nil {
		return err
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}

	row := dbEntry{
		Path:        e.Path,
		Fingerprint: e.Fingerprint,
		Digest:      e.Digest,
		Size:        e.Size,
		UpdatedAt:   e.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	query := `INSERT OR REPLACE INTO agreed_state (path, fingerprint, digest, size, updated_at)
	          VALUES (:path, :fingerprint, :digest, :size, :updated_at)`
	if _, err := conn.NamedExec(query, row); err != nil {
		return fmt.Errorf("set %s: %w", e.Path, err)
	}
	slog.Debug("journal set", "path", e.Path, "fingerprint", e.Fingerprint)
	return nil
}

func (j *Journal) Delete(path string) error {
	conn, err := j.conn()
	if err != nil {
		return err
	}
	if _, err := conn.Exec("DELETE FROM agreed_state WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	slog.Debug("journal delete", "path", path)
	return nil
}

// State returns every entry keyed by path. Rows with a corrupt timestamp are skipped.
func (j *Journal) State() (map[string]*Entry, error) {
	conn, err := j.conn()
	if err != nil {
		return nil, err
	}

	var rows []dbEntry
	if err := conn.Select(&rows, "SELECT path, fingerprint, digest, size, updated_at FROM agreed_state"); err != nil {
		return nil, fmt.Errorf("query state: %w", err)
	}

	state := make(map[string]*Entry, len(rows))
	for _, row := range rows {
		e, err := row.entry()
		if err != nil {
			slog.Warn("journal skip entry", "path", row.Path, "error", err)
			continue
		}
		state[e.Path] = e
	}
	return state, nil
}

// Fingerprints returns path -> agreed fingerprint.
func (j *Journal) Fingerprints() (map[string]string, error) {
	state, err := j.State()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(state))
	for p, e := range state {
		out[p] = e.Fingerprint
	}
	return out, nil
}

func (j *Journal) Count() (int, error) {
	conn, err := j.conn()
	if err != nil {
		return 0, err
	}
	var n int
	if err := conn.Get(&n, "SELECT COUNT(*) FROM agreed_state"); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}
