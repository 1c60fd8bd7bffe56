// Package config holds the settings of one bridge process.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/framer/codelink/internal/ident"
	"github.com/framer/codelink/internal/pending"
	"github.com/framer/codelink/internal/syncpath"
	"github.com/framer/codelink/internal/transport"
	"github.com/framer/codelink/internal/utils"
	"github.com/framer/codelink/internal/watcher"
	"github.com/framer/codelink/internal/wsproto"
)

const (
	// StateDirName holds the lock, journal, log and optional config file.
	StateDirName   = ".codelink"
	ConfigFileName = "config.json"
	LockFileName   = "lock"
	JournalName    = "journal.db"
	LogFileName    = "codelink.log"
	// AddrFileName records the control plane address of a running bridge.
	AddrFileName   = "http.addr"

	// DefaultHTTPAddr binds the control plane to a free loopback port.
	DefaultHTTPAddr = "127.0.0.1:0"
)

type Role string

const (
	RoleListen Role = "listen"
	RoleDial   Role = "dial"
)

var (
	ErrNoProjectDir  = errors.New("project_dir is required")
	ErrNoProjectHash = errors.New("project_hash is required")
)

type Config struct {
	ProjectDir           string        `json:"project_dir" mapstructure:"project_dir"`
	ProjectHash          string        `json:"project_hash" mapstructure:"project_hash"`
	Port                 int           `json:"port" mapstructure:"port"`
	Role                 Role          `json:"role" mapstructure:"role"`
	RemoteHost           string        `json:"remote_host" mapstructure:"remote_host"`
	Encoding             string        `json:"encoding" mapstructure:"encoding"`
	Extensions           []string      `json:"extensions" mapstructure:"extensions"`
	WatchBackend         string        `json:"watch_backend" mapstructure:"watch_backend"`
	Debounce             time.Duration `json:"debounce" mapstructure:"debounce"`
	IOTimeout            time.Duration `json:"io_timeout" mapstructure:"io_timeout"`
	SendTimeout          time.Duration `json:"send_timeout" mapstructure:"send_timeout"`
	DeleteTimeout        time.Duration `json:"delete_timeout" mapstructure:"delete_timeout"`
	ConfirmRemoteDeletes bool          `json:"confirm_remote_deletes" mapstructure:"confirm_remote_deletes"`
	MalformedThreshold   int           `json:"malformed_threshold" mapstructure:"malformed_threshold"`
	HTTPAddr             string        `json:"http_addr" mapstructure:"http_addr"`
	LogLevel             string        `json:"log_level" mapstructure:"log_level"`
}

// Default returns a config with every optional field set. ProjectDir and
// ProjectHash stay empty.
func Default() *Config {
	return &Config{
		Role:               RoleListen,
		RemoteHost:         "127.0.0.1",
		Encoding:           wsproto.EncodingJSON.String(),
		Extensions:         slices.Clone(syncpath.DefaultExtensions),
		WatchBackend:       string(watcher.BackendFsnotify),
		Debounce:           watcher.DefaultDebounce,
		IOTimeout:          watcher.DefaultIOTimeout,
		SendTimeout:        transport.DefaultSendTimeout,
		DeleteTimeout:      pending.DefaultTimeout,
		MalformedThreshold: transport.DefaultMalformedLimit,
		HTTPAddr:           DefaultHTTPAddr,
		LogLevel:           "info",
	}
}

// Validate fills derived defaults and normalizes fields in place.
func (c *Config) Validate() error {
	if c.ProjectDir == "" {
		return ErrNoProjectDir
	}
	dir, err := utils.ResolvePath(c.ProjectDir)
	if err != nil {
		return fmt.Errorf("project_dir: %w", err)
	}
	if !utils.DirExists(dir) {
		return fmt.Errorf("project_dir %q: %w", dir, watcher.ErrDirNotExist)
	}
	c.ProjectDir = dir

	c.ProjectHash = strings.TrimSpace(c.ProjectHash)
	if c.ProjectHash == "" {
		return ErrNoProjectHash
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}

	switch Role(strings.ToLower(string(c.Role))) {
	case "", RoleListen:
		c.Role = RoleListen
	case RoleDial:
		c.Role = RoleDial
	default:
		return fmt.Errorf("unknown role %q", c.Role)
	}

	if c.Encoding == "" {
		c.Encoding = wsproto.EncodingJSON.String()
	}
	enc, err := wsproto.ParseEncoding(c.Encoding)
	if err != nil {
		return err
	}
	c.Encoding = enc.String()

	if c.WatchBackend == "" {
		c.WatchBackend = string(watcher.BackendFsnotify)
	}
	if _, err := watcher.ParseBackend(c.WatchBackend); err != nil {
		return err
	}

	if len(c.Extensions) == 0 {
		c.Extensions = slices.Clone(syncpath.DefaultExtensions)
	}
	exts := make([]string, 0, len(c.Extensions))
	for _, e := range c.Extensions {
		if e = syncpath.NormalizeExt(e); e != "" {
			exts = append(exts, e)
		}
	}
	c.Extensions = exts

	if c.RemoteHost == "" {
		c.RemoteHost = "127.0.0.1"
	}
	if c.Debounce <= 0 {
		c.Debounce = watcher.DefaultDebounce
	}
	if c.IOTimeout <= 0 {
		c.IOTimeout = watcher.DefaultIOTimeout
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = transport.DefaultSendTimeout
	}
	if c.DeleteTimeout <= 0 {
		c.DeleteTimeout = pending.DefaultTimeout
	}
	if c.MalformedThreshold <= 0 {
		c.MalformedThreshold = transport.DefaultMalformedLimit
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// ShortID is the short form of the project hash.
func (c *Config) ShortID() string {
	return ident.ShortID(c.ProjectHash)
}

// SyncPort is the configured port or the one derived from the project identity.
func (c *Config) SyncPort() int {
	if c.Port > 0 {
		return c.Port
	}
	return ident.PortFor(c.ProjectHash)
}

func (c *Config) StateDir() string {
	return filepath.Join(c.ProjectDir, StateDirName)
}

func (c *Config) LockPath() string {
	return filepath.Join(c.StateDir(), LockFileName)
}

func (c *Config) JournalPath() string {
	return filepath.Join(c.StateDir(), JournalName)
}

func (c *Config) LogPath() string {
	return filepath.Join(c.StateDir(), LogFileName)
}

func (c *Config) ConfigPath() string {
	return filepath.Join(c.StateDir(), ConfigFileName)
}

func (c *Config) AddrPath() string {
	return filepath.Join(c.StateDir(), AddrFileName)
}

func (c *Config) WireEncoding() wsproto.Encoding {
	enc, _ := wsproto.ParseEncoding(c.Encoding)
	return enc
}

func (c *Config) Backend() watcher.Backend {
	b, _ := watcher.ParseBackend(c.WatchBackend)
	return b
}

func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
