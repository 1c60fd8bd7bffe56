package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/framer/codelink/internal/bridge"
	"github.com/framer/codelink/internal/config"
	"github.com/framer/codelink/internal/controlplane"
	"github.com/framer/codelink/internal/utils"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bridge for a project directory (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge(cmd)
		},
	}
	addRunFlags(cmd.Flags())
	return cmd
}

func addRunFlags(flags *pflag.FlagSet) {
	flags.SortFlags = false
	flags.String("hash", "", "project hash shared with the design tool")
	flags.IntP("port", "p", 0, "sync port (0 derives it from the project)")
	flags.String("role", "", "listen or dial")
	flags.String("remote-host", "", "host to dial in dial role")
	flags.String("encoding", "", "wire encoding: json or msgpack")
	flags.StringSlice("ext", nil, "synced file extensions")
	flags.String("watch-backend", "", "fsnotify or notify")
	flags.Duration("debounce", 0, "watcher debounce")
	flags.Bool("confirm-deletes", false, "hold deletes from the peer until confirmed")
	flags.String("http-addr", "", "control plane address, \"off\" to disable")
	flags.String("log-level", "", "debug, info, warn or error")
}

func runBridge(cmd *cobra.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.HTTPAddr == "off" {
		cfg.HTTPAddr = ""
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger, logFile, err := utils.NewLogger(utils.LogOptions{
		Level:    level,
		Console:  os.Stdout,
		FilePath: cfg.LogPath(),
	})
	if err != nil {
		return err
	}
	defer logFile.Close()
	slog.SetDefault(logger)

	cmd.SilenceUsage = true
	showHeader(cmd, cfg)

	b, err := bridge.New(cfg)
	if err != nil {
		return err
	}

	// bound before the bridge takes the project lock
	var srv *controlplane.Server
	if cfg.HTTPAddr != "" {
		srv, err = controlplane.NewServer(controlplane.Config{Addr: cfg.HTTPAddr}, b)
		if err != nil {
			return err
		}
		if err := srv.Listen(); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error { return b.Run(ctx) })
	if srv != nil {
		g.Go(func() error { return serveControlPlane(ctx, b, srv, cfg) })
	}

	defer slog.Info("bye")
	return g.Wait()
}

// serveControlPlane publishes the bound address once the bridge holds the project lock.
func serveControlPlane(ctx context.Context, b *bridge.Bridge, srv *controlplane.Server, cfg *config.Config) error {
	select {
	case <-b.Ready():
	case <-ctx.Done():
		return srv.Close()
	}

	fs := afero.NewOsFs()
	if err := utils.WriteFileAtomic(fs, cfg.AddrPath(), []byte(srv.Addr()), 0o644); err != nil {
		slog.Warn("control plane addr file", "path", cfg.AddrPath(), "error", err)
	}
	defer utils.RemoveFile(fs, cfg.AddrPath())

	return srv.Start(ctx)
}
