package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/framer/codelink/internal/config"
	"github.com/framer/codelink/internal/utils"
	"github.com/framer/codelink/internal/version"
)

const envPrefix = "CODELINK"

// config keys bound to flags of the same command
var flagKeys = map[string]string{
	"dir":             "project_dir",
	"hash":            "project_hash",
	"port":            "port",
	"role":            "role",
	"remote-host":     "remote_host",
	"encoding":        "encoding",
	"ext":             "extensions",
	"watch-backend":   "watch_backend",
	"debounce":        "debounce",
	"confirm-deletes": "confirm_remote_deletes",
	"http-addr":       "http_addr",
	"log-level":       "log_level",
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "codelink",
		Short:   "Sync a local project directory with a browser design tool",
		Version: version.Detailed(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge(cmd)
		},
	}

	addRunFlags(cmd.Flags())
	cmd.PersistentFlags().StringP("config", "c", "", "config file (default <dir>/.codelink/config.json)")
	cmd.PersistentFlags().StringP("dir", "d", ".", "project directory")

	cmd.AddCommand(
		newRunCmd(),
		newPortCmd(),
		newShortIDCmd(),
		newNormalizeCmd(),
		newStatusCmd(),
		newConflictsCmd(),
		newPendingCmd(),
		newDepsCmd(),
		newVersionCmd(),
	)
	return cmd
}

func main() {
	// console only until the project's log file is known
	logger, _, err := utils.NewLogger(utils.LogOptions{Level: slog.LevelInfo, Console: os.Stderr})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges defaults, the config file, CODELINK_* environment variables
// (including a .env in the working directory) and the flags of cmd, in rising
// precedence. The result is not validated.
func loadConfig(cmd *cobra.Command) (*config.Config, *viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, config.Default())

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	bindFlags(v, cmd.Flags())

	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		dir, err := utils.ResolvePath(v.GetString("project_dir"))
		if err != nil {
			return nil, nil, err
		}
		configFile = filepath.Join(dir, config.StateDirName, config.ConfigFileName)
		if !utils.FileExists(configFile) {
			configFile = ""
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("config read '%s': %w", configFile, err)
		}
	}

	cfg := &config.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("config decode: %w", err)
	}
	return cfg, v, nil
}

func setDefaults(v *viper.Viper, d *config.Config) {
	v.SetDefault("project_dir", ".")
	v.SetDefault("project_hash", "")
	v.SetDefault("port", d.Port)
	v.SetDefault("role", string(d.Role))
	v.SetDefault("remote_host", d.RemoteHost)
	v.SetDefault("encoding", d.Encoding)
	v.SetDefault("extensions", d.Extensions)
	v.SetDefault("watch_backend", d.WatchBackend)
	v.SetDefault("debounce", d.Debounce)
	v.SetDefault("io_timeout", d.IOTimeout)
	v.SetDefault("send_timeout", d.SendTimeout)
	v.SetDefault("delete_timeout", d.DeleteTimeout)
	v.SetDefault("confirm_remote_deletes", d.ConfirmRemoteDeletes)
	v.SetDefault("malformed_threshold", d.MalformedThreshold)
	v.SetDefault("http_addr", d.HTTPAddr)
	v.SetDefault("log_level", d.LogLevel)
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

func showHeader(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	title := color.New(color.FgHiCyan, color.Bold)
	dim := color.New(color.FgHiBlack)

	title.Fprintf(out, "codelink %s\n", version.Version)
	dim.Fprintf(out, "  project  %s (%s)\n", cfg.ShortID(), cfg.ProjectDir)
	dim.Fprintf(out, "  role     %s on port %d\n", cfg.Role, cfg.SyncPort())
}
