package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/framer/codelink/internal/bridge"
	"github.com/framer/codelink/internal/config"
	"github.com/framer/codelink/internal/conflict"
	"github.com/framer/codelink/internal/controlplane"
	"github.com/framer/codelink/internal/pending"
	"github.com/framer/codelink/internal/utils"
)

var ErrNoBridge = errors.New("no running bridge found")

type queryOptions struct {
	addr   string
	output string
	match  string
}

func addQueryFlags(cmd *cobra.Command, opts *queryOptions) {
	cmd.PersistentFlags().StringVar(&opts.addr, "addr", "", "control plane address (default read from <dir>/.codelink/http.addr)")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "output format: text, json or yaml")
}

func addMatchFlag(cmd *cobra.Command, opts *queryOptions) {
	cmd.Flags().StringVarP(&opts.match, "match", "m", "", "only paths matching this glob, e.g. 'src/**/*.tsx'")
}

// client finds the control plane of the bridge running for --dir unless --addr is given.
func (o *queryOptions) client(cmd *cobra.Command) (*controlplane.Client, error) {
	if o.addr != "" {
		return controlplane.NewClient(o.addr), nil
	}

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dir, err := utils.ResolvePath(cfg.ProjectDir)
	if err != nil {
		return nil, err
	}
	cfg.ProjectDir = dir

	data, err := os.ReadFile(cfg.AddrPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w in %s", ErrNoBridge, dir)
		}
		return nil, err
	}
	addr := strings.TrimSpace(string(data))
	if addr == "" {
		return nil, fmt.Errorf("%w in %s: empty %s", ErrNoBridge, dir, config.AddrFileName)
	}
	return controlplane.NewClient(addr), nil
}

func newStatusCmd() *cobra.Command {
	var opts queryOptions
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the running bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			st, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			if opts.output != outputText {
				return printStructured(cmd.OutOrStdout(), opts.output, st)
			}
			printStatus(cmd.OutOrStdout(), st, time.Now())
			return nil
		},
	}
	addQueryFlags(cmd, &opts)
	return cmd
}

func newConflictsCmd() *cobra.Command {
	var opts queryOptions
	cmd := &cobra.Command{
		Use:   "conflicts [path]",
		Short: "List conflicts, or show the diff of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				s, err := c.Conflict(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if opts.output != outputText {
					return printStructured(cmd.OutOrStdout(), opts.output, s)
				}
				printConflict(cmd.OutOrStdout(), *s, time.Now())
				if s.Diff != "" {
					fmt.Fprintln(cmd.OutOrStdout(), s.Diff)
				}
				return nil
			}

			list, err := c.Conflicts(cmd.Context(), opts.match)
			if err != nil {
				return err
			}
			if opts.output != outputText {
				return printStructured(cmd.OutOrStdout(), opts.output, list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), green.Render("no conflicts"))
				return nil
			}
			now := time.Now()
			for _, s := range list {
				printConflict(cmd.OutOrStdout(), s, now)
			}
			return nil
		},
	}
	addQueryFlags(cmd, &opts)
	addMatchFlag(cmd, &opts)

	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <path>",
		Short: "Keep the local copy and push it to the peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			if err := c.ResolveConflict(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green.Render("resolved"), args[0])
			return nil
		},
	})
	return cmd
}

func newPendingCmd() *cobra.Command {
	var opts queryOptions
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List deletes waiting for an answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			resp, err := c.Pending(cmd.Context(), opts.match)
			if err != nil {
				return err
			}
			if opts.output != outputText {
				return printStructured(cmd.OutOrStdout(), opts.output, resp.Pending)
			}
			if len(resp.Pending) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), green.Render("no pending deletes"))
				return nil
			}
			now := time.Now()
			for _, d := range resp.Pending {
				printPending(cmd.OutOrStdout(), d, now)
			}
			return nil
		},
	}
	addQueryFlags(cmd, &opts)
	addMatchFlag(cmd, &opts)

	action := func(use, short, verb string, call func(*controlplane.Client, *cobra.Command, string) (*controlplane.PendingActionResponse, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <path>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := opts.client(cmd)
				if err != nil {
					return err
				}
				resp, err := call(c, cmd, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green.Render(verb), resp.Delete.Path)
				return nil
			},
		}
	}
	cmd.AddCommand(
		action("confirm", "Apply a delete requested by the peer", "deleted",
			func(c *controlplane.Client, cmd *cobra.Command, p string) (*controlplane.PendingActionResponse, error) {
				return c.ConfirmDelete(cmd.Context(), p)
			}),
		action("reject", "Refuse a delete requested by the peer and send the file back", "kept",
			func(c *controlplane.Client, cmd *cobra.Command, p string) (*controlplane.PendingActionResponse, error) {
				return c.RejectDelete(cmd.Context(), p)
			}),
	)
	return cmd
}

func newDepsCmd() *cobra.Command {
	var opts queryOptions
	var files bool
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "List packages imported by the project's scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client(cmd)
			if err != nil {
				return err
			}
			resp, err := c.Deps(cmd.Context(), opts.match)
			if err != nil {
				return err
			}
			if opts.output != outputText {
				return printStructured(cmd.OutOrStdout(), opts.output, resp)
			}
			out := cmd.OutOrStdout()
			for _, p := range resp.Packages {
				fmt.Fprintln(out, p)
			}
			if files {
				for path, pkgs := range resp.Files {
					fmt.Fprintf(out, "%s %s\n", gray.Render(path+":"), strings.Join(pkgs, ", "))
				}
			}
			return nil
		},
	}
	addQueryFlags(cmd, &opts)
	addMatchFlag(cmd, &opts)
	cmd.Flags().BoolVar(&files, "files", false, "also list packages per file")
	return cmd
}

func printStatus(w io.Writer, st *bridge.Status, now time.Time) {
	state := red.Render("stopped")
	if st.Running {
		state = green.Render("running")
	}
	fmt.Fprintf(w, "%s %s  %s\n", bold.Render("project"), st.Project.ShortID, state)
	fmt.Fprintf(w, "  dir       %s\n", st.Dir)
	fmt.Fprintf(w, "  role      %s, port %d, %s\n", st.Role, st.Port, st.Encoding)
	if !st.StartedAt.IsZero() {
		fmt.Fprintf(w, "  started   %s\n", humanize.RelTime(st.StartedAt, now, "ago", "from now"))
	}

	if st.Peer != nil {
		fmt.Fprintf(w, "  peer      %s %s (%s), connected %s\n",
			cyan.Render(st.Peer.Peer), st.Peer.Version, st.Peer.Remote,
			humanize.RelTime(st.Peer.ConnectedAt, now, "ago", "from now"))
	} else {
		fmt.Fprintf(w, "  peer      %s\n", gray.Render("not connected"))
	}

	fmt.Fprintf(w, "  files     %s agreed, %s conflicts, %s pending deletes\n",
		humanize.Comma(int64(st.Agreed)), humanize.Comma(int64(st.Conflicts)), humanize.Comma(int64(st.PendingDeletes)))
	fmt.Fprintf(w, "  traffic   %s sent, %s received, %s applied, %s echoes suppressed\n",
		humanize.Comma(int64(st.Counters.Sent)), humanize.Comma(int64(st.Counters.Received)),
		humanize.Comma(int64(st.Counters.Applied)), humanize.Comma(int64(st.Counters.Suppressed)))
	fmt.Fprintf(w, "  packages  %d\n", st.Dependencies)
	if p := st.Process; p != nil {
		fmt.Fprintf(w, "  process   pid %d, %s rss, %.1f%% cpu, %d threads\n",
			p.PID, humanize.IBytes(p.RSS), p.CPUPercent, p.NumThreads)
	}
	fmt.Fprintf(w, "  version   %s\n", gray.Render(st.Version))
}

func printConflict(w io.Writer, s conflict.Summary, now time.Time) {
	fmt.Fprintf(w, "%s %s  %s\n", red.Render("conflict"), bold.Render(s.Path), gray.Render(humanize.RelTime(s.DetectedAt, now, "ago", "from now")))
	if s.Reason != "" {
		fmt.Fprintf(w, "  %s\n", s.Reason)
	}
	fmt.Fprintf(w, "  local %s  remote %s\n", orNone(s.LocalFingerprint), orNone(s.RemoteFingerprint))
}

func printPending(w io.Writer, d pending.Delete, now time.Time) {
	fmt.Fprintf(w, "%s %s  %s, expires %s\n",
		cyan.Render(string(d.Origin)), bold.Render(d.Path),
		humanize.RelTime(d.RequestedAt, now, "ago", "from now"),
		humanize.RelTime(d.ExpiresAt, now, "ago", "from now"))
}

func orNone(s string) string {
	if s == "" {
		return gray.Render("(none)")
	}
	return s
}
