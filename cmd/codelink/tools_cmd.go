package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/framer/codelink/internal/ident"
	"github.com/framer/codelink/internal/syncpath"
)

func newPortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "port <project-id>",
		Short: "Print the sync port derived from a project hash or short id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), ident.PortFor(args[0]))
			return err
		},
	}
}

func newShortIDCmd() *cobra.Command {
	var length int
	cmd := &cobra.Command{
		Use:   "shortid <project-hash>",
		Short: "Print the short id of a project hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), ident.ShortenID(args[0], length))
			return err
		},
	}
	cmd.Flags().IntVarP(&length, "length", "n", ident.DefaultShortIDLength, "id length")
	return cmd
}

func newNormalizeCmd() *cobra.Command {
	var canonical bool
	cmd := &cobra.Command{
		Use:   "normalize <path>...",
		Short: "Print the normalized form of each path",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, p := range args {
				n := syncpath.Normalize(p)
				if canonical {
					n = syncpath.Canonical(p)
				}
				if _, err := fmt.Fprintln(out, n); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&canonical, "canonical", false, "also sanitize the file name")
	return cmd
}
