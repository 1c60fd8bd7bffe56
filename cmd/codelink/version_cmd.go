package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/framer/codelink/internal/version"
)

func newVersionCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print codelink version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == outputText {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Detailed())
				return err
			}
			return printStructured(cmd.OutOrStdout(), output, version.Get())
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}
