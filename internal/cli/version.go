package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"Metafetch/internal/build"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Skip configuration loading
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "metafetch %s (built %s)\n", build.FullVersion(), build.BuildTime)
		},
	}
}
