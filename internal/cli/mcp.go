package cli

import (
	"github.com/spf13/cobra"

	"Metafetch/internal/core/unfurl"
	"Metafetch/internal/mcp"
)

func newMCPCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve metadata tools over the Model Context Protocol on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeDB, err := a.newService(cmd.Context(), unfurl.NoopRecorder{}, a.cfg.RunMigrations)
			if err != nil {
				return err
			}
			defer closeDB()
			defer svc.Wait()

			return mcp.NewServer(svc).ServeStdio()
		},
	}
}
