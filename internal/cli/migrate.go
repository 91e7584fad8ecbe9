package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"Metafetch/internal/db/migrations"
)

func newMigrateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply or inspect cache database migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}

			conn, dialect, err := a.openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			if conn == nil {
				return fmt.Errorf("no cache database configured (CACHE_DRIVER=%s)", a.cfg.CacheDriver)
			}
			defer func() { _ = conn.Close() }()

			switch action {
			case "up":
				err = migrations.Up(conn, dialect)
			case "down":
				err = migrations.Down(conn, dialect)
			}
			if err != nil {
				return err
			}

			version, err := migrations.Version(conn, dialect)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema version: %d\n", dialect, version)
			return nil
		},
	}

	return cmd
}
