package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"Metafetch/internal/core/unfurl"
)

func newLookupCommand(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "lookup <url>",
		Short: "Print the metadata for a URL as JSON",
		Long: `lookup resolves a URL exactly like GET /v2 does, including the cache,
and prints the record. With --raw it prints everything extracted from the page
like GET / does, bypassing the cache.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeDB, err := a.newService(cmd.Context(), unfurl.NoopRecorder{}, a.cfg.RunMigrations)
			if err != nil {
				return err
			}
			defer closeDB()
			defer svc.Wait()

			var result interface{}
			if raw {
				result, err = svc.Extract(cmd.Context(), args[0])
			} else {
				var normalized string
				normalized, err = unfurl.NormalizeURL(args[0])
				if err == nil {
					result, err = svc.Resolve(cmd.Context(), normalized)
				}
			}
			switch {
			case errors.Is(err, unfurl.ErrInvalidURL):
				return fmt.Errorf("invalid URL: %q", args[0])
			case errors.Is(err, unfurl.ErrNotFound):
				return fmt.Errorf("no metadata found for %s", args[0])
			case err != nil:
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "print raw extraction output without caching")

	return cmd
}
