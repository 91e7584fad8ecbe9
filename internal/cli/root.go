// Package cli implements the metafetch command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"Metafetch/internal/build"
	"Metafetch/internal/config"
	"Metafetch/internal/logging"
)

// app carries what every subcommand needs once the root has loaded it
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "metafetch",
		Short: "Link preview metadata service.",
		Long: `metafetch fetches web pages and returns their link preview metadata
(title, description, image, site name and hostname) as JSON, backed by a
read-through database cache.

Configuration is read from the environment and an optional .env file.`,
		Version:       build.FullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	rootCmd.AddCommand(
		newServeCommand(a),
		newMigrateCommand(a),
		newLookupCommand(a),
		newMCPCommand(a),
		newVersionCommand(),
	)

	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func (a *app) load() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	a.logger = logging.MustNew(os.Getenv("LOG_LEVEL"))
	a.cfg = config.ConfigFromEnv(a.logger)

	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
