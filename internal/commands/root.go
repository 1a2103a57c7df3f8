package commands

import (
	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconciler/internal/config"
)

type rootOptions struct {
	configPath string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "reconciler",
		Short:   "Bank and accounting transaction reconciliation",
		Version: version,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.FileName, "path to config file")

	rootCmd.AddCommand(
		newInitCommand(),
		newServeCommand(opts),
		newImportCommand(opts),
		newReconcileCommand(opts),
		newStatsCommand(opts),
		newRunsCommand(opts),
		newSampleCommand(),
	)

	return rootCmd
}
