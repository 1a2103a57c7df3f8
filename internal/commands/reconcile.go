package commands

import (
	"github.com/spf13/cobra"
)

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Match pending bank transactions with accounting transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.engine.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%d new matches\n", n)
			return nil
		},
	}
}
