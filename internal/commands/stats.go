package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconciler/internal/report"
)

func newStatsCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show reconciliation statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.reports().Statistics(cmd.Context())
			if err != nil {
				return err
			}
			return printStats(cmd.OutOrStdout(), st, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	return cmd
}

func printStats(out io.Writer, st *report.Statistics, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(st); err != nil {
			return fmt.Errorf("encoding statistics: %w", err)
		}
		return nil
	}
	printf(out, "Bank transactions:        %d\n", st.TotalBankTransactions)
	printf(out, "Accounting transactions:  %d\n", st.TotalAccountingTransactions)
	printf(out, "Matched:                  %d\n", st.TotalMatchedTransactions)
	printf(out, "Pending:                  %d\n", st.TotalPendingTransactions)
	printf(out, "Reconciliation rate:      %s%%\n", st.ReconciliationRate)
	return nil
}
