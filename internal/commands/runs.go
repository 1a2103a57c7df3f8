package commands

import (
	"errors"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconciler/internal/runlog"
)

func newRunsCommand(opts *rootOptions) *cobra.Command {
	var last int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the reconciliation run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if cfg.Reconcile.RunLog == "" {
				return errors.New("no run log configured (reconcile.run_log)")
			}

			entries, err := runlog.Tail(cfg.Reconcile.RunLog, last)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			printf(tw, "STARTED\tDURATION\tSCANNED\tMATCHED\tERROR\n")
			for _, e := range entries {
				printf(tw, "%s\t%s\t%d\t%d\t%s\n",
					e.Started.Format(time.RFC3339), e.Duration, e.Scanned, e.Matched, e.Error)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&last, "last", "n", 0, "show only the last n runs")

	return cmd
}
