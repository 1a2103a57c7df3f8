package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconciler/internal/sample"
)

func newSampleCommand() *cobra.Command {
	var opts sample.Options
	var start string

	cmd := &cobra.Command{
		Use:   "sample [directory]",
		Short: "Write a demo bank.csv and accounting.csv",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			if start != "" {
				t, err := time.Parse(time.DateOnly, start)
				if err != nil {
					return fmt.Errorf("parsing --start: %w", err)
				}
				opts.Start = t
			}
			return runSample(cmd, dir, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Count, "count", 100, "number of bank transactions")
	cmd.Flags().Float64Var(&opts.MatchRatio, "ratio", 0.8, "share of bank transactions with an accounting counterpart")
	cmd.Flags().IntVar(&opts.Extra, "extra", 10, "accounting transactions without a bank counterpart")
	cmd.Flags().IntVar(&opts.Days, "days", 30, "number of days the dates span")
	cmd.Flags().StringVar(&start, "start", "", "first date (YYYY-MM-DD); defaults to --days ago")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", uint64(time.Now().UnixNano()), "random seed")

	return cmd
}

func runSample(cmd *cobra.Command, dir string, opts sample.Options) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	bankPath := filepath.Join(dir, "bank.csv")
	acctPath := filepath.Join(dir, "accounting.csv")

	bank, err := os.Create(bankPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", bankPath, err)
	}
	defer bank.Close()
	acct, err := os.Create(acctPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", acctPath, err)
	}
	defer acct.Close()

	sum, err := sample.Generate(opts, bank, acct)
	if err != nil {
		return err
	}
	printf(cmd.OutOrStdout(), "Wrote %d bank and %d accounting transactions (%d pairs) to %s\n",
		sum.Bank, sum.Accounting, sum.Paired, dir)
	return nil
}
