package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconciler/internal/ingest"
	"github.com/cleared-dev/reconciler/internal/model"
)

func newImportCommand(opts *rootOptions) *cobra.Command {
	var source string
	var inbox bool

	cmd := &cobra.Command{
		Use:   "import [file.csv...]",
		Short: "Import bank or accounting CSV files",
		Long: `Import CSV files into the database.

With --source, each file argument is imported from that source. With --inbox,
every CSV in the inbox's bank/ and accounting/ directories is imported (bank
first) and moved to processed/ on success.

Importing accounting transactions triggers a reconciliation run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inbox == (len(args) > 0) {
				return errors.New("pass either file arguments or --inbox")
			}

			a, err := openApp(opts.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if inbox {
				return runImportInbox(cmd.Context(), cmd.OutOrStdout(), a)
			}
			src, err := model.ParseSource(source)
			if err != nil {
				return err
			}
			return runImportFiles(cmd.Context(), cmd.OutOrStdout(), a, src, args)
		},
	}

	cmd.Flags().StringVarP(&source, "source", "s", "", "transaction source: BANK or ACCOUNTING")
	cmd.Flags().BoolVar(&inbox, "inbox", false, "import every file waiting in the inbox")

	return cmd
}

func runImportFiles(ctx context.Context, out io.Writer, a *app, source model.Source, paths []string) error {
	in := a.ingestor()
	for _, p := range paths {
		n, err := in.IngestFile(ctx, p, source)
		if err != nil {
			return fmt.Errorf("importing %s: %w", p, err)
		}
		printf(out, "%s: %d %s transactions\n", p, n, source)
	}
	return nil
}

func runImportInbox(ctx context.Context, out io.Writer, a *app) error {
	return importInbox(ctx, out, a.ingestor(), a.cfg.Ingest.InboxDir)
}

type fileIngester interface {
	IngestFile(ctx context.Context, path string, source model.Source) (int, error)
}

// importInbox imports bank files before accounting files. A file whose rows
// were all stored is moved to processed/ even when the reconciliation that
// follows it fails, so a retry never stores its rows twice.
func importInbox(ctx context.Context, out io.Writer, in fileIngester, inbox string) error {
	total := 0
	for _, source := range []model.Source{model.SourceBank, model.SourceAccounting} {
		dir := ingest.SourceDir(inbox, source)
		files, err := ingest.Scan(dir)
		if err != nil {
			return err
		}
		for _, f := range files {
			n, err := in.IngestFile(ctx, f.Path, source)
			if err != nil && !errors.Is(err, ingest.ErrReconcile) {
				return fmt.Errorf("importing %s: %w", f.Name, err)
			}
			if mvErr := ingest.MarkProcessed(dir, f.Name); mvErr != nil {
				return errors.Join(mvErr, err)
			}
			printf(out, "%s: %d %s transactions\n", f.Name, n, source)
			if err != nil {
				return fmt.Errorf("importing %s: %w", f.Name, err)
			}
			total++
		}
	}
	if total == 0 {
		printf(out, "No files in %s\n", inbox)
	}
	return nil
}
