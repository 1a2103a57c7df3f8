package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconciler/internal/config"
	"github.com/cleared-dev/reconciler/internal/ingest"
	"github.com/cleared-dev/reconciler/internal/model"
)

// defaultRunLog is the run log path written by init, relative to the project.
const defaultRunLog = "logs/runs.csv"

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a reconciler project directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.OutOrStdout(), absDir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}

func runInit(out io.Writer, dir string, force bool) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	cfg := config.Default()
	cfg.Reconcile.RunLog = defaultRunLog

	dirs := []string{"logs"}
	for _, src := range []model.Source{model.SourceBank, model.SourceAccounting} {
		inbox := ingest.SourceDir(cfg.Ingest.InboxDir, src)
		dirs = append(dirs, inbox, filepath.Join(inbox, ingest.ProcessedDir))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}

	gitignore := "*.db\n.env\nlogs/\n" + cfg.Ingest.InboxDir + "/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	printf(out, "Initialized reconciler project at %s\n", dir)
	return nil
}
