package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/cleared-dev/reconciler/internal/config"
	"github.com/cleared-dev/reconciler/internal/ingest"
	"github.com/cleared-dev/reconciler/internal/logging"
	"github.com/cleared-dev/reconciler/internal/reconcile"
	"github.com/cleared-dev/reconciler/internal/report"
	"github.com/cleared-dev/reconciler/internal/runlog"
	"github.com/cleared-dev/reconciler/internal/store"
)

// app holds the services shared by the commands that touch the database.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	store  *store.Store
	engine *reconcile.Engine
}

func openApp(configPath string, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logOut, cfg.Log)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Database, logger.GetLevel() <= log.DebugLevel)
	if err != nil {
		return nil, err
	}

	var opts []reconcile.Option
	if cfg.Reconcile.RunLog != "" {
		opts = append(opts, reconcile.WithRecorder(runlog.File{Path: cfg.Reconcile.RunLog}))
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  st,
		engine: reconcile.New(st, logger, opts...),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) ingestor() *ingest.Ingestor {
	return ingest.New(a.store, a.engine, a.cfg.Ingest.BatchSize, a.logger)
}

func (a *app) reports() *report.Service {
	return report.NewService(a.store)
}

// loadConfig reads the config file (or defaults) and resolves relative
// paths against the directory holding the config file.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	cfg.Ingest.InboxDir = resolve(base, cfg.Ingest.InboxDir)
	cfg.Reconcile.RunLog = resolve(base, cfg.Reconcile.RunLog)
	if cfg.Database.Driver == "" || cfg.Database.Driver == "sqlite" {
		dsn := cfg.Database.DSN
		if !strings.HasPrefix(dsn, "file:") && !strings.HasPrefix(dsn, ":memory:") {
			cfg.Database.DSN = resolve(base, dsn)
		}
	}
	return cfg, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
