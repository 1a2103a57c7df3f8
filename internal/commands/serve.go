package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/reconciler/internal/api"
	"github.com/cleared-dev/reconciler/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}

// runServe serves HTTP until ctx is cancelled, then drains in-flight requests.
func runServe(ctx context.Context, a *app) error {
	srv := api.NewServer(api.Deps{
		Ingester:   a.ingestor(),
		Reconciler: a.engine,
		Reporter:   a.reports(),
		DB:         a.store,
	}, a.cfg.Server.MaxUploadMB, a.logger)
	httpSrv := srv.HTTPServer(a.cfg.Server.Addr)

	var sched *scheduler.Scheduler
	if a.cfg.Reconcile.Schedule != "" {
		var err error
		sched, err = scheduler.New(a.cfg.Reconcile, a.engine, a.logger)
		if err != nil {
			return err
		}
		sched.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", httpSrv.Addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serving HTTP: %w", err)
		}
	case <-ctx.Done():
		a.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("shutting down: %w", err)
	}
	return serveErr
}
