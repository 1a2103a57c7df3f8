package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"github.com/cleared-dev/reconciler/internal/config"
)

// Reconciler is the job the scheduler runs.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// Scheduler runs reconciliation on a cron schedule.
type Scheduler struct {
	cron       *cron.Cron
	entry      cron.EntryID
	reconciler Reconciler
	logger     *log.Logger
}

// New parses cfg.Schedule in cfg.TimeZone and registers the reconciliation job.
func New(cfg config.ReconcileConfig, r Reconciler, logger *log.Logger) (*Scheduler, error) {
	if cfg.Schedule == "" {
		return nil, errors.New("empty reconcile schedule")
	}
	tz := cfg.TimeZone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", tz, err)
	}

	s := &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		reconciler: r,
		logger:     logger.WithPrefix("scheduler"),
	}
	s.entry, err = s.cron.AddFunc(cfg.Schedule, s.run)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	s.logger.Info("scheduled run starting")
	if _, err := s.reconciler.Reconcile(context.Background()); err != nil {
		s.logger.Error("scheduled run failed", "err", err)
	}
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("started", "next", s.Next().Format(time.RFC3339))
}

// Stop halts the scheduler and waits for a running job to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Next returns the next activation time, or zero if the scheduler is not running.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}
