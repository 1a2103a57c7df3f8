package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cleared-dev/reconciler/internal/model"
	"github.com/cleared-dev/reconciler/internal/store"
)

// WindowDays is how many calendar days either side of a bank transaction's
// date an accounting transaction may fall and still match.
const WindowDays = 2

// Store is the persistence the engine needs.
type Store interface {
	FindTransactions(ctx context.Context, f store.Filter, opts store.ListOptions) ([]model.Transaction, error)
	ConfirmMatch(ctx context.Context, bankID, accountingID string) (*model.Match, error)
}

// Run summarizes one reconciliation pass.
type Run struct {
	Started  time.Time
	Duration time.Duration
	Scanned  int
	Matched  int
	Err      error
}

// Recorder receives a summary of every finished run.
type Recorder interface {
	Record(run Run) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder records every run to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// Engine pairs pending bank transactions with pending accounting transactions.
// Runs are serialized; the engine keeps no state between them.
type Engine struct {
	mu       sync.Mutex
	store    Store
	logger   *log.Logger
	recorder Recorder
	now      func() time.Time
}

// New creates an Engine.
func New(s Store, logger *log.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		logger: logger.WithPrefix("reconcile"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Window returns the inclusive date range a counterpart of date must fall in.
func Window(date time.Time) (from, to time.Time) {
	return date.AddDate(0, 0, -WindowDays), date.AddDate(0, 0, WindowDays)
}

// Reconcile makes one greedy pass over pending bank transactions in date
// order. Each is paired with the earliest pending accounting transaction of
// the same type and amount inside its window. Every pair is committed before
// the next bank transaction is examined.
//
// It returns the number of new matches. The first store error stops the
// pass; pairs committed before it stay committed.
func (e *Engine) Reconcile(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	run := Run{Started: e.now()}
	run.Scanned, run.Matched, run.Err = e.pass(ctx)
	run.Duration = e.now().Sub(run.Started)

	if run.Err != nil {
		e.logger.Error("run failed", "scanned", run.Scanned, "matched", run.Matched, "err", run.Err)
	} else {
		e.logger.Info("run complete", "scanned", run.Scanned, "matched", run.Matched, "duration", run.Duration)
	}
	if e.recorder != nil {
		if err := e.recorder.Record(run); err != nil {
			e.logger.Warn("recording run", "err", err)
		}
	}
	return run.Matched, run.Err
}

func (e *Engine) pass(ctx context.Context) (scanned, matched int, err error) {
	bank, err := e.store.FindTransactions(ctx, store.Filter{
		Source: model.SourceBank,
		Status: model.StatusPending,
	}, store.ListOptions{Order: store.DateAsc})
	if err != nil {
		return 0, 0, fmt.Errorf("loading pending bank transactions: %w", err)
	}

	for _, b := range bank {
		scanned++
		from, to := Window(b.Date)
		amount := b.Amount
		candidates, err := e.store.FindTransactions(ctx, store.Filter{
			Source: model.SourceAccounting,
			Status: model.StatusPending,
			Type:   b.Type,
			Amount: &amount,
			From:   &from,
			To:     &to,
		}, store.ListOptions{Order: store.DateAsc, Limit: 1})
		if err != nil {
			return scanned, matched, fmt.Errorf("finding candidates for %s: %w", b.ID, err)
		}
		if len(candidates) == 0 {
			continue
		}

		c := candidates[0]
		if _, err := e.store.ConfirmMatch(ctx, b.ID, c.ID); err != nil {
			return scanned, matched, fmt.Errorf("matching %s with %s: %w", b.ID, c.ID, err)
		}
		matched++
		e.logger.Debug("matched", "bank", b.ID, "accounting", c.ID, "amount", b.Amount, "date", b.Date.Format(time.DateOnly))
	}
	return scanned, matched, nil
}
