package report

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/reconciler/internal/model"
	"github.com/cleared-dev/reconciler/internal/store"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Store is the read side the reporting service needs, plus match deletion.
type Store interface {
	FindTransactions(ctx context.Context, f store.Filter, opts store.ListOptions) ([]model.Transaction, error)
	CountTransactions(ctx context.Context, f store.Filter) (int64, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	GetMatch(ctx context.Context, id string) (*model.Match, error)
	DeleteMatch(ctx context.Context, id string) (*model.Match, error)
}

// Query selects a page of transactions. Zero values mean "any" or the default.
type Query struct {
	Source    model.Source
	Type      model.Type
	Status    model.Status
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

// Meta describes the position of a page within the full result.
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int64 `json:"totalPages"`
}

// Page is one page of transactions, newest first.
type Page struct {
	Data []model.Transaction `json:"data"`
	Meta Meta                `json:"meta"`
}

// Statistics summarizes reconciliation progress.
type Statistics struct {
	TotalBankTransactions       int64  `json:"totalBankTransactions"`
	TotalAccountingTransactions int64  `json:"totalAccountingTransactions"`
	TotalMatchedTransactions    int64  `json:"totalMatchedTransactions"`
	TotalPendingTransactions    int64  `json:"totalPendingTransactions"`
	ReconciliationRate          string `json:"reconciliationRate"`
}

// MatchDetail is a match with both of its transactions.
type MatchDetail struct {
	model.Match
	BankTransaction       *model.Transaction `json:"bankTransaction"`
	AccountingTransaction *model.Transaction `json:"accountingTransaction"`
}

// Service answers listing and statistics queries.
type Service struct {
	store Store
}

// NewService creates a reporting Service.
func NewService(s Store) *Service {
	return &Service{store: s}
}

// List returns one page of transactions matching q, ordered by date descending.
// A page past the end has no data but still reports the total.
func (s *Service) List(ctx context.Context, q Query) (*Page, error) {
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	f := store.Filter{
		Source: q.Source,
		Type:   q.Type,
		Status: q.Status,
		From:   q.StartDate,
		To:     q.EndDate,
	}

	var (
		total int64
		data  []model.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.store.CountTransactions(gctx, f)
		return err
	})
	g.Go(func() error {
		var err error
		data, err = s.store.FindTransactions(gctx, f, store.ListOptions{
			Order:        store.DateDesc,
			Limit:        limit,
			Offset:       (page - 1) * limit,
			PreloadMatch: true,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	if data == nil {
		data = []model.Transaction{}
	}

	return &Page{
		Data: data,
		Meta: Meta{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: TotalPages(total, limit),
		},
	}, nil
}

// TotalPages is ceil(total/limit).
func TotalPages(total int64, limit int) int64 {
	if limit < 1 {
		return 0
	}
	l := int64(limit)
	return (total + l - 1) / l
}

// Statistics counts transactions by source and status.
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	var st Statistics
	counts := []struct {
		dst *int64
		f   store.Filter
	}{
		{&st.TotalBankTransactions, store.Filter{Source: model.SourceBank}},
		{&st.TotalAccountingTransactions, store.Filter{Source: model.SourceAccounting}},
		{&st.TotalMatchedTransactions, store.Filter{Status: model.StatusMatched}},
		{&st.TotalPendingTransactions, store.Filter{Status: model.StatusPending}},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range counts {
		g.Go(func() error {
			n, err := s.store.CountTransactions(gctx, c.f)
			*c.dst = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("computing statistics: %w", err)
	}

	st.ReconciliationRate = ReconciliationRate(
		st.TotalMatchedTransactions,
		st.TotalBankTransactions,
		st.TotalAccountingTransactions,
	)
	return &st, nil
}

// ReconciliationRate is matched/(bank+accounting)*100 with two decimals.
func ReconciliationRate(matched, bank, accounting int64) string {
	all := bank + accounting
	if matched == 0 || all == 0 {
		return "0.00"
	}
	return decimal.NewFromInt(matched).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(all)).
		StringFixed(2)
}

// Match returns a match with both transactions loaded.
func (s *Service) Match(ctx context.Context, id string) (*MatchDetail, error) {
	m, err := s.store.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	bank, err := s.store.GetTransaction(ctx, m.BankTransactionID)
	if err != nil {
		return nil, err
	}
	acct, err := s.store.GetTransaction(ctx, m.AccountingTransactionID)
	if err != nil {
		return nil, err
	}
	return &MatchDetail{Match: *m, BankTransaction: bank, AccountingTransaction: acct}, nil
}

// Unmatch deletes a match and returns both transactions to PENDING.
func (s *Service) Unmatch(ctx context.Context, id string) (*model.Match, error) {
	return s.store.DeleteMatch(ctx, id)
}

// Transaction returns one transaction with its match, if any.
func (s *Service) Transaction(ctx context.Context, id string) (*model.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}
