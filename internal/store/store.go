package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cleared-dev/reconciler/internal/config"
	"github.com/cleared-dev/reconciler/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotPending is returned when a transaction cannot be claimed for a match
	// because it is missing, already matched, or from the wrong source.
	ErrNotPending = errors.New("transaction is not pending")
)

// Store persists transactions and matches.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured database and migrates the schema.
func Open(cfg config.DatabaseConfig, debug bool) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if debug {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if cfg.Driver == "" || cfg.Driver == "sqlite" {
		// sqlite allows a single writer.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("getting sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&model.Transaction{}, &model.Match{}); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// WithTx runs fn against a Store bound to a single database transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Filter narrows transaction queries. Zero values mean "any".
type Filter struct {
	Source model.Source
	Type   model.Type
	Status model.Status
	Amount *decimal.Decimal
	From   *time.Time // inclusive
	To     *time.Time // inclusive
}

// Order is the sort direction on the transaction date.
type Order int

const (
	DateAsc Order = iota
	DateDesc
)

// ListOptions controls ordering and paging of FindTransactions.
type ListOptions struct {
	Order        Order
	Limit        int // 0 = no limit
	Offset       int
	PreloadMatch bool
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Amount != nil {
		q = q.Where("amount = ?", *f.Amount)
	}
	if f.From != nil {
		q = q.Where("date >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("date <= ?", f.To.UTC())
	}
	return q
}

// FindTransactions returns transactions matching f, ordered by date.
// Ties on date are broken by creation time and then id so results are stable.
func (s *Store) FindTransactions(ctx context.Context, f Filter, opts ListOptions) ([]model.Transaction, error) {
	q := f.apply(s.db.WithContext(ctx).Model(&model.Transaction{}))

	if opts.Order == DateDesc {
		q = q.Order("date DESC").Order("created_at DESC").Order("id DESC")
	} else {
		q = q.Order("date ASC").Order("created_at ASC").Order("id ASC")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.PreloadMatch {
		q = q.Preload("BankMatch").Preload("AccountingMatch")
	}

	txns := []model.Transaction{}
	if err := q.Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	return txns, nil
}

// CountTransactions returns how many transactions match f.
func (s *Store) CountTransactions(ctx context.Context, f Filter) (int64, error) {
	var n int64
	if err := f.apply(s.db.WithContext(ctx).Model(&model.Transaction{})).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting transactions: %w", err)
	}
	return n, nil
}

// GetTransaction returns a transaction by id with its match preloaded.
func (s *Store) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	var txn model.Transaction
	err := s.db.WithContext(ctx).
		Preload("BankMatch").
		Preload("AccountingMatch").
		Where("id = ?", id).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading transaction %s: %w", id, err)
	}
	return &txn, nil
}

// insertChunk keeps multi-row INSERTs under sqlite's bound-parameter limit.
const insertChunk = 100

// CreateTransactions inserts txns atomically, assigning ids in place.
func (s *Store) CreateTransactions(ctx context.Context, txns []model.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	for i := range txns {
		if err := model.CheckAmount(txns[i].Amount); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&txns, insertChunk).Error; err != nil {
		return fmt.Errorf("inserting %d transactions: %w", len(txns), err)
	}
	return nil
}

// UpdateStatus sets the status of one transaction.
func (s *Store) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	res := s.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("updating status of %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}
