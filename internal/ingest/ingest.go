package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/reconciler/internal/model"
)

// DefaultBatchSize is the number of rows written per CreateTransactions call.
const DefaultBatchSize = 1000

var (
	// ErrMissingColumn is returned when the header lacks a required column.
	ErrMissingColumn = errors.New("missing required column")
	// ErrReconcile marks a failure of the run that follows an accounting
	// import. Every row was stored before it happened.
	ErrReconcile = errors.New("reconciling after import")
)

// Store persists parsed transactions.
type Store interface {
	CreateTransactions(ctx context.Context, txns []model.Transaction) error
}

// Reconciler runs a reconciliation pass after an accounting import.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// RowError describes a data row that was skipped.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

type column int

const (
	colDate column = iota
	colDescription
	colAmount
	colType
	numColumns
)

var columnNames = [numColumns]string{"data", "descricao", "valor", "tipo"}

// headerAliases maps normalized header names to columns.
var headerAliases = map[string]column{
	"data":        colDate,
	"date":        colDate,
	"descricao":   colDescription,
	"descrição":   colDescription,
	"description": colDescription,
	"valor":       colAmount,
	"amount":      colAmount,
	"tipo":        colType,
	"type":        colType,
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Ingestor reads transaction CSVs into the store.
type Ingestor struct {
	store      Store
	reconciler Reconciler
	batchSize  int
	logger     *log.Logger
}

// New creates an Ingestor. A nil reconciler disables the post-import run;
// a batchSize below 1 means DefaultBatchSize.
func New(store Store, reconciler Reconciler, batchSize int, logger *log.Logger) *Ingestor {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	return &Ingestor{
		store:      store,
		reconciler: reconciler,
		batchSize:  batchSize,
		logger:     logger.WithPrefix("ingest"),
	}
}

// IngestFile opens path and ingests it.
func (in *Ingestor) IngestFile(ctx context.Context, path string, source model.Source) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return in.Ingest(ctx, f, source)
}

// Ingest parses r as CSV and stores every valid row as a PENDING transaction
// from source. Invalid rows are logged and skipped. When source is ACCOUNTING
// a reconciliation run follows once all rows are stored.
//
// It returns the number of stored transactions. On error, batches already
// written stay written; an error wrapping ErrReconcile means all rows were.
func (in *Ingestor) Ingest(ctx context.Context, r io.Reader, source model.Source) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	stored, skipped := 0, 0
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		in.logger.Warn("empty file", "source", source)
		return 0, in.afterImport(ctx, source)
	}
	if err != nil {
		return 0, fmt.Errorf("reading header: %w", err)
	}
	cols, err := mapHeader(header)
	if err != nil {
		return 0, err
	}

	batch := make([]model.Transaction, 0, in.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := in.store.CreateTransactions(ctx, batch); err != nil {
			return fmt.Errorf("storing batch: %w", err)
		}
		stored += len(batch)
		in.logger.Debug("batch stored", "source", source, "rows", len(batch), "total", stored)
		batch = make([]model.Transaction, 0, in.batchSize)
		return nil
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stored, fmt.Errorf("reading CSV: %w", err)
		}
		line, _ := cr.FieldPos(0)

		txn, err := in.parseRow(rec, cols, source)
		if err != nil {
			skipped++
			in.logger.Warn("skipping row", "err", &RowError{Line: line, Err: err})
			continue
		}
		batch = append(batch, txn)
		if len(batch) >= in.batchSize {
			if err := flush(); err != nil {
				return stored, err
			}
		}
	}
	if err := flush(); err != nil {
		return stored, err
	}

	in.logger.Info("import complete", "source", source, "stored", stored, "skipped", skipped)
	return stored, in.afterImport(ctx, source)
}

func (in *Ingestor) afterImport(ctx context.Context, source model.Source) error {
	if source != model.SourceAccounting || in.reconciler == nil {
		return nil
	}
	// The run outlives the caller; a half-finished pass is not cancelled.
	if _, err := in.reconciler.Reconcile(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("%w: %w", ErrReconcile, err)
	}
	return nil
}

// mapHeader resolves each required column to its index in the header row.
func mapHeader(header []string) ([numColumns]int, error) {
	var idx [numColumns]int
	for i := range idx {
		idx[i] = -1
	}
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		c, ok := headerAliases[strings.ToLower(strings.TrimSpace(name))]
		if ok && idx[c] < 0 {
			idx[c] = i
		}
	}
	for c, i := range idx {
		if i < 0 {
			return idx, fmt.Errorf("%w %q", ErrMissingColumn, columnNames[c])
		}
	}
	return idx, nil
}

func (in *Ingestor) parseRow(rec []string, cols [numColumns]int, source model.Source) (model.Transaction, error) {
	var fields [numColumns]string
	for c, i := range cols {
		if i >= len(rec) {
			return model.Transaction{}, fmt.Errorf("missing field %q", columnNames[c])
		}
		fields[c] = strings.TrimSpace(rec[i])
		if fields[c] == "" {
			return model.Transaction{}, fmt.Errorf("empty field %q", columnNames[c])
		}
	}

	date, err := parseDate(fields[colDate])
	if err != nil {
		return model.Transaction{}, err
	}
	amount, err := decimal.NewFromString(fields[colAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", fields[colAmount], err)
	}
	if err := model.CheckAmount(amount); err != nil {
		return model.Transaction{}, err
	}

	typ := model.TypeFromCSV(fields[colType])
	if !strings.EqualFold(fields[colType], string(typ)) {
		in.logger.Debug("unrecognized type treated as debit", "value", fields[colType])
	}

	return model.Transaction{
		Date:        date,
		Description: fields[colDescription],
		Amount:      amount,
		Type:        typ,
		Source:      source,
		Status:      model.StatusPending,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q", s)
}
