package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/reconciler/internal/logging"
	"github.com/cleared-dev/reconciler/internal/model"
)

type fakeStore struct {
	batches [][]model.Transaction
	failOn  int // 1-based batch number that fails; 0 never
}

func (f *fakeStore) CreateTransactions(_ context.Context, txns []model.Transaction) error {
	if f.failOn > 0 && len(f.batches)+1 == f.failOn {
		return errors.New("disk full")
	}
	f.batches = append(f.batches, append([]model.Transaction(nil), txns...))
	return nil
}

func (f *fakeStore) all() []model.Transaction {
	var out []model.Transaction
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

type fakeReconciler struct {
	calls int
	err   error
}

func (f *fakeReconciler) Reconcile(context.Context) (int, error) {
	f.calls++
	return 0, f.err
}

func newTestIngestor(store Store, rec Reconciler, batchSize int) *Ingestor {
	return New(store, rec, batchSize, logging.Discard())
}

func TestIngest_ParsesRows(t *testing.T) {
	store := &fakeStore{}
	in := newTestIngestor(store, nil, 0)

	csv := "data,descricao,valor,tipo\n" +
		"2023-01-15,Pagamento cliente,100.50,CREDIT\n" +
		"2023-01-16,Aluguel,-2500,debit\n"
	n, err := in.Ingest(context.Background(), strings.NewReader(csv), model.SourceBank)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	txns := store.all()
	require.Len(t, txns, 2)
	assert.Equal(t, "2023-01-15", txns[0].Date.Format("2006-01-02"))
	assert.Equal(t, "Pagamento cliente", txns[0].Description)
	assert.Equal(t, "100.50", txns[0].Amount.StringFixed(2))
	assert.Equal(t, model.TypeCredit, txns[0].Type)
	assert.Equal(t, model.SourceBank, txns[0].Source)
	assert.Equal(t, model.StatusPending, txns[0].Status)
	assert.Equal(t, model.TypeDebit, txns[1].Type)
	assert.True(t, txns[1].Amount.IsNegative())
}

func TestIngest_HeaderAliases(t *testing.T) {
	store := &fakeStore{}
	in := newTestIngestor(store, nil, 0)

	csv := "\ufeff Type , AMOUNT,Description,Date\nCREDIT,10,Fee,2023-02-01\n"
	n, err := in.Ingest(context.Background(), strings.NewReader(csv), model.SourceBank)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Fee", store.all()[0].Description)
	assert.Equal(t, model.TypeCredit, store.all()[0].Type)
}

func TestIngest_UnknownTypeIsDebit(t *testing.T) {
	store := &fakeStore{}
	in := newTestIngestor(store, nil, 0)

	csv := "data,descricao,valor,tipo\n2023-01-15,x,1,TRANSFER\n2023-01-15,y,1,credit\n"
	_, err := in.Ingest(context.Background(), strings.NewReader(csv), model.SourceBank)
	require.NoError(t, err)
	txns := store.all()
	assert.Equal(t, model.TypeDebit, txns[0].Type)
	assert.Equal(t, model.TypeCredit, txns[1].Type)
}

func TestIngest_DateLayouts(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2023-01-15", "2023-01-15T00:00:00Z"},
		{"2023-01-15T10:30:00Z", "2023-01-15T10:30:00Z"},
		{"2023-01-15T10:30:00-03:00", "2023-01-15T13:30:00Z"},
		{"2023-01-15T10:30:00", "2023-01-15T10:30:00Z"},
		{"2023-01-15 10:30:00", "2023-01-15T10:30:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format("2006-01-02T15:04:05Z07:00"))
		})
	}

	_, err := parseDate("15/01/2023")
	assert.Error(t, err)
}

func TestIngest_SkipsMalformedRows(t *testing.T) {
	store := &fakeStore{}
	in := newTestIngestor(store, nil, 0)

	csv := "data,descricao,valor,tipo\n" +
		"2023-01-15,ok,1,CREDIT\n" +
		",missing date,1,CREDIT\n" +
		"2023-01-15,,1,CREDIT\n" +
		"not-a-date,bad date,1,CREDIT\n" +
		"2023-01-15,bad amount,abc,CREDIT\n" +
		"2023-01-15,short row\n" +
		"2023-01-16,also ok,2,DEBIT\n"
	n, err := in.Ingest(context.Background(), strings.NewReader(csv), model.SourceBank)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	txns := store.all()
	require.Len(t, txns, 2)
	assert.Equal(t, "ok", txns[0].Description)
	assert.Equal(t, "also ok", txns[1].Description)
}

func TestIngest_SkipsAmountsThatCannotBeStoredExactly(t *testing.T) {
	store := &fakeStore{}
	in := newTestIngestor(store, nil, 0)

	csv := "data,descricao,valor,tipo\n" +
		"2023-01-15,too big,99999999999999.99,CREDIT\n" +
		"2023-01-15,too precise,10.005,CREDIT\n" +
		"2023-01-15,at limit,9999999999999.99,CREDIT\n"
	n, err := in.Ingest(context.Background(), strings.NewReader(csv), model.SourceBank)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "at limit", store.all()[0].Description)
}

func TestIngest_Batches(t *testing.T) {
	store := &fakeStore{}
	in := newTestIngestor(store, nil, 0)

	var b strings.Builder
	b.WriteString("data,descricao,valor,tipo\n")
	for i := range 1200 {
		fmt.Fprintf(&b, "2023-01-15,row %d,%d.00,CREDIT\n", i, i+1)
	}
	n, err := in.Ingest(context.Background(), strings.NewReader(b.String()), model.SourceBank)
	require.NoError(t, err)
	assert.Equal(t, 1200, n)
	require.Len(t, store.batches, 2)
	assert.Len(t, store.batches[0], 1000)
	assert.Len(t, store.batches[1], 200)
}

func TestIngest_CustomBatchSize(t *testing.T) {
	store := &fakeStore{}
	in := newTestIngestor(store, nil, 2)

	csv := "data,descricao,valor,tipo\n" +
		"2023-01-15,a,1,CREDIT\n2023-01-15,b,1,CREDIT\n2023-01-15,c,1,CREDIT\n"
	n, err := in.Ingest(context.Background(), strings.NewReader(csv), model.SourceBank)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, store.batches, 2)
}

func TestIngest_ReconcilesAfterAccountingOnly(t *testing.T) {
	csv := "data,descricao,valor,tipo\n2023-01-15,a,1,CREDIT\n"

	rec := &fakeReconciler{}
	in := newTestIngestor(&fakeStore{}, rec, 0)

	_, err := in.Ingest(context.Background(), strings.NewReader(csv), model.SourceBank)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.calls)

	_, err = in.Ingest(context.Background(), strings.NewReader(csv), model.SourceAccounting)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.calls)
}

func TestIngest_ReconcileError(t *testing.T) {
	store := &fakeStore{}
	rec := &fakeReconciler{err: errors.New("boom")}
	in := newTestIngestor(store, rec, 0)

	csv := "data,descricao,valor,tipo\n2023-01-15,a,1,CREDIT\n"
	n, err := in.Ingest(context.Background(), strings.NewReader(csv), model.SourceAccounting)
	require.ErrorIs(t, err, ErrReconcile)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 1, n)
	assert.Len(t, store.all(), 1)
}

type ctxRecordingReconciler struct {
	ctxErr error
}

func (r *ctxRecordingReconciler) Reconcile(ctx context.Context) (int, error) {
	r.ctxErr = ctx.Err()
	return 0, nil
}

func TestIngest_ReconcileSurvivesCallerCancellation(t *testing.T) {
	rec := &ctxRecordingReconciler{}
	in := newTestIngestor(&fakeStore{}, rec, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	csv := "data,descricao,valor,tipo\n2023-01-15,a,1,CREDIT\n"
	_, err := in.Ingest(ctx, strings.NewReader(csv), model.SourceAccounting)
	require.NoError(t, err)
	assert.NoError(t, rec.ctxErr)
}

func TestIngest_MissingColumn(t *testing.T) {
	store := &fakeStore{}
	in := newTestIngestor(store, nil, 0)

	_, err := in.Ingest(context.Background(), strings.NewReader("data,descricao,valor\n2023-01-15,a,1\n"), model.SourceBank)
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "tipo")
	assert.Empty(t, store.batches)
}

func TestIngest_MalformedCSVIsTerminal(t *testing.T) {
	store := &fakeStore{}
	in := newTestIngestor(store, nil, 2)

	csv := "data,descricao,valor,tipo\n" +
		"2023-01-15,a,1,CREDIT\n2023-01-15,b,1,CREDIT\n" +
		"2023-01-15,\"unterminated,1,CREDIT\n"
	n, err := in.Ingest(context.Background(), strings.NewReader(csv), model.SourceBank)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading CSV")
	assert.Equal(t, 2, n, "batches flushed before the error stay stored")
}

func TestIngest_StoreErrorIsTerminal(t *testing.T) {
	store := &fakeStore{failOn: 2}
	rec := &fakeReconciler{}
	in := newTestIngestor(store, rec, 1)

	csv := "data,descricao,valor,tipo\n2023-01-15,a,1,CREDIT\n2023-01-15,b,1,CREDIT\n2023-01-15,c,1,CREDIT\n"
	n, err := in.Ingest(context.Background(), strings.NewReader(csv), model.SourceAccounting)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NotErrorIs(t, err, ErrReconcile)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, rec.calls)
}

func TestIngest_EmptyInput(t *testing.T) {
	rec := &fakeReconciler{}
	in := newTestIngestor(&fakeStore{}, rec, 0)

	n, err := in.Ingest(context.Background(), strings.NewReader(""), model.SourceAccounting)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, rec.calls)
}

func TestIngestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.csv")
	require.NoError(t, os.WriteFile(path, []byte("data,descricao,valor,tipo\n2023-01-15,a,1,CREDIT\n"), 0o644))

	store := &fakeStore{}
	in := newTestIngestor(store, nil, 0)
	n, err := in.IngestFile(context.Background(), path, model.SourceBank)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = in.IngestFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), model.SourceBank)
	assert.Error(t, err)
}

func TestRowError(t *testing.T) {
	inner := errors.New("bad amount")
	err := error(&RowError{Line: 7, Err: inner})
	assert.Equal(t, "line 7: bad amount", err.Error())
	assert.ErrorIs(t, err, inner)
}
