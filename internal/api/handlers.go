package api

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/cleared-dev/reconciler/internal/model"
	"github.com/cleared-dev/reconciler/internal/report"
	"github.com/cleared-dev/reconciler/internal/store"
)

// UploadCSV handles POST /transactions/upload-csv?source=BANK|ACCOUNTING.
func (s *Server) UploadCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.fail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Arquivo maior que %d bytes", tooBig.Limit))
			return
		}
		s.fail(w, http.StatusBadRequest, "Nenhum arquivo enviado")
		return
	}
	defer file.Close()

	mediaType, _, err := mime.ParseMediaType(header.Header.Get("Content-Type"))
	if err != nil || mediaType != "text/csv" {
		s.fail(w, http.StatusBadRequest, "O arquivo deve ser um CSV")
		return
	}

	source, err := model.ParseSource(r.URL.Query().Get("source"))
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := s.deps.Ingester.Ingest(r.Context(), file, source)
	if err != nil {
		s.logger.Error("upload failed", "file", header.Filename, "source", source, "err", err)
		s.fail(w, http.StatusBadRequest, "Erro ao processar CSV: "+err.Error())
		return
	}

	_ = s.render.JSON(w, http.StatusCreated, map[string]any{
		"statusCode": http.StatusOK,
		"message":    fmt.Sprintf("%d transações processed for %s", n, source),
	})
}

// ListTransactions handles GET /transactions.
func (s *Server) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := s.deps.Reporter.List(r.Context(), q)
	if err != nil {
		s.internalError(w, err)
		return
	}
	_ = s.render.JSON(w, http.StatusOK, page)
}

// Statistics handles GET /transactions/statistics.
func (s *Server) Statistics(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Reporter.Statistics(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	_ = s.render.JSON(w, http.StatusOK, st)
}

// Reconcile handles POST /transactions/reconcile.
func (s *Server) Reconcile(w http.ResponseWriter, r *http.Request) {
	// A pass that started keeps going if the client hangs up.
	n, err := s.deps.Reconciler.Reconcile(context.WithoutCancel(r.Context()))
	if err != nil {
		s.internalError(w, err)
		return
	}
	_ = s.render.JSON(w, http.StatusOK, map[string]any{
		"statusCode": http.StatusOK,
		"matched":    n,
	})
}

// GetTransaction handles GET /transactions/{id}.
func (s *Server) GetTransaction(w http.ResponseWriter, r *http.Request) {
	txn, err := s.deps.Reporter.Transaction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.lookupError(w, err)
		return
	}
	_ = s.render.JSON(w, http.StatusOK, txn)
}

// GetMatch handles GET /matches/{id}.
func (s *Server) GetMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.Reporter.Match(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.lookupError(w, err)
		return
	}
	_ = s.render.JSON(w, http.StatusOK, m)
}

// DeleteMatch handles DELETE /matches/{id}.
func (s *Server) DeleteMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.Reporter.Unmatch(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.lookupError(w, err)
		return
	}
	_ = s.render.JSON(w, http.StatusOK, m)
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.DB.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", "err", err)
		s.fail(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	_ = s.render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) lookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.fail(w, http.StatusNotFound, err.Error())
		return
	}
	s.internalError(w, err)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", "err", err)
	s.fail(w, http.StatusInternalServerError, "Internal server error")
}

// parseQuery validates the listing query string.
func parseQuery(r *http.Request) (report.Query, error) {
	v := r.URL.Query()
	var (
		q   report.Query
		err error
	)
	if raw := v.Get("source"); raw != "" {
		if q.Source, err = model.ParseSource(raw); err != nil {
			return q, err
		}
	}
	if raw := v.Get("type"); raw != "" {
		if q.Type, err = model.ParseType(raw); err != nil {
			return q, err
		}
	}
	if raw := v.Get("status"); raw != "" {
		if q.Status, err = model.ParseStatus(raw); err != nil {
			return q, err
		}
	}
	if q.StartDate, err = parseDateParam(v.Get("startDate"), "startDate"); err != nil {
		return q, err
	}
	if q.EndDate, err = parseDateParam(v.Get("endDate"), "endDate"); err != nil {
		return q, err
	}
	if q.Page, err = parsePositive(v.Get("page"), "page", report.DefaultPage); err != nil {
		return q, err
	}
	if q.Limit, err = parsePositive(v.Get("limit"), "limit", report.DefaultLimit); err != nil {
		return q, err
	}
	return q, nil
}

func parseDateParam(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s must be a date (YYYY-MM-DD or RFC 3339), got %q", name, raw)
}

func parsePositive(raw, name string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return n, nil
}
