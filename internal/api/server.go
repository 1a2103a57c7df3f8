package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/unrolled/render"

	"github.com/cleared-dev/reconciler/internal/model"
	"github.com/cleared-dev/reconciler/internal/report"
)

// Ingester imports an uploaded CSV.
type Ingester interface {
	Ingest(ctx context.Context, r io.Reader, source model.Source) (int, error)
}

// Reconciler runs a reconciliation pass on demand.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// Reporter answers read queries and match administration.
type Reporter interface {
	List(ctx context.Context, q report.Query) (*report.Page, error)
	Statistics(ctx context.Context) (*report.Statistics, error)
	Transaction(ctx context.Context, id string) (*model.Transaction, error)
	Match(ctx context.Context, id string) (*report.MatchDetail, error)
	Unmatch(ctx context.Context, id string) (*model.Match, error)
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the HTTP handlers delegate to.
type Deps struct {
	Ingester   Ingester
	Reconciler Reconciler
	Reporter   Reporter
	DB         Pinger
}

// Server routes HTTP requests to the reconciliation services.
type Server struct {
	Router *mux.Router

	deps      Deps
	render    *render.Render
	logger    *log.Logger
	maxUpload int64
}

// NewServer builds the router. maxUploadMB bounds the multipart request size.
func NewServer(deps Deps, maxUploadMB int64, logger *log.Logger) *Server {
	if maxUploadMB < 1 {
		maxUploadMB = 50
	}
	s := &Server{
		Router:    mux.NewRouter(),
		deps:      deps,
		render:    render.New(render.Options{UnEscapeHTML: true}),
		logger:    logger.WithPrefix("http"),
		maxUpload: maxUploadMB << 20,
	}
	s.initializeRoutes()
	return s
}

func (s *Server) initializeRoutes() {
	s.Router.Use(s.logRequests)

	s.Router.HandleFunc("/health", s.Health).Methods(http.MethodGet)

	s.Router.HandleFunc("/transactions", s.ListTransactions).Methods(http.MethodGet)
	s.Router.HandleFunc("/transactions/upload-csv", s.UploadCSV).Methods(http.MethodPost)
	s.Router.HandleFunc("/transactions/statistics", s.Statistics).Methods(http.MethodGet)
	s.Router.HandleFunc("/transactions/reconcile", s.Reconcile).Methods(http.MethodPost)
	s.Router.HandleFunc("/transactions/{id}", s.GetTransaction).Methods(http.MethodGet)

	s.Router.HandleFunc("/matches/{id}", s.GetMatch).Methods(http.MethodGet)
	s.Router.HandleFunc("/matches/{id}", s.DeleteMatch).Methods(http.MethodDelete)

	s.Router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.fail(w, http.StatusNotFound, "Cannot "+r.Method+" "+r.URL.Path)
	})
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// HTTPServer wraps the router in an http.Server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

func (s *Server) fail(w http.ResponseWriter, status int, message string) {
	_ = s.render.JSON(w, status, errorBody{
		StatusCode: status,
		Message:    message,
		Error:      http.StatusText(status),
	})
}
