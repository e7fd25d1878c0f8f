// Package server exposes the fleet services over HTTP: a JSON API under /api,
// printable HTML sheets under /print and signed object downloads for the
// memory storage backend.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dharsanguruparan/busdocs/internal/config"
	"github.com/dharsanguruparan/busdocs/internal/fleet"
	"github.com/dharsanguruparan/busdocs/internal/metrics"
	"github.com/dharsanguruparan/busdocs/internal/model"
	"github.com/dharsanguruparan/busdocs/internal/signing"
)

// User-facing messages. Causes are logged, never shown.
const (
	msgBusNotFound  = "No encontramos el bus solicitado."
	msgFileNotFound = "No encontramos el archivo solicitado."
	msgNotFound     = "No encontramos lo que buscabas."
	msgRead         = "No pudimos obtener la información."
	msgWrite        = "No pudimos guardar los cambios."
	msgUpload       = "No se pudo subir el archivo."
	msgInvalid      = "La solicitud no es válida."
	msgUnexpected   = "Ocurrió un error inesperado."
)

// Services are the fleet services the handlers call.
type Services struct {
	Directory *fleet.Directory
	Statuses  *fleet.StatusBook
	Files     *fleet.FileRegistry
	Analyses  *fleet.Analyses
	Reports   *fleet.Reports
	Printer   *fleet.Printer
	// Objects backs /objects downloads. It is only consulted when a signer
	// is configured.
	Objects fleet.ObjectStore
}

// Server hosts the HTTP handlers.
type Server struct {
	cfg     *config.Config
	svc     Services
	signer  *signing.Signer
	metrics *metrics.HTTPServerMetrics
	logger  *slog.Logger
	uploads *ipLimiter
	now     func() time.Time

	handler http.Handler
	server  *http.Server
	once    sync.Once
}

// New constructs a Server. signer may be nil when objects are served by the
// bucket itself; m may be nil to disable /metrics.
func New(cfg *config.Config, svc Services, signer *signing.Signer, m *metrics.HTTPServerMetrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		svc:     svc,
		signer:  signer,
		metrics: m,
		logger:  logger,
		uploads: newIPLimiter(perMinute(cfg.UploadRatePerMinute), cfg.UploadRatePerMinute),
		now:     time.Now,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:              s.cfg.Address,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.logger.Info("api listening", "address", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the router, building it on first use.
func (s *Server) Handler() http.Handler {
	if s.handler == nil {
		s.handler = s.routes()
	}
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/buses", s.handleSearch)
		r.Route("/buses/{ppu}", func(r chi.Router) {
			r.Get("/", s.handleBus)
			r.Get("/status", s.handleGetStatus)
			r.Put("/status", s.handleSaveStatus)
			r.Get("/files", s.handleListFiles)
			r.With(s.uploads.Middleware).Post("/files", s.handleUpload)
			r.Get("/print-targets", s.handlePrintTargets)
			r.Get("/analysis", s.handleAnalysis)
		})
		r.Get("/files/{id}/url", s.handleFileURL)
		r.Get("/fleet", s.handleFleet)
		r.Get("/reports/completeness", s.handleCompleteness)
		r.Get("/reports/completeness.xlsx", s.handleCompletenessXLSX)
	})

	r.Get("/print/file/{id}", s.handlePrintFile)
	r.Get("/print/{ppu}", s.handlePrint)
	r.Get("/objects", s.handleObject)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// lookupBus resolves the {ppu} URL parameter, writing the error response
// itself when the bus cannot be loaded.
func (s *Server) lookupBus(w http.ResponseWriter, r *http.Request) (*model.Bus, bool) {
	bus, err := s.svc.Directory.Lookup(r.Context(), chi.URLParam(r, "ppu"))
	if err != nil {
		s.fail(w, r, err, msgBusNotFound)
		return nil, false
	}
	return bus, true
}

// status maps an error kind to the HTTP status and message shown to users.
func status(err error, notFound string) (int, string) {
	switch {
	case model.IsKind(err, model.ErrUpload):
		return http.StatusBadGateway, msgUpload
	case model.IsKind(err, model.ErrNotFound):
		if notFound == "" {
			notFound = msgNotFound
		}
		return http.StatusNotFound, notFound
	case model.IsKind(err, model.ErrInvalidInput):
		return http.StatusBadRequest, msgInvalid
	case model.IsKind(err, model.ErrWrite):
		return http.StatusBadGateway, msgWrite
	case model.IsKind(err, model.ErrRead):
		return http.StatusBadGateway, msgRead
	default:
		return http.StatusInternalServerError, msgUnexpected
	}
}

// fail logs err and writes the mapped JSON error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	code, msg := status(err, notFound)
	s.logFailure(r, code, err)
	respondError(w, code, msg)
}

func (s *Server) logFailure(r *http.Request, code int, err error) {
	level := slog.LevelWarn
	if code >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", code,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err,
	)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		slog.Default().Error("encode response", "error", err)
	}
}
