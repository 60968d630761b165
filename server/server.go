package server

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"car-price-app/mapping"
	"car-price-app/models"
	"car-price-app/services"
	"car-price-app/storage"
	"car-price-app/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

// maxBatch caps the number of vehicles in one batch request.
const maxBatch = 100

// Options carries the presentation settings.
type Options struct {
	Currency        string
	MaxRequestBytes int64
	CORSOrigins     []string
	// Ready is consulted by /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

// Server exposes the estimator over HTML and JSON.
type Server struct {
	estimator *services.Estimator
	table     *mapping.Table
	gate      *utils.Gate
	sinks     []storage.EstimateWriter
	logger    *utils.Logger
	opts      Options
	page      *template.Template
}

// New builds a Server. Every sink receives each successful estimate; sink
// failures are logged and never change the response.
func New(est *services.Estimator, table *mapping.Table, gate *utils.Gate, logger *utils.Logger, opts Options, sinks ...storage.EstimateWriter) (*Server, error) {
	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	if opts.Currency == "" {
		opts.Currency = "TND"
	}
	if opts.MaxRequestBytes <= 0 {
		opts.MaxRequestBytes = 1 << 20
	}
	return &Server{
		estimator: est,
		table:     table,
		gate:      gate,
		sinks:     sinks,
		logger:    logger,
		opts:      opts,
		page:      page,
	}, nil
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.accessLog, middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Get("/", s.handleForm)
	r.Post("/", s.handleFormSubmit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
		r.Get("/options", s.handleOptions)
		r.Get("/listings", s.handleListings)
		r.Post("/estimates", s.handleEstimate)
		r.Post("/estimates/batch", s.handleEstimateBatch)
	})
	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.With(
			"request_id", middleware.GetReqID(r.Context()),
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		).Info("[http] %s %s", r.Method, r.URL.Path)
	})
}

// admit takes a submission slot. The returned release must be called once
// the submission has resolved.
func (s *Server) admit(ctx context.Context) (release func(), err error) {
	if err := s.gate.Acquire(ctx); err != nil {
		return nil, err
	}
	return s.gate.Release, nil
}

func (s *Server) record(ctx context.Context, ests ...*models.Estimate) {
	for _, sink := range s.sinks {
		for _, e := range ests {
			if err := sink.WriteEstimate(ctx, e); err != nil {
				s.logger.Warn("[server] estimate log: %v", err)
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(r.Context()); err != nil {
			s.logger.Warn("[server] not ready: %v", err)
			writeError(w, http.StatusServiceUnavailable, "not ready", "not_ready", "")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
