// Package api provides the admin HTTP API: queue and job control, imports,
// series lifecycle, source health and catalog search.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DokushoHQ/backends/internal/http/response"
	"github.com/DokushoHQ/backends/internal/queue"
	"github.com/DokushoHQ/backends/internal/search"
	"github.com/DokushoHQ/backends/internal/service"
	"github.com/DokushoHQ/backends/internal/store/sqlite"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// Services groups the business logic behind the admin API.
type Services struct {
	Import   *service.ImportService
	Cover    *service.CoverService
	Indexer  *service.IndexerService
	Deletion *service.DeletionService
	Admin    *service.AdminService
	Sources  *service.SourceSyncService
}

// Options tunes the HTTP surface.
type Options struct {
	// CORSOrigins are allowed browser origins; none disables CORS headers.
	CORSOrigins []string
	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer
	// ImportsPerMinute caps import requests per client IP.
	ImportsPerMinute int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	catalog       *sqlite.Store
	broker        *queue.Broker
	index         *search.Index
	services      *Services
	router        *chi.Mux
	api           huma.API
	importLimiter *RateLimiter
	logger        *slog.Logger
}

// NewServer creates the admin server with every route registered.
func NewServer(catalog *sqlite.Store, broker *queue.Broker, index *search.Index, services *Services, opts Options, logger *slog.Logger) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.ImportsPerMinute <= 0 {
		opts.ImportsPerMinute = 60
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "route "+r.URL.Path+" not found", logger)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.MethodNotAllowed(w, logger)
	})

	s := &Server{
		catalog:       catalog,
		broker:        broker,
		index:         index,
		services:      services,
		router:        router,
		importLimiter: NewRateLimiter(opts.ImportsPerMinute, time.Minute, max(opts.ImportsPerMinute/6, 1)),
		logger:        logger,
	}

	router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	humaConfig := huma.DefaultConfig("Dokusho Admin API", Version)
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	RegisterErrorHandler()
	s.api = humachi.New(router, humaConfig)

	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for tests.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerQueueRoutes()
	s.registerJobRoutes()
	s.registerImportRoutes()
	s.registerSeriesRoutes()
	s.registerSourceRoutes()
	s.registerAdminRoutes()
}

// requestLogger logs each request through slog once it completes.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"took", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
