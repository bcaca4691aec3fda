package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/terra-clan/assessment-search/internal/config"
	"github.com/terra-clan/assessment-search/internal/search"
	"github.com/terra-clan/assessment-search/internal/session"
	"github.com/terra-clan/assessment-search/internal/storage"
	"github.com/terra-clan/assessment-search/internal/templates"
)

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the server routes requests to
type Deps struct {
	Registry   *session.Registry
	Templates  *templates.Loader
	Repository storage.Repository
	Gatherer   prometheus.Gatherer
	Checks     map[string]HealthCheck
}

// Server represents the HTTP server for the search page and its API
type Server struct {
	config    *config.Config
	router    *chi.Mux
	registry  *session.Registry
	templates *templates.Loader
	repo      storage.Repository
	gatherer  prometheus.Gatherer
	checks    map[string]HealthCheck
	limiter   func(http.Handler) http.Handler
}

// NewServer creates a new server. ctx bounds background work such as rate
// limiter cleanup.
func NewServer(ctx context.Context, cfg *config.Config, deps Deps) *Server {
	s := &Server{
		config:    cfg,
		registry:  deps.Registry,
		templates: deps.Templates,
		repo:      deps.Repository,
		gatherer:  deps.Gatherer,
		checks:    deps.Checks,
		limiter:   RateLimit(ctx, cfg.RateLimit.RequestsPerMin, cfg.RateLimit.Burst),
	}
	if s.repo == nil {
		s.repo = storage.NopRepository{}
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		// Page
		r.Get("/", s.handlePage)
		r.With(s.limiter).Post("/search", s.handleFormSearch)
		r.Get("/ws", s.handleStateWS)

		// JSON API
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   []string{"*"},
				AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
				ExposedHeaders:   []string{"X-Request-ID"},
				AllowCredentials: true,
				MaxAge:           300,
			}))

			r.Get("/state", s.handleGetState)
			r.With(s.limiter).Post("/search", s.handleAPISearch)
			r.Get("/history", s.handleHistory)
		})
	})

	s.router = r
}

// controller returns the search controller bound to the request's session
func (s *Server) controller(r *http.Request) *search.Controller {
	return s.registry.Get(r.Context(), SessionFromContext(r.Context()))
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
