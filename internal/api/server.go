// Package api exposes the HTTP interface for the application tracker.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/appvine/apptrack/internal/application"
	"github.com/appvine/apptrack/internal/auth"
	"github.com/appvine/apptrack/internal/config"
	"github.com/appvine/apptrack/internal/scraper"
	"github.com/appvine/apptrack/internal/telemetry"
)

// Store is the persistence surface the handlers need.
type Store interface {
	List(ctx context.Context) ([]application.Application, error)
	Create(ctx context.Context, fields application.CreateFields) (application.Application, error)
	Delete(ctx context.Context, id int64) (application.Application, error)
}

// Scraper runs the crawl, extract, persist pipeline.
type Scraper interface {
	Scrape(ctx context.Context, target string, maxRequests int) (scraper.Result, error)
}

// Server wires HTTP handlers to the store and the scrape pipeline.
type Server struct {
	router  chi.Router
	store   Store
	scraper Scraper
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(store Store, scr Scraper, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:   store,
		scraper: scr,
		cfg:     cfg,
		logger:  logger,
	}
	telemetry.Init()

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(telemetry.Middleware)
	if cfg.Auth.Enabled {
		r.Use(auth.WithClerk(cfg.Auth.ClerkSecretKey))
		r.Use(auth.RequirePrefix(cfg.Auth.AdminPrefix, logger))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	// Timeouts propagate through the request context; handlers still write
	// the JSON envelope when a downstream call hits the deadline. The
	// scraper route blocks for the full synchronous crawl wait, so its
	// deadline is derived from the configured budgets.
	r.Route("/api", func(r chi.Router) {
		r.Route("/applications", func(r chi.Router) {
			r.Use(middleware.Timeout(storeRouteTimeout))
			r.Get("/", s.listApplications)
			r.Post("/", s.createApplication)
			r.Delete("/{id}", s.deleteApplication)
		})
		r.With(middleware.Timeout(scrapeRouteTimeout(cfg))).Post("/scraper", s.scrape)
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Timeout(storeRouteTimeout))
			r.Get("/applications", s.listApplications)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// The store is dialed before the server starts; report ready once routed.
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type requestIDKey struct{}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(logger, w, http.StatusInternalServerError, "internal server error", nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// storeRouteTimeout bounds routes that only touch the database.
const storeRouteTimeout = 60 * time.Second

// scrapeRouteTimeout must exceed the crawl wait plus the generation budget,
// otherwise a default-config scrape can never finish.
func scrapeRouteTimeout(cfg config.Config) time.Duration {
	d := cfg.CrawlBudget() + cfg.ExtractionBudget() + 30*time.Second
	if d < storeRouteTimeout {
		return storeRouteTimeout
	}
	return d
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
