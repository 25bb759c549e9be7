package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/sqlsandbox/internal/api/handler"
	mw "github.com/edvin/sqlsandbox/internal/api/middleware"
	"github.com/edvin/sqlsandbox/internal/config"
	"github.com/edvin/sqlsandbox/internal/sandbox"
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type Server struct {
	router  chi.Router
	logger  zerolog.Logger
	sandbox *sandbox.Sandbox
	checks  map[string]ReadinessCheck
	cfg     *config.Config
}

// NewServer wires the sandbox API. checks are run by /readyz.
func NewServer(logger zerolog.Logger, sb *sandbox.Sandbox, checks map[string]ReadinessCheck, cfg *config.Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		logger:  logger,
		sandbox: sb,
		checks:  checks,
		cfg:     cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth([]byte(s.cfg.JWTSecret)))

		sql := handler.NewSQL(s.sandbox)
		r.Post("/sql/execute", sql.Execute)
		r.Post("/sql/manipulate", sql.Manipulate)
		r.Post("/sql/split", sql.Split)
		r.Post("/sql/validate", sql.Validate)

		database := handler.NewDatabase(s.sandbox, s.cfg.MaxUploadBytes)
		r.Get("/sql/databases", database.List)
		r.Post("/sql/databases", database.Create)
		r.Post("/sql/upload", database.Upload)
		r.Delete("/sql/databases/{name}", database.Delete)
		r.Delete("/sql/databases/{name}/copy", database.ResetCopy)
		r.Get("/sql/databases/{name}/schema", database.Schema)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
