package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/tontine/internal/domain"
	"github.com/alanyoungcy/tontine/internal/server/handler"
	"github.com/alanyoungcy/tontine/internal/server/middleware"
	"github.com/alanyoungcy/tontine/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	RateLimit   int
	RateWindow  time.Duration
}

// Handlers aggregates the HTTP handlers registered by the server.
type Handlers struct {
	Health    *handler.HealthHandler
	Auth      *handler.AuthHandler
	Forms     *handler.FormHandler
	Dashboard *handler.DashboardHandler
	Tontines  *handler.TontineHandler
}

// Deps are the collaborators of the middleware chain. Limiter and Gatherer
// may be nil.
type Deps struct {
	Sessions middleware.SessionResolver
	Limiter  domain.RateLimiter
	Gatherer prometheus.Gatherer
}

// Server is the HTTP + WebSocket front of the dashboard.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps them in the middleware chain:
// CORS, logging, rate limiting, then session selection.
func NewServer(cfg Config, handlers Handlers, deps Deps, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	protect := middleware.RequireSession(deps.Sessions)
	guarded := func(h http.HandlerFunc) http.Handler { return protect(h) }

	// Public.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Health.Status)
	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("POST /api/auth/login", handlers.Auth.Login)
	mux.HandleFunc("POST /api/auth/logout", handlers.Auth.Logout)
	mux.HandleFunc("POST /api/users", handlers.Auth.Register)
	mux.HandleFunc("POST /api/forms/{form}/validate", handlers.Forms.Validate)

	// Session required.
	mux.Handle("GET /api/dashboard", guarded(handlers.Dashboard.Get))
	mux.Handle("POST /api/dashboard/refresh", guarded(handlers.Dashboard.Refresh))
	mux.Handle("GET /api/activity", guarded(handlers.Dashboard.Activity))

	mux.Handle("GET /api/tontines", guarded(handlers.Tontines.List))
	mux.Handle("POST /api/tontines", guarded(handlers.Tontines.Create))
	mux.Handle("GET /api/tontines/{id}", guarded(handlers.Tontines.Get))
	mux.Handle("PUT /api/tontines/{id}", guarded(handlers.Tontines.Update))
	mux.Handle("DELETE /api/tontines/{id}", guarded(handlers.Tontines.Delete))

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Session()(h)
	h = middleware.RateLimit(deps.Limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
