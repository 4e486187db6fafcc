package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is a dependency whose reachability is reported by /api/status.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and status endpoints.
type HealthHandler struct {
	mode      string
	startedAt time.Time
	deps      map[string]Pinger
	clients   func() int
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler. deps are probed by Status;
// clients, when set, reports connected WebSocket clients.
func NewHealthHandler(mode string, startedAt time.Time, deps map[string]Pinger, clients func() int, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		mode:      mode,
		startedAt: startedAt,
		deps:      deps,
		clients:   clients,
		logger:    logHandler(logger, "health"),
	}
}

// HealthCheck reports that the process is alive.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Status probes each dependency. Any failure turns the response into 503.
// GET /api/status
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			h.logger.WarnContext(ctx, "dependency unhealthy",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{
		"mode":           h.mode,
		"started_at":     h.startedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"checks":         checks,
	}
	if h.clients != nil {
		body["ws_clients"] = h.clients()
	}
	writeJSON(w, status, body)
}
