package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tontine/internal/dashboard"
	"github.com/alanyoungcy/tontine/internal/domain"
	"github.com/alanyoungcy/tontine/internal/present"
	"github.com/alanyoungcy/tontine/internal/session"
)

// refreshLockTTL bounds how long one user's refresh may hold the lock.
const refreshLockTTL = 30 * time.Second

// Aggregator is the part of the dashboard pipeline used by the handler.
type Aggregator interface {
	Latest(userID string) (domain.DashboardSummary, bool)
	Refresh(ctx context.Context, userID string) (domain.DashboardSummary, error)
}

// Notifier pushes a transient notification to one user's live clients.
type Notifier interface {
	PublishNotification(ctx context.Context, userID, kind, text string) error
}

// DashboardHandler serves the dashboard summary and the activity journal.
type DashboardHandler struct {
	pipeline Aggregator
	cache    domain.SummaryCache
	locks    domain.LockManager
	notifier Notifier
	journal  domain.ActivityStore
	logger   *slog.Logger
}

// NewDashboardHandler creates a DashboardHandler. cache, locks, notifier
// and journal may be nil.
func NewDashboardHandler(
	pipeline Aggregator,
	cache domain.SummaryCache,
	locks domain.LockManager,
	notifier Notifier,
	journal domain.ActivityStore,
	logger *slog.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		pipeline: pipeline,
		cache:    cache,
		locks:    locks,
		notifier: notifier,
		journal:  journal,
		logger:   logHandler(logger, "dashboard"),
	}
}

type dashboardResponse struct {
	Summary domain.DashboardSummary `json:"summary"`
	View    present.DashboardView   `json:"view"`
	Source  string                  `json:"source"`
}

type refreshResponse struct {
	dashboardResponse
	Notice string `json:"notice"`
	OK     bool   `json:"ok"`
}

// Get returns the newest summary available: the in-process one, then the
// shared cache, then a fresh aggregation.
// GET /api/dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, _ := session.From(ctx)

	if sum, ok := h.pipeline.Latest(s.User.ID); ok {
		writeJSON(w, http.StatusOK, h.response(sum, s.User, "memory"))
		return
	}
	if h.cache != nil {
		sum, err := h.cache.Get(ctx, s.User.ID)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, h.response(sum, s.User, "cache"))
			return
		case !errors.Is(err, domain.ErrNotFound):
			h.logger.WarnContext(ctx, "summary cache read failed", slog.String("error", err.Error()))
		}
	}

	sum, err := h.pipeline.Refresh(ctx, s.User.ID)
	if err != nil && !errors.Is(err, dashboard.ErrSuperseded) {
		writeError(w, http.StatusServiceUnavailable, present.RefreshFailed)
		return
	}
	writeJSON(w, http.StatusOK, h.response(sum, s.User, "live"))
}

// Refresh recomputes the summary. Only one refresh per user runs across
// instances; a concurrent one gets 409.
// POST /api/dashboard/refresh
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s, _ := session.From(ctx)

	if h.locks != nil {
		unlock, err := h.locks.Acquire(ctx, "refresh:"+s.User.ID, refreshLockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				writeError(w, http.StatusConflict, "Actualisation déjà en cours")
				return
			}
			h.logger.WarnContext(ctx, "refresh lock unavailable", slog.String("error", err.Error()))
		} else {
			defer unlock()
		}
	}

	sum, err := h.pipeline.Refresh(ctx, s.User.ID)
	if err != nil && !errors.Is(err, dashboard.ErrSuperseded) {
		writeError(w, http.StatusServiceUnavailable, present.RefreshFailed)
		return
	}

	notice, ok := present.RefreshNotice(sum)
	if h.notifier != nil {
		kind := "success"
		if !ok {
			kind = "error"
		}
		if err := h.notifier.PublishNotification(ctx, s.User.ID, kind, notice); err != nil {
			h.logger.WarnContext(ctx, "failed to publish notice", slog.String("error", err.Error()))
		}
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		dashboardResponse: h.response(sum, s.User, "live"),
		Notice:            notice,
		OK:                ok,
	})
}

// Activity lists the user's journal, newest first.
// GET /api/activity?limit=&offset=
func (h *DashboardHandler) Activity(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeJSON(w, http.StatusOK, []domain.Activity{})
		return
	}
	entries, err := h.journal.List(r.Context(), session.UserID(r.Context()), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "activity list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, present.PanelFailed)
		return
	}
	if entries == nil {
		entries = []domain.Activity{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *DashboardHandler) response(sum domain.DashboardSummary, user domain.User, source string) dashboardResponse {
	return dashboardResponse{Summary: sum, View: present.Dashboard(sum, user), Source: source}
}
