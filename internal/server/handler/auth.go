package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tontine/internal/domain"
	"github.com/alanyoungcy/tontine/internal/form"
)

// SessionEnder ends the session selected by the request.
type SessionEnder interface {
	End(ctx context.Context) error
}

// AuthHandler serves login, logout and registration.
type AuthHandler struct {
	deps     form.Deps
	sessions SessionEnder
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. deps.Sessions must mint a new
// session per login.
func NewAuthHandler(deps form.Deps, sessions SessionEnder, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{deps: deps, sessions: sessions, logger: logHandler(logger, "auth")}
}

// sessionView is what the browser keeps after login. The backend token
// never leaves the server.
type sessionView struct {
	SessionID string      `json:"session_id"`
	User      domain.User `json:"user"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

// Login submits the login form and returns the new session id as data.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	values, err := decodeFields(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c := form.NewLogin(h.deps)
	fill(c, values)
	out, err := c.Submit(r.Context())
	if s, ok := out.Data.(domain.Session); ok {
		view := sessionView{SessionID: s.ID, User: s.User}
		if !s.ExpiresAt.IsZero() {
			view.ExpiresAt = &s.ExpiresAt
		}
		out.Data = view
	}
	writeOutcome(w, out, err)
}

// Logout ends the current session. It succeeds without a session.
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "logout failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Erreur lors de la déconnexion")
		return
	}
	writeJSON(w, http.StatusOK, form.Outcome{
		OK:      true,
		Message: form.Message{Kind: form.MessageSuccess, Text: "Déconnexion réussie"},
		Next:    form.PageLogin,
	})
}

// Register submits the registration form.
// POST /api/users
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	values, err := decodeFields(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c := form.NewRegistration(h.deps)
	fill(c, values)
	out, err := c.Submit(r.Context())
	writeOutcome(w, out, err)
}
