package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/alanyoungcy/tontine/internal/domain"
	"github.com/alanyoungcy/tontine/internal/session"
)

// SessionExpiredMessage is returned when the session is missing or expired.
const SessionExpiredMessage = "Session expirée, veuillez vous reconnecter"

// SessionResolver loads the session selected by the request context.
type SessionResolver interface {
	Current(ctx context.Context) (domain.Session, error)
}

// Session selects the session named by the bearer token (or the "session"
// query parameter, for WebSocket clients). It never rejects a request.
func Session() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := extractSessionID(r); id != "" {
				r = r.WithContext(session.WithID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession rejects requests without a live session with 401 and puts
// the resolved session in the request context.
func RequireSession(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := resolver.Current(r.Context())
			if err != nil {
				if errors.Is(err, domain.ErrNoSession) || errors.Is(err, domain.ErrAuthExpired) {
					writeJSONError(w, http.StatusUnauthorized, SessionExpiredMessage)
					return
				}
				writeJSONError(w, http.StatusInternalServerError, "Une erreur est survenue")
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), s)))
		})
	}
}

func extractSessionID(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("session"))
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "message": msg})
}
