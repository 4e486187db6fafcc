package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/alanyoungcy/tontine/internal/domain"
)

// DefaultMessage is shown when the backend rejects a request without saying
// why.
const DefaultMessage = "Une erreur est survenue"

// APIError is a non-2xx answer from the backend. It unwraps to the domain
// sentinel matching its status code.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
	kind    error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = DefaultMessage
	}
	return fmt.Sprintf("gateway: %s %s: HTTP %d: %s", e.Method, e.Path, e.Status, msg)
}

func (e *APIError) Unwrap() error { return e.kind }

// Message returns the text to show a user for err. Backend rejections show
// the backend's message (or DefaultMessage); anything else shows fallback.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return DefaultMessage
	}
	return fallback
}

// statusKind maps an HTTP status onto a domain sentinel, or nil for 2xx.
func statusKind(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return domain.ErrAuthExpired
	case status == http.StatusForbidden:
		return domain.ErrUnauthorized
	case status == http.StatusNotFound:
		return domain.ErrNotFound
	case status == http.StatusConflict:
		return domain.ErrAlreadyExists
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		return domain.ErrServer
	}
}

// backendMessage extracts the "message" field of an error body.
func backendMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
