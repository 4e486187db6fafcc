package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/tontine/internal/domain"
	"github.com/alanyoungcy/tontine/internal/form"
	"github.com/alanyoungcy/tontine/internal/validation"
)

const maxBodyBytes = 64 << 10

// writeJSON marshals v as JSON and writes it with the given status. If
// marshaling fails, it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends {"error": msg, "message": msg}. The message key is what
// the browser client displays.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "message": msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrInvalidForm):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNoSession), errors.Is(err, domain.ErrAuthExpired):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrSubmitInFlight), errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrNetwork), errors.Is(err, domain.ErrServer):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeOutcome sends a form outcome with the status matching err.
func writeOutcome(w http.ResponseWriter, out form.Outcome, err error) {
	writeJSON(w, statusFor(err), out)
}

// fieldsRequest is the body of every form endpoint: field name to value.
// Strings and numbers become text values, booleans become checkboxes.
type fieldsRequest struct {
	Fields map[string]json.RawMessage `json:"fields"`
}

func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]validation.Value, error) {
	var req fieldsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}

	values := make(map[string]validation.Value, len(req.Fields))
	for name, raw := range req.Fields {
		v, err := fieldValue(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		values[name] = v
	}
	return values, nil
}

func fieldValue(raw json.RawMessage) (validation.Value, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return validation.Value{}, err
	}
	switch t := v.(type) {
	case nil:
		return validation.TextValue(""), nil
	case bool:
		return validation.CheckboxValue(t), nil
	case string:
		return validation.TextValue(t), nil
	case float64:
		return validation.TextValue(strconv.FormatFloat(t, 'f', -1, 64)), nil
	default:
		return validation.Value{}, fmt.Errorf("unsupported value %s", string(raw))
	}
}

// fill feeds values to c. Order does not matter: a change re-evaluates the
// fields depending on it. Unknown fields are ignored.
func fill(c *form.Controller, values map[string]validation.Value) {
	for f, v := range values {
		c.OnFieldChange(f, v)
	}
}

// parseListOpts reads limit (default 20, max 100) and offset.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 20
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = min(n, 100)
	}
	offset := 0
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		offset = n
	}
	return domain.ListOpts{Limit: limit, Offset: offset}
}

func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
