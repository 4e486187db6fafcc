package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tontine/internal/form"
	"github.com/alanyoungcy/tontine/internal/validation"
)

// FormHandler evaluates form fields without submitting them, so the
// browser can show errors as the user types.
type FormHandler struct {
	deps   form.Deps
	logger *slog.Logger
}

// NewFormHandler creates a FormHandler.
func NewFormHandler(deps form.Deps, logger *slog.Logger) *FormHandler {
	return &FormHandler{deps: deps, logger: logHandler(logger, "forms")}
}

type validateResponse struct {
	Valid    bool                       `json:"valid"`
	Fields   map[string]form.FieldState `json:"fields"`
	Strength *validation.Strength       `json:"strength,omitempty"`
}

// Validate evaluates the posted fields of form {form}. Fields that were not
// posted keep their initial state.
// POST /api/forms/{form}/validate
func (h *FormHandler) Validate(w http.ResponseWriter, r *http.Request) {
	c, err := form.ForPage(form.Page(r.PathValue("form")), h.deps)
	if err != nil {
		writeError(w, http.StatusNotFound, "Formulaire inconnu")
		return
	}
	values, err := decodeFields(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fill(c, values)

	resp := validateResponse{Valid: c.Valid(), Fields: c.States()}
	if pw, ok := values[validation.FieldPassword]; ok && form.Page(r.PathValue("form")) == form.PageRegister {
		s := validation.PasswordStrength(pw.Trimmed().Text)
		resp.Strength = &s
	}
	writeJSON(w, http.StatusOK, resp)
}
