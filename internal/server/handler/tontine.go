package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tontine/internal/domain"
	"github.com/alanyoungcy/tontine/internal/form"
	"github.com/alanyoungcy/tontine/internal/gateway"
	"github.com/alanyoungcy/tontine/internal/present"
)

// TontineHandler serves tontine listing and CRUD. Mutations go through the
// same form controllers as the interactive client.
type TontineHandler struct {
	deps   form.Deps
	logger *slog.Logger
}

// NewTontineHandler creates a TontineHandler.
func NewTontineHandler(deps form.Deps, logger *slog.Logger) *TontineHandler {
	return &TontineHandler{deps: deps, logger: logHandler(logger, "tontines")}
}

type tontineView struct {
	domain.Group
	Card present.GroupCard `json:"card"`
}

func newTontineView(g domain.Group) tontineView {
	return tontineView{Group: g, Card: present.Card(g)}
}

// List returns every tontine with its display card.
// GET /api/tontines
func (h *TontineHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.deps.Repo.Groups(r.Context())
	if err != nil {
		h.fail(w, r, err, "Erreur lors du chargement des tontines")
		return
	}
	out := make([]tontineView, 0, len(groups))
	for _, g := range groups {
		out = append(out, newTontineView(g))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get returns one tontine.
// GET /api/tontines/{id}
func (h *TontineHandler) Get(w http.ResponseWriter, r *http.Request) {
	g, err := h.deps.Repo.Group(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "Erreur lors du chargement de la tontine")
		return
	}
	writeJSON(w, http.StatusOK, newTontineView(g))
}

// Create submits the creation form.
// POST /api/tontines
func (h *TontineHandler) Create(w http.ResponseWriter, r *http.Request) {
	values, err := decodeFields(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c := form.NewCreateTontine(h.deps)
	fill(c, values)
	out, err := c.Submit(r.Context())
	writeOutcome(w, out, err)
}

// Update submits the edit form of one tontine.
// PUT /api/tontines/{id}
func (h *TontineHandler) Update(w http.ResponseWriter, r *http.Request) {
	values, err := decodeFields(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c := form.NewUpdateTontine(h.deps, r.PathValue("id"))
	fill(c, values)
	out, err := c.Submit(r.Context())
	writeOutcome(w, out, err)
}

// Delete removes one tontine.
// DELETE /api/tontines/{id}
func (h *TontineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	out, err := form.DeleteTontine(r.Context(), h.deps, r.PathValue("id"))
	writeOutcome(w, out, err)
}

func (h *TontineHandler) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	h.logger.WarnContext(r.Context(), "backend call failed", slog.String("error", err.Error()))
	writeError(w, statusFor(err), gateway.Message(err, fallback))
}
