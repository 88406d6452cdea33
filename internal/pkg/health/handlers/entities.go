package handlers

import (
	"net/http"

	"github.com/Vodeneev/evledger/internal/pkg/enums"
	"github.com/Vodeneev/evledger/internal/pkg/models"
)

// GetEntities lists canonical entities of one kind.
// Query params: kind (subject, team, market; default subject), domain
func (h *Handler) GetEntities(w http.ResponseWriter, r *http.Request) {
	kind := enums.EntityKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = enums.KindSubject
	}
	if !kind.Valid() {
		respondError(w, http.StatusBadRequest, "unknown entity kind "+string(kind), nil)
		return
	}
	domain := r.URL.Query().Get("domain")

	entities := h.registry.Entities(kind, domain)
	if entities == nil {
		entities = []models.CanonicalEntity{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"entities": entities,
		"count":    len(entities),
		"kind":     kind,
		"domain":   domain,
	})
}
