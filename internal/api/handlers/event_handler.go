package handlers

import (
	"net/http"

	"github.com/isdelr/ender-accounts-be/internal/services"
)

// EventHandler serves the audit trail.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent handles event.getRecent.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondWithError(w, err)
		return
	}
	n := 0
	if limit != nil {
		n = *limit
	}

	events, err := h.service.GetRecentEvents(r.Context(), n)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithData(w, http.StatusOK, events)
}
