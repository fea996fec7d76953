package handlers

import (
	"errors"
	"net/http"

	"github.com/hookbridge/hookbridge/internal/eventstore"
	"github.com/hookbridge/hookbridge/internal/httputil"
	"github.com/hookbridge/hookbridge/internal/logging"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// EventsHandler exposes the stored-event read API: recency-ordered listing
// and point lookup by delivery id.
type EventsHandler struct {
	service IngestAPI
	logger  *logging.Logger
}

func NewEventsHandler(svc IngestAPI, logger *logging.Logger) *EventsHandler {
	return &EventsHandler{service: svc, logger: logger}
}

// List handles GET /api/v1/events?limit=N. The limit ceiling lives here;
// the store itself does not enforce one.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := httputil.ParseIntParam(r.URL.Query().Get("limit"), defaultListLimit)
	limit = httputil.ClampLimit(limit, defaultListLimit, maxListLimit)

	events, err := h.service.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list events", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// Get handles GET /api/v1/events/{deliveryID}.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	deliveryID := r.PathValue("deliveryID")

	event, err := h.service.GetByID(r.Context(), deliveryID)
	if err != nil {
		if errors.Is(err, eventstore.ErrEventNotFound) {
			httputil.WriteError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to get event",
			logging.DeliveryID(deliveryID),
			logging.Error(err),
		)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to get event")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, event)
}
