package handlers

import (
	"net/http"
	"time"

	"github.com/hookbridge/hookbridge/internal/httputil"
	"github.com/hookbridge/hookbridge/internal/logging"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	service IngestAPI
	logger  *logging.Logger
	started time.Time
}

func NewHealthHandler(service IngestAPI, logger *logging.Logger) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  logger,
		started: time.Now(),
	}
}

// Healthz reports process liveness plus ingestion counters. It never
// touches the backing store.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).Round(time.Second).String(),
		"ingest": h.service.Stats(),
	})
}

// Readyz pings the backing store so load balancers stop routing webhook
// traffic to an instance that cannot persist.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ready(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "readiness check failed", logging.Error(err))
		httputil.WriteError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
