package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/hookbridge/hookbridge/internal/eventstore"
	"github.com/hookbridge/hookbridge/internal/httputil"
	"github.com/hookbridge/hookbridge/internal/logging"
	"github.com/hookbridge/hookbridge/internal/models"
	"github.com/hookbridge/hookbridge/internal/normalizer"
	"github.com/hookbridge/hookbridge/internal/ratelimit"
	"github.com/hookbridge/hookbridge/internal/service"
)

// Webhook delivery headers, as sent by GitHub.
const (
	headerSignature = "X-Hub-Signature-256"
	headerEvent     = "X-GitHub-Event"
	headerDelivery  = "X-GitHub-Delivery"
)

// IngestAPI is the slice of the ingest service the webhook and event
// handlers need. Satisfied by *service.IngestService.
type IngestAPI interface {
	HandleDelivery(ctx context.Context, d service.Delivery) (service.Outcome, error)
	ListRecent(ctx context.Context, limit int) ([]models.InboundEvent, error)
	GetByID(ctx context.Context, deliveryID string) (*models.InboundEvent, error)
	Ready(ctx context.Context) error
	Stats() models.IngestionStats
}

type WebhookHandler struct {
	service      IngestAPI
	rateLimiter  ratelimit.RateLimiter
	logger       *logging.Logger
	maxBodyBytes int64
}

func NewWebhookHandler(svc IngestAPI, limiter ratelimit.RateLimiter, logger *logging.Logger, maxBodyBytes int64) *WebhookHandler {
	if limiter == nil {
		limiter = &ratelimit.NoOpRateLimiter{}
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &WebhookHandler{
		service:      svc,
		rateLimiter:  limiter,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

// Handle ingests one webhook delivery.
//
// Boundary checks happen here, before the core pipeline: a missing
// signature is an authentication failure, missing kind or delivery id a
// malformed request. The core is never invoked with those fields absent.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientIP := httputil.GetClientIP(r)

	allowed, err := h.rateLimiter.Allow(ctx, clientIP)
	if err != nil {
		// A broken limiter must not take ingestion down with it.
		h.logger.WarnContext(ctx, "rate limiter unavailable", logging.Error(err))
	} else if !allowed {
		httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	sig := r.Header.Get(headerSignature)
	if sig == "" {
		httputil.WriteError(w, http.StatusUnauthorized, "missing signature")
		return
	}

	kind := r.Header.Get(headerEvent)
	if kind == "" {
		httputil.WriteError(w, http.StatusBadRequest, "missing event kind")
		return
	}

	deliveryID := r.Header.Get(headerDelivery)
	if deliveryID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "missing delivery id")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	defer r.Body.Close()

	if len(body) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "empty payload")
		return
	}

	outcome, err := h.service.HandleDelivery(ctx, service.Delivery{
		Kind:       kind,
		DeliveryID: deliveryID,
		Signature:  sig,
		Payload:    body,
	})
	if err != nil {
		h.writeDeliveryError(ctx, w, deliveryID, kind, clientIP, err)
		return
	}

	if outcome == service.OutcomePong {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "pong"})
		return
	}

	h.logger.InfoContext(ctx, "delivery accepted",
		logging.DeliveryID(deliveryID),
		logging.EventKind(kind),
		logging.IP(clientIP),
	)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":      "accepted",
		"delivery_id": deliveryID,
	})
}

func (h *WebhookHandler) writeDeliveryError(ctx context.Context, w http.ResponseWriter, deliveryID, kind, clientIP string, err error) {
	switch {
	case errors.Is(err, service.ErrBadSignature):
		h.logger.WarnContext(ctx, "delivery rejected: bad signature",
			logging.DeliveryID(deliveryID),
			logging.EventKind(kind),
			logging.IP(clientIP),
		)
		httputil.WriteError(w, http.StatusUnauthorized, "signature verification failed")

	case errors.Is(err, normalizer.ErrUnsupportedKind):
		httputil.WriteError(w, http.StatusBadRequest, "unsupported event kind")

	case errors.Is(err, normalizer.ErrMalformedPayload):
		httputil.WriteError(w, http.StatusBadRequest, "malformed payload")

	default:
		// Sync persistence surfaces storage failures as transient so the
		// sender's redelivery mechanism kicks in.
		var storageErr *eventstore.StorageError
		if errors.As(err, &storageErr) {
			h.logger.ErrorContext(ctx, "delivery persist failed",
				logging.DeliveryID(deliveryID),
				logging.EventKind(kind),
				logging.Error(err),
			)
			httputil.WriteError(w, http.StatusInternalServerError, "storage failure, please redeliver")
			return
		}
		h.logger.ErrorContext(ctx, "delivery failed",
			logging.DeliveryID(deliveryID),
			logging.Error(err),
		)
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
