package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookbridge/hookbridge/internal/eventstore"
	"github.com/hookbridge/hookbridge/internal/logging"
	"github.com/hookbridge/hookbridge/internal/models"
	"github.com/hookbridge/hookbridge/internal/normalizer"
	"github.com/hookbridge/hookbridge/internal/service"
)

// mockIngest is a function-field mock of IngestAPI.
type mockIngest struct {
	handleFunc func(ctx context.Context, d service.Delivery) (service.Outcome, error)
	listFunc   func(ctx context.Context, limit int) ([]models.InboundEvent, error)
	getFunc    func(ctx context.Context, deliveryID string) (*models.InboundEvent, error)
	readyFunc  func(ctx context.Context) error
	stats      models.IngestionStats
}

func (m *mockIngest) HandleDelivery(ctx context.Context, d service.Delivery) (service.Outcome, error) {
	if m.handleFunc != nil {
		return m.handleFunc(ctx, d)
	}
	return service.OutcomeAccepted, nil
}

func (m *mockIngest) ListRecent(ctx context.Context, limit int) ([]models.InboundEvent, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, limit)
	}
	return []models.InboundEvent{}, nil
}

func (m *mockIngest) GetByID(ctx context.Context, deliveryID string) (*models.InboundEvent, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, deliveryID)
	}
	return nil, eventstore.ErrEventNotFound
}

func (m *mockIngest) Ready(ctx context.Context) error {
	if m.readyFunc != nil {
		return m.readyFunc(ctx)
	}
	return nil
}

func (m *mockIngest) Stats() models.IngestionStats { return m.stats }

func testLogger() *logging.Logger {
	return logging.New(slog.LevelError, "text")
}

// denyingLimiter always rejects; faultyLimiter always errors.
type denyingLimiter struct{}

func (denyingLimiter) Allow(ctx context.Context, key string) (bool, error) { return false, nil }
func (denyingLimiter) Close() error                                        { return nil }

type faultyLimiter struct{}

func (faultyLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return false, fmt.Errorf("redis down")
}
func (faultyLimiter) Close() error { return nil }

func deliveryRequest(body string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func fullHeaders() map[string]string {
	return map[string]string{
		headerSignature: "sha256=deadbeef",
		headerEvent:     "issues",
		headerDelivery:  "d-1",
	}
}

func TestWebhookHandler_Accepted(t *testing.T) {
	var got service.Delivery
	svc := &mockIngest{
		handleFunc: func(ctx context.Context, d service.Delivery) (service.Outcome, error) {
			got = d
			return service.OutcomeAccepted, nil
		},
	}
	h := NewWebhookHandler(svc, nil, testLogger(), 0)

	rec := httptest.NewRecorder()
	h.Handle(rec, deliveryRequest(`{"action":"opened"}`, fullHeaders()))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "accepted", resp["status"])
	assert.Equal(t, "d-1", resp["delivery_id"])

	assert.Equal(t, "issues", got.Kind)
	assert.Equal(t, "d-1", got.DeliveryID)
	assert.Equal(t, "sha256=deadbeef", got.Signature)
	assert.Equal(t, `{"action":"opened"}`, string(got.Payload))
}

func TestWebhookHandler_Pong(t *testing.T) {
	svc := &mockIngest{
		handleFunc: func(ctx context.Context, d service.Delivery) (service.Outcome, error) {
			return service.OutcomePong, nil
		},
	}
	h := NewWebhookHandler(svc, nil, testLogger(), 0)

	headers := fullHeaders()
	headers[headerEvent] = "ping"
	rec := httptest.NewRecorder()
	h.Handle(rec, deliveryRequest(`{"zen":"keep it logically awesome"}`, headers))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pong")
}

func TestWebhookHandler_MissingHeaders(t *testing.T) {
	tests := []struct {
		name       string
		drop       string
		wantStatus int
	}{
		{"no signature", headerSignature, http.StatusUnauthorized},
		{"no event kind", headerEvent, http.StatusBadRequest},
		{"no delivery id", headerDelivery, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			svc := &mockIngest{
				handleFunc: func(ctx context.Context, d service.Delivery) (service.Outcome, error) {
					called = true
					return service.OutcomeAccepted, nil
				},
			}
			h := NewWebhookHandler(svc, nil, testLogger(), 0)

			headers := fullHeaders()
			delete(headers, tt.drop)
			rec := httptest.NewRecorder()
			h.Handle(rec, deliveryRequest(`{}`, headers))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, called, "pipeline must not run on a malformed request")
		})
	}
}

func TestWebhookHandler_EmptyBody(t *testing.T) {
	h := NewWebhookHandler(&mockIngest{}, nil, testLogger(), 0)

	rec := httptest.NewRecorder()
	h.Handle(rec, deliveryRequest("", fullHeaders()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookHandler_PayloadTooLarge(t *testing.T) {
	h := NewWebhookHandler(&mockIngest{}, nil, testLogger(), 16)

	rec := httptest.NewRecorder()
	h.Handle(rec, deliveryRequest(strings.Repeat("x", 64), fullHeaders()))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestWebhookHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"bad signature", service.ErrBadSignature, http.StatusUnauthorized},
		{"unsupported kind", fmt.Errorf("%w: %q", normalizer.ErrUnsupportedKind, "push"), http.StatusBadRequest},
		{"malformed payload", fmt.Errorf("%w: missing action", normalizer.ErrMalformedPayload), http.StatusBadRequest},
		{"storage failure", &eventstore.StorageError{Op: "upsert", Err: fmt.Errorf("connection refused")}, http.StatusInternalServerError},
		{"unknown failure", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockIngest{
				handleFunc: func(ctx context.Context, d service.Delivery) (service.Outcome, error) {
					return 0, tt.err
				},
			}
			h := NewWebhookHandler(svc, nil, testLogger(), 0)

			rec := httptest.NewRecorder()
			h.Handle(rec, deliveryRequest(`{}`, fullHeaders()))

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestWebhookHandler_RateLimited(t *testing.T) {
	called := false
	svc := &mockIngest{
		handleFunc: func(ctx context.Context, d service.Delivery) (service.Outcome, error) {
			called = true
			return service.OutcomeAccepted, nil
		},
	}
	h := NewWebhookHandler(svc, denyingLimiter{}, testLogger(), 0)

	rec := httptest.NewRecorder()
	h.Handle(rec, deliveryRequest(`{}`, fullHeaders()))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.False(t, called)
}

func TestWebhookHandler_LimiterFailureIsOpen(t *testing.T) {
	// A broken limiter must not reject deliveries.
	h := NewWebhookHandler(&mockIngest{}, faultyLimiter{}, testLogger(), 0)

	rec := httptest.NewRecorder()
	h.Handle(rec, deliveryRequest(`{}`, fullHeaders()))

	assert.Equal(t, http.StatusAccepted, rec.Code)
}
