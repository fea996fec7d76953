package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookbridge/hookbridge/internal/models"
)

func TestHealthz(t *testing.T) {
	svc := &mockIngest{
		stats: models.IngestionStats{DeliveriesReceived: 12, DeliveriesPersisted: 10, DeliveriesRejected: 2},
	}
	h := NewHealthHandler(svc, testLogger())

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string                `json:"status"`
		Ingest models.IngestionStats `json:"ingest"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(12), resp.Ingest.DeliveriesReceived)
	assert.Equal(t, int64(2), resp.Ingest.DeliveriesRejected)
}

func TestReadyz(t *testing.T) {
	h := NewHealthHandler(&mockIngest{}, testLogger())

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz_StoreDown(t *testing.T) {
	svc := &mockIngest{
		readyFunc: func(ctx context.Context) error {
			return fmt.Errorf("connection refused")
		},
	}
	h := NewHealthHandler(svc, testLogger())

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
