package models

import (
	"encoding/json"
	"time"
)

// InboundEvent is the canonical record persisted for a webhook delivery.
// DeliveryID is the sender-assigned idempotency key: redelivery of the same
// id replaces the stored record rather than appending a new one.
//
// RawPayload is the delivery body byte-for-byte as received. It is a
// json.RawMessage so the read API emits it inline, and it is stored as
// text so the database never re-serializes it.
type InboundEvent struct {
	DeliveryID    string          `json:"delivery_id"`
	EventKind     string          `json:"event_kind"`
	Action        string          `json:"action"`
	SubjectNumber *int64          `json:"subject_number,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	RawPayload    json.RawMessage `json:"raw_payload"`
	RecordedAt    time.Time       `json:"recorded_at"`
}

// IngestionStats tracks counters exposed on the health endpoint.
type IngestionStats struct {
	DeliveriesReceived  int64     `json:"deliveries_received"`
	DeliveriesPersisted int64     `json:"deliveries_persisted"`
	DeliveriesRejected  int64     `json:"deliveries_rejected"`
	LastDelivery        time.Time `json:"last_delivery,omitempty"`
}
