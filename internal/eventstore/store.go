// Package eventstore persists inbound webhook events in PostgreSQL with
// at-most-one-current-record-per-delivery-id semantics.
package eventstore

import (
	"context"

	"github.com/hookbridge/hookbridge/internal/models"
)

// EventStore is the durable, deduplicating append log for inbound events.
type EventStore interface {
	// Upsert inserts the event or, when the delivery id already exists,
	// replaces every stored field. recorded_at advances in both cases.
	Upsert(ctx context.Context, event *models.InboundEvent) error

	// ListRecent returns up to limit events, most recently recorded first.
	// An empty store yields an empty slice, not an error. The limit ceiling
	// is the caller's responsibility.
	ListRecent(ctx context.Context, limit int) ([]models.InboundEvent, error)

	// GetByID returns the event for a delivery id, or ErrEventNotFound.
	GetByID(ctx context.Context, deliveryID string) (*models.InboundEvent, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the backing handle. Closing twice is a no-op; any
	// operation after Close fails with ErrStoreNotOpen.
	Close()
}
