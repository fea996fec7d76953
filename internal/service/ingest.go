// Package service orchestrates the webhook ingestion path: signature
// verification, normalization, and durable persistence.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hookbridge/hookbridge/internal/dlq"
	"github.com/hookbridge/hookbridge/internal/eventstore"
	"github.com/hookbridge/hookbridge/internal/logging"
	"github.com/hookbridge/hookbridge/internal/metrics"
	"github.com/hookbridge/hookbridge/internal/models"
	"github.com/hookbridge/hookbridge/internal/normalizer"
	"github.com/hookbridge/hookbridge/internal/signature"
)

// PersistenceMode selects whether the sender is acknowledged before or
// after the store write completes.
type PersistenceMode string

const (
	// PersistAsync acknowledges first and persists in the background.
	// A failed write is logged and dead-lettered, never retried here; the
	// sender has no way to learn about it.
	PersistAsync PersistenceMode = "async"

	// PersistSync blocks the acknowledgment on the store write, so a
	// storage failure surfaces as a 5xx and the sender's redelivery logic
	// takes over.
	PersistSync PersistenceMode = "sync"
)

// ErrBadSignature marks a delivery whose signature is absent or does not
// verify. Never persisted.
var ErrBadSignature = errors.New("signature verification failed")

// Delivery is one inbound webhook delivery after the HTTP layer has
// extracted the required headers. The handler guarantees Kind, DeliveryID
// and Signature are non-empty before calling HandleDelivery.
type Delivery struct {
	Kind       string
	DeliveryID string
	Signature  string
	Payload    []byte
}

// Outcome reports how a delivery was handled.
type Outcome int

const (
	// OutcomeAccepted means the event passed all checks and was (or is
	// being) persisted.
	OutcomeAccepted Outcome = iota

	// OutcomePong means the delivery was the sender's connectivity test:
	// acknowledged, never persisted.
	OutcomePong
)

// IngestService wires the verifier, normalizer and event store together.
// Both collaborators are injected so tests can swap them out.
type IngestService struct {
	verifier   *signature.Verifier
	normalizer *normalizer.Normalizer
	store      eventstore.EventStore
	dlq        dlq.Writer
	logger     *logging.Logger
	mode       PersistenceMode

	persistWG sync.WaitGroup

	statsMu sync.RWMutex
	stats   models.IngestionStats
}

func NewIngestService(
	verifier *signature.Verifier,
	norm *normalizer.Normalizer,
	store eventstore.EventStore,
	logger *logging.Logger,
	mode PersistenceMode,
) *IngestService {
	if mode != PersistSync {
		mode = PersistAsync
	}
	return &IngestService{
		verifier:   verifier,
		normalizer: norm,
		store:      store,
		logger:     logger,
		mode:       mode,
	}
}

// SetDLQ attaches a dead-letter writer for async persist failures.
func (s *IngestService) SetDLQ(w dlq.Writer) {
	s.dlq = w
}

// HandleDelivery runs one delivery through the ingestion pipeline.
//
// The error taxonomy matters to the HTTP layer: ErrBadSignature maps to an
// authentication rejection, normalizer errors to a malformed-request
// rejection, and eventstore.StorageError (sync mode only) to a transient
// server failure that invites the sender to redeliver.
func (s *IngestService) HandleDelivery(ctx context.Context, d Delivery) (Outcome, error) {
	s.markReceived()

	if !s.verifier.Verify(d.Payload, d.Signature) {
		metrics.SignatureFailures.Inc()
		metrics.DeliveriesTotal.WithLabelValues(d.Kind, "bad_signature").Inc()
		s.markRejected()
		return 0, ErrBadSignature
	}

	if d.Kind == normalizer.KindPing {
		metrics.DeliveriesTotal.WithLabelValues(d.Kind, "pong").Inc()
		return OutcomePong, nil
	}

	if !s.normalizer.Allowed(d.Kind) {
		metrics.DeliveriesTotal.WithLabelValues(d.Kind, "unsupported").Inc()
		s.markRejected()
		return 0, fmt.Errorf("%w: %q", normalizer.ErrUnsupportedKind, d.Kind)
	}

	event, err := s.normalizer.Normalize(d.Kind, d.DeliveryID, d.Payload)
	if err != nil {
		metrics.DeliveriesTotal.WithLabelValues(d.Kind, "malformed").Inc()
		s.markRejected()
		return 0, err
	}

	metrics.DeliveryBytesTotal.Add(float64(len(d.Payload)))

	if s.mode == PersistSync {
		if err := s.persist(ctx, event); err != nil {
			metrics.DeliveriesTotal.WithLabelValues(d.Kind, "storage_error").Inc()
			return 0, err
		}
		metrics.DeliveriesTotal.WithLabelValues(d.Kind, "persisted").Inc()
		s.markPersisted()
		return OutcomeAccepted, nil
	}

	// Acknowledge now, persist in the background. The write gets its own
	// context; the request context dies with the response.
	s.persistWG.Add(1)
	go func() {
		defer s.persistWG.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.persist(ctx, event); err != nil {
			metrics.PersistDropped.Inc()
			s.logger.Error("failed to persist acknowledged delivery",
				logging.DeliveryID(event.DeliveryID),
				logging.EventKind(event.EventKind),
				logging.Action(event.Action),
				logging.Error(err),
			)
			if s.dlq != nil {
				if dlqErr := s.dlq.Write(ctx, event, err, "storage_error"); dlqErr != nil {
					s.logger.Error("failed to dead-letter event",
						logging.DeliveryID(event.DeliveryID),
						logging.Error(dlqErr),
					)
				}
			}
			return
		}
		metrics.DeliveriesTotal.WithLabelValues(event.EventKind, "persisted").Inc()
		s.markPersisted()
	}()

	return OutcomeAccepted, nil
}

func (s *IngestService) persist(ctx context.Context, event *models.InboundEvent) error {
	start := time.Now()
	err := s.store.Upsert(ctx, event)
	metrics.StoreDuration.WithLabelValues("upsert").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreErrors.WithLabelValues("upsert").Inc()
	}
	return err
}

// ListRecent surfaces the store query verbatim for the read API.
func (s *IngestService) ListRecent(ctx context.Context, limit int) ([]models.InboundEvent, error) {
	start := time.Now()
	events, err := s.store.ListRecent(ctx, limit)
	metrics.StoreDuration.WithLabelValues("list_recent").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreErrors.WithLabelValues("list_recent").Inc()
	}
	return events, err
}

// GetByID surfaces the store point lookup verbatim for the read API.
func (s *IngestService) GetByID(ctx context.Context, deliveryID string) (*models.InboundEvent, error) {
	start := time.Now()
	event, err := s.store.GetByID(ctx, deliveryID)
	metrics.StoreDuration.WithLabelValues("get_by_id").Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, eventstore.ErrEventNotFound) {
		metrics.StoreErrors.WithLabelValues("get_by_id").Inc()
	}
	return event, err
}

// Ready reports whether the backing store is reachable.
func (s *IngestService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Stats returns a snapshot of the ingestion counters.
func (s *IngestService) Stats() models.IngestionStats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.stats
}

// Drain blocks until all in-flight background persists have finished, or
// the context expires. Called during graceful shutdown before the store is
// closed.
func (s *IngestService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.persistWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *IngestService) markReceived() {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats.DeliveriesReceived++
	s.stats.LastDelivery = time.Now().UTC()
}

func (s *IngestService) markPersisted() {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats.DeliveriesPersisted++
}

func (s *IngestService) markRejected() {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats.DeliveriesRejected++
}
