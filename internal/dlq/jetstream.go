// Package dlq gives async persist failures a durable destination. When the
// sender has already been acknowledged, a failed store write would otherwise
// survive only as a log line; the DLQ keeps the full event for replay.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/hookbridge/hookbridge/internal/models"
)

const (
	streamName     = "HOOKBRIDGE_DLQ"
	subjectPattern = "hookbridge.dlq.>"
)

// Writer records events whose persist failed after acknowledgment.
type Writer interface {
	Write(ctx context.Context, event *models.InboundEvent, cause error, reason string) error
	Close()
}

// FailedEvent is the envelope published per dead-lettered event.
type FailedEvent struct {
	Timestamp time.Time           `json:"timestamp"`
	Event     *models.InboundEvent `json:"event"`
	Error     string              `json:"error"`
	Reason    string              `json:"reason"`
}

// JetStreamQueue writes failed events to NATS JetStream. Safe for use
// across multiple hookbridge instances.
type JetStreamQueue struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	written uint64
}

// NewJetStreamQueue connects to NATS and ensures the DLQ stream exists.
func NewJetStreamQueue(ctx context.Context, natsURL string) (*JetStreamQueue, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("init jetstream: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPattern},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create dlq stream: %w", err)
	}

	return &JetStreamQueue{conn: conn, js: js}, nil
}

// Write publishes the failed event under hookbridge.dlq.<reason>.
func (q *JetStreamQueue) Write(ctx context.Context, event *models.InboundEvent, cause error, reason string) error {
	failed := FailedEvent{
		Timestamp: time.Now().UTC(),
		Event:     event,
		Error:     cause.Error(),
		Reason:    reason,
	}

	data, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("marshal dlq entry: %w", err)
	}

	subject := fmt.Sprintf("hookbridge.dlq.%s", reason)
	if _, err := q.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish dlq entry: %w", err)
	}

	atomic.AddUint64(&q.written, 1)
	slog.Info("dead-lettered failed event",
		slog.String("delivery_id", event.DeliveryID),
		slog.String("reason", reason),
	)
	return nil
}

// Written returns the number of entries published by this instance.
func (q *JetStreamQueue) Written() uint64 {
	return atomic.LoadUint64(&q.written)
}

// Close drains the NATS connection and reports how many entries this
// instance dead-lettered over its lifetime.
func (q *JetStreamQueue) Close() {
	slog.Info("closing dead-letter queue", slog.Uint64("entries_written", q.Written()))
	if q.conn != nil {
		q.conn.Close()
	}
}
