package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hookbridge/hookbridge/internal/models"
	"github.com/hookbridge/hookbridge/migrations"
)

const opTimeout = 5 * time.Second

type storeState int

const (
	stateOpen storeState = iota
	stateClosed
)

// PostgresStore implements EventStore on a pgx connection pool. The zero
// value is not usable; construct with Open, which refuses to hand out a
// store until the schema is guaranteed.
type PostgresStore struct {
	pool *pgxpool.Pool

	mu    sync.RWMutex
	state storeState
}

// Open connects to PostgreSQL, applies the embedded schema migrations, and
// returns a store in the Open state. Any failure here is fatal for the
// caller; there is no degraded mode without a schema.
func Open(ctx context.Context, connString string) (*PostgresStore, error) {
	if err := Migrate(connString); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &PostgresStore{pool: pool, state: stateOpen}, nil
}

// Migrate applies the embedded migrations to the database at connString.
// Also used by the migrate CLI subcommand.
func Migrate(connString string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, connString)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != stateOpen {
		return ErrStoreNotOpen
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, event *models.InboundEvent) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// Full replacement on conflict; recorded_at advances so a redelivered
	// event sorts as most recent. Postgres row locking serializes
	// concurrent writers for the same delivery id.
	query := `
		INSERT INTO webhook_events (
			delivery_id, event_kind, action, subject_number,
			occurred_at, raw_payload, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (delivery_id) DO UPDATE SET
			event_kind     = EXCLUDED.event_kind,
			action         = EXCLUDED.action,
			subject_number = EXCLUDED.subject_number,
			occurred_at    = EXCLUDED.occurred_at,
			raw_payload    = EXCLUDED.raw_payload,
			recorded_at    = now()
	`

	_, err := s.pool.Exec(ctx, query,
		event.DeliveryID, event.EventKind, event.Action, event.SubjectNumber,
		event.OccurredAt, string(event.RawPayload),
	)
	if err != nil {
		return storageErr("upsert", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]models.InboundEvent, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT delivery_id, event_kind, action, subject_number,
		       occurred_at, raw_payload, recorded_at
		FROM webhook_events
		ORDER BY recorded_at DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, storageErr("list recent", err)
	}
	defer rows.Close()

	events := []models.InboundEvent{}
	for rows.Next() {
		var e models.InboundEvent
		var raw string
		if err := rows.Scan(
			&e.DeliveryID, &e.EventKind, &e.Action, &e.SubjectNumber,
			&e.OccurredAt, &raw, &e.RecordedAt,
		); err != nil {
			return nil, storageErr("scan event", err)
		}
		e.RawPayload = json.RawMessage(raw)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate events", err)
	}
	return events, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, deliveryID string) (*models.InboundEvent, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `
		SELECT delivery_id, event_kind, action, subject_number,
		       occurred_at, raw_payload, recorded_at
		FROM webhook_events
		WHERE delivery_id = $1
	`

	var e models.InboundEvent
	var raw string
	err := s.pool.QueryRow(ctx, query, deliveryID).Scan(
		&e.DeliveryID, &e.EventKind, &e.Action, &e.SubjectNumber,
		&e.OccurredAt, &raw, &e.RecordedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, storageErr("get by id", err)
	}
	e.RawPayload = json.RawMessage(raw)
	return &e, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.pool.Ping(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

// Close waits for in-flight queries to finish and releases the pool.
func (s *PostgresStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateClosed {
		return
	}
	s.state = stateClosed
	s.pool.Close()
}
