package eventstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hookbridge/hookbridge/internal/models"
)

// setupTestStore starts a PostgreSQL testcontainer and opens a store against
// it. Open runs the embedded migrations, so no extra schema setup is needed.
func setupTestStore(t *testing.T) (*PostgresStore, func()) {
	if testing.Short() {
		t.Skip("skipping container-backed store test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("hookbridge_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to get connection string: %v", err)
	}

	store, err := Open(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open store: %v", err)
	}

	cleanup := func() {
		store.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return store, cleanup
}

func testEvent(deliveryID, kind, action string, subject *int64) *models.InboundEvent {
	payload, _ := json.Marshal(map[string]string{"action": action})
	return &models.InboundEvent{
		DeliveryID:    deliveryID,
		EventKind:     kind,
		Action:        action,
		SubjectNumber: subject,
		OccurredAt:    time.Now().UTC(),
		RawPayload:    payload,
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestUpsert_InsertAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	event := testEvent("d1", "issues", "opened", int64Ptr(42))
	require.NoError(t, store.Upsert(ctx, event))

	got, err := store.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "d1", got.DeliveryID)
	assert.Equal(t, "issues", got.EventKind)
	assert.Equal(t, "opened", got.Action)
	require.NotNil(t, got.SubjectNumber)
	assert.Equal(t, int64(42), *got.SubjectNumber)
	assert.Equal(t, []byte(event.RawPayload), []byte(got.RawPayload))
	assert.False(t, got.RecordedAt.IsZero())
}

func TestUpsert_RawPayloadVerbatim(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	// Key order, whitespace and duplicate keys must all survive storage
	// byte-for-byte; a normalizing column type would rewrite them.
	payload := []byte("{\"issue\": {\"number\": 42},  \"action\":\"opened\",\n\"action\":\"opened\"}")
	event := &models.InboundEvent{
		DeliveryID: "d-raw",
		EventKind:  "issues",
		Action:     "opened",
		OccurredAt: time.Now().UTC(),
		RawPayload: payload,
	}
	require.NoError(t, store.Upsert(ctx, event))

	got, err := store.GetByID(ctx, "d-raw")
	require.NoError(t, err)
	assert.Equal(t, payload, []byte(got.RawPayload))

	events, err := store.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, payload, []byte(events[0].RawPayload))
}

func TestUpsert_ReplacesOnRedelivery(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testEvent("d1", "issues", "opened", int64Ptr(7))))

	first, err := store.GetByID(ctx, "d1")
	require.NoError(t, err)

	// Redelivery with different fields replaces everything, never merges.
	replacement := testEvent("d1", "issues", "closed", nil)
	require.NoError(t, store.Upsert(ctx, replacement))

	got, err := store.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "closed", got.Action)
	assert.Nil(t, got.SubjectNumber)
	assert.True(t, !got.RecordedAt.Before(first.RecordedAt),
		"recorded_at must advance on redelivery")

	// Still exactly one record for the delivery id.
	events, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestUpsert_Idempotent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	event := testEvent("d1", "issue_comment", "created", int64Ptr(3))
	require.NoError(t, store.Upsert(ctx, event))
	require.NoError(t, store.Upsert(ctx, event))

	events, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "created", events[0].Action)
}

func TestListRecent_Ordering(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	for _, id := range []string{"d1", "d2", "d3"} {
		require.NoError(t, store.Upsert(ctx, testEvent(id, "issues", "opened", nil)))
		// recorded_at comes from the store clock; space the writes out so
		// the ordering is unambiguous.
		time.Sleep(10 * time.Millisecond)
	}

	events, err := store.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "d3", events[0].DeliveryID)
	assert.Equal(t, "d2", events[1].DeliveryID)
	assert.Equal(t, "d1", events[2].DeliveryID)

	events, err = store.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "d3", events[0].DeliveryID)
	assert.Equal(t, "d2", events[1].DeliveryID)
}

func TestListRecent_RedeliveryMovesToFront(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testEvent("d1", "issues", "opened", nil)))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, store.Upsert(ctx, testEvent("d2", "issues", "opened", nil)))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, store.Upsert(ctx, testEvent("d1", "issues", "reopened", nil)))

	events, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "d1", events[0].DeliveryID)
	assert.Equal(t, "reopened", events[0].Action)
}

func TestEmptyStore(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	events, err := store.ListRecent(ctx, 50)
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = store.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestClosedStoreLifecycle(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	store.Close()
	store.Close() // idempotent

	err := store.Upsert(ctx, testEvent("d1", "issues", "opened", nil))
	assert.ErrorIs(t, err, ErrStoreNotOpen)

	_, err = store.ListRecent(ctx, 1)
	assert.ErrorIs(t, err, ErrStoreNotOpen)

	_, err = store.GetByID(ctx, "d1")
	assert.ErrorIs(t, err, ErrStoreNotOpen)

	assert.ErrorIs(t, store.Ping(ctx), ErrStoreNotOpen)
}
