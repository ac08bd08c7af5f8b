package postgresql

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almacen/catalog/internal/outbox/domain"
	"github.com/almacen/catalog/internal/testutil"
)

func newPendingEvent(t *testing.T, routingKey, payload string) *domain.OutboxEvent {
	t.Helper()
	return domain.NewOutboxEvent(domain.Message{
		ID:         uuid.Must(uuid.NewV7()),
		RoutingKey: routingKey,
		Payload:    []byte(payload),
	})
}

func TestNewPostgreSQLOutboxEventRepository(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}

func TestPostgreSQLOutboxEventRepository_GetPendingEvents(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	event1 := newPendingEvent(t, "catalog.stock.rejected", `{"purchaseId": 1}`)
	event2 := newPendingEvent(t, "TitleCreated.v1", `{"payload": {"titleId": 2}}`)

	require.NoError(t, repo.Create(ctx, event1))
	require.NoError(t, repo.Create(ctx, event2))

	events, err := repo.GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, event1.ID, events[0].ID)
	assert.Equal(t, "catalog.stock.rejected", events[0].EventType)
	assert.Equal(t, event2.ID, events[1].ID)

	events, err = repo.GetPendingEvents(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPostgreSQLOutboxEventRepository_GetPendingEvents_Empty(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)

	events, err := repo.GetPendingEvents(context.Background(), 10)
	assert.NoError(t, err)
	assert.Len(t, events, 0)
}

func TestPostgreSQLOutboxEventRepository_UpdateAndClean(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLOutboxEventRepository(db)
	ctx := context.Background()

	event := newPendingEvent(t, "catalog.stock.rejected", `{"purchaseId": 1}`)
	require.NoError(t, repo.Create(ctx, event))

	processedAt := time.Now().Add(-48 * time.Hour)
	event.Status = domain.OutboxEventStatusProcessed
	event.ProcessedAt = &processedAt
	require.NoError(t, repo.Update(ctx, event))

	events, err := repo.GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 0)

	cutoff := time.Now().Add(-24 * time.Hour)

	count, err := repo.CountProcessedBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	deleted, err := repo.DeleteProcessedBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	count, err = repo.CountProcessedBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
