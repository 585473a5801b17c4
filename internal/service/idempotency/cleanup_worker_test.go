package idempotency_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/cbs/internal/service/idempotency"
	"github.com/vladislavdragonenkov/cbs/internal/storage/memory"
)

type fakeExpiredStore struct {
	mu      sync.Mutex
	batches []int
	queue   []int
	err     error
}

func (f *fakeExpiredStore) DeleteExpired(_ time.Time, limit int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return 0, f.err
	}
	f.batches = append(f.batches, limit)
	if len(f.queue) == 0 {
		return 0, nil
	}
	deleted := f.queue[0]
	f.queue = f.queue[1:]
	return deleted, nil
}

func TestDeleteExpiredDrainsInBatches(t *testing.T) {
	// Две полные порции и одна неполная: цикл должен остановиться
	// на первой порции меньше batchSize.
	store := &fakeExpiredStore{queue: []int{3, 3, 1}}
	worker := idempotency.NewCleanupWorker(store, idempotency.WithBatchSize(3))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 7, deleted)
	assert.Len(t, store.batches, 3)
}

func TestDeleteExpiredStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &fakeExpiredStore{queue: []int{3}}
	worker := idempotency.NewCleanupWorker(store, idempotency.WithBatchSize(3))

	_, err := worker.DeleteExpired(ctx, time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDeleteExpiredAgainstMemoryStore(t *testing.T) {
	repo := memory.NewIdempotencyRepository()

	_, err := repo.CreateProcessing("stale", "hash-1", time.Nanosecond)
	require.NoError(t, err)
	_, err = repo.CreateProcessing("fresh", "hash-2", time.Hour)
	require.NoError(t, err)

	store, ok := repo.(idempotency.ExpiredStore)
	require.True(t, ok, "memory idempotency repository must support cleanup")

	worker := idempotency.NewCleanupWorker(store)
	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = repo.Get("fresh")
	assert.NoError(t, err)
}
