package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
	"github.com/vladislavdragonenkov/cbs/internal/storage/memory"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []domain.OutboxMessage
	err    error
}

func (p *capturingPublisher) Publish(event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) published() []domain.OutboxMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.OutboxMessage, len(p.events))
	copy(out, p.events)
	return out
}

func TestWorker_ProcessOnce_PublishesPending(t *testing.T) {
	repo := memory.NewOutboxRepository()
	publisher := &capturingPublisher{}

	_, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "order.created",
		Payload:       []byte(`{"total":3025}`),
	})
	require.NoError(t, err)

	worker := NewWorker(repo, publisher, WithRetryBaseDelay(0))
	worker.ProcessOnce(context.Background())

	events := publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, "order.created", events[0].EventType)

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)
}

func TestWorker_ProcessOnce_FailedMessageGoesToDLQ(t *testing.T) {
	repo := memory.NewOutboxRepository()
	publisher := &capturingPublisher{err: errors.New("broker down")}
	dlq := &capturingPublisher{}

	_, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "reservation",
		AggregateID:   "res-1",
		EventType:     "reservation.created",
		Payload:       []byte(`{}`),
	})
	require.NoError(t, err)

	worker := NewWorker(repo, publisher,
		WithMaxAttempts(2),
		WithRetryBaseDelay(0),
		WithDLQPublisher(dlq),
	)
	worker.ProcessOnce(context.Background())

	assert.Empty(t, publisher.published())
	require.Len(t, dlq.published(), 1)
	assert.Equal(t, "reservation.created", dlq.published()[0].EventType)

	stats, err := repo.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount, "failed message should leave pending state")
}

func TestWorker_ProcessOnce_EmptyBacklogIsNoop(t *testing.T) {
	repo := memory.NewOutboxRepository()
	publisher := &capturingPublisher{}

	worker := NewWorker(repo, publisher)
	worker.ProcessOnce(context.Background())

	assert.Empty(t, publisher.published())
}

func TestWorker_ProcessOnce_CancelledContext(t *testing.T) {
	repo := memory.NewOutboxRepository()
	publisher := &capturingPublisher{}

	_, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-2",
		EventType:     "order.created",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	worker := NewWorker(repo, publisher)
	worker.ProcessOnce(ctx)

	assert.Empty(t, publisher.published())
}
