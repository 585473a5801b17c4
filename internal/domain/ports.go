package domain

import "time"

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
// Записи живут ограниченное время; истечение — забота реализации (TTL).
type IdempotencyRepository interface {
	// CreateProcessing атомарно занимает ключ. ErrIdempotencyInProgress,
	// если ключ уже занят другим запросом.
	CreateProcessing(key, requestHash string, ttl time.Duration) (IdempotencyRecord, error)
	// Get возвращает запись или ErrIdempotencyNotFound.
	Get(key string) (IdempotencyRecord, error)
	// MarkDone сохраняет успешный ответ для повторной выдачи.
	MarkDone(key string, responseBody []byte, httpStatus int) error
	// MarkFailed освобождает ключ после неуспешной обработки.
	MarkFailed(key string, responseBody []byte, httpStatus int) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
