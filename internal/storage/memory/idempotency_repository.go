package memory

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
)

// idempotencyEntry — запись плюс срок жизни; истёкшие записи считаются
// отсутствующими, как при TTL в redis.
type idempotencyEntry struct {
	record   domain.IdempotencyRecord
	expireAt time.Time
}

type idempotencyRepositoryInMemory struct {
	mu    sync.Mutex
	items map[string]idempotencyEntry
	now   func() time.Time
}

// NewIdempotencyRepository создаёт in-memory реализацию IdempotencyRepository.
func NewIdempotencyRepository() domain.IdempotencyRepository {
	return &idempotencyRepositoryInMemory{
		items: make(map[string]idempotencyEntry),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateProcessing атомарно занимает ключ на время ttl.
func (r *idempotencyRepositoryInMemory) CreateProcessing(key, requestHash string, ttl time.Duration) (domain.IdempotencyRecord, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if entry, ok := r.items[key]; ok && entry.expireAt.After(now) {
		if entry.record.RequestHash != requestHash {
			return entry.record, domain.ErrIdempotencyMismatch
		}
		return entry.record, domain.ErrIdempotencyInProgress
	}

	record := domain.IdempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.items[key] = idempotencyEntry{record: record, expireAt: now.Add(ttl)}
	return record, nil
}

// Get возвращает живую запись или ErrIdempotencyNotFound.
func (r *idempotencyRepositoryInMemory) Get(key string) (domain.IdempotencyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.items[key]
	if !ok || !entry.expireAt.After(r.now()) {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyNotFound
	}
	return entry.record, nil
}

// MarkDone сохраняет ответ для повторной выдачи.
func (r *idempotencyRepositoryInMemory) MarkDone(key string, responseBody []byte, httpStatus int) error {
	return r.markStatus(key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

// MarkFailed фиксирует неуспех обработки.
func (r *idempotencyRepositoryInMemory) MarkFailed(key string, responseBody []byte, httpStatus int) error {
	return r.markStatus(key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

func (r *idempotencyRepositoryInMemory) markStatus(key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.items[key]
	if !ok {
		return domain.ErrIdempotencyNotFound
	}
	entry.record.Status = status
	entry.record.ResponseBody = append([]byte(nil), responseBody...)
	entry.record.HTTPStatus = httpStatus
	entry.record.UpdatedAt = r.now()
	r.items[key] = entry
	return nil
}

var _ domain.IdempotencyRepository = (*idempotencyRepositoryInMemory)(nil)

// DeleteExpired удаляет записи, истёкшие до before, не более limit за
// вызов. Используется воркером очистки idempotency ключей.
func (r *idempotencyRepositoryInMemory) DeleteExpired(before time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for key, entry := range r.items {
		if deleted >= limit {
			break
		}
		if !entry.expireAt.After(before) {
			delete(r.items, key)
			deleted++
		}
	}
	return deleted, nil
}
