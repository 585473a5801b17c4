package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
)

const (
	// Формат ключа: idem:request:{Idempotency-Key}.
	idemKeyFormat = "idem:request:%s"

	defaultTTL = 24 * time.Hour
	opTimeout  = 2 * time.Second
)

// idempotencyRecord — сериализуемое представление записи в Redis.
type idempotencyRecord struct {
	Key          string    `json:"key"`
	RequestHash  string    `json:"requestHash"`
	ResponseBody []byte    `json:"responseBody,omitempty"`
	HTTPStatus   int       `json:"httpStatus,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type idempotencyRepository struct {
	client *redis.Client
}

// NewIdempotencyRepository создаёт Redis-реализацию IdempotencyRepository.
// TTL ключей играет роль чистильщика: истёкшие записи исчезают сами.
func NewIdempotencyRepository(client *redis.Client) domain.IdempotencyRepository {
	return &idempotencyRepository{client: client}
}

// CreateProcessing занимает ключ через SET NX: ровно один из конкурентных
// запросов с одним Idempotency-Key получает право на обработку.
func (r *idempotencyRepository) CreateProcessing(key, requestHash string, ttl time.Duration) (domain.IdempotencyRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if ttl <= 0 {
		ttl = defaultTTL
	}

	now := time.Now().UTC()
	record := idempotencyRecord{
		Key:         key,
		RequestHash: requestHash,
		Status:      string(domain.IdempotencyStatusProcessing),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("marshal idempotency record: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.redisKey(key), raw, ttl).Result()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("setnx idempotency key: %w", err)
	}
	if ok {
		return toDomain(record), nil
	}

	existing, err := r.load(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrIdempotencyNotFound) {
			// Ключ истёк между SETNX и GET; пусть вызывающий повторит.
			return domain.IdempotencyRecord{}, domain.ErrIdempotencyInProgress
		}
		return domain.IdempotencyRecord{}, err
	}
	if existing.RequestHash != requestHash {
		return toDomain(existing), domain.ErrIdempotencyMismatch
	}
	return toDomain(existing), domain.ErrIdempotencyInProgress
}

func (r *idempotencyRepository) Get(key string) (domain.IdempotencyRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	record, err := r.load(ctx, key)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	return toDomain(record), nil
}

func (r *idempotencyRepository) MarkDone(key string, responseBody []byte, httpStatus int) error {
	return r.markStatus(key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

func (r *idempotencyRepository) MarkFailed(key string, responseBody []byte, httpStatus int) error {
	return r.markStatus(key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

func (r *idempotencyRepository) markStatus(key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	record, err := r.load(ctx, key)
	if err != nil {
		return err
	}

	record.Status = string(status)
	record.ResponseBody = responseBody
	record.HTTPStatus = httpStatus
	record.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}

	// KeepTTL сохраняет исходный срок жизни ключа.
	if err := r.client.Set(ctx, r.redisKey(key), raw, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("update idempotency key: %w", err)
	}
	return nil
}

func (r *idempotencyRepository) load(ctx context.Context, key string) (idempotencyRecord, error) {
	raw, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return idempotencyRecord{}, domain.ErrIdempotencyNotFound
		}
		return idempotencyRecord{}, fmt.Errorf("get idempotency key: %w", err)
	}

	var record idempotencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return idempotencyRecord{}, fmt.Errorf("unmarshal idempotency record: %w", err)
	}
	return record, nil
}

func (r *idempotencyRepository) redisKey(key string) string {
	return fmt.Sprintf(idemKeyFormat, key)
}

func toDomain(record idempotencyRecord) domain.IdempotencyRecord {
	return domain.IdempotencyRecord{
		Key:          record.Key,
		RequestHash:  record.RequestHash,
		ResponseBody: record.ResponseBody,
		HTTPStatus:   record.HTTPStatus,
		Status:       domain.IdempotencyStatus(record.Status),
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

var _ domain.IdempotencyRepository = (*idempotencyRepository)(nil)
