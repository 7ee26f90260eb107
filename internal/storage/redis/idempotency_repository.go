package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultKeyPrefix = "idem:store:"

// IdempotencyRepository реализует domain.IdempotencyRepository поверх Redis.
// Запись живёт до TTLAt, поэтому DeleteExpired ничего не делает.
type IdempotencyRepository struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
}

// Option настраивает IdempotencyRepository.
type Option func(*IdempotencyRepository)

// WithKeyPrefix задаёт префикс ключей.
func WithKeyPrefix(prefix string) Option {
	return func(r *IdempotencyRepository) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// NewIdempotencyRepository создаёт репозиторий поверх готового клиента.
func NewIdempotencyRepository(client goredis.UniversalClient, opts ...Option) *IdempotencyRepository {
	r := &IdempotencyRepository{
		client: client,
		prefix: defaultKeyPrefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type storedRecord struct {
	RequestHash  string                   `json:"request_hash"`
	ResponseBody []byte                   `json:"response_body,omitempty"`
	StatusCode   int                      `json:"status_code"`
	Status       domain.IdempotencyStatus `json:"status"`
	TTLAt        time.Time                `json:"ttl_at"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

func toStored(r domain.IdempotencyRecord) storedRecord {
	return storedRecord{
		RequestHash:  r.RequestHash,
		ResponseBody: r.ResponseBody,
		StatusCode:   r.StatusCode,
		Status:       r.Status,
		TTLAt:        r.TTLAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (s storedRecord) record(key string) domain.IdempotencyRecord {
	return domain.IdempotencyRecord{
		Key:          key,
		RequestHash:  s.RequestHash,
		ResponseBody: s.ResponseBody,
		StatusCode:   s.StatusCode,
		Status:       s.Status,
		TTLAt:        s.TTLAt,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func (r *IdempotencyRepository) redisKey(key string) string {
	return r.prefix + key
}

// ttlUntil переводит момент истечения в длительность для Redis; истёкшая запись живёт миллисекунду.
func ttlUntil(ttlAt, now time.Time) time.Duration {
	ttl := ttlAt.Sub(now)
	if ttl < time.Millisecond {
		return time.Millisecond
	}
	return ttl
}

func (r *IdempotencyRepository) CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	record, err := domain.NewProcessingRecord(key, requestHash, ttlAt, r.now())
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	data, err := json.Marshal(toStored(record))
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("marshal idempotency record: %w", err)
	}

	created, err := r.client.SetNX(ctx, r.redisKey(record.Key), data, ttlUntil(record.TTLAt, record.CreatedAt)).Result()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("create idempotency key: %w", err)
	}
	if created {
		return record, nil
	}

	existing, err := r.Get(ctx, record.Key)
	if err != nil {
		if errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
			// Ключ истёк между SETNX и GET.
			return r.CreateProcessing(ctx, record.Key, record.RequestHash, record.TTLAt)
		}
		return domain.IdempotencyRecord{}, err
	}
	return existing, existing.Occupied(record.RequestHash)
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	data, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("get idempotency key: %w", err)
	}

	var stored storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("decode idempotency record: %w", err)
	}
	return stored.record(key), nil
}

func (r *IdempotencyRepository) MarkDone(ctx context.Context, key string, responseBody []byte, statusCode int) error {
	return r.markStatus(ctx, key, domain.IdempotencyStatusDone, responseBody, statusCode)
}

func (r *IdempotencyRepository) MarkFailed(ctx context.Context, key string, responseBody []byte, statusCode int) error {
	return r.markStatus(ctx, key, domain.IdempotencyStatusFailed, responseBody, statusCode)
}

// Release удаляет ключ, только если запрос под ним ещё не завершён.
func (r *IdempotencyRepository) Release(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}
	rkey := r.redisKey(key)

	err := r.client.Watch(ctx, func(tx *goredis.Tx) error {
		data, err := tx.Get(ctx, rkey).Bytes()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var stored storedRecord
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("decode idempotency record: %w", err)
		}
		if stored.Status != domain.IdempotencyStatusProcessing {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, rkey)
			return nil
		})
		return err
	}, rkey)
	if errors.Is(err, goredis.TxFailedErr) {
		return fmt.Errorf("release idempotency key: concurrent update: %w", domain.ErrVersionConflict)
	}
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// DeleteExpired ничего не удаляет: Redis сам вытесняет ключи по TTL.
func (r *IdempotencyRepository) DeleteExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func (r *IdempotencyRepository) markStatus(ctx context.Context, key string, status domain.IdempotencyStatus, responseBody []byte, statusCode int) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.ErrIdempotencyKeyRequired
	}
	rkey := r.redisKey(key)

	err := r.client.Watch(ctx, func(tx *goredis.Tx) error {
		data, err := tx.Get(ctx, rkey).Bytes()
		if errors.Is(err, goredis.Nil) {
			return domain.ErrIdempotencyKeyNotFound
		}
		if err != nil {
			return err
		}

		var stored storedRecord
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("decode idempotency record: %w", err)
		}
		finished := stored.record(key).Finish(status, responseBody, statusCode, r.now())

		updated, err := json.Marshal(toStored(finished))
		if err != nil {
			return fmt.Errorf("marshal idempotency record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, rkey, updated, goredis.KeepTTL)
			return nil
		})
		return err
	}, rkey)
	if errors.Is(err, goredis.TxFailedErr) {
		return fmt.Errorf("mark idempotency key as %s: concurrent update: %w", status, domain.ErrVersionConflict)
	}
	if err != nil && !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		return fmt.Errorf("mark idempotency key as %s: %w", status, err)
	}
	return err
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
