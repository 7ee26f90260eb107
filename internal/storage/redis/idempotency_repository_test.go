package redis

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultLocalRedisURL = "redis://localhost:6379/15"

func openRepositoryForTest(t *testing.T) *IdempotencyRepository {
	t.Helper()

	url := strings.TrimSpace(os.Getenv("SHOP_REDIS_TEST_URL"))
	if url == "" {
		url = defaultLocalRedisURL
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := Open(ctx, url)
	if err != nil {
		t.Skipf("redis is not available for integration tests: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	// Уникальный префикс изолирует параллельные прогоны.
	return NewIdempotencyRepository(client, WithKeyPrefix("idem:test:"+uuid.NewString()+":"))
}

func TestIdempotencyRepository_CreateGetAndMarkDone(t *testing.T) {
	repo := openRepositoryForTest(t)
	ctx := context.Background()
	ttl := time.Now().UTC().Add(time.Hour).Round(time.Second)

	created, err := repo.CreateProcessing(ctx, "checkout-1", "hash-1", ttl)
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusProcessing, created.Status)

	require.NoError(t, repo.MarkDone(ctx, "checkout-1", []byte(`{"id":"o-1"}`), 0))

	got, err := repo.Get(ctx, "checkout-1")
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusDone, got.Status)
	require.Equal(t, "hash-1", got.RequestHash)
	require.JSONEq(t, `{"id":"o-1"}`, string(got.ResponseBody))
	require.True(t, got.TTLAt.Equal(ttl))

	remaining, err := repo.client.TTL(ctx, repo.redisKey("checkout-1")).Result()
	require.NoError(t, err)
	require.Greater(t, remaining, 30*time.Minute, "MarkDone must keep the key ttl")
}

func TestIdempotencyRepository_ConflictAndHashMismatch(t *testing.T) {
	repo := openRepositoryForTest(t)
	ctx := context.Background()
	ttl := time.Now().UTC().Add(time.Hour)

	_, err := repo.CreateProcessing(ctx, "key", "hash-a", ttl)
	require.NoError(t, err)

	_, err = repo.CreateProcessing(ctx, "key", "hash-a", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)

	_, err = repo.CreateProcessing(ctx, "key", "hash-b", ttl)
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)

	require.ErrorIs(t, repo.MarkFailed(ctx, "missing", nil, 5), domain.ErrIdempotencyKeyNotFound)
}

func TestIdempotencyRepository_ExpiredKeyIsReused(t *testing.T) {
	repo := openRepositoryForTest(t)
	ctx := context.Background()

	_, err := repo.CreateProcessing(ctx, "expired", "hash-old", time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := repo.Get(ctx, "expired")
		return err != nil
	}, time.Second, 10*time.Millisecond)

	created, err := repo.CreateProcessing(ctx, "expired", "hash-new", time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, "hash-new", created.RequestHash)

	removed, err := repo.DeleteExpired(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestIdempotencyRepository_Validation(t *testing.T) {
	repo := NewIdempotencyRepository(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"}))
	ctx := context.Background()

	_, err := repo.CreateProcessing(ctx, " ", "hash", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
	_, err = repo.CreateProcessing(ctx, "key", "", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyRequestHashRequired)
	_, err = repo.Get(ctx, "")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
}

func TestTTLUntil(t *testing.T) {
	now := time.Now()
	require.Equal(t, time.Millisecond, ttlUntil(now.Add(-time.Hour), now))
	require.Equal(t, time.Minute, ttlUntil(now.Add(time.Minute), now))
}

func TestIdempotencyRepository_ReleaseOnlyProcessing(t *testing.T) {
	repo := openRepositoryForTest(t)
	ctx := context.Background()
	ttl := time.Now().UTC().Add(time.Hour)

	_, err := repo.CreateProcessing(ctx, "checkout-release", "hash", ttl)
	require.NoError(t, err)
	require.NoError(t, repo.Release(ctx, "checkout-release"))

	_, err = repo.CreateProcessing(ctx, "checkout-release", "hash", ttl)
	require.NoError(t, err, "released key must be reusable")
	require.NoError(t, repo.MarkFailed(ctx, "checkout-release", []byte(`{"code":3}`), 3))
	require.NoError(t, repo.Release(ctx, "checkout-release"))

	got, err := repo.Get(ctx, "checkout-release")
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusFailed, got.Status)

	require.NoError(t, repo.Release(ctx, "missing"))
}
