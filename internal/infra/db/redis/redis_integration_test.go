//go:build integration

package redis

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"booking-service/internal/app/middleware"
	"booking-service/internal/app/policies"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb, err := New(ctx, Config{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestListingLockerExcludesHolders(t *testing.T) {
	rdb := setupRedis(t)
	locker := NewListingLocker(rdb, 5*time.Second)

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "listing-100")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())

	exists, err := rdb.Exists(context.Background(), keyListingLock("listing-100")).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestListingLockerTimesOut(t *testing.T) {
	rdb := setupRedis(t)
	holder := NewListingLocker(rdb, time.Minute)
	unlock, err := holder.Lock(context.Background(), "listing-100")
	require.NoError(t, err)
	defer unlock()

	waiter := NewListingLocker(rdb, 200*time.Millisecond)
	_, err = waiter.Lock(context.Background(), "listing-100")
	assert.ErrorIs(t, err, policies.ErrLockTimeout)

	// other listings are independent
	release, err := waiter.Lock(context.Background(), "listing-150")
	require.NoError(t, err)
	release()
}

func TestIdempotencyStoreLifecycle(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	store := NewIdempotencyStore(rdb, time.Hour)

	ok, err := store.Reserve(ctx, "guest-1:k")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.Reserve(ctx, "guest-1:k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, found, err := store.Get(ctx, "guest-1:k")
	require.NoError(t, err)
	assert.False(t, found, "a reservation is not a result")

	require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "guest-1:k", Payload: []byte(`{"id":"b-1"}`)}))
	require.NoError(t, store.Release(ctx, "guest-1:k"))
	rec, found, err := store.Get(ctx, "guest-1:k")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"id":"b-1"}`, string(rec.Payload))

	ok, err = store.Reserve(ctx, "guest-2:k")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.Release(ctx, "guest-2:k"))
	ok, err = store.Reserve(ctx, "guest-2:k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSlidingWindowLimiter(t *testing.T) {
	rdb := setupRedis(t)
	limiter := NewSlidingWindowLimiter(rdb, "create_booking", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "guest-1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, retry, err := limiter.Allow(ctx, "guest-1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retry, time.Duration(0))
	assert.LessOrEqual(t, retry, time.Minute)

	allowed, _, err = limiter.Allow(ctx, "guest-2")
	require.NoError(t, err)
	assert.True(t, allowed)
}
