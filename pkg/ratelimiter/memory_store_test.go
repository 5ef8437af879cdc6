package ratelimiter_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/codeai/pkg/ratelimiter"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var testConfig = ratelimiter.Config{Capacity: 3, RefillRate: 1, RefillInterval: time.Second}

func TestNewBucket_InvalidConfig(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	for _, cfg := range []ratelimiter.Config{
		{Capacity: 0, RefillRate: 1, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 0, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 1, RefillInterval: 0},
	} {
		_, err := ratelimiter.NewBucket(store, cfg)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	}
}

func TestBucket_MemoryStore(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := ratelimiter.NewMemoryStore(
		ratelimiter.WithCleanupInterval(0),
		ratelimiter.WithMemoryClock(clock.Now),
	)
	t.Cleanup(func() { _ = store.Close() })

	bucket, err := ratelimiter.NewBucket(store, testConfig)
	require.NoError(t, err)
	ctx := context.Background()

	for i := range 3 {
		res, err := bucket.Allow(ctx, "ip")
		require.NoError(t, err)
		assert.True(t, res.Allowed())
		assert.Equal(t, 2-i, res.Remaining)
		assert.Equal(t, 3, res.Limit)
	}

	res, err := bucket.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, res.Allowed())

	// Denials do not deepen the debt: one interval restores one request.
	_, _ = bucket.Allow(ctx, "ip")
	clock.Advance(time.Second)
	res, err = bucket.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.Equal(t, 0, res.Remaining)

	// Other keys are independent.
	res, err = bucket.Allow(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)

	// Refill never exceeds capacity.
	clock.Advance(time.Hour)
	res, err = bucket.Status(ctx, "ip")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Remaining)

	require.NoError(t, bucket.Reset(ctx, "ip"))
	res, err = bucket.AllowN(ctx, "ip", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Remaining)

	_, err = bucket.AllowN(ctx, "ip", 0)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	bucket, err := ratelimiter.NewBucket(store, ratelimiter.Config{
		Capacity: 10, RefillRate: 1, RefillInterval: time.Hour,
	})
	require.NoError(t, err)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := bucket.Allow(context.Background(), "shared")
			if err == nil && res.Allowed() {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), allowed.Load())
}

func TestMemoryStore_CloseTwice(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(time.Millisecond))
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestBucket_RetryAfter(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := ratelimiter.NewMemoryStore(
		ratelimiter.WithCleanupInterval(0),
		ratelimiter.WithMemoryClock(clock.Now),
	)
	t.Cleanup(func() { _ = store.Close() })

	bucket, err := ratelimiter.NewBucket(store,
		ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: 10 * time.Second},
		ratelimiter.WithBucketClock(clock.Now),
	)
	require.NoError(t, err)
	ctx := context.Background()

	res, err := bucket.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.Zero(t, res.RetryAfter())

	clock.Advance(4 * time.Second)
	res, err = bucket.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, res.Allowed())
	assert.Equal(t, 6*time.Second, res.RetryAfter())
}
