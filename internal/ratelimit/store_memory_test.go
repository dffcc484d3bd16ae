package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestMemoryStoreAllowN(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock.Now)

	t.Run("requests up to the limit are allowed", func(t *testing.T) {
		for i := range 3 {
			res, err := store.AllowN(ctx, "api:ip:10.0.0.1", 1, 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, res.Allowed)
			assert.Equal(t, 2-i, res.Remaining)
			assert.Equal(t, clock.now.Add(time.Minute), res.ResetAt)
		}
	})

	t.Run("request over the limit is denied until the oldest hit expires", func(t *testing.T) {
		clock.Advance(20 * time.Second)
		res, err := store.AllowN(ctx, "api:ip:10.0.0.1", 1, 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Zero(t, res.Remaining)
		assert.Equal(t, 40, res.RetryAfter)
	})

	t.Run("other keys are independent", func(t *testing.T) {
		res, err := store.AllowN(ctx, "api:ip:10.0.0.2", 1, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	})

	t.Run("window slides", func(t *testing.T) {
		clock.Advance(41 * time.Second)
		res, err := store.AllowN(ctx, "api:ip:10.0.0.1", 1, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2, res.Remaining)
	})
}

func TestMemoryStoreCostLargerThanRemaining(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	res, err := store.AllowN(ctx, "k", 4, 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)

	res, err = store.AllowN(ctx, "k", 2, 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	res, err = store.AllowN(ctx, "k", 1, 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Zero(t, res.Remaining)
}

func TestMemoryStorePrune(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock.Now)
	ctx := context.Background()

	_, err := store.AllowN(ctx, "a", 1, 10, time.Minute)
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	_, err = store.AllowN(ctx, "b", 1, 10, time.Minute)
	require.NoError(t, err)

	clock.Advance(31 * time.Second)
	assert.Equal(t, 1, store.Prune())
	assert.Len(t, store.windows, 1)
}
