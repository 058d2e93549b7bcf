package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheTTL(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), 100*time.Millisecond)

	val, ok := c.Get(ctx, "k")
	require.True(t, ok, "value must be retrievable before expiry")
	assert.Equal(t, []byte("v"), val)

	time.Sleep(150 * time.Millisecond)

	_, ok = c.Get(ctx, "k")
	assert.False(t, ok, "value must be gone after expiry")

	// expiry check is idempotent
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCacheHas(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	assert.False(t, c.Has(ctx, "k"))

	c.Set(ctx, "k", []byte("v"), time.Minute)
	assert.True(t, c.Has(ctx, "k"))

	c.Delete(ctx, "k")
	assert.False(t, c.Has(ctx, "k"))
}

func TestMemoryCacheClear(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		c.Set(ctx, fmt.Sprintf("key-%d", i), []byte("v"), time.Minute)
	}

	assert.Equal(t, 12, c.Clear(ctx))
	assert.Equal(t, 0, c.GetStats(ctx).TotalItems)
	assert.Equal(t, 0, c.Clear(ctx))
}

func TestMemoryCacheStats(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "a", []byte("0123456789"), time.Minute)

	_, ok := c.Get(ctx, "a")
	require.True(t, ok)
	_, ok = c.Get(ctx, "missing")
	require.False(t, ok)

	stats := c.GetStats(ctx)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.TotalItems)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
	assert.Equal(t, int64(10), stats.ApproxBytes)
}

func TestMemoryCacheSweepEvictsExpired(t *testing.T) {
	c := NewMemoryCache(50 * time.Millisecond)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "short", []byte("v"), 30*time.Millisecond)
	c.Set(ctx, "long", []byte("v"), time.Minute)

	time.Sleep(150 * time.Millisecond)

	// the sweep removed the expired entry without a Get touching it
	stats := c.GetStats(ctx)
	assert.Equal(t, 1, stats.TotalItems)
	assert.True(t, c.Has(ctx, "long"))
}

func TestMemoryCacheDefaultTTL(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), 0)
	assert.True(t, c.Has(ctx, "k"), "non-positive TTL falls back to the default")
}
