package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(Config{
		Tier1MaxItems:     1000,
		Tier1MaxCostBytes: 1 << 20,
		DefaultTTL:        time.Minute,
	})
	require.NoError(t, err)
	return c
}

func TestCacheGetSetRoundTrip(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	c.Set(ctx, "k1", []byte("hello"), 0)
	c.Wait()
	v, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), v)
}

func TestCacheGetBatchEquivalentToSequentialGet(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "a", []byte("1"), 0)
	c.Set(ctx, "b", []byte("2"), 0)
	c.Wait()

	batch := c.GetBatch(ctx, []string{"a", "b", "missing"})
	assert.Len(t, batch, 2)

	for _, key := range []string{"a", "b"} {
		sequential, ok := c.Get(ctx, key)
		require.True(t, ok)
		assert.Equal(t, sequential, batch[key])
	}
	_, ok := batch["missing"]
	assert.False(t, ok)
}

func TestCacheSetBatchEquivalentToSequentialSet(t *testing.T) {
	t.Parallel()
	sequential := newTestCache(t)
	batched := newTestCache(t)
	ctx := context.Background()

	mapping := map[string][]byte{"x": []byte("one"), "y": []byte("two"), "z": []byte("three")}

	for k, v := range mapping {
		sequential.Set(ctx, k, v, 0)
	}
	sequential.Wait()
	batched.SetBatch(ctx, mapping, 0)
	batched.Wait()

	for k, v := range mapping {
		got, ok := batched.Get(ctx, k)
		require.True(t, ok)
		assert.Equal(t, v, got)

		want, ok := sequential.Get(ctx, k)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestCacheInvalidateRemovesKey(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "gone", []byte("v"), 0)
	c.Wait()
	c.Invalidate(ctx, "gone")
	_, ok := c.Get(ctx, "gone")
	assert.False(t, ok)
}

func TestCacheStatsCountsHitsAndMisses(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "hit", []byte("v"), 0)
	c.Wait()
	c.Get(ctx, "hit")
	c.Get(ctx, "nope")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Tier1Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	t.Parallel()
	small := []byte("short")
	assert.Equal(t, small, decompress(compress(small, 1024)))

	large := make([]byte, 2048)
	for i := range large {
		large[i] = byte(i % 7)
	}
	assert.Equal(t, large, decompress(compress(large, 1024)))
}

func TestTaggedKeyKeepsTagLiteral(t *testing.T) {
	t.Parallel()
	key := taggedKey("conv", "session-123", "utterance-hash")
	assert.Contains(t, key, "conv:session-123:")
}
