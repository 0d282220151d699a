package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castingai/internal/domain"
)

func TestEmbeddingCacheGetBatchSetBatchRoundTrip(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)
	ec := NewEmbeddingCache(c, time.Minute)
	ctx := context.Background()

	embs := []domain.Embedding{
		{SourceID: "s1", ContentHash: "h1", Vector: []float32{0.1, 0.2}},
		{SourceID: "s2", ContentHash: "h2", Vector: []float32{0.3, 0.4}},
	}
	ec.SetBatch(ctx, embs)
	c.Wait()

	got := ec.GetBatch(ctx, []string{"h1", "h2", "missing"})
	require.Len(t, got, 2)
	assert.Equal(t, embs[0], got["h1"])
	assert.Equal(t, embs[1], got["h2"])

	single, ok := ec.Get(ctx, "h1")
	require.True(t, ok)
	assert.Equal(t, embs[0], single)
}

// TestEmbeddingCacheInvalidateIsSafeWithoutRedis documents that Invalidate's
// whole-namespace Scan+Del only runs against tier2: with no Redis configured
// (as in this test's Tier1-only Cache), it is a no-op rather than an error.
func TestEmbeddingCacheInvalidateIsSafeWithoutRedis(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)
	ec := NewEmbeddingCache(c, time.Minute)
	ctx := context.Background()

	ec.Set(ctx, domain.Embedding{ContentHash: "h1", Vector: []float32{1}})
	assert.NotPanics(t, func() { ec.Invalidate(ctx) })
}

func TestModelResponseCacheBatchRoundTrip(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)
	mc := NewModelResponseCache(c, time.Minute)
	ctx := context.Background()

	responses := map[string]string{"prompt-a": "resp-a", "prompt-b": "resp-b"}
	mc.SetBatch(ctx, "model-x", responses)
	c.Wait()

	got := mc.GetBatch(ctx, "model-x", []string{"prompt-a", "prompt-b", "prompt-c"})
	assert.Equal(t, responses, got)

	single, ok := mc.Get(ctx, "model-x", "prompt-a")
	require.True(t, ok)
	assert.Equal(t, "resp-a", single)
}

func TestModelResponseCacheIsScopedPerModel(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)
	mc := NewModelResponseCache(c, time.Minute)
	ctx := context.Background()

	mc.Set(ctx, "model-a", "same prompt", "resp-a")
	mc.Set(ctx, "model-b", "same prompt", "resp-b")
	c.Wait()

	a, ok := mc.Get(ctx, "model-a", "same prompt")
	require.True(t, ok)
	assert.Equal(t, "resp-a", a)

	b, ok := mc.Get(ctx, "model-b", "same prompt")
	require.True(t, ok)
	assert.Equal(t, "resp-b", b)
}

// TestConversationCacheSessionKeysDoNotCollide guards the taggedKey fix: two
// sessions sharing the same utterance hash must resolve to distinct keys, so
// InvalidateSession's Redis-side Scan (not exercised here without a live
// Redis) only ever matches the one session's keys.
func TestConversationCacheSessionKeysDoNotCollide(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)
	cc := NewConversationCache(c, time.Minute)
	ctx := context.Background()

	resultA := domain.IntentResult{Intent: domain.IntentSearchTalent, Confidence: 0.9}
	resultB := domain.IntentResult{Intent: domain.IntentSearchTalent, Confidence: 0.8}
	cc.Set(ctx, "session-a", "utt-1", resultA)
	cc.Set(ctx, "session-b", "utt-1", resultB)
	c.Wait()

	a, ok := cc.Get(ctx, "session-a", "utt-1")
	require.True(t, ok)
	assert.Equal(t, resultA, a)

	b, ok := cc.Get(ctx, "session-b", "utt-1")
	require.True(t, ok)
	assert.Equal(t, resultB, b)

	// Without a live Redis (tier2 nil), InvalidatePrefix degrades to a no-op
	// rather than erroring: Tier1 has no pattern-scan of its own.
	assert.NotPanics(t, func() { cc.InvalidateSession(ctx, "session-a") })
}

func TestConversationCacheBatchRoundTrip(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)
	cc := NewConversationCache(c, time.Minute)
	ctx := context.Background()

	items := map[string]domain.IntentResult{
		"utt-1": {Intent: domain.IntentSearchTalent, Confidence: 0.5},
		"utt-2": {Intent: domain.IntentSearchTalent, Confidence: 0.6},
	}
	cc.SetBatch(ctx, "session-a", items)
	c.Wait()

	got := cc.GetBatch(ctx, "session-a", []string{"utt-1", "utt-2", "utt-missing"})
	assert.Equal(t, items, got)
}

func TestVectorSearchCacheBatchRoundTrip(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)
	vc := NewVectorSearchCache(c, time.Minute)
	ctx := context.Background()

	pages := map[string]CachedSearchPage{
		"query-1": {
			Results:  []domain.RankedResult{{TalentID: "t1", CompositeScore: 0.9, Rank: 1}},
			Profiles: map[string]domain.TalentProfile{"t1": {ID: "t1", Name: "Alex"}},
		},
		"query-2": {
			Results: []domain.RankedResult{{TalentID: "t2", CompositeScore: 0.5, Rank: 1}},
		},
	}
	vc.SetBatch(ctx, pages)
	c.Wait()

	got := vc.GetBatch(ctx, []string{"query-1", "query-2", "query-missing"})
	require.Len(t, got, 2)
	assert.Equal(t, pages["query-1"], got["query-1"])
	assert.Equal(t, pages["query-2"], got["query-2"])

	single, ok := vc.Get(ctx, "query-1")
	require.True(t, ok)
	assert.Equal(t, pages["query-1"], single)
}

// TestVectorSearchCacheInvalidateIsSafeWithoutRedis documents that
// Invalidate's whole-namespace Scan+Del only runs against tier2: with no
// Redis configured (as in this test's Tier1-only Cache), it is a no-op
// rather than an error, matching Cache.InvalidatePrefix's contract.
func TestVectorSearchCacheInvalidateIsSafeWithoutRedis(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)
	vc := NewVectorSearchCache(c, time.Minute)
	ctx := context.Background()

	vc.Set(ctx, "query-1", CachedSearchPage{Results: []domain.RankedResult{{TalentID: "t1"}}})
	assert.NotPanics(t, func() { vc.Invalidate(ctx) })
}
