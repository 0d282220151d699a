package embedding

import (
	"context"

	"github.com/rs/zerolog/log"

	"castingai/internal/cache"
	"castingai/internal/config"
	"castingai/internal/domain"
)

// New builds the configured Provider, following the teacher's factory.go
// switch-on-backend-name pattern (internal/persistence/databases/factory.go).
// embCache may be nil, in which case the provider calls through uncached.
func New(cfg config.EmbeddingConfig, embCache *cache.EmbeddingCache) Provider {
	switch cfg.Provider {
	case "openai":
		return withCache(&fallbackProvider{
			primary: NewOpenAI(OpenAIConfig{
				BaseURL:         cfg.BaseURL,
				APIKey:          cfg.APIKey,
				Model:           cfg.Model,
				Dimensions:      cfg.Dimensions,
				Timeout:         cfg.Timeout,
				BreakerMaxFails: cfg.BreakerMaxFails,
				BreakerOpenWait: cfg.BreakerOpenWait,
			}),
			fallback: NewLocal(cfg.Dimensions),
		}, embCache)
	case "local", "":
		return withCache(NewLocal(cfg.Dimensions), embCache)
	default:
		log.Warn().Str("provider", cfg.Provider).Msg("unknown embedding provider, using local fallback")
		return withCache(NewLocal(cfg.Dimensions), embCache)
	}
}

// fallbackProvider tries primary first and falls back to a local provider on
// any error, surfacing degradation to the caller via structured logging
// rather than failing the whole request (spec §4.1, §7 fail-soft semantics).
type fallbackProvider struct {
	primary  Provider
	fallback Provider
}

func (f *fallbackProvider) Dimensions() int { return f.primary.Dimensions() }

func (f *fallbackProvider) Embed(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	out, err := f.primary.Embed(ctx, texts)
	if err == nil {
		return out, nil
	}
	log.Warn().Err(err).Msg("embedding provider degraded, using local fallback")
	return f.fallback.Embed(ctx, texts)
}

// embedBatchSize is C1's "cache misses grouped into batches of up to B"
// (§4.1), applied here to whatever the cache didn't already satisfy.
const embedBatchSize = 32

// withCache wraps inner with C2's embedding cache. A nil embCache is a no-op
// so callers can wire caching in optionally without a branch at every call
// site.
func withCache(inner Provider, embCache *cache.EmbeddingCache) Provider {
	if embCache == nil {
		return inner
	}
	return &cachedProvider{inner: inner, cache: embCache}
}

// cachedProvider checks C2's embedding cache by content hash before calling
// through to inner, batching cache misses per §4.1's algorithm.
type cachedProvider struct {
	inner Provider
	cache *cache.EmbeddingCache
}

func (c *cachedProvider) Dimensions() int { return c.inner.Dimensions() }

func (c *cachedProvider) Embed(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([]domain.Embedding, len(texts))
	hashes := make([]string, len(texts))
	for i, t := range texts {
		hashes[i] = contentHash(t)
	}

	hits := c.cache.GetBatch(ctx, hashes)
	var missIdx []int
	var missTexts []string
	for i, h := range hashes {
		if emb, ok := hits[h]; ok {
			out[i] = emb
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	fresh := make([]domain.Embedding, 0, len(missTexts))
	for start := 0; start < len(missTexts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		embs, err := c.inner.Embed(ctx, missTexts[start:end])
		if err != nil {
			return nil, err
		}
		for j, emb := range embs {
			out[missIdx[start+j]] = emb
			fresh = append(fresh, emb)
		}
	}
	c.cache.SetBatch(ctx, fresh)
	return out, nil
}
