package cache

import (
	"context"
	"time"

	"castingai/internal/domain"
)

// EmbeddingCache memoizes Provider.Embed results by content hash so repeated
// text (common with profile bios that rarely change) skips the provider
// round trip entirely (§4.2).
type EmbeddingCache struct {
	c   *Cache
	ttl time.Duration
}

func NewEmbeddingCache(c *Cache, ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{c: c, ttl: ttl}
}

func (e *EmbeddingCache) Get(ctx context.Context, contentHash string) (domain.Embedding, bool) {
	raw, ok := e.c.Get(ctx, hashKey("embed", contentHash))
	if !ok {
		return domain.Embedding{}, false
	}
	var emb domain.Embedding
	if !unmarshal(raw, &emb) {
		return domain.Embedding{}, false
	}
	return emb, true
}

func (e *EmbeddingCache) Set(ctx context.Context, emb domain.Embedding) {
	e.c.Set(ctx, hashKey("embed", emb.ContentHash), marshal(emb), e.ttl)
}

// GetBatch looks up several content hashes at once via the base cache's
// single-round-trip MGET path (§4.2, §8 "batch ops are equivalent to
// sequential ops").
func (e *EmbeddingCache) GetBatch(ctx context.Context, contentHashes []string) map[string]domain.Embedding {
	keys := make([]string, len(contentHashes))
	keyToHash := make(map[string]string, len(contentHashes))
	for i, h := range contentHashes {
		key := hashKey("embed", h)
		keys[i] = key
		keyToHash[key] = h
	}
	raw := e.c.GetBatch(ctx, keys)
	out := make(map[string]domain.Embedding, len(raw))
	for key, v := range raw {
		var emb domain.Embedding
		if unmarshal(v, &emb) {
			out[keyToHash[key]] = emb
		}
	}
	return out
}

// SetBatch writes several embeddings at once, keyed by their own ContentHash.
func (e *EmbeddingCache) SetBatch(ctx context.Context, embs []domain.Embedding) {
	mapping := make(map[string][]byte, len(embs))
	for _, emb := range embs {
		mapping[hashKey("embed", emb.ContentHash)] = marshal(emb)
	}
	e.c.SetBatch(ctx, mapping, e.ttl)
}

// Invalidate flushes every cached embedding. Embeddings are keyed purely by
// content hash with no narrower grouping to invalidate by, so the only
// meaningful "pattern" here is the whole namespace (§4.2 invalidate(pattern)).
func (e *EmbeddingCache) Invalidate(ctx context.Context) {
	e.c.InvalidatePrefix(ctx, "embed")
}

// ModelResponseCache memoizes completion-provider responses keyed by the
// model name and a hash of the prompt, avoiding duplicate LLM spend for repeated
// questions within the TTL window (§4.2).
type ModelResponseCache struct {
	c   *Cache
	ttl time.Duration
}

func NewModelResponseCache(c *Cache, ttl time.Duration) *ModelResponseCache {
	return &ModelResponseCache{c: c, ttl: ttl}
}

func (m *ModelResponseCache) Get(ctx context.Context, model, prompt string) (string, bool) {
	raw, ok := m.c.Get(ctx, taggedKey("modelresp", model, prompt))
	if !ok {
		return "", false
	}
	var s string
	if !unmarshal(raw, &s) {
		return "", false
	}
	return s, true
}

func (m *ModelResponseCache) Set(ctx context.Context, model, prompt, response string) {
	m.c.Set(ctx, taggedKey("modelresp", model, prompt), marshal(response), m.ttl)
}

// GetBatch looks up several prompts for the same model at once.
func (m *ModelResponseCache) GetBatch(ctx context.Context, model string, prompts []string) map[string]string {
	keys := make([]string, len(prompts))
	keyToPrompt := make(map[string]string, len(prompts))
	for i, p := range prompts {
		key := taggedKey("modelresp", model, p)
		keys[i] = key
		keyToPrompt[key] = p
	}
	raw := m.c.GetBatch(ctx, keys)
	out := make(map[string]string, len(raw))
	for key, v := range raw {
		var s string
		if unmarshal(v, &s) {
			out[keyToPrompt[key]] = s
		}
	}
	return out
}

// SetBatch writes several prompt -> response pairs for the same model.
func (m *ModelResponseCache) SetBatch(ctx context.Context, model string, responses map[string]string) {
	mapping := make(map[string][]byte, len(responses))
	for prompt, resp := range responses {
		mapping[taggedKey("modelresp", model, prompt)] = marshal(resp)
	}
	m.c.SetBatch(ctx, mapping, m.ttl)
}

// Invalidate flushes every cached response for one model (§4.2
// invalidate(pattern), with the model name as the pattern).
func (m *ModelResponseCache) Invalidate(ctx context.Context, model string) {
	m.c.InvalidatePrefix(ctx, "modelresp:"+model)
}

// ConversationCache holds short-lived per-session snapshots (e.g. the last
// rendered intent result) so a reconnecting WebSocket client doesn't force a
// full NLP re-analysis of the same utterance (§4.2).
type ConversationCache struct {
	c   *Cache
	ttl time.Duration
}

func NewConversationCache(c *Cache, ttl time.Duration) *ConversationCache {
	return &ConversationCache{c: c, ttl: ttl}
}

func (cc *ConversationCache) Get(ctx context.Context, sessionID, utteranceHash string) (domain.IntentResult, bool) {
	raw, ok := cc.c.Get(ctx, taggedKey("conv", sessionID, utteranceHash))
	if !ok {
		return domain.IntentResult{}, false
	}
	var r domain.IntentResult
	if !unmarshal(raw, &r) {
		return domain.IntentResult{}, false
	}
	return r, true
}

func (cc *ConversationCache) Set(ctx context.Context, sessionID, utteranceHash string, r domain.IntentResult) {
	cc.c.Set(ctx, taggedKey("conv", sessionID, utteranceHash), marshal(r), cc.ttl)
}

// GetBatch looks up several utterance hashes within one session at once.
func (cc *ConversationCache) GetBatch(ctx context.Context, sessionID string, utteranceHashes []string) map[string]domain.IntentResult {
	keys := make([]string, len(utteranceHashes))
	keyToHash := make(map[string]string, len(utteranceHashes))
	for i, h := range utteranceHashes {
		key := taggedKey("conv", sessionID, h)
		keys[i] = key
		keyToHash[key] = h
	}
	raw := cc.c.GetBatch(ctx, keys)
	out := make(map[string]domain.IntentResult, len(raw))
	for key, v := range raw {
		var r domain.IntentResult
		if unmarshal(v, &r) {
			out[keyToHash[key]] = r
		}
	}
	return out
}

// SetBatch writes several utterance-hash -> intent-result pairs for one
// session.
func (cc *ConversationCache) SetBatch(ctx context.Context, sessionID string, items map[string]domain.IntentResult) {
	mapping := make(map[string][]byte, len(items))
	for hash, r := range items {
		mapping[taggedKey("conv", sessionID, hash)] = marshal(r)
	}
	cc.c.SetBatch(ctx, mapping, cc.ttl)
}

// Invalidate flushes every cached intent result for one session (§4.2
// invalidate(pattern), with the session id as the pattern).
func (cc *ConversationCache) Invalidate(ctx context.Context, sessionID string) {
	cc.c.InvalidatePrefix(ctx, "conv:"+sessionID)
}

// InvalidateSession is Invalidate's original name, kept as the spelling used
// when a session ends (`DELETE /conversation/{id}`).
func (cc *ConversationCache) InvalidateSession(ctx context.Context, sessionID string) {
	cc.Invalidate(ctx, sessionID)
}

// VectorSearchCache memoizes hybrid-search result pages keyed by the
// serialized SearchCriteria + query text, since repeated casting-director
// queries against an unchanged index are common within a short window
// (§4.2, §4.4).
type VectorSearchCache struct {
	c   *Cache
	ttl time.Duration
}

func NewVectorSearchCache(c *Cache, ttl time.Duration) *VectorSearchCache {
	return &VectorSearchCache{c: c, ttl: ttl}
}

// CachedSearchPage is what gets cached for one search-result page: the
// ranked results plus the profile data they were scored against, so a cache
// hit doesn't need a second round trip to the profile store. Lives in this
// package (rather than internal/search) to avoid search importing cache and
// cache importing search.
type CachedSearchPage struct {
	Results  []domain.RankedResult          `json:"results"`
	Profiles map[string]domain.TalentProfile `json:"profiles"`
}

func (v *VectorSearchCache) Get(ctx context.Context, queryKey string) (CachedSearchPage, bool) {
	raw, ok := v.c.Get(ctx, hashKey("vsearch", queryKey))
	if !ok {
		return CachedSearchPage{}, false
	}
	var page CachedSearchPage
	if !unmarshal(raw, &page) {
		return CachedSearchPage{}, false
	}
	return page, true
}

func (v *VectorSearchCache) Set(ctx context.Context, queryKey string, page CachedSearchPage) {
	v.c.Set(ctx, hashKey("vsearch", queryKey), marshal(page), v.ttl)
}

// GetBatch looks up several result pages at once (e.g. prefetching adjacent
// facet pages).
func (v *VectorSearchCache) GetBatch(ctx context.Context, queryKeys []string) map[string]CachedSearchPage {
	keys := make([]string, len(queryKeys))
	keyToQuery := make(map[string]string, len(queryKeys))
	for i, q := range queryKeys {
		key := hashKey("vsearch", q)
		keys[i] = key
		keyToQuery[key] = q
	}
	raw := v.c.GetBatch(ctx, keys)
	out := make(map[string]CachedSearchPage, len(raw))
	for key, val := range raw {
		var page CachedSearchPage
		if unmarshal(val, &page) {
			out[keyToQuery[key]] = page
		}
	}
	return out
}

// SetBatch writes several result pages at once.
func (v *VectorSearchCache) SetBatch(ctx context.Context, pages map[string]CachedSearchPage) {
	mapping := make(map[string][]byte, len(pages))
	for queryKey, page := range pages {
		mapping[hashKey("vsearch", queryKey)] = marshal(page)
	}
	v.c.SetBatch(ctx, mapping, v.ttl)
}

// Invalidate flushes every cached search page. Result pages are keyed purely
// by query fingerprint with no narrower grouping, so a reindex or profile
// bulk-update invalidates the whole namespace (§4.2 invalidate(pattern)).
func (v *VectorSearchCache) Invalidate(ctx context.Context) {
	v.c.InvalidatePrefix(ctx, "vsearch")
}
