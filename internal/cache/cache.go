// Package cache implements the two-tier cache (C2): an in-process Tier1
// backed by ristretto for sub-millisecond hits, and a shared Tier2 backed by
// Redis for cross-instance reuse. It mirrors the teacher's
// internal/skills/redis_cache.go key-builder/get/set/invalidate shape,
// generalized to the typed views §4.2 names (embedding, model response,
// conversation, vector search), with batch reads/writes grounded on
// internal/workspaces/redis_cache.go's TxPipeline use.
package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache is the two-tier cache used by every typed view in this package.
// Reads check Tier1 then Tier2, promoting Tier2 hits back into Tier1. Writes
// go to both tiers. A nil Redis client degrades silently to Tier1-only.
// Concurrent readers and writers share one Cache (spec §5), so the hit/miss
// counters below are atomics rather than plain fields.
type Cache struct {
	tier1            *ristretto.Cache[string, []byte]
	tier2            redis.UniversalClient
	defaultTTL       time.Duration
	compressMinBytes int

	hits1, hits2, misses atomic.Int64
}

// Config configures both tiers.
type Config struct {
	Tier1MaxItems     int64
	Tier1MaxCostBytes int64
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	DefaultTTL        time.Duration
	CompressMinBytes  int
}

// New builds a Cache. Redis connection failures are logged, not fatal: the
// cache falls back to Tier1-only operation (spec §7 fail-soft semantics).
func New(cfg Config) (*Cache, error) {
	tier1, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: cfg.Tier1MaxItems * 10,
		MaxCost:     cfg.Tier1MaxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	var tier2 redis.UniversalClient
	if cfg.RedisAddr != "" {
		tier2 = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := tier2.Ping(context.Background()).Err(); err != nil {
			log.Warn().Err(err).Msg("cache tier2 (redis) unreachable, degrading to tier1-only")
			tier2 = nil
		}
	}

	return &Cache{
		tier1:            tier1,
		tier2:            tier2,
		defaultTTL:       cfg.DefaultTTL,
		compressMinBytes: cfg.CompressMinBytes,
	}, nil
}

// Get fetches raw bytes for key, checking Tier1 then Tier2. A Tier2 hit is
// promoted back into Tier1 so the next lookup is in-process.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if v, ok := c.tier1.Get(key); ok {
		c.hits1.Add(1)
		return decompress(v), true
	}
	if c.tier2 != nil {
		v, err := c.tier2.Get(ctx, key).Bytes()
		if err == nil {
			c.hits2.Add(1)
			c.tier1.SetWithTTL(key, v, int64(len(v)), c.defaultTTL)
			return decompress(v), true
		}
		if err != redis.Nil {
			log.Debug().Err(err).Str("key", key).Msg("cache tier2 get error")
		}
	}
	c.misses.Add(1)
	return nil, false
}

// GetBatch fetches multiple keys at once: every Tier1 hit is resolved
// locally, and the remaining Tier1 misses are fetched from Tier2 in a single
// MGET round trip rather than one Get call per key (§4.2's batch contract,
// grounded on the teacher's RedisGenerationCache pipelined-write pattern in
// internal/workspaces/redis_cache.go applied to reads). Keys absent from both
// tiers are simply missing from the result.
func (c *Cache) GetBatch(ctx context.Context, keys []string) map[string][]byte {
	out := make(map[string][]byte, len(keys))
	var misses []string
	for _, key := range keys {
		if v, ok := c.tier1.Get(key); ok {
			c.hits1.Add(1)
			out[key] = decompress(v)
			continue
		}
		misses = append(misses, key)
	}
	if len(misses) == 0 {
		return out
	}
	if c.tier2 == nil {
		c.misses.Add(int64(len(misses)))
		return out
	}

	vals, err := c.tier2.MGet(ctx, misses...).Result()
	if err != nil {
		log.Debug().Err(err).Msg("cache tier2 mget error")
		c.misses.Add(int64(len(misses)))
		return out
	}
	for i, v := range vals {
		s, ok := v.(string)
		if v == nil || !ok {
			c.misses.Add(1)
			continue
		}
		c.hits2.Add(1)
		raw := []byte(s)
		c.tier1.SetWithTTL(misses[i], raw, int64(len(raw)), c.defaultTTL)
		out[misses[i]] = decompress(raw)
	}
	return out
}

// Set writes raw bytes to both tiers with the given TTL (0 means the cache's
// default TTL). Payloads at or above compressMinBytes are gzipped.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	payload := compress(value, c.compressMinBytes)
	c.tier1.SetWithTTL(key, payload, int64(len(payload)), ttl)
	if c.tier2 != nil {
		if err := c.tier2.Set(ctx, key, payload, ttl).Err(); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("cache tier2 set error")
		}
	}
}

// SetBatch writes every entry in mapping to both tiers, using a Tier2
// pipeline so N writes cost one round trip instead of N (§4.2 "batch ops are
// equivalent to sequential ops"), grounded on the teacher's
// RedisGenerationCache.SetGenerations TxPipeline use.
func (c *Cache) SetBatch(ctx context.Context, mapping map[string][]byte, ttl time.Duration) {
	if len(mapping) == 0 {
		return
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	var pipe redis.Pipeliner
	if c.tier2 != nil {
		pipe = c.tier2.Pipeline()
	}
	for key, value := range mapping {
		payload := compress(value, c.compressMinBytes)
		c.tier1.SetWithTTL(key, payload, int64(len(payload)), ttl)
		if pipe != nil {
			pipe.Set(ctx, key, payload, ttl)
		}
	}
	if pipe != nil {
		if _, err := pipe.Exec(ctx); err != nil {
			log.Debug().Err(err).Msg("cache tier2 set-batch pipeline error")
		}
	}
}

// Invalidate removes key from both tiers.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	c.tier1.Del(key)
	if c.tier2 != nil {
		if err := c.tier2.Del(ctx, key).Err(); err != nil {
			log.Debug().Err(err).Str("key", key).Msg("cache tier2 invalidate error")
		}
	}
}

// InvalidatePrefix removes all Tier2 keys matching prefix* (Tier1 has no
// pattern scan, so it is left to expire naturally) — grounded on the
// teacher's Invalidate Scan-iterator pattern.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) {
	if c.tier2 == nil {
		return
	}
	iter := c.tier2.Scan(ctx, 0, prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		if err := c.tier2.Del(ctx, iter.Val()).Err(); err != nil {
			log.Debug().Err(err).Str("key", iter.Val()).Msg("cache tier2 invalidate-prefix error")
		}
	}
}

// Stats reports cumulative hit/miss counters for observability (§4.2).
type Stats struct {
	Tier1Hits int64
	Tier2Hits int64
	Misses    int64
}

func (c *Cache) Stats() Stats {
	return Stats{Tier1Hits: c.hits1.Load(), Tier2Hits: c.hits2.Load(), Misses: c.misses.Load()}
}

// Wait blocks until every pending Tier1 write has been applied. Ristretto
// admits writes through an internal async buffer, so tests that Set then
// immediately Get need this for a deterministic read; production callers
// don't need it since an in-flight write simply isn't visible yet, which
// Tier2 (or the next request) covers.
func (c *Cache) Wait() {
	c.tier1.Wait()
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c.tier2 != nil {
		return c.tier2.Close()
	}
	return nil
}

func compress(v []byte, minBytes int) []byte {
	if len(v) < minBytes {
		return append([]byte{0}, v...)
	}
	var buf bytes.Buffer
	buf.WriteByte(1)
	gw := gzip.NewWriter(&buf)
	_, _ = gw.Write(v)
	_ = gw.Close()
	return buf.Bytes()
}

func decompress(v []byte) []byte {
	if len(v) == 0 {
		return v
	}
	flag, body := v[0], v[1:]
	if flag == 0 {
		return body
	}
	gr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return body
	}
	defer gr.Close()
	out, err := io.ReadAll(gr)
	if err != nil {
		return body
	}
	return out
}

// hashKey builds a stable cache key from arbitrary parts, used by every
// typed view below to keep keys short and collision-resistant.
func hashKey(namespace string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(namespace))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return namespace + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}

// taggedKey is hashKey's counterpart for views that need pattern-based
// invalidation: tag stays literal in the key so InvalidatePrefix(namespace +
// ":" + tag) actually matches, while the remaining parts are still hashed
// into an opaque suffix.
func taggedKey(namespace, tag string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(tag))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return namespace + ":" + tag + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}

func marshal(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func unmarshal(b []byte, v any) bool {
	return json.Unmarshal(b, v) == nil
}
