// Package vectorindex implements the pluggable vector index (C3): a durable
// local backend with LSH-bucketed approximate search, a Qdrant-backed remote
// backend, and a flat in-memory exact-scan backend, selected by a factory
// the same way the teacher selects search/vector/graph backends
// (internal/persistence/databases/factory.go).
package vectorindex

import (
	"context"
	"math"
)

// Record is one vector plus its scalar metadata, the unit the index stores
// and returns (spec §3 Vector Record).
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
}

// Match is one similarity search hit.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Filter is an exact-match conjunction over metadata fields, applied before
// (or alongside) the similarity scan depending on backend.
type Filter map[string]string

// Index is the contract every backend implements (§3, §4.3).
type Index interface {
	Upsert(ctx context.Context, records []Record) error
	Delete(ctx context.Context, ids []string) error
	Search(ctx context.Context, query []float32, k int, filter Filter) ([]Match, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// MatchesFilter reports whether meta satisfies every exact-match condition
// in filter. Shared by every backend so filter semantics stay identical
// regardless of which one is configured.
func MatchesFilter(meta map[string]string, filter Filter) bool {
	for k, v := range filter {
		if meta[k] != v {
			return false
		}
	}
	return true
}

// Cosine returns the cosine similarity of a and b, 0 if either is zero.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
