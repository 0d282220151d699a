// Package flat implements an exact, linear-scan vector index backend,
// adapted near-verbatim from the teacher's memory_vector.go — same
// sync.RWMutex + map[string]vec shape, same cosine/matchesFilter/sort
// helpers, generalized from the teacher's single SimilaritySearch signature
// to the shared vectorindex.Index interface.
package flat

import (
	"context"
	"sort"
	"sync"

	"castingai/internal/vectorindex"
)

type entry struct {
	vector   []float32
	metadata map[string]string
}

// Index is an in-memory, exact cosine-scan backend. Used for tests and
// selected by the "flat" backend setting; the factory's default backend is
// the durable local index.
type Index struct {
	mu   sync.RWMutex
	data map[string]entry
}

// New builds an empty flat Index.
func New() *Index {
	return &Index{data: make(map[string]entry)}
}

func (idx *Index) Upsert(_ context.Context, records []vectorindex.Record) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, r := range records {
		idx.data[r.ID] = entry{vector: r.Vector, metadata: r.Metadata}
	}
	return nil
}

func (idx *Index) Delete(_ context.Context, ids []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, id := range ids {
		delete(idx.data, id)
	}
	return nil
}

func (idx *Index) Search(_ context.Context, query []float32, k int, filter vectorindex.Filter) ([]vectorindex.Match, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := make([]vectorindex.Match, 0, len(idx.data))
	for id, e := range idx.data {
		if len(filter) > 0 && !vectorindex.MatchesFilter(e.metadata, filter) {
			continue
		}
		matches = append(matches, vectorindex.Match{
			ID:       id,
			Score:    vectorindex.Cosine(query, e.vector),
			Metadata: e.metadata,
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (idx *Index) Count(_ context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.data), nil
}

func (idx *Index) Close() error { return nil }
