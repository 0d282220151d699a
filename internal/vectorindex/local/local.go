// Package local implements a durable, dependency-free vector index backend
// for single-instance deployments: vectors are bucketed by random-hyperplane
// locality-sensitive hashing for sub-linear approximate search, and the
// whole index is snapshotted to disk with an atomic write-tmp-then-rename,
// the same durability pattern the teacher uses for its on-disk stores
// (internal/persistence/databases/memory_vector.go generalized with
// durability, since the teacher's flat backend is purely in-memory).
package local

import (
	"bytes"
	"context"
	"encoding/gob"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"castingai/internal/vectorindex"
)

const numHyperplanes = 12

type snapshot struct {
	Dimensions  int
	Hyperplanes [][]float32
	Vectors     map[string][]float32
	Metadata    map[string]map[string]string
}

// Index is a durable, LSH-bucketed approximate vector index.
type Index struct {
	mu          sync.RWMutex
	dataDir     string
	dimensions  int
	hyperplanes [][]float32
	vectors     map[string][]float32
	metadata    map[string]map[string]string
	buckets     map[string]map[string]struct{}
}

// New loads an existing snapshot from dataDir if present, otherwise
// initializes a fresh index with freshly sampled hyperplanes.
func New(dataDir string, dimensions int) (*Index, error) {
	idx := &Index{
		dataDir:    dataDir,
		dimensions: dimensions,
		vectors:    make(map[string][]float32),
		metadata:   make(map[string]map[string]string),
		buckets:    make(map[string]map[string]struct{}),
	}

	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, err
		}
		if loaded, err := idx.load(); err != nil {
			return nil, err
		} else if loaded {
			return idx, nil
		}
	}

	idx.hyperplanes = randomHyperplanes(numHyperplanes, dimensions)
	return idx, nil
}

func randomHyperplanes(n, dim int) [][]float32 {
	r := rand.New(rand.NewSource(42))
	planes := make([][]float32, n)
	for i := range planes {
		plane := make([]float32, dim)
		for j := range plane {
			plane[j] = float32(r.NormFloat64())
		}
		planes[i] = plane
	}
	return planes
}

func (idx *Index) bucketKey(v []float32) string {
	bits := make([]byte, len(idx.hyperplanes))
	for i, plane := range idx.hyperplanes {
		if vectorindex.Cosine(v, plane) >= 0 {
			bits[i] = '1'
		} else {
			bits[i] = '0'
		}
	}
	return string(bits)
}

func (idx *Index) Upsert(_ context.Context, records []vectorindex.Record) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, r := range records {
		if old, ok := idx.vectors[r.ID]; ok {
			oldKey := idx.bucketKey(old)
			if b, ok := idx.buckets[oldKey]; ok {
				delete(b, r.ID)
			}
		}
		idx.vectors[r.ID] = r.Vector
		idx.metadata[r.ID] = r.Metadata
		key := idx.bucketKey(r.Vector)
		if idx.buckets[key] == nil {
			idx.buckets[key] = make(map[string]struct{})
		}
		idx.buckets[key][r.ID] = struct{}{}
	}
	return idx.persistLocked()
}

func (idx *Index) Delete(_ context.Context, ids []string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, id := range ids {
		v, ok := idx.vectors[id]
		if !ok {
			continue
		}
		key := idx.bucketKey(v)
		if b, ok := idx.buckets[key]; ok {
			delete(b, id)
		}
		delete(idx.vectors, id)
		delete(idx.metadata, id)
	}
	return idx.persistLocked()
}

// Search probes the query's own bucket plus every bucket one Hamming bit
// away (to recover candidates the hyperplane split narrowly), then
// exact-scores every candidate and returns the top k. Falls back to a full
// scan when candidate recall is too thin relative to k.
func (idx *Index) Search(_ context.Context, query []float32, k int, filter vectorindex.Filter) ([]vectorindex.Match, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 {
		k = 10
	}

	key := idx.bucketKey(query)
	candidates := make(map[string]struct{})
	collect := func(k string) {
		for id := range idx.buckets[k] {
			candidates[id] = struct{}{}
		}
	}
	collect(key)
	kb := []byte(key)
	for i := range kb {
		flipped := append([]byte(nil), kb...)
		if flipped[i] == '1' {
			flipped[i] = '0'
		} else {
			flipped[i] = '1'
		}
		collect(string(flipped))
	}

	if len(candidates) < k*4 {
		for id := range idx.vectors {
			candidates[id] = struct{}{}
		}
	}

	matches := make([]vectorindex.Match, 0, len(candidates))
	for id := range candidates {
		meta := idx.metadata[id]
		if len(filter) > 0 && !vectorindex.MatchesFilter(meta, filter) {
			continue
		}
		matches = append(matches, vectorindex.Match{
			ID:       id,
			Score:    vectorindex.Cosine(query, idx.vectors[id]),
			Metadata: meta,
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (idx *Index) Count(_ context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors), nil
}

func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.persistLocked()
}

func (idx *Index) snapshotPath() string {
	return filepath.Join(idx.dataDir, "index.gob")
}

// persistLocked writes the current state to a temp file in the same
// directory and renames it over the snapshot path, so a crash mid-write
// never leaves a truncated snapshot on disk. No-op when dataDir is empty
// (pure in-memory mode, used by tests).
func (idx *Index) persistLocked() error {
	if idx.dataDir == "" {
		return nil
	}
	snap := snapshot{
		Dimensions:  idx.dimensions,
		Hyperplanes: idx.hyperplanes,
		Vectors:     idx.vectors,
		Metadata:    idx.metadata,
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(idx.dataDir, "index-*.gob.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, idx.snapshotPath())
}

// load reports whether a snapshot existed and was loaded.
func (idx *Index) load() (bool, error) {
	data, err := os.ReadFile(idx.snapshotPath())
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return false, err
	}
	idx.dimensions = snap.Dimensions
	idx.hyperplanes = snap.Hyperplanes
	idx.vectors = snap.Vectors
	idx.metadata = snap.Metadata
	if idx.vectors == nil {
		idx.vectors = make(map[string][]float32)
	}
	if idx.metadata == nil {
		idx.metadata = make(map[string]map[string]string)
	}
	idx.buckets = make(map[string]map[string]struct{})
	for id, v := range idx.vectors {
		key := idx.bucketKey(v)
		if idx.buckets[key] == nil {
			idx.buckets[key] = make(map[string]struct{})
		}
		idx.buckets[key][id] = struct{}{}
	}
	return true, nil
}
