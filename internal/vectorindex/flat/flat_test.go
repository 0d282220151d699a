package flat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castingai/internal/vectorindex"
)

func TestFlatSearchRanksByCosine(t *testing.T) {
	idx := New()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []vectorindex.Record{
		{ID: "a", Vector: []float32{1, 0, 0}, Metadata: map[string]string{"gender": "female"}},
		{ID: "b", Vector: []float32{0, 1, 0}, Metadata: map[string]string{"gender": "male"}},
		{ID: "c", Vector: []float32{0.9, 0.1, 0}, Metadata: map[string]string{"gender": "female"}},
	}))

	matches, err := idx.Search(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "c", matches[1].ID)
}

func TestFlatSearchAppliesFilter(t *testing.T) {
	idx := New()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []vectorindex.Record{
		{ID: "a", Vector: []float32{1, 0}, Metadata: map[string]string{"gender": "female"}},
		{ID: "b", Vector: []float32{1, 0}, Metadata: map[string]string{"gender": "male"}},
	}))

	matches, err := idx.Search(ctx, []float32{1, 0}, 10, vectorindex.Filter{"gender": "male"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].ID)
}

func TestFlatDeleteRemovesFromResults(t *testing.T) {
	idx := New()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []vectorindex.Record{
		{ID: "a", Vector: []float32{1, 0}},
	}))
	require.NoError(t, idx.Delete(ctx, []string{"a"}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
