package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castingai/internal/vectorindex"
)

func TestLocalSearchFindsExactMatch(t *testing.T) {
	idx, err := New("", 4)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []vectorindex.Record{
		{ID: "a", Vector: []float32{1, 0, 0, 0}},
		{ID: "b", Vector: []float32{0, 1, 0, 0}},
	}))

	matches, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].ID)
}

func TestLocalPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	idx, err := New(dir, 4)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []vectorindex.Record{
		{ID: "a", Vector: []float32{1, 0, 0, 0}, Metadata: map[string]string{"k": "v"}},
	}))
	require.NoError(t, idx.Close())

	reopened, err := New(dir, 4)
	require.NoError(t, err)
	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	matches, err := reopened.Search(ctx, []float32{1, 0, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "v", matches[0].Metadata["k"])
}
