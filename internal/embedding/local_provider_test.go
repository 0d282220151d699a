package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderDeterministic(t *testing.T) {
	p := NewLocal(64)
	ctx := context.Background()

	a, err := p.Embed(ctx, []string{"experienced stunt performer"})
	require.NoError(t, err)
	b, err := p.Embed(ctx, []string{"experienced stunt performer"})
	require.NoError(t, err)

	assert.Equal(t, a[0].Vector, b[0].Vector)
	assert.Equal(t, a[0].ContentHash, b[0].ContentHash)
}

func TestLocalProviderUnitNorm(t *testing.T) {
	p := NewLocal(32)
	out, err := p.Embed(context.Background(), []string{"period drama lead actress fluent in mandarin"})
	require.NoError(t, err)

	var sumSq float64
	for _, v := range out[0].Vector {
		sumSq += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-4)
}

func TestLocalProviderDistinctInputsDiffer(t *testing.T) {
	p := NewLocal(32)
	out, err := p.Embed(context.Background(), []string{"stunt performer", "voice actor"})
	require.NoError(t, err)
	assert.NotEqual(t, out[0].Vector, out[1].Vector)
}
