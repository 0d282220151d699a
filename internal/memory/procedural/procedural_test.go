package procedural

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubsequenceEndFindsOrderPreservingMatch(t *testing.T) {
	seq := []string{"draft", "review", "schedule", "confirm"}
	assert.Equal(t, 2, subsequenceEnd(seq, []string{"draft", "review"}))
	assert.Equal(t, -1, subsequenceEnd(seq, []string{"confirm", "draft"}))
	assert.Equal(t, 0, subsequenceEnd(seq, nil))
}

func TestSupportCountMatchesAcrossSequences(t *testing.T) {
	sequences := [][]string{
		{"draft", "review", "confirm"},
		{"draft", "confirm"},
		{"review", "confirm"},
	}
	assert.Equal(t, 2, supportCount(sequences, []string{"draft", "confirm"}))
	assert.Equal(t, 3, supportCount(sequences, []string{"confirm"}))
}

func TestTransitionMeanCost(t *testing.T) {
	tr := &transition{count: 2, totalMs: 300}
	assert.Equal(t, 150.0, tr.meanCost())

	empty := &transition{}
	assert.Equal(t, 1.0, empty.meanCost())
}

func TestBestPathFindsLowestCostRouteOverBuiltGraph(t *testing.T) {
	graph := map[string]map[string]*transition{
		"draft": {
			"review":   {count: 1, totalMs: 1000},
			"schedule": {count: 1, totalMs: 100},
		},
		"schedule": {
			"confirm": {count: 1, totalMs: 100},
		},
		"review": {
			"confirm": {count: 1, totalMs: 100},
		},
	}
	// Exercise the same search logic BestPath uses, over a hand-built graph,
	// since BestPath itself requires a live pool to load sequences from.
	path, cost := searchGraph(graph, "draft", "confirm")
	require.Equal(t, []string{"draft", "schedule", "confirm"}, path)
	assert.Equal(t, 200.0, cost)
}
