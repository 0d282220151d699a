package semanticgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommunityDetectGroupsConnectedComponentsSeparately(t *testing.T) {
	edges := []edge{
		{source: "a", target: "b", confidence: 0.8},
		{source: "b", target: "c", confidence: 0.8},
		{source: "c", target: "a", confidence: 0.8},
		{source: "x", target: "y", confidence: 0.8},
	}

	clusters := communityDetect(edges, 10)

	var triangleCluster, pairCluster string
	for label, members := range clusters {
		switch len(members) {
		case 3:
			triangleCluster = label
		case 2:
			pairCluster = label
		}
	}
	assert.NotEmpty(t, triangleCluster)
	assert.NotEmpty(t, pairCluster)
	assert.NotEqual(t, triangleCluster, pairCluster)
}

func TestPageRankDistributesMassByOutgoingConfidenceShare(t *testing.T) {
	edges := []edge{
		{source: "a", target: "b", confidence: 1.0},
	}
	ranks := pageRank(edges, 0.85, 30)

	assert.Greater(t, ranks["b"], ranks["a"])
}

func TestPageRankEmptyGraphReturnsEmptyMap(t *testing.T) {
	ranks := pageRank(nil, 0.85, 10)
	assert.Empty(t, ranks)
}
