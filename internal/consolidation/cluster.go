package consolidation

import (
	"sort"

	"castingai/internal/memory/episodic"
	"castingai/internal/vectorindex"
)

// clusterByCosine groups memories into connected clusters where each member
// has cosine similarity >= threshold to at least one other member already in
// the cluster (greedy single-linkage), per §4.10 step 5. Memories with no
// embedding never join a cluster. Results are index slices into memories,
// sorted by their lowest member index for determinism.
func clusterByCosine(memories []episodic.Memory, threshold float64) [][]int {
	assigned := make([]bool, len(memories))
	var clusters [][]int

	for i := range memories {
		if assigned[i] || len(memories[i].ContextEmbedding) == 0 {
			continue
		}
		cluster := []int{i}
		assigned[i] = true
		for j := i + 1; j < len(memories); j++ {
			if assigned[j] || len(memories[j].ContextEmbedding) == 0 {
				continue
			}
			for _, member := range cluster {
				if vectorindex.Cosine(memories[member].ContextEmbedding, memories[j].ContextEmbedding) >= threshold {
					cluster = append(cluster, j)
					assigned[j] = true
					break
				}
			}
		}
		clusters = append(clusters, cluster)
	}

	sort.Slice(clusters, func(a, b int) bool { return clusters[a][0] < clusters[b][0] })
	return clusters
}
