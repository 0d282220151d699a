// Package embedding implements the pluggable embedding Provider (C1): a
// remote-model provider backed by the OpenAI embeddings endpoint, a
// deterministic local fallback, and a circuit-breaking decorator grounded on
// the teacher's OpenAI client construction (internal/llm/openai/client.go)
// and the pack's gobreaker middleware (2lar-b2 circuit_breaker.go).
package embedding

import (
	"context"
	"math"

	"castingai/internal/domain"
)

// Provider turns text into fixed-dimension, unit-norm vectors.
type Provider interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([]domain.Embedding, error)
	// Dimensions reports the vector width this provider produces.
	Dimensions() int
}

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
