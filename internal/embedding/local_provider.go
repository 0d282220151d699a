package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"castingai/internal/domain"
)

// localProvider derives a deterministic vector from a hash of the input text.
// It never fails and never calls out to the network: it exists for local
// development, tests, and as the last-resort step of a provider chain when
// no remote embedding service is configured (spec §4.1 local fallback).
type localProvider struct {
	dimensions int
}

// NewLocal builds a deterministic, dependency-free Provider.
func NewLocal(dimensions int) Provider {
	return &localProvider{dimensions: dimensions}
}

func (p *localProvider) Dimensions() int { return p.dimensions }

func (p *localProvider) Embed(_ context.Context, texts []string) ([]domain.Embedding, error) {
	out := make([]domain.Embedding, len(texts))
	for i, t := range texts {
		out[i] = domain.Embedding{
			ContentHash: contentHash(t),
			Vector:      p.vectorFor(t),
		}
	}
	return out, nil
}

// vectorFor expands a SHA-256 digest of the text into a dimensions-length
// vector via repeated re-hashing, then L2-normalizes it. Two calls with the
// same text always produce the same vector; unrelated texts produce
// near-orthogonal vectors with high probability.
func (p *localProvider) vectorFor(text string) []float32 {
	vec := make([]float32, p.dimensions)
	seed := sha256.Sum256([]byte(text))
	block := seed
	idx := 0
	for idx < p.dimensions {
		for i := 0; i+4 <= len(block) && idx < p.dimensions; i += 4 {
			u := binary.BigEndian.Uint32(block[i : i+4])
			vec[idx] = float32(int32(u))/float32(1<<31) - 0.5
			idx++
		}
		block = sha256.Sum256(block[:])
	}
	normalize(vec)
	return vec
}
