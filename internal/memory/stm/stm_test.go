package stm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castingai/internal/domain"
)

func TestAppendEvictsLowestImportanceAtCapacity(t *testing.T) {
	s := New(Config{MaxTurns: 5, TTL: 0})
	s.Append("sess", domain.Turn{Content: "a"}, 0.5)
	s.Append("sess", domain.Turn{Content: "b"}, 0.1)
	s.Append("sess", domain.Turn{Content: "c"}, 0.9)
	s.Append("sess", domain.Turn{Content: "e"}, 0.7)
	s.Append("sess", domain.Turn{Content: "f"}, 0.8)
	s.Append("sess", domain.Turn{Content: "d"}, 0.6)

	turns := s.Get("sess", 0)
	require.Len(t, turns, 5)
	for _, tn := range turns {
		assert.NotEqual(t, "b", tn.Content)
	}
}

func TestConsolidateReturnsAndClearsAboveThreshold(t *testing.T) {
	s := New(DefaultConfig())
	s.Append("sess", domain.Turn{Content: "low"}, 0.3)
	s.Append("sess", domain.Turn{Content: "high"}, 0.8)

	promoted := s.Consolidate("sess", 0.6)
	require.Len(t, promoted, 1)
	assert.Equal(t, "high", promoted[0].Content)

	remaining := s.Get("sess", 0)
	require.Len(t, remaining, 1)
	assert.Equal(t, "low", remaining[0].Content)
}

func TestOccupancyTracksCurrentSize(t *testing.T) {
	s := New(DefaultConfig())
	assert.Equal(t, 0, s.Occupancy("sess"))
	s.Append("sess", domain.Turn{Content: "a"}, 0.5)
	assert.Equal(t, 1, s.Occupancy("sess"))
}
