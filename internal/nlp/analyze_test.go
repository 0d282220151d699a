package nlp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castingai/internal/domain"
)

func TestAnalyzeClassifiesSearchTalentFromKeywordsAndEntities(t *testing.T) {
	a, err := New(context.Background(), nil)
	require.NoError(t, err)

	result, err := a.Analyze(context.Background(), "looking for an actor in Atlanta who speaks Spanish", nil)
	require.NoError(t, err)

	assert.Equal(t, domain.IntentSearchTalent, result.Intent)
	assert.Greater(t, result.Confidence, 0.0)

	var hasLocation, hasLanguage bool
	for _, e := range result.Entities {
		if e.Type == "location" && e.Value == "atlanta" {
			hasLocation = true
		}
		if e.Type == "language" && e.Value == "spanish" {
			hasLanguage = true
		}
	}
	assert.True(t, hasLocation)
	assert.True(t, hasLanguage)
}

func TestAnalyzeFallsBackToGeneralInquiryBelowThreshold(t *testing.T) {
	a, err := New(context.Background(), nil)
	require.NoError(t, err)

	result, err := a.Analyze(context.Background(), "xyzzy plugh quux", nil)
	require.NoError(t, err)

	assert.Equal(t, domain.IntentGeneralInquiry, result.Intent)
	assert.Equal(t, 0.5, result.Confidence)
}

func TestExtractEntitiesWeightsHistoricalEntitiesLower(t *testing.T) {
	a, err := New(context.Background(), nil)
	require.NoError(t, err)

	history := []domain.Turn{{Content: "I need someone in Atlanta"}}
	entities := a.extractEntities("find me a match", history)

	require.Len(t, entities, 1)
	assert.Equal(t, "location", entities[0].Type)
	assert.InDelta(t, 0.8*historicalEntityWeight, entities[0].Confidence, 1e-9)
}

func TestMergeEntitiesKeepsHighestConfidenceOnConflict(t *testing.T) {
	merged := mergeEntities([]domain.Entity{
		{Type: "location", Value: "atlanta", Confidence: 0.5},
		{Type: "location", Value: "atlanta", Confidence: 0.9},
	})
	require.Len(t, merged, 1)
	assert.Equal(t, 0.9, merged[0].Confidence)
}

func TestSentimentAndUrgencyHeuristics(t *testing.T) {
	assert.Greater(t, sentiment("this was great, thanks so much"), 0.0)
	assert.Less(t, sentiment("this was terrible and broken"), 0.0)
	assert.Greater(t, urgency("I need this done asap, it's urgent"), 0.0)
}
