package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castingai/internal/domain"
	"castingai/internal/embedding"
	"castingai/internal/vectorindex"
	"castingai/internal/vectorindex/flat"
)

type fakeProfiles struct {
	byID map[string]domain.TalentProfile
}

func (f *fakeProfiles) Get(_ context.Context, id string) (domain.TalentProfile, bool, error) {
	p, ok := f.byID[id]
	return p, ok, nil
}

func (f *fakeProfiles) Scan(_ context.Context, _ domain.SearchCriteria) ([]domain.TalentProfile, error) {
	out := make([]domain.TalentProfile, 0, len(f.byID))
	for _, p := range f.byID {
		out = append(out, p)
	}
	return out, nil
}

func TestSearchFusesAndRanks(t *testing.T) {
	provider := embedding.NewLocal(16)
	ctx := context.Background()

	profiles := map[string]domain.TalentProfile{
		"t1": {ID: "t1", Name: "Amara Chen", Age: 28, Gender: "female", Location: "Mumbai", Skills: []string{"action", "hindi"}, Budget: domain.Range{Min: 1000, Max: 5000}},
		"t2": {ID: "t2", Name: "Rahul Singh", Age: 45, Gender: "male", Location: "Delhi", Skills: []string{"drama"}, Budget: domain.Range{Min: 2000, Max: 8000}},
	}
	store := &fakeProfiles{byID: profiles}

	idx := flat.New()
	for id, p := range profiles {
		embs, err := provider.Embed(ctx, []string{p.SearchableText()})
		require.NoError(t, err)
		require.NoError(t, idx.Upsert(ctx, []vectorindex.Record{{ID: id, Vector: embs[0].Vector, Metadata: p.VectorMetadata()}}))
	}

	pipeline := New(provider, idx, store, nil)
	res, err := pipeline.Search(ctx, "action hindi performer", domain.SearchCriteria{
		RequiredKeywords: []string{"action"},
		BudgetRange:      &domain.Range{Min: 1500, Max: 4000},
	}, 10)
	require.NoError(t, err)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, "t1", res.Results[0].TalentID)
	assert.Equal(t, 1, res.Results[0].Rank)
}

func TestSearchBudgetDisjointExcludesCandidate(t *testing.T) {
	provider := embedding.NewLocal(16)
	ctx := context.Background()
	profiles := map[string]domain.TalentProfile{
		"t1": {ID: "t1", Name: "Low Budget Talent", Budget: domain.Range{Min: 100, Max: 200}},
	}
	store := &fakeProfiles{byID: profiles}
	idx := flat.New()
	embs, err := provider.Embed(ctx, []string{profiles["t1"].SearchableText()})
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []vectorindex.Record{{ID: "t1", Vector: embs[0].Vector}}))

	pipeline := New(provider, idx, store, nil)
	res, err := pipeline.Search(ctx, "talent", domain.SearchCriteria{BudgetRange: &domain.Range{Min: 10000, Max: 20000}}, 10)
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}
