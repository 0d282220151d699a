package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castingai/internal/domain"
)

func TestRankOrdersByFinalScoreDesc(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := New(nil)

	candidates := []Candidate{
		{
			Result:  domain.RankedResult{TalentID: "a", CompositeScore: 0.9, SubScores: map[string]float64{"available": 0.8}},
			Profile: domain.TalentProfile{ID: "a", ExperienceYears: 15, AwardsCount: 3, Rating: 4.5, Followers: 500_000},
		},
		{
			Result:  domain.RankedResult{TalentID: "b", CompositeScore: 0.2, SubScores: map[string]float64{"available": 0.2}},
			Profile: domain.TalentProfile{ID: "b", ExperienceYears: 1},
		},
	}

	ranked := e.Rank(candidates, UserContext{}, now)
	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].TalentID)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.NotEmpty(t, ranked[0].Explanation)
}

func TestRecencyFactorDecaysPiecewise(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := domain.TalentProfile{RecentProjects: []domain.Project{{Date: now.AddDate(0, 0, -10)}}}
	stale := domain.TalentProfile{RecentProjects: []domain.Project{{Date: now.AddDate(-3, 0, 0)}}}

	assert.Equal(t, 1.0, recencyFactor(fresh, now))
	assert.Equal(t, 0.2, recencyFactor(stale, now))
}

func TestExplainIsStableForSameFactors(t *testing.T) {
	weighted := map[string]float64{"relevance": 0.3, "experience": 0.1, "popularity": 0.05}
	a := explain(weighted)
	b := explain(weighted)
	assert.Equal(t, a, b)
}
