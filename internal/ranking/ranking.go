// Package ranking implements the personalization layer (C5) on top of
// hybrid search: per-candidate factor computation, weighted fusion, and
// stable templated explanation text, grounded on spec §4.5 (no teacher
// analogue — the teacher has no ranking/personalization layer, so this is
// new code following the same request-scoped-pipeline shape as
// internal/search).
package ranking

import (
	"fmt"
	"math"
	"sort"
	"time"

	"castingai/internal/domain"
)

// Weights are the default factor weights (sum = 1), §4.5.
type Weights struct {
	Relevance    float64
	Experience   float64
	Popularity   float64
	Recency      float64
	Availability float64
	Chemistry    float64
	Diversity    float64
}

func DefaultWeights() Weights {
	return Weights{
		Relevance:    0.35,
		Experience:   0.15,
		Popularity:   0.10,
		Recency:      0.10,
		Availability: 0.15,
		Chemistry:    0.10,
		Diversity:    0.05,
	}
}

// UserContext carries personalization inputs (§4.5).
type UserContext struct {
	TopGenres          []string
	PreferredLocations []string
	LikedIDs           map[string]bool
	ExistingCastIDs    []string
}

// ChemistryLookup returns the cached/estimated pairwise chemistry between
// two talent ids; symmetric by contract.
type ChemistryLookup interface {
	Chemistry(a, b string) (float64, bool)
}

// Candidate is one hybrid-search result plus the profile data ranking needs.
type Candidate struct {
	Result  domain.RankedResult
	Profile domain.TalentProfile
}

// Engine computes final scores and explanations for a candidate list.
type Engine struct {
	weights   Weights
	chemistry ChemistryLookup
}

func New(chemistry ChemistryLookup) *Engine {
	return &Engine{weights: DefaultWeights(), chemistry: chemistry}
}

// Rank scores every candidate and returns them sorted by final score desc.
func (e *Engine) Rank(candidates []Candidate, user UserContext, now time.Time) []domain.RankedResult {
	out := make([]domain.RankedResult, 0, len(candidates))
	for _, c := range candidates {
		factors := e.computeFactors(c, candidates, user, now)
		final, weighted := e.fuse(factors, c.Result.TalentID, user)

		r := c.Result
		r.CompositeScore = final
		r.SubScores = weighted
		r.Explanation = explain(weighted)
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CompositeScore != out[j].CompositeScore {
			return out[i].CompositeScore > out[j].CompositeScore
		}
		return out[i].TalentID < out[j].TalentID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

type factorSet struct {
	relevance    float64
	experience   float64
	popularity   float64
	recency      float64
	availability float64
	chemistry    float64
	diversity    float64
	preference   *float64
	performance  *float64
}

func (e *Engine) computeFactors(c Candidate, all []Candidate, user UserContext, now time.Time) factorSet {
	f := factorSet{
		relevance:    c.Result.CompositeScore,
		experience:   experienceFactor(c.Profile),
		popularity:   popularityFactor(c.Profile),
		recency:      recencyFactor(c.Profile, now),
		availability: c.Result.SubScores["available"],
		chemistry:    e.chemistryFactor(c.Profile.ID, user.ExistingCastIDs),
		diversity:    diversityFactor(c.Result.DiversityBucket),
	}
	if pref, ok := preferenceFactor(c.Profile, user); ok {
		f.preference = &pref
	}
	if perf, ok := performanceBoostFactor(c.Profile); ok {
		f.performance = &perf
	}
	return f
}

func experienceFactor(p domain.TalentProfile) float64 {
	years := math.Min(float64(p.ExperienceYears)/20, 1)
	awards := math.Min(float64(p.AwardsCount)/10, 1)
	projects := math.Min(float64(len(p.RecentProjects))/15, 1)
	return clamp01(0.5*years + 0.3*awards + 0.2*projects)
}

func popularityFactor(p domain.TalentProfile) float64 {
	followers := math.Min(float64(p.Followers)/1_000_000, 1)
	rating := clamp01(p.Rating / 5)
	return clamp01(0.6*followers + 0.4*rating)
}

// recencyFactor decays by days since the most recent project using the
// piecewise schedule 90/180/365/730 days (§4.5).
func recencyFactor(p domain.TalentProfile, now time.Time) float64 {
	if len(p.RecentProjects) == 0 {
		return 0.2
	}
	latest := p.RecentProjects[0].Date
	for _, proj := range p.RecentProjects {
		if proj.Date.After(latest) {
			latest = proj.Date
		}
	}
	days := now.Sub(latest).Hours() / 24
	switch {
	case days <= 90:
		return 1.0
	case days <= 180:
		return 0.8
	case days <= 365:
		return 0.6
	case days <= 730:
		return 0.4
	default:
		return 0.2
	}
}

func (e *Engine) chemistryFactor(talentID string, castIDs []string) float64 {
	if len(castIDs) == 0 || e.chemistry == nil {
		return 0.5
	}
	var sum float64
	var n int
	for _, other := range castIDs {
		if other == talentID {
			continue
		}
		if v, ok := e.chemistry.Chemistry(talentID, other); ok {
			sum += v
			n++
		} else {
			sum += 0.5
			n++
		}
	}
	if n == 0 {
		return 0.5
	}
	return sum / float64(n)
}

func diversityFactor(bucket string) float64 {
	if bucket == "" || bucket == "unknown" {
		return 0.5
	}
	return 1
}

func preferenceFactor(p domain.TalentProfile, user UserContext) (float64, bool) {
	if len(user.TopGenres) == 0 && len(user.PreferredLocations) == 0 && len(user.LikedIDs) == 0 {
		return 0, false
	}
	score := 0.0
	signals := 0
	if user.LikedIDs[p.ID] {
		score += 1
		signals++
	}
	for _, loc := range user.PreferredLocations {
		if loc == p.Location {
			score += 1
			signals++
			break
		}
	}
	for _, g := range user.TopGenres {
		for _, proj := range p.RecentProjects {
			if proj.Genre == g {
				score += 1
				signals++
				break
			}
		}
	}
	if signals == 0 {
		return 0, true
	}
	return clamp01(score / float64(signals)), true
}

func performanceBoostFactor(p domain.TalentProfile) (float64, bool) {
	if !p.Trending && p.AwardsCount == 0 && p.Rating == 0 {
		return 0, false
	}
	boxOffice := 0.0
	for _, proj := range p.RecentProjects {
		if proj.BoxOffice > boxOffice {
			boxOffice = proj.BoxOffice
		}
	}
	boxOfficeScore := math.Min(boxOffice/100_000_000, 1)
	trendScore := 0.0
	if p.Trending {
		trendScore = 1
	}
	return clamp01(0.4*boxOfficeScore + 0.3*clamp01(p.Rating/5) + 0.3*trendScore), true
}

// fuse applies the weight table, substituting preference/performance-boost
// for equal shares of the two lowest-weighted base factors when present
// (§4.5 "Preference and performance-boost... replace equal shares of the
// two lowest-weighted factors").
func (e *Engine) fuse(f factorSet, _ string, _ UserContext) (float64, map[string]float64) {
	w := e.weights
	weighted := map[string]float64{
		"relevance":    f.relevance * w.Relevance,
		"experience":   f.experience * w.Experience,
		"popularity":   f.popularity * w.Popularity,
		"recency":      f.recency * w.Recency,
		"availability": f.availability * w.Availability,
		"chemistry":    f.chemistry * w.Chemistry,
		"diversity":    f.diversity * w.Diversity,
	}

	type extra struct {
		name  string
		value float64
	}
	var extras []extra
	if f.preference != nil {
		extras = append(extras, extra{"preference", *f.preference})
	}
	if f.performance != nil {
		extras = append(extras, extra{"performance_boost", *f.performance})
	}

	if len(extras) > 0 {
		lowest := lowestWeightedKeys(w, len(extras))
		for i, ex := range extras {
			if i >= len(lowest) {
				break
			}
			replacedKey := lowest[i]
			replacedWeight := baseWeight(w, replacedKey)
			delete(weighted, replacedKey)
			weighted[ex.name] = ex.value * replacedWeight
		}
	}

	var total float64
	for _, v := range weighted {
		total += v
	}
	return clamp01(total), weighted
}

func baseWeight(w Weights, key string) float64 {
	switch key {
	case "relevance":
		return w.Relevance
	case "experience":
		return w.Experience
	case "popularity":
		return w.Popularity
	case "recency":
		return w.Recency
	case "availability":
		return w.Availability
	case "chemistry":
		return w.Chemistry
	case "diversity":
		return w.Diversity
	default:
		return 0
	}
}

// lowestWeightedKeys returns the n factor names with the smallest base
// weight, stable order for a given weight table.
func lowestWeightedKeys(w Weights, n int) []string {
	type kv struct {
		key    string
		weight float64
	}
	all := []kv{
		{"relevance", w.Relevance},
		{"experience", w.Experience},
		{"popularity", w.Popularity},
		{"recency", w.Recency},
		{"availability", w.Availability},
		{"chemistry", w.Chemistry},
		{"diversity", w.Diversity},
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].weight != all[j].weight {
			return all[i].weight < all[j].weight
		}
		return all[i].key < all[j].key
	})
	out := make([]string, 0, n)
	for i := 0; i < n && i < len(all); i++ {
		out = append(out, all[i].key)
	}
	return out
}

var factorPhrases = map[string]string{
	"relevance":         "Strong match with search criteria",
	"experience":        "Seasoned, high-experience talent",
	"popularity":        "Widely recognized and highly followed",
	"recency":           "Recently active in productions",
	"availability":      "Available in the requested window",
	"chemistry":         "Strong chemistry with existing cast",
	"diversity":         "Adds cast diversity",
	"preference":        "Matches your stated preferences",
	"performance_boost": "Award-winning talent",
}

// explain picks the top-3 weighted factors by contribution and emits a
// stable templated string (§4.5 "Explanation text").
func explain(weighted map[string]float64) string {
	type kv struct {
		key   string
		value float64
	}
	all := make([]kv, 0, len(weighted))
	for k, v := range weighted {
		all = append(all, kv{k, v})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].value != all[j].value {
			return all[i].value > all[j].value
		}
		return all[i].key < all[j].key
	})

	n := 3
	if len(all) < n {
		n = len(all)
	}
	phrases := make([]string, 0, n)
	for i := 0; i < n; i++ {
		phrase, ok := factorPhrases[all[i].key]
		if !ok {
			phrase = fmt.Sprintf("Notable %s", all[i].key)
		}
		phrases = append(phrases, phrase)
	}
	out := phrases[0]
	for _, p := range phrases[1:] {
		out += "; " + p
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
