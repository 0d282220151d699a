// Package search implements the hybrid search pipeline (C4): semantic
// retrieval fanning out to C1/C3, keyword overlay, attribute filtering,
// availability, budget overlap, and rank fusion, with diversity injection
// and fail-soft degradation. The pipeline/stage shape follows the teacher's
// request-scoped step functions (internal/agentd/run.go's app methods);
// the fusion math itself is new code grounded directly on spec §4.4, which
// has no analogue in the teacher.
package search

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"castingai/internal/cache"
	"castingai/internal/domain"
	"castingai/internal/embedding"
	"castingai/internal/vectorindex"
)

// ProfileStore is the out-of-scope external collaborator that owns
// TalentProfile records; used as the fallback scan path when C1/C3 degrade.
type ProfileStore interface {
	Get(ctx context.Context, id string) (domain.TalentProfile, bool, error)
	Scan(ctx context.Context, criteria domain.SearchCriteria) ([]domain.TalentProfile, error)
}

// AvailabilityProvider is the out-of-scope external scheduling collaborator.
type AvailabilityStatus string

const (
	AvailabilityAvailable AvailabilityStatus = "available"
	AvailabilityUnknown   AvailabilityStatus = "unknown"
	AvailabilityBusy      AvailabilityStatus = "busy"
)

type AvailabilityProvider interface {
	Check(ctx context.Context, talentID string, start, end *string) (score float64, status AvailabilityStatus, err error)
}

// Weights are the stage-6 fusion weights, default (0.6, 0.2, 0.2) per §4.4.
type Weights struct {
	Semantic float64
	Keyword  float64
	Attr     float64
}

// DefaultWeights returns spec's default fusion weights.
func DefaultWeights() Weights { return Weights{Semantic: 0.6, Keyword: 0.2, Attr: 0.2} }

// Degraded signal names, reported so callers/tests can assert degradation.
const (
	DegradedSemantic     domain.DegradedSignal = "semantic"
	DegradedVectorIndex  domain.DegradedSignal = "vector_index"
	DegradedAvailability domain.DegradedSignal = "availability"
	DegradedAttribute    domain.DegradedSignal = "attribute"
)

// Result is the outcome of a Search call: ranked candidates plus which
// signals degraded, per §4.4 failure semantics.
type Result struct {
	Results  []domain.RankedResult
	Degraded []domain.DegradedSignal
	Profiles map[string]domain.TalentProfile
}

// Pipeline runs the six-stage hybrid search.
type Pipeline struct {
	embed        embedding.Provider
	index        vectorindex.Index
	profiles     ProfileStore
	availability AvailabilityProvider
	weights      Weights
	semanticK    int
	resultCache  *cache.VectorSearchCache
}

// UseCache wires C2's vector-search cache in: repeated queries against an
// unchanged index are served from the cache instead of re-running all six
// stages (§4.2, §4.4). A nil cache is a no-op.
func (p *Pipeline) UseCache(resultCache *cache.VectorSearchCache) {
	p.resultCache = resultCache
}

// New builds a Pipeline. availability may be nil (degrades to 0.5 per §4.4).
func New(embed embedding.Provider, index vectorindex.Index, profiles ProfileStore, availability AvailabilityProvider) *Pipeline {
	return &Pipeline{
		embed:        embed,
		index:        index,
		profiles:     profiles,
		availability: availability,
		weights:      DefaultWeights(),
		semanticK:    100,
	}
}

type candidate struct {
	id             string
	semanticScore  float64
	keywordScore   float64
	attributeScore float64
	availScore     float64
	budgetScore    float64
	budgetReject   bool
	profile        domain.TalentProfile
	haveProfile    bool
}

// Search runs the pipeline for a text query plus structured criteria.
func (p *Pipeline) Search(ctx context.Context, textQuery string, criteria domain.SearchCriteria, k int) (Result, error) {
	var cacheKey string
	if p.resultCache != nil {
		cacheKey = searchCacheKey(textQuery, criteria, k)
		if page, ok := p.resultCache.Get(ctx, cacheKey); ok {
			return Result{Results: page.Results, Profiles: page.Profiles}, nil
		}
	}

	var degraded []domain.DegradedSignal
	candidates, err := p.stage1Semantic(ctx, textQuery, criteria, &degraded)
	if err != nil {
		return Result{}, err
	}

	p.stage2Keyword(ctx, candidates, criteria)
	p.stage3Attribute(candidates, criteria, &degraded)
	p.stage4Availability(ctx, candidates, criteria, &degraded)
	p.stage5Budget(candidates, criteria)

	ranked := p.stage6Fuse(candidates)
	ranked = p.injectDiversity(ranked, candidates)

	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}

	profiles := make(map[string]domain.TalentProfile, len(candidates))
	for _, c := range candidates {
		if c.haveProfile {
			profiles[c.id] = c.profile
		}
	}

	// Only cache clean pages: a degraded result reflects a transient
	// provider/index outage, not the steady-state answer for this query.
	if p.resultCache != nil && len(degraded) == 0 {
		p.resultCache.Set(ctx, cacheKey, cache.CachedSearchPage{Results: ranked, Profiles: profiles})
	}

	return Result{Results: ranked, Degraded: degraded, Profiles: profiles}, nil
}

// searchCacheKey fingerprints a query: the free-text part plus every
// structured criterion and the requested page size. Criteria marshal
// deterministically because domain.SearchCriteria has no unordered maps.
func searchCacheKey(textQuery string, criteria domain.SearchCriteria, k int) string {
	criteriaJSON, _ := json.Marshal(criteria)
	return textQuery + "|" + strconv.Itoa(k) + "|" + string(criteriaJSON)
}

// stage1Semantic embeds the query, retrieves top-k1 from the vector index
// with pre-derived metadata filters, and min-max normalizes scores to [0,1].
// Falls back to a profile-store scan on provider or index failure (§4.4.1,
// §4.4 failure semantics).
func (p *Pipeline) stage1Semantic(ctx context.Context, textQuery string, criteria domain.SearchCriteria, degraded *[]domain.DegradedSignal) (map[string]*candidate, error) {
	filter := deriveFilter(criteria)
	candidates := make(map[string]*candidate)

	embeddings, err := p.embed.Embed(ctx, []string{textQuery})
	if err != nil || len(embeddings) == 0 {
		log.Warn().Err(err).Msg("search: embedding provider unavailable, degrading stage 1")
		*degraded = append(*degraded, DegradedSemantic)
		return p.fallbackScan(ctx, criteria)
	}

	matches, err := p.index.Search(ctx, embeddings[0].Vector, p.semanticK, filter)
	if err != nil {
		log.Warn().Err(err).Msg("search: vector index unavailable, degrading stage 1")
		*degraded = append(*degraded, DegradedVectorIndex)
		return p.fallbackScan(ctx, criteria)
	}

	if len(matches) == 0 {
		return candidates, nil
	}

	lo, hi := matches[0].Score, matches[0].Score
	for _, m := range matches {
		if m.Score < lo {
			lo = m.Score
		}
		if m.Score > hi {
			hi = m.Score
		}
	}
	span := hi - lo

	for _, m := range matches {
		score := 1.0
		if span > 0 {
			score = (m.Score - lo) / span
		}
		candidates[m.ID] = &candidate{id: m.ID, semanticScore: score}
	}
	p.hydrateProfiles(ctx, candidates)
	return candidates, nil
}

func (p *Pipeline) fallbackScan(ctx context.Context, criteria domain.SearchCriteria) (map[string]*candidate, error) {
	if p.profiles == nil {
		return map[string]*candidate{}, nil
	}
	profiles, err := p.profiles.Scan(ctx, criteria)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*candidate, len(profiles))
	for _, pr := range profiles {
		out[pr.ID] = &candidate{id: pr.ID, semanticScore: 0.5, profile: pr, haveProfile: true}
	}
	return out, nil
}

func (p *Pipeline) hydrateProfiles(ctx context.Context, candidates map[string]*candidate) {
	if p.profiles == nil {
		return
	}
	for _, c := range candidates {
		pr, ok, err := p.profiles.Get(ctx, c.id)
		if err != nil || !ok {
			continue
		}
		c.profile = pr
		c.haveProfile = true
	}
}

// stage2Keyword scores required-keyword occurrence ratio against each
// candidate's canonical searchable text (§4.4.2).
func (p *Pipeline) stage2Keyword(_ context.Context, candidates map[string]*candidate, criteria domain.SearchCriteria) {
	denom := len(criteria.RequiredKeywords)
	if denom == 0 {
		for _, c := range candidates {
			c.keywordScore = 1
		}
		return
	}
	for _, c := range candidates {
		if !c.haveProfile {
			c.keywordScore = 0
			continue
		}
		text := strings.ToLower(c.profile.SearchableText())
		matches := 0
		for _, kw := range criteria.RequiredKeywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				matches++
			}
		}
		c.keywordScore = float64(matches) / float64(denom)
	}
}

// stage3Attribute drops candidates outside a requested age or height range,
// scores the rest by distance from the range midpoint, and halves the score
// on a location mismatch (§4.4.3).
func (p *Pipeline) stage3Attribute(candidates map[string]*candidate, criteria domain.SearchCriteria, degraded *[]domain.DegradedSignal) {
	for _, c := range candidates {
		if !c.haveProfile {
			c.attributeScore = 0.5
			*degraded = append(*degraded, DegradedAttribute)
			continue
		}
		score := 1.0
		if r := criteria.AgeRange; r != nil {
			age := float64(c.profile.Age)
			if age < r.Min || age > r.Max {
				delete(candidates, c.id)
				continue
			}
			score *= rangeProximity(age, *r)
		}
		if r := criteria.HeightRangeCM; r != nil {
			if c.profile.HeightCM < r.Min || c.profile.HeightCM > r.Max {
				delete(candidates, c.id)
				continue
			}
			score *= rangeProximity(c.profile.HeightCM, *r)
		}
		if criteria.Location != "" && !strings.EqualFold(criteria.Location, c.profile.Location) {
			score *= 0.5
		}
		c.attributeScore = score
	}
}

// rangeProximity returns 1.0 at the range midpoint, shrinking linearly to 0
// at the range edges and beyond.
func rangeProximity(value float64, r domain.Range) float64 {
	mid := (r.Min + r.Max) / 2
	half := (r.Max - r.Min) / 2
	if half <= 0 {
		if value == mid {
			return 1
		}
		return 0
	}
	dist := value - mid
	if dist < 0 {
		dist = -dist
	}
	score := 1 - dist/half
	if score < 0 {
		score = 0
	}
	return score
}

// stage4Availability consults the external provider when configured and an
// availability window was requested; missing data defaults to 0.5 (§4.4.4).
func (p *Pipeline) stage4Availability(ctx context.Context, candidates map[string]*candidate, criteria domain.SearchCriteria, degraded *[]domain.DegradedSignal) {
	if p.availability == nil || criteria.AvailabilityStart == nil || criteria.AvailabilityEnd == nil {
		for _, c := range candidates {
			c.availScore = 0.5
		}
		return
	}
	start := criteria.AvailabilityStart.Format("2006-01-02")
	end := criteria.AvailabilityEnd.Format("2006-01-02")
	for _, c := range candidates {
		score, _, err := p.availability.Check(ctx, c.id, &start, &end)
		if err != nil {
			c.availScore = 0.5
			*degraded = append(*degraded, DegradedAvailability)
			continue
		}
		c.availScore = score
	}
}

// stage5Budget computes budget overlap ratio and flags disjoint ranges for
// rejection (§4.4.5).
func (p *Pipeline) stage5Budget(candidates map[string]*candidate, criteria domain.SearchCriteria) {
	if criteria.BudgetRange == nil {
		for _, c := range candidates {
			c.budgetScore = 1
		}
		return
	}
	ask := *criteria.BudgetRange
	for _, c := range candidates {
		if !c.haveProfile {
			c.budgetScore = 0.5
			continue
		}
		have := c.profile.Budget
		if have.Disjoint(ask) {
			c.budgetReject = true
			continue
		}
		overlap := have.Overlap(ask)
		denom := have.Max - have.Min
		if askSpan := ask.Max - ask.Min; askSpan < denom {
			denom = askSpan
		}
		if denom <= 0 {
			c.budgetScore = 1
			continue
		}
		c.budgetScore = overlap / denom
	}
}

// stage6Fuse composes the final weighted score and sorts with the
// tie-break order semantic desc, keyword desc, id asc (§4.4.6, "Tie-breaks").
func (p *Pipeline) stage6Fuse(candidates map[string]*candidate) []domain.RankedResult {
	out := make([]domain.RankedResult, 0, len(candidates))
	for _, c := range candidates {
		if c.budgetReject {
			continue
		}
		attrMean := (c.attributeScore + c.availScore + c.budgetScore) / 3
		composite := p.weights.Semantic*c.semanticScore + p.weights.Keyword*c.keywordScore + p.weights.Attr*attrMean
		out = append(out, domain.RankedResult{
			TalentID:       c.id,
			CompositeScore: composite,
			SubScores: map[string]float64{
				"semantic":  c.semanticScore,
				"keyword":   c.keywordScore,
				"attribute": c.attributeScore,
				"available": c.availScore,
				"budget":    c.budgetScore,
			},
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CompositeScore != out[j].CompositeScore {
			return out[i].CompositeScore > out[j].CompositeScore
		}
		si, sj := out[i].SubScores["semantic"], out[j].SubScores["semantic"]
		if si != sj {
			return si > sj
		}
		ki, kj := out[i].SubScores["keyword"], out[j].SubScores["keyword"]
		if ki != kj {
			return ki > kj
		}
		return out[i].TalentID < out[j].TalentID
	})

	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// injectDiversity walks the sorted list, dropping over-represented
// (age-bucket, gender, location) combinations unless the composite score is
// exceptional (§4.4 "Diversity injection").
func (p *Pipeline) injectDiversity(ranked []domain.RankedResult, candidates map[string]*candidate) []domain.RankedResult {
	counts := make(map[string]int)
	out := make([]domain.RankedResult, 0, len(ranked))
	for _, r := range ranked {
		c, ok := candidates[r.TalentID]
		bucket := "unknown"
		if ok && c.haveProfile {
			bucket = diversityBucket(c.profile)
		}
		if counts[bucket] < 2 || r.CompositeScore > 0.9 {
			r.DiversityBucket = bucket
			counts[bucket]++
			out = append(out, r)
		}
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func diversityBucket(t domain.TalentProfile) string {
	ageBucket := t.Age / 10
	return strings.Join([]string{
		ageBucketLabel(ageBucket), strings.ToLower(t.Gender), strings.ToLower(t.Location),
	}, "|")
}

func ageBucketLabel(decade int) string {
	switch decade {
	case 0, 1:
		return "under20"
	case 2:
		return "20s"
	case 3:
		return "30s"
	case 4:
		return "40s"
	case 5:
		return "50s"
	default:
		return "60plus"
	}
}

func deriveFilter(criteria domain.SearchCriteria) vectorindex.Filter {
	f := vectorindex.Filter{}
	if criteria.Gender != "" {
		f["gender"] = criteria.Gender
	}
	if criteria.Location != "" {
		f["location"] = criteria.Location
	}
	return f
}
