// Package nlp implements intent classification and entity extraction (C7):
// an ordered cascade of regex/keyword scoring, sentence-encoder centroid
// fallback, and a final default, per spec §4.7. The cascade and gazetteer
// tables are new code (the teacher has no NLP component of its own); the
// centroid-similarity stage reuses internal/embedding.Provider the way the
// teacher's sefii.go reuses it for retrieval.
package nlp

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"castingai/internal/domain"
	"castingai/internal/embedding"
	"castingai/internal/vectorindex"
)

const (
	regexFallbackThreshold  = 0.5
	generalInquiryThreshold = 0.2
	historicalEntityWeight  = 0.7
)

var positiveWords = []string{"great", "thanks", "thank you", "perfect", "love it", "awesome", "helpful"}
var negativeWords = []string{"wrong", "bad", "terrible", "not helpful", "broken", "frustrated", "annoyed"}
var urgentWords = []string{"asap", "urgent", "immediately", "right now", "today", "emergency"}

// Analyzer runs the intent/entity cascade.
type Analyzer struct {
	embedder  embedding.Provider
	centroids map[string][]float32
}

// New builds an Analyzer. embedder may be nil, in which case stage (ii) of
// the cascade is skipped (spec §4.7 "if a sentence encoder is available").
func New(ctx context.Context, embedder embedding.Provider) (*Analyzer, error) {
	a := &Analyzer{embedder: embedder}
	if embedder == nil {
		return a, nil
	}
	a.centroids = make(map[string][]float32, len(intentPatterns))
	for _, p := range intentPatterns {
		if len(p.examples) == 0 {
			continue
		}
		vecs, err := embedder.Embed(ctx, p.examples)
		if err != nil {
			return nil, err
		}
		a.centroids[p.intent] = centroid(vecs)
	}
	return a, nil
}

func centroid(vecs []domain.Embedding) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	dim := len(vecs[0].Vector)
	sum := make([]float32, dim)
	for _, v := range vecs {
		for i := 0; i < dim && i < len(v.Vector); i++ {
			sum[i] += v.Vector[i]
		}
	}
	for i := range sum {
		sum[i] /= float32(len(vecs))
	}
	return sum
}

// Analyze implements the spec §4.7 contract: analyze(text, history?) →
// {intent, confidence, entities, sentiment, urgency, domain}.
func (a *Analyzer) Analyze(ctx context.Context, text string, history []domain.Turn) (domain.IntentResult, error) {
	entities := a.extractEntities(text, history)

	bestIntent, bestScore := a.cascadeStageOne(text, entities)

	if bestScore < regexFallbackThreshold && a.embedder != nil && len(a.centroids) > 0 {
		intent, sim, err := a.cascadeStageTwo(ctx, text)
		if err != nil {
			return domain.IntentResult{}, err
		}
		if sim > bestScore {
			bestIntent, bestScore = intent, sim
		}
	}

	if bestScore < generalInquiryThreshold {
		bestIntent, bestScore = string(domain.IntentGeneralInquiry), 0.5
	}

	return domain.IntentResult{
		Intent:     domain.Intent(bestIntent),
		Confidence: bestScore,
		Entities:   entities,
		Sentiment:  sentiment(text),
		Urgency:    urgency(text),
		Domain:     "casting",
	}, nil
}

// cascadeStageOne is step (i): score = 0.4*keyword + 0.3*entity + 0.3*regex
// match ratios, per intent, keeping the best.
func (a *Analyzer) cascadeStageOne(text string, entities []domain.Entity) (string, float64) {
	lower := strings.ToLower(text)
	entityTypes := make(map[string]bool, len(entities))
	for _, e := range entities {
		entityTypes[e.Type] = true
	}

	var bestIntent string
	var bestScore float64
	for _, p := range intentPatterns {
		keywordRatio := matchRatio(p.keywords, func(k string) bool { return strings.Contains(lower, k) })
		entityRatio := matchRatio(p.relevantEntities, func(t string) bool { return entityTypes[t] })
		regexRatio := regexMatchRatio(p.regexes, text)

		score := 0.4*keywordRatio + 0.3*entityRatio + 0.3*regexRatio
		if score > bestScore {
			bestScore = score
			bestIntent = p.intent
		}
	}
	return bestIntent, bestScore
}

// cascadeStageTwo is step (ii): cosine similarity of the utterance to each
// intent's example centroid.
func (a *Analyzer) cascadeStageTwo(ctx context.Context, text string) (string, float64, error) {
	vecs, err := a.embedder.Embed(ctx, []string{text})
	if err != nil {
		return "", 0, err
	}
	query := vecs[0].Vector

	var bestIntent string
	var bestSim float64
	intents := make([]string, 0, len(a.centroids))
	for intent := range a.centroids {
		intents = append(intents, intent)
	}
	sort.Strings(intents)
	for _, intent := range intents {
		sim := vectorindex.Cosine(query, a.centroids[intent])
		if sim > bestSim {
			bestSim = sim
			bestIntent = intent
		}
	}
	return bestIntent, bestSim, nil
}

func matchRatio(items []string, matches func(string) bool) float64 {
	if len(items) == 0 {
		return 0
	}
	hit := 0
	for _, item := range items {
		if matches(item) {
			hit++
		}
	}
	return float64(hit) / float64(len(items))
}

func regexMatchRatio(regexes []*regexp.Regexp, text string) float64 {
	if len(regexes) == 0 {
		return 0
	}
	hit := 0
	for _, re := range regexes {
		if re.MatchString(text) {
			hit++
		}
	}
	return float64(hit) / float64(len(regexes))
}

// extractEntities runs the typed extraction patterns of spec §4.7, then
// merges in historical entities from prior turns at 0.7x weight, resolving
// type conflicts by highest confidence.
func (a *Analyzer) extractEntities(text string, history []domain.Turn) []domain.Entity {
	current := extractFromText(text, 1.0)

	historical := make([]domain.Entity, 0)
	for _, turn := range history {
		historical = append(historical, extractFromText(turn.Content, historicalEntityWeight)...)
	}

	return mergeEntities(append(current, historical...))
}

func extractFromText(text string, weightScale float64) []domain.Entity {
	var entities []domain.Entity
	lower := strings.ToLower(text)

	if m := ageRangeRe.FindStringSubmatch(text); m != nil {
		entities = append(entities, domain.Entity{Type: "age", Value: m[1] + "-" + m[2], Confidence: 0.9 * weightScale})
	} else if m := ageExactRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			entities = append(entities, domain.Entity{Type: "age", Value: strconv.Itoa(n-2) + "-" + strconv.Itoa(n+2), Confidence: 0.85 * weightScale})
		}
	}

	if m := genderRe.FindStringSubmatch(lower); m != nil {
		entities = append(entities, domain.Entity{Type: "gender", Value: normalizeGender(m[1]), Confidence: 0.9 * weightScale})
	}

	for _, loc := range locationGazetteer {
		if strings.Contains(lower, loc) {
			entities = append(entities, domain.Entity{Type: "location", Value: loc, Confidence: 0.8 * weightScale})
		}
	}
	for _, lang := range languageGazetteer {
		if strings.Contains(lower, lang) {
			entities = append(entities, domain.Entity{Type: "language", Value: lang, Confidence: 0.8 * weightScale})
		}
	}
	for _, skill := range skillVerbs {
		if strings.Contains(lower, skill) {
			entities = append(entities, domain.Entity{Type: "skills", Value: skill, Confidence: 0.75 * weightScale})
		}
	}
	for _, level := range experienceLevels {
		if strings.Contains(lower, level) {
			entities = append(entities, domain.Entity{Type: "experience_level", Value: level, Confidence: 0.7 * weightScale})
		}
	}
	for _, role := range roleTypes {
		if strings.Contains(lower, role) {
			entities = append(entities, domain.Entity{Type: "role_type", Value: role, Confidence: 0.75 * weightScale})
		}
	}
	for _, project := range projectTypes {
		if strings.Contains(lower, project) {
			entities = append(entities, domain.Entity{Type: "project_type", Value: project, Confidence: 0.75 * weightScale})
		}
	}

	if m := dateRelativeRe.FindStringSubmatch(lower); m != nil {
		entities = append(entities, domain.Entity{Type: "date", Value: m[1], Confidence: 0.8 * weightScale})
	}
	if m := dateAbsoluteRe.FindStringSubmatch(text); m != nil {
		entities = append(entities, domain.Entity{Type: "date", Value: m[1], Confidence: 0.95 * weightScale})
	}

	for _, m := range namesRe.FindAllStringSubmatch(text, -1) {
		entities = append(entities, domain.Entity{Type: "names", Value: m[1], Confidence: 0.6 * weightScale})
	}

	return entities
}

func normalizeGender(raw string) string {
	switch raw {
	case "male", "man":
		return "male"
	case "female", "woman":
		return "female"
	default:
		return "other"
	}
}

// mergeEntities resolves same-type conflicts by keeping the
// highest-confidence value per (type, value) pair, per spec §4.7.
func mergeEntities(entities []domain.Entity) []domain.Entity {
	best := make(map[string]domain.Entity)
	for _, e := range entities {
		key := e.Type + "|" + e.Value
		if existing, ok := best[key]; !ok || e.Confidence > existing.Confidence {
			best[key] = e
		}
	}
	keys := make([]string, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]domain.Entity, 0, len(keys))
	for _, k := range keys {
		out = append(out, best[k])
	}
	return out
}

func sentiment(text string) float64 {
	lower := strings.ToLower(text)
	score := 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			score++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			score--
		}
	}
	return clamp(float64(score)/3.0, -1, 1)
}

func urgency(text string) float64 {
	lower := strings.ToLower(text)
	hits := 0
	for _, w := range urgentWords {
		if strings.Contains(lower, w) {
			hits++
		}
	}
	return clamp(float64(hits)/2.0, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
