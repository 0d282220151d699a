// Package experiment implements the Experiment Harness (C12): deterministic
// variant assignment, outcome recording, and rollout-readiness statistics,
// structured on the teacher's internal/playground/experiment Repository
// pattern (map-backed spec cache behind simple accessors) but implementing
// spec §4.12's traffic-splitting semantics instead of the teacher's
// dataset/evaluator run planner.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"
	"time"
)

// Variant is one arm of an experiment with its traffic share.
type Variant struct {
	Name   string
	Weight float64 // fraction of traffic, weights across an experiment sum to 1 within epsilon
}

// Spec declares an experiment's variants. Variants are evaluated in
// declaration order during assignment, so order is significant.
type Spec struct {
	Name     string
	Variants []Variant
}

const weightEpsilon = 1e-3

// Validate checks the weights-sum-to-one invariant (§4.12).
func (s Spec) Validate() error {
	if len(s.Variants) == 0 {
		return errors.New("experiment: spec must declare at least one variant")
	}
	var sum float64
	for _, v := range s.Variants {
		if v.Name == "" {
			return errors.New("experiment: variant name must not be empty")
		}
		if v.Weight < 0 {
			return fmt.Errorf("experiment: variant %q has negative weight", v.Name)
		}
		sum += v.Weight
	}
	if math.Abs(sum-1.0) > weightEpsilon {
		return fmt.Errorf("experiment: variant weights sum to %.4f, want 1 ± %.4f", sum, weightEpsilon)
	}
	return nil
}

// Outcome is one recorded result of an assigned variant.
type Outcome struct {
	ExperimentName string
	UserID         string
	Variant        string
	ResponseTime   time.Duration
	Accurate       bool
	RecordedAt     time.Time
}

// VariantStats summarizes the recorded outcomes for one variant.
type VariantStats struct {
	Variant          string
	Samples          int
	MeanResponseTime time.Duration
	Accuracy         float64 // fraction of outcomes with Accurate == true
}

// Stats summarizes an experiment: per-variant stats plus a rollout
// readiness verdict comparing the "control" variant (first declared) to
// each challenger.
type Stats struct {
	ExperimentName  string
	Variants        []VariantStats
	RolloutReady    map[string]bool // challenger variant name -> ready
	SignificantDiff map[string]bool
}

// durableLog is the pluggable append-only sink for recorded outcomes,
// satisfied by clickhouseLog or postgresLog (store.go).
type durableLog interface {
	Append(ctx context.Context, o Outcome) error
	Close() error
}

// ringSize bounds the in-memory ring kept per experiment for fast stats
// without round-tripping to the durable log on every request.
const ringSize = 4096

type ring struct {
	mu     sync.Mutex
	items  []Outcome
	cursor int
}

func (r *ring) add(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) < ringSize {
		r.items = append(r.items, o)
		return
	}
	r.items[r.cursor] = o
	r.cursor = (r.cursor + 1) % ringSize
}

func (r *ring) snapshot() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, len(r.items))
	copy(out, r.items)
	return out
}

// Harness is the C12 experiment engine: deterministic assignment, outcome
// recording, and stats computation.
type Harness struct {
	mu    sync.RWMutex
	specs map[string]Spec
	rings map[string]*ring
	log   durableLog
}

// New creates a Harness. log may be nil, in which case recorded outcomes
// live only in the in-memory ring (suitable for tests and for deployments
// without a configured durable backend).
func New(log durableLog) *Harness {
	return &Harness{
		specs: make(map[string]Spec),
		rings: make(map[string]*ring),
		log:   log,
	}
}

// Register adds or replaces an experiment spec. Returns an error if the
// spec fails its weights-sum-to-one invariant.
func (h *Harness) Register(spec Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.specs[spec.Name] = spec
	if _, ok := h.rings[spec.Name]; !ok {
		h.rings[spec.Name] = &ring{}
	}
	return nil
}

// Assign deterministically maps (userID, experimentName) to one of the
// experiment's declared variants (§4.12 "Assignment algorithm"). The same
// pair always yields the same variant, including across process restarts,
// since the hash is a pure function of its inputs.
func (h *Harness) Assign(userID, experimentName string) (string, error) {
	h.mu.RLock()
	spec, ok := h.specs[experimentName]
	h.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("experiment: unknown experiment %q", experimentName)
	}

	p := assignmentFraction(userID, experimentName)
	var cumulative float64
	for _, v := range spec.Variants {
		cumulative += v.Weight
		if p < cumulative || cumulative >= 1.0-weightEpsilon {
			return v.Name, nil
		}
	}
	// Floating point rounding can leave p just past the last cumulative
	// weight; fall back to the last declared variant.
	return spec.Variants[len(spec.Variants)-1].Name, nil
}

// assignmentFraction computes h(user_id || "_" || experiment_name) mod
// 10000 / 10000, a deterministic value in [0, 1).
func assignmentFraction(userID, experimentName string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	_, _ = h.Write([]byte("_"))
	_, _ = h.Write([]byte(experimentName))
	return float64(h.Sum64()%10000) / 10000.0
}

// Record appends an outcome to the in-memory ring and, if configured, the
// durable log. The durable write is fire-and-forget from the caller's
// perspective: a logging failure never blocks or fails the request that
// produced the outcome, matching the orchestrator's own writeback pattern.
func (h *Harness) Record(ctx context.Context, o Outcome, logFailure func(error)) {
	h.mu.RLock()
	r, ok := h.rings[o.ExperimentName]
	h.mu.RUnlock()
	if !ok {
		h.mu.Lock()
		r = &ring{}
		h.rings[o.ExperimentName] = r
		h.mu.Unlock()
	}
	r.add(o)

	if h.log == nil {
		return
	}
	if err := h.log.Append(ctx, o); err != nil && logFailure != nil {
		logFailure(err)
	}
}

// significanceThreshold is the practical-significance bar (§4.12): a
// challenger's mean must differ from control's by at least this fraction
// to be reported as significant. This is deliberately not a statistical
// test (t-test, bootstrap, etc.) — the spec calls for "mean + 5% practical
// threshold", with real tests pluggable later.
const significanceThreshold = 0.05

const (
	minControlSamples   = 500
	minChallengerSample = 100
	minChallengerAcc    = 0.90
)

// Stats computes per-variant statistics and rollout readiness for an
// experiment, treating the first declared variant as control and every
// other variant as a challenger (§4.12 "Rollout readiness").
func (h *Harness) Stats(experimentName string) (Stats, error) {
	h.mu.RLock()
	spec, ok := h.specs[experimentName]
	r := h.rings[experimentName]
	h.mu.RUnlock()
	if !ok {
		return Stats{}, fmt.Errorf("experiment: unknown experiment %q", experimentName)
	}

	var outcomes []Outcome
	if r != nil {
		outcomes = r.snapshot()
	}

	byVariant := make(map[string][]Outcome, len(spec.Variants))
	for _, o := range outcomes {
		byVariant[o.Variant] = append(byVariant[o.Variant], o)
	}

	stats := Stats{
		ExperimentName:  experimentName,
		RolloutReady:    make(map[string]bool),
		SignificantDiff: make(map[string]bool),
	}
	for _, v := range spec.Variants {
		stats.Variants = append(stats.Variants, variantStats(v.Name, byVariant[v.Name]))
	}
	sort.Slice(stats.Variants, func(i, j int) bool {
		return indexOfVariant(spec, stats.Variants[i].Variant) < indexOfVariant(spec, stats.Variants[j].Variant)
	})

	if len(stats.Variants) == 0 {
		return stats, nil
	}
	control := stats.Variants[0]
	for _, challenger := range stats.Variants[1:] {
		ready, significant := rolloutReady(control, challenger)
		stats.RolloutReady[challenger.Variant] = ready
		stats.SignificantDiff[challenger.Variant] = significant
	}
	return stats, nil
}

func indexOfVariant(spec Spec, name string) int {
	for i, v := range spec.Variants {
		if v.Name == name {
			return i
		}
	}
	return len(spec.Variants)
}

func variantStats(name string, outcomes []Outcome) VariantStats {
	vs := VariantStats{Variant: name, Samples: len(outcomes)}
	if len(outcomes) == 0 {
		return vs
	}
	var totalLatency time.Duration
	var accurate int
	for _, o := range outcomes {
		totalLatency += o.ResponseTime
		if o.Accurate {
			accurate++
		}
	}
	vs.MeanResponseTime = totalLatency / time.Duration(len(outcomes))
	vs.Accuracy = float64(accurate) / float64(len(outcomes))
	return vs
}

// rolloutReady evaluates the §4.12 readiness rule plus a practical
// significance check on response time.
func rolloutReady(control, challenger VariantStats) (ready bool, significant bool) {
	if control.Samples == 0 || challenger.Samples == 0 {
		return false, false
	}
	controlMean := float64(control.MeanResponseTime)
	challengerMean := float64(challenger.MeanResponseTime)
	if controlMean > 0 {
		significant = math.Abs(controlMean-challengerMean)/controlMean >= significanceThreshold
	}

	ready = control.Samples >= minControlSamples &&
		challenger.Samples >= minChallengerSample &&
		challengerMean < controlMean &&
		challenger.Accuracy >= minChallengerAcc
	return ready, significant
}

// Close releases the durable log's connection, if any.
func (h *Harness) Close() error {
	if h.log == nil {
		return nil
	}
	return h.log.Close()
}
