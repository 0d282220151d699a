// Package usage implements per-model token and cost accounting, a feature
// the distillation dropped but the original service exposed at
// `GET /ai/usage/report` (python-ai-service/app/main_enhanced.py's
// token-usage-report endpoint, backed by a `claude_service.token_tracker`
// not itself kept in the retrieved source — this package reconstructs its
// contract: per-model running totals plus a dollar estimate, rather than
// porting code that wasn't retrieved).
package usage

import (
	"sort"
	"sync"
	"time"
)

// Pricing is the per-model dollar cost per 1,000 tokens, split by
// prompt/completion since most providers price them differently.
type Pricing struct {
	InputPerThousand  float64
	OutputPerThousand float64
}

// DefaultPricing is a conservative placeholder table covering the two
// wired completion providers (config.CompletionConfig.Provider). New accepts
// a different table; cmd/castingai-server passes this one, and no config
// setting overrides it.
func DefaultPricing() map[string]Pricing {
	return map[string]Pricing{
		"claude-sonnet-4-5":      {InputPerThousand: 0.003, OutputPerThousand: 0.015},
		"claude-haiku-4-5":       {InputPerThousand: 0.0008, OutputPerThousand: 0.004},
		"gpt-4o":                 {InputPerThousand: 0.0025, OutputPerThousand: 0.01},
		"gpt-4o-mini":            {InputPerThousand: 0.00015, OutputPerThousand: 0.0006},
		"text-embedding-3-small": {InputPerThousand: 0.00002, OutputPerThousand: 0},
	}
}

// modelTotals accumulates counts for one model.
type modelTotals struct {
	Requests         int
	InputTokens      int64
	OutputTokens     int64
	EstimatedCostUSD float64
}

// ModelReport is one model's line in a usage report.
type ModelReport struct {
	Model            string
	Requests         int
	InputTokens      int64
	OutputTokens     int64
	EstimatedCostUSD float64
}

// Report is the full `GET /ai/usage/report` payload.
type Report struct {
	GeneratedAt       time.Time
	Models            []ModelReport
	TotalRequests     int
	TotalInputTokens  int64
	TotalOutputTokens int64
	TotalCostUSD      float64
}

// Tracker accumulates token usage across completion calls. Safe for
// concurrent use: the orchestrator's fallback route, streamed or not,
// records through one shared tracker instance. Script analysis's
// description calls are not recorded.
type Tracker struct {
	mu      sync.Mutex
	totals  map[string]*modelTotals
	pricing map[string]Pricing
	now     func() time.Time
}

// New creates a Tracker. pricing may be nil, in which case DefaultPricing
// is used; pass an empty non-nil map to disable cost estimation entirely.
func New(pricing map[string]Pricing) *Tracker {
	if pricing == nil {
		pricing = DefaultPricing()
	}
	return &Tracker{
		totals:  make(map[string]*modelTotals),
		pricing: pricing,
		now:     time.Now,
	}
}

// Record adds one completion call's token counts to the model's running
// total.
func (t *Tracker) Record(model string, inputTokens, outputTokens int) {
	if model == "" {
		model = "unknown"
	}
	cost := t.estimateCost(model, inputTokens, outputTokens)

	t.mu.Lock()
	defer t.mu.Unlock()
	mt, ok := t.totals[model]
	if !ok {
		mt = &modelTotals{}
		t.totals[model] = mt
	}
	mt.Requests++
	mt.InputTokens += int64(inputTokens)
	mt.OutputTokens += int64(outputTokens)
	mt.EstimatedCostUSD += cost
}

func (t *Tracker) estimateCost(model string, inputTokens, outputTokens int) float64 {
	price, ok := t.pricing[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/1000.0*price.InputPerThousand + float64(outputTokens)/1000.0*price.OutputPerThousand
}

// Report snapshots the current totals, sorted by model name for a stable
// response body.
func (t *Tracker) Report() Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	report := Report{GeneratedAt: t.now()}
	names := make([]string, 0, len(t.totals))
	for name := range t.totals {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		mt := t.totals[name]
		report.Models = append(report.Models, ModelReport{
			Model:            name,
			Requests:         mt.Requests,
			InputTokens:      mt.InputTokens,
			OutputTokens:     mt.OutputTokens,
			EstimatedCostUSD: mt.EstimatedCostUSD,
		})
		report.TotalRequests += mt.Requests
		report.TotalInputTokens += mt.InputTokens
		report.TotalOutputTokens += mt.OutputTokens
		report.TotalCostUSD += mt.EstimatedCostUSD
	}
	return report
}
