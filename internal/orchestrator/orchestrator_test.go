package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castingai/internal/completion"
	"castingai/internal/domain"
	"castingai/internal/experiment"
	"castingai/internal/memory/stm"
	"castingai/internal/nlp"
	"castingai/internal/search"
	"castingai/internal/usage"
)

type fakeCompletion struct {
	resp   completion.Response
	err    error
	chunks []completion.Chunk
}

func (f fakeCompletion) Complete(ctx context.Context, req completion.Request) (completion.Response, error) {
	return f.resp, f.err
}

func (f fakeCompletion) Stream(ctx context.Context, req completion.Request) (<-chan completion.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan completion.Chunk, len(f.chunks))
	for _, c := range f.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

type fakeScheduling struct {
	status search.AvailabilityStatus
	score  float64
	err    error
}

func (f fakeScheduling) Check(ctx context.Context, talentID string, start, end *string) (float64, search.AvailabilityStatus, error) {
	return f.score, f.status, f.err
}

func newTestAnalyzer(t *testing.T) *nlp.Analyzer {
	t.Helper()
	analyzer, err := nlp.New(context.Background(), nil)
	require.NoError(t, err)
	return analyzer
}

func TestHandleFallsBackToCompletionForGeneralInquiry(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	stmStore := stm.New(stm.DefaultConfig())
	fake := fakeCompletion{resp: completion.Response{Content: "Hello! How can I help you find talent today?"}}

	o := New(analyzer, stmStore, nil, nil, nil, nil, nil, nil, fake, nil, nil)

	resp, err := o.Handle(context.Background(), Request{Text: "hi there"})

	require.NoError(t, err)
	assert.Equal(t, domain.IntentGeneralInquiry, resp.Intent)
	assert.Equal(t, "Hello! How can I help you find talent today?", resp.Content)
	assert.NotEmpty(t, resp.SessionID)
}

func TestHandleWithoutCompletionReturnsUnavailableMessage(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	stmStore := stm.New(stm.DefaultConfig())

	o := New(analyzer, stmStore, nil, nil, nil, nil, nil, nil, nil, nil, nil)

	resp, err := o.Handle(context.Background(), Request{Text: "hi there"})

	require.NoError(t, err)
	assert.Equal(t, "I'm not able to respond right now; please try again shortly.", resp.Content)
}

func TestHandleMintsSessionIDWhenAbsent(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	stmStore := stm.New(stm.DefaultConfig())
	o := New(analyzer, stmStore, nil, nil, nil, nil, nil, nil, fakeCompletion{}, nil, nil)

	resp1, err := o.Handle(context.Background(), Request{Text: "hi"})
	require.NoError(t, err)
	resp2, err := o.Handle(context.Background(), Request{Text: "hi again"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp1.SessionID)
	assert.NotEqual(t, resp1.SessionID, resp2.SessionID)
}

func TestHandlePreservesSessionIDWhenProvided(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	stmStore := stm.New(stm.DefaultConfig())
	o := New(analyzer, stmStore, nil, nil, nil, nil, nil, nil, fakeCompletion{}, nil, nil)

	resp, err := o.Handle(context.Background(), Request{SessionID: "sess-123", Text: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "sess-123", resp.SessionID)
}

func TestHandleRoutesSchedulingToDelegate(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	stmStore := stm.New(stm.DefaultConfig())
	scheduling := fakeScheduling{status: search.AvailabilityAvailable, score: 0.9}

	o := New(analyzer, stmStore, nil, nil, nil, nil, nil, scheduling, fakeCompletion{}, nil, nil)

	resp, err := o.Handle(context.Background(), Request{Text: "is Jordan Lee available next month"})

	require.NoError(t, err)
	assert.Equal(t, domain.IntentCheckAvailability, resp.Intent)
	assert.Contains(t, resp.Content, "Jordan Lee")
}

func TestHandleRoutesSchedulingAsksForTalentWhenNoNameEntity(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	stmStore := stm.New(stm.DefaultConfig())
	scheduling := fakeScheduling{status: search.AvailabilityAvailable, score: 0.9}

	o := New(analyzer, stmStore, nil, nil, nil, nil, nil, scheduling, fakeCompletion{}, nil, nil)

	resp, err := o.Handle(context.Background(), Request{Text: "check availability please"})

	require.NoError(t, err)
	assert.Equal(t, "Which talent would you like to check?", resp.Content)
}

func TestHandleStreamEmitsDeltaThenTerminalChunk(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	stmStore := stm.New(stm.DefaultConfig())
	fake := fakeCompletion{chunks: []completion.Chunk{
		{Delta: "Hello"},
		{Delta: " there"},
		{Done: true, Final: &completion.Response{Content: "Hello there"}},
	}}

	o := New(analyzer, stmStore, nil, nil, nil, nil, nil, nil, fake, nil, nil)

	stream, err := o.HandleStream(context.Background(), Request{Text: "hi"})
	require.NoError(t, err)

	var deltas []string
	var final *Response
	for chunk := range stream {
		if chunk.Done {
			final = chunk.Final
			break
		}
		deltas = append(deltas, chunk.Delta)
	}

	assert.Equal(t, []string{"Hello", " there"}, deltas)
	require.NotNil(t, final)
	assert.Equal(t, "Hello there", final.Content)
}

func TestHandleRecordsCompletionUsage(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	stmStore := stm.New(stm.DefaultConfig())
	fake := fakeCompletion{resp: completion.Response{Content: "hi", Model: "gpt-4o-mini", InputTokens: 42, OutputTokens: 7}}
	tracker := usage.New(nil)

	o := New(analyzer, stmStore, nil, nil, nil, nil, nil, nil, fake, nil, tracker)

	_, err := o.Handle(context.Background(), Request{Text: "hi there"})
	require.NoError(t, err)

	report := tracker.Report()
	require.Len(t, report.Models, 1)
	assert.Equal(t, "gpt-4o-mini", report.Models[0].Model)
	assert.Equal(t, int64(42), report.Models[0].InputTokens)
	assert.Equal(t, int64(7), report.Models[0].OutputTokens)
}

func TestCriteriaFromEntitiesDerivesSearchCriteria(t *testing.T) {
	entities := []domain.Entity{
		{Type: "gender", Value: "female"},
		{Type: "location", Value: "atlanta"},
		{Type: "language", Value: "spanish"},
		{Type: "age", Value: "28-32"},
		{Type: "skills", Value: "dancing"},
	}

	criteria := criteriaFromEntities(entities)

	assert.Equal(t, "female", criteria.Gender)
	assert.Equal(t, "atlanta", criteria.Location)
	assert.Equal(t, []string{"spanish"}, criteria.Languages)
	assert.Contains(t, criteria.RequiredKeywords, "dancing")
	require.NotNil(t, criteria.AgeRange)
	assert.Equal(t, 28.0, criteria.AgeRange.Min)
	assert.Equal(t, 32.0, criteria.AgeRange.Max)
}

func TestEntityValueReturnsFirstMatchOrEmpty(t *testing.T) {
	entities := []domain.Entity{{Type: "names", Value: "Jordan Lee"}}
	assert.Equal(t, "Jordan Lee", entityValue(entities, "names"))
	assert.Equal(t, "", entityValue(entities, "date"))
}

func TestHandleAssignsAndRecordsExperimentVariant(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	stmStore := stm.New(stm.DefaultConfig())
	fake := fakeCompletion{resp: completion.Response{Content: "hi"}}

	harness := experiment.New(nil)
	require.NoError(t, harness.Register(experiment.Spec{
		Name: "completion_model_variant",
		Variants: []experiment.Variant{
			{Name: "control", Weight: 1.0},
		},
	}))

	o := New(analyzer, stmStore, nil, nil, nil, nil, nil, nil, fake, nil, nil)
	o.UseExperiment("completion_model_variant", harness)

	resp, err := o.Handle(context.Background(), Request{UserID: "user-1", Text: "hi there"})
	require.NoError(t, err)
	assert.Equal(t, "control", resp.Variant)

	stats, err := harness.Stats("completion_model_variant")
	require.NoError(t, err)
	require.Len(t, stats.Variants, 1)
	assert.Equal(t, 1, stats.Variants[0].Samples)
}

func TestHandleLeavesVariantEmptyWithoutExperimentHarness(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	stmStore := stm.New(stm.DefaultConfig())
	fake := fakeCompletion{resp: completion.Response{Content: "hi"}}

	o := New(analyzer, stmStore, nil, nil, nil, nil, nil, nil, fake, nil, nil)

	resp, err := o.Handle(context.Background(), Request{UserID: "user-1", Text: "hi there"})
	require.NoError(t, err)
	assert.Empty(t, resp.Variant)
}

func TestHandleLeavesVariantEmptyWhenExperimentNameUnregistered(t *testing.T) {
	analyzer := newTestAnalyzer(t)
	stmStore := stm.New(stm.DefaultConfig())
	fake := fakeCompletion{resp: completion.Response{Content: "hi"}}

	harness := experiment.New(nil)
	o := New(analyzer, stmStore, nil, nil, nil, nil, nil, nil, fake, nil, nil)
	o.UseExperiment("does_not_exist", harness)

	resp, err := o.Handle(context.Background(), Request{UserID: "user-1", Text: "hi there"})
	require.NoError(t, err)
	assert.Empty(t, resp.Variant)
}

func TestClampBoundsToRange(t *testing.T) {
	assert.Equal(t, 0.3, clamp(0.1, 0.3, 0.95))
	assert.Equal(t, 0.95, clamp(1.0, 0.3, 0.95))
	assert.Equal(t, 0.5, clamp(0.5, 0.3, 0.95))
}
