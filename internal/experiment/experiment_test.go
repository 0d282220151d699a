package experiment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpec() Spec {
	return Spec{
		Name: "greeting_prompt_v2",
		Variants: []Variant{
			{Name: "control", Weight: 0.5},
			{Name: "challenger", Weight: 0.5},
		},
	}
}

func TestRegisterRejectsWeightsNotSummingToOne(t *testing.T) {
	h := New(nil)
	err := h.Register(Spec{
		Name:     "bad",
		Variants: []Variant{{Name: "a", Weight: 0.5}, {Name: "b", Weight: 0.3}},
	})
	assert.Error(t, err)
}

func TestRegisterAcceptsWeightsWithinEpsilon(t *testing.T) {
	h := New(nil)
	err := h.Register(Spec{
		Name:     "ok",
		Variants: []Variant{{Name: "a", Weight: 0.3334}, {Name: "b", Weight: 0.6667}},
	})
	assert.NoError(t, err)
}

func TestAssignIsDeterministicAcrossCalls(t *testing.T) {
	h := New(nil)
	require.NoError(t, h.Register(testSpec()))

	v1, err := h.Assign("user-42", "greeting_prompt_v2")
	require.NoError(t, err)
	v2, err := h.Assign("user-42", "greeting_prompt_v2")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
}

func TestAssignDistributesAcrossVariants(t *testing.T) {
	h := New(nil)
	require.NoError(t, h.Register(testSpec()))

	counts := map[string]int{}
	for i := 0; i < 500; i++ {
		userID := time.Duration(i).String() + "-user"
		v, err := h.Assign(userID, "greeting_prompt_v2")
		require.NoError(t, err)
		counts[v]++
	}

	assert.Greater(t, counts["control"], 0)
	assert.Greater(t, counts["challenger"], 0)
}

func TestAssignUnknownExperimentReturnsError(t *testing.T) {
	h := New(nil)
	_, err := h.Assign("user-1", "does_not_exist")
	assert.Error(t, err)
}

func TestRecordAccumulatesIntoStats(t *testing.T) {
	h := New(nil)
	require.NoError(t, h.Register(testSpec()))

	for i := 0; i < 10; i++ {
		h.Record(context.Background(), Outcome{
			ExperimentName: "greeting_prompt_v2",
			UserID:         "u",
			Variant:        "control",
			ResponseTime:   100 * time.Millisecond,
			Accurate:       true,
			RecordedAt:     time.Now(),
		}, nil)
	}
	for i := 0; i < 5; i++ {
		h.Record(context.Background(), Outcome{
			ExperimentName: "greeting_prompt_v2",
			UserID:         "u",
			Variant:        "challenger",
			ResponseTime:   80 * time.Millisecond,
			Accurate:       true,
			RecordedAt:     time.Now(),
		}, nil)
	}

	stats, err := h.Stats("greeting_prompt_v2")
	require.NoError(t, err)
	require.Len(t, stats.Variants, 2)
	assert.Equal(t, "control", stats.Variants[0].Variant)
	assert.Equal(t, 10, stats.Variants[0].Samples)
	assert.Equal(t, "challenger", stats.Variants[1].Variant)
	assert.Equal(t, 5, stats.Variants[1].Samples)
	assert.Equal(t, 100*time.Millisecond, stats.Variants[0].MeanResponseTime)
	assert.Equal(t, 1.0, stats.Variants[1].Accuracy)
}

func TestStatsRolloutReadyFalseBelowSampleThresholds(t *testing.T) {
	h := New(nil)
	require.NoError(t, h.Register(testSpec()))

	h.Record(context.Background(), Outcome{ExperimentName: "greeting_prompt_v2", Variant: "control", ResponseTime: 100 * time.Millisecond, Accurate: true, RecordedAt: time.Now()}, nil)
	h.Record(context.Background(), Outcome{ExperimentName: "greeting_prompt_v2", Variant: "challenger", ResponseTime: 50 * time.Millisecond, Accurate: true, RecordedAt: time.Now()}, nil)

	stats, err := h.Stats("greeting_prompt_v2")
	require.NoError(t, err)
	assert.False(t, stats.RolloutReady["challenger"])
}

func TestStatsRolloutReadyTrueWhenThresholdsMet(t *testing.T) {
	h := New(nil)
	require.NoError(t, h.Register(testSpec()))

	for i := 0; i < 500; i++ {
		h.Record(context.Background(), Outcome{ExperimentName: "greeting_prompt_v2", Variant: "control", ResponseTime: 200 * time.Millisecond, Accurate: true, RecordedAt: time.Now()}, nil)
	}
	for i := 0; i < 100; i++ {
		h.Record(context.Background(), Outcome{ExperimentName: "greeting_prompt_v2", Variant: "challenger", ResponseTime: 100 * time.Millisecond, Accurate: true, RecordedAt: time.Now()}, nil)
	}

	stats, err := h.Stats("greeting_prompt_v2")
	require.NoError(t, err)
	assert.True(t, stats.RolloutReady["challenger"])
	assert.True(t, stats.SignificantDiff["challenger"])
}

func TestStatsRolloutNotReadyWhenAccuracyBelowThreshold(t *testing.T) {
	h := New(nil)
	require.NoError(t, h.Register(testSpec()))

	for i := 0; i < 500; i++ {
		h.Record(context.Background(), Outcome{ExperimentName: "greeting_prompt_v2", Variant: "control", ResponseTime: 200 * time.Millisecond, Accurate: true, RecordedAt: time.Now()}, nil)
	}
	for i := 0; i < 100; i++ {
		h.Record(context.Background(), Outcome{ExperimentName: "greeting_prompt_v2", Variant: "challenger", ResponseTime: 100 * time.Millisecond, Accurate: i%2 == 0, RecordedAt: time.Now()}, nil)
	}

	stats, err := h.Stats("greeting_prompt_v2")
	require.NoError(t, err)
	assert.False(t, stats.RolloutReady["challenger"])
}

func TestRecordInvokesLogFailureWhenDurableLogErrors(t *testing.T) {
	h := New(failingLog{})
	require.NoError(t, h.Register(testSpec()))

	var captured error
	h.Record(context.Background(), Outcome{ExperimentName: "greeting_prompt_v2", Variant: "control", RecordedAt: time.Now()}, func(err error) {
		captured = err
	})

	assert.Error(t, captured)
}

type failingLog struct{}

func (failingLog) Append(ctx context.Context, o Outcome) error { return assert.AnError }
func (failingLog) Close() error                                { return nil }
