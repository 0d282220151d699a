package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAccumulatesPerModel(t *testing.T) {
	tr := New(nil)
	tr.Record("gpt-4o-mini", 100, 50)
	tr.Record("gpt-4o-mini", 200, 100)
	tr.Record("claude-sonnet-4-5", 10, 10)

	report := tr.Report()
	require.Len(t, report.Models, 2)

	var gpt, claude ModelReport
	for _, m := range report.Models {
		switch m.Model {
		case "gpt-4o-mini":
			gpt = m
		case "claude-sonnet-4-5":
			claude = m
		}
	}

	assert.Equal(t, 2, gpt.Requests)
	assert.Equal(t, int64(300), gpt.InputTokens)
	assert.Equal(t, int64(150), gpt.OutputTokens)
	assert.Equal(t, 1, claude.Requests)
	assert.Equal(t, report.TotalRequests, gpt.Requests+claude.Requests)
}

func TestReportTotalsSumAcrossModels(t *testing.T) {
	tr := New(nil)
	tr.Record("gpt-4o-mini", 1000, 1000)
	tr.Record("claude-sonnet-4-5", 1000, 1000)

	report := tr.Report()
	assert.Equal(t, int64(2000), report.TotalInputTokens)
	assert.Equal(t, int64(2000), report.TotalOutputTokens)
	assert.Greater(t, report.TotalCostUSD, 0.0)
}

func TestRecordWithUnknownModelDefaultsToZeroCost(t *testing.T) {
	tr := New(map[string]Pricing{})
	tr.Record("some-future-model", 1000, 1000)

	report := tr.Report()
	require.Len(t, report.Models, 1)
	assert.Equal(t, 0.0, report.Models[0].EstimatedCostUSD)
}

func TestRecordWithEmptyModelNameBucketsAsUnknown(t *testing.T) {
	tr := New(nil)
	tr.Record("", 10, 10)

	report := tr.Report()
	require.Len(t, report.Models, 1)
	assert.Equal(t, "unknown", report.Models[0].Model)
}

func TestReportIsSortedByModelName(t *testing.T) {
	tr := New(nil)
	tr.Record("zeta-model", 1, 1)
	tr.Record("alpha-model", 1, 1)

	report := tr.Report()
	require.Len(t, report.Models, 2)
	assert.Equal(t, "alpha-model", report.Models[0].Model)
	assert.Equal(t, "zeta-model", report.Models[1].Model)
}
