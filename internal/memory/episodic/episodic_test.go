package episodic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetentionDecaysOverTime(t *testing.T) {
	early := Retention(1.0, 1, 0, 0.5, 0.5, 0)
	late := Retention(1.0, 1000, 0, 0.5, 0.5, 0)
	assert.Greater(t, early, late)
}

func TestRetentionClampedToUnitInterval(t *testing.T) {
	r := Retention(1.0, 0, 20, 1.0, 1.0, 1.0)
	assert.LessOrEqual(t, r, 1.0)
	assert.GreaterOrEqual(t, r, 0.0)
}

func TestRetentionReinforcementSlowsDecay(t *testing.T) {
	low := Retention(1.0, 100, 0, 0.5, 0.5, 0)
	high := Retention(1.0, 100, 8, 0.5, 0.5, 0)
	assert.Greater(t, high, low)
}

func TestNextReviewDaysFollowsSchedule(t *testing.T) {
	assert.Equal(t, 1, NextReviewDays(0))
	assert.Equal(t, 3, NextReviewDays(1))
	assert.Equal(t, 180, NextReviewDays(5))
	assert.Equal(t, 180, NextReviewDays(99))
}

func TestParseVectorLiteralRoundTripsToVectorLiteral(t *testing.T) {
	vec := []float32{0.1, -0.25, 3}
	parsed := parseVectorLiteral(toVectorLiteral(vec))
	assert.InDeltaSlice(t, vec, parsed, 1e-6)
}

func TestParseVectorLiteralHandlesEmpty(t *testing.T) {
	assert.Nil(t, parseVectorLiteral(""))
	assert.Nil(t, parseVectorLiteral("[]"))
}
