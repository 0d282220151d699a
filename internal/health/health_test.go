package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name   string
	result CheckResult
	delay  time.Duration
}

func (s stubChecker) Name() string { return s.name }

func (s stubChecker) Check(ctx context.Context) CheckResult {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return CheckResult{Name: s.name, Status: StatusDegraded, Detail: "cancelled"}
		}
	}
	return s.result
}

func TestReportAllHealthyIsHealthy(t *testing.T) {
	r := New(time.Second,
		stubChecker{name: "a", result: CheckResult{Name: "a", Status: StatusHealthy}},
		stubChecker{name: "b", result: CheckResult{Name: "b", Status: StatusHealthy}},
	)
	report := r.Report(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	require.Len(t, report.Checks, 2)
}

func TestReportOneDegradedMakesOverallDegraded(t *testing.T) {
	r := New(time.Second,
		stubChecker{name: "a", result: CheckResult{Name: "a", Status: StatusHealthy}},
		stubChecker{name: "b", result: CheckResult{Name: "b", Status: StatusDegraded}},
	)
	report := r.Report(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
}

func TestReportOneUnhealthyDominatesDegraded(t *testing.T) {
	r := New(time.Second,
		stubChecker{name: "a", result: CheckResult{Name: "a", Status: StatusDegraded}},
		stubChecker{name: "b", result: CheckResult{Name: "b", Status: StatusUnhealthy}},
	)
	report := r.Report(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
}

func TestReportTimeoutDegradesSlowCheck(t *testing.T) {
	r := New(10*time.Millisecond,
		stubChecker{name: "slow", result: CheckResult{Name: "slow", Status: StatusHealthy}, delay: 100 * time.Millisecond},
	)
	report := r.Report(context.Background())
	require.Len(t, report.Checks, 1)
	assert.Equal(t, StatusDegraded, report.Checks[0].Status)
	assert.Equal(t, StatusDegraded, report.Status)
}

func TestReadyAcceptsHealthyAndDegraded(t *testing.T) {
	assert.True(t, Ready(StatusHealthy))
	assert.True(t, Ready(StatusDegraded))
	assert.False(t, Ready(StatusUnhealthy))
}

func TestLiveRejectsOnlyUnhealthy(t *testing.T) {
	assert.True(t, Live(StatusHealthy))
	assert.True(t, Live(StatusDegraded))
	assert.False(t, Live(StatusUnhealthy))
}

func TestDependencyCheckReportsUnhealthyOnError(t *testing.T) {
	c := NewDependencyCheck("vector_index", func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	result := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Contains(t, result.Detail, "connection refused")
}

func TestDependencyCheckReportsHealthyWhenPingSucceeds(t *testing.T) {
	c := NewDependencyCheck("cache", func(ctx context.Context) error { return nil })
	result := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
}

func TestMLRoundTripDegradesWhenSlowButSucceeding(t *testing.T) {
	c := NewMLRoundTripCheck("completion", 5*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	})
	result := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, result.Status)
}

func TestMLRoundTripHealthyWhenFast(t *testing.T) {
	c := NewMLRoundTripCheck("completion", 50*time.Millisecond, func(ctx context.Context) error { return nil })
	result := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
}

func TestMLRoundTripUnhealthyOnError(t *testing.T) {
	c := NewMLRoundTripCheck("completion", 50*time.Millisecond, func(ctx context.Context) error {
		return errors.New("upstream error")
	})
	result := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
}

func TestResourceCheckReturnsAStatus(t *testing.T) {
	c := NewResourceCheck(DefaultResourceThresholds())
	result := c.Check(context.Background())
	assert.Contains(t, []Status{StatusHealthy, StatusDegraded, StatusUnhealthy}, result.Status)
}
