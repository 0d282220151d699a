package health

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// PingFunc probes a single dependency (completion provider, embedding
// provider, vector index, cache, Postgres pool, ...), returning an error if
// unreachable.
type PingFunc func(ctx context.Context) error

// DependencyCheck wraps a PingFunc as a named Checker, used for "API
// reachable" and "dependency reachability" (§4.13).
type DependencyCheck struct {
	name string
	ping PingFunc
}

func NewDependencyCheck(name string, ping PingFunc) DependencyCheck {
	return DependencyCheck{name: name, ping: ping}
}

func (d DependencyCheck) Name() string { return d.name }

func (d DependencyCheck) Check(ctx context.Context) CheckResult {
	if err := d.ping(ctx); err != nil {
		return CheckResult{Name: d.name, Status: StatusUnhealthy, Detail: err.Error()}
	}
	return CheckResult{Name: d.name, Status: StatusHealthy}
}

// MLRoundTripCheck verifies the completion/embedding round-trip latency
// stays under a threshold, reporting DEGRADED (not UNHEALTHY) when it's
// slow but still succeeding, since a slow model is a quality signal rather
// than an outage.
type MLRoundTripCheck struct {
	name      string
	probe     func(ctx context.Context) error
	threshold time.Duration
}

func NewMLRoundTripCheck(name string, threshold time.Duration, probe func(ctx context.Context) error) MLRoundTripCheck {
	if threshold <= 0 {
		threshold = 2 * time.Second
	}
	return MLRoundTripCheck{name: name, probe: probe, threshold: threshold}
}

func (m MLRoundTripCheck) Name() string { return m.name }

func (m MLRoundTripCheck) Check(ctx context.Context) CheckResult {
	start := time.Now()
	err := m.probe(ctx)
	elapsed := time.Since(start)
	if err != nil {
		return CheckResult{Name: m.name, Status: StatusUnhealthy, Detail: err.Error()}
	}
	if elapsed > m.threshold {
		return CheckResult{Name: m.name, Status: StatusDegraded, Detail: fmt.Sprintf("round trip took %s, threshold %s", elapsed, m.threshold)}
	}
	return CheckResult{Name: m.name, Status: StatusHealthy}
}

// ResourceThresholds bounds the process/host resource envelope (§4.13).
type ResourceThresholds struct {
	MaxMemoryPercent float64
	MaxCPUPercent    float64
	MaxDiskPercent   float64
	DiskPath         string
}

func DefaultResourceThresholds() ResourceThresholds {
	return ResourceThresholds{MaxMemoryPercent: 90, MaxCPUPercent: 90, MaxDiskPercent: 90, DiskPath: "/"}
}

// ResourceCheck reports memory/CPU/disk utilization via gopsutil, the same
// host-metrics library the teacher's OTel host instrumentation pulls in
// transitively — used here directly for a synchronous threshold check
// rather than an async metrics stream.
type ResourceCheck struct {
	thresholds ResourceThresholds
}

func NewResourceCheck(thresholds ResourceThresholds) ResourceCheck {
	if thresholds.DiskPath == "" {
		thresholds.DiskPath = "/"
	}
	return ResourceCheck{thresholds: thresholds}
}

func (r ResourceCheck) Name() string { return "resource_envelope" }

func (r ResourceCheck) Check(ctx context.Context) CheckResult {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return CheckResult{Name: r.Name(), Status: StatusDegraded, Detail: fmt.Sprintf("memory stats unavailable: %v", err)}
	}
	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return CheckResult{Name: r.Name(), Status: StatusDegraded, Detail: fmt.Sprintf("cpu stats unavailable: %v", err)}
	}
	usage, err := disk.UsageWithContext(ctx, r.thresholds.DiskPath)
	if err != nil {
		return CheckResult{Name: r.Name(), Status: StatusDegraded, Detail: fmt.Sprintf("disk stats unavailable: %v", err)}
	}

	var cpuPercent float64
	if len(cpuPercents) > 0 {
		cpuPercent = cpuPercents[0]
	}

	detail := fmt.Sprintf("mem=%.1f%% cpu=%.1f%% disk=%.1f%%", vm.UsedPercent, cpuPercent, usage.UsedPercent)

	if vm.UsedPercent >= r.thresholds.MaxMemoryPercent ||
		cpuPercent >= r.thresholds.MaxCPUPercent ||
		usage.UsedPercent >= r.thresholds.MaxDiskPercent {
		return CheckResult{Name: r.Name(), Status: StatusUnhealthy, Detail: detail}
	}

	degradedAt := func(v, max float64) bool { return v >= max*0.8 }
	if degradedAt(vm.UsedPercent, r.thresholds.MaxMemoryPercent) ||
		degradedAt(cpuPercent, r.thresholds.MaxCPUPercent) ||
		degradedAt(usage.UsedPercent, r.thresholds.MaxDiskPercent) {
		return CheckResult{Name: r.Name(), Status: StatusDegraded, Detail: detail}
	}

	return CheckResult{Name: r.Name(), Status: StatusHealthy, Detail: detail}
}
