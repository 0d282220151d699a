package health

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every process-wide Prometheus collector exposed at
// /metrics, grouped by subsystem so each component registers against its
// own named fields rather than reaching into a global registry.
type Metrics struct {
	RequestLatency        *prometheus.HistogramVec
	RequestsTotal         *prometheus.CounterVec
	SearchDegraded        *prometheus.CounterVec
	ConsolidationTicks    prometheus.Counter
	ConsolidationSkipped  prometheus.Counter
	ExperimentAssignments *prometheus.CounterVec
	STMOccupancy          prometheus.Gauge
	IndexQueueDepth       prometheus.Gauge
}

// NewMetrics registers every collector against reg and returns the handles
// components use to record observations. When reg is nil the collectors are
// created but not registered with any registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "castingai",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"route", "method", "status"}),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "castingai",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served",
		}, []string{"route", "method", "status"}),

		SearchDegraded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "castingai",
			Subsystem: "search",
			Name:      "degraded_signals_total",
			Help:      "Count of degraded hybrid-search signals by kind",
		}, []string{"signal"}),

		ConsolidationTicks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "castingai",
			Subsystem: "consolidation",
			Name:      "ticks_total",
			Help:      "Total consolidation ticks run",
		}),

		ConsolidationSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "castingai",
			Subsystem: "consolidation",
			Name:      "ticks_skipped_total",
			Help:      "Consolidation ticks skipped because a prior tick was still running",
		}),

		ExperimentAssignments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "castingai",
			Subsystem: "experiment",
			Name:      "assignments_total",
			Help:      "Total experiment variant assignments",
		}, []string{"experiment", "variant"}),

		STMOccupancy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "castingai",
			Subsystem: "memory",
			Name:      "stm_sessions_active",
			Help:      "Number of active short-term-memory sessions",
		}),

		IndexQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "castingai",
			Subsystem: "indexmanager",
			Name:      "queue_depth",
			Help:      "Current depth of the index-manager work queue",
		}),
	}
}
