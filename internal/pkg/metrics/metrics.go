package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics of the pipeline.
type Metrics struct {
	CollectorRequests *prometheus.CounterVec
	LinesCollected    prometheus.Counter
	LinesRejected     *prometheus.CounterVec
	ResolutionMisses  *prometheus.CounterVec
	DevigOutcomes     *prometheus.CounterVec
	LinesStored       prometheus.Counter
	StoreFailures     *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	LastRunTimestamp  prometheus.Gauge
}

// New creates the metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer in services and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CollectorRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evledger_collector_requests_total",
			Help: "Collector tasks by bookmaker and result",
		}, []string{"bookmaker", "result"}),

		LinesCollected: f.NewCounter(prometheus.CounterOpts{
			Name: "evledger_lines_collected_total",
			Help: "Raw lines gathered from collectors",
		}),

		LinesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evledger_lines_rejected_total",
			Help: "Raw lines rejected by the normalizer",
		}, []string{"reason"}),

		ResolutionMisses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evledger_resolution_misses_total",
			Help: "Canonical entities created because no alias matched",
		}, []string{"kind"}),

		DevigOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evledger_devig_outcomes_total",
			Help: "Sharp lines by devig result (devigged, one_sided, ambiguous, malformed)",
		}, []string{"result"}),

		LinesStored: f.NewCounter(prometheus.CounterOpts{
			Name: "evledger_lines_stored_total",
			Help: "Lines written to the streaming store",
		}),

		StoreFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "evledger_store_failures_total",
			Help: "Rejected store calls by error type",
		}, []string{"error_type"}),

		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "evledger_run_duration_seconds",
			Help:    "Duration of a full pipeline run",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "evledger_last_run_timestamp_seconds",
			Help: "Unix time the last pipeline run finished",
		}),
	}
}

// RecordRequest counts one collector task.
func (m *Metrics) RecordRequest(bookmaker string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.CollectorRequests.WithLabelValues(bookmaker, result).Inc()
}

func (m *Metrics) RecordCollected(n int) {
	m.LinesCollected.Add(float64(n))
}

func (m *Metrics) RecordRejected(reason string, n int) {
	if n > 0 {
		m.LinesRejected.WithLabelValues(reason).Add(float64(n))
	}
}

func (m *Metrics) RecordMiss(kind string) {
	m.ResolutionMisses.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordDevig(result string, n int) {
	if n > 0 {
		m.DevigOutcomes.WithLabelValues(result).Add(float64(n))
	}
}

func (m *Metrics) RecordStored(n int) {
	m.LinesStored.Add(float64(n))
}

func (m *Metrics) RecordStoreFailure(errorType string) {
	m.StoreFailures.WithLabelValues(errorType).Inc()
}

// RecordRun observes a finished run.
func (m *Metrics) RecordRun(d time.Duration, finished time.Time) {
	m.RunDuration.Observe(d.Seconds())
	m.LastRunTimestamp.Set(float64(finished.Unix()))
}
