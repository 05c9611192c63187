// Package metrics provides Prometheus metrics for pipeline runs and BEA API traffic.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/JonMunkholm/nipa/internal/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineMetrics implements core.Recorder and bea.Observer.
type PipelineMetrics struct {
	registry *prometheus.Registry

	datasetsPublished *prometheus.CounterVec
	tablesSkipped     *prometheus.CounterVec
	failures          *prometheus.CounterVec
	runDuration       prometheus.Histogram
	lastRunTimestamp  prometheus.Gauge
	ingestRequests    *prometheus.CounterVec
}

// NewPipelineMetrics creates the metrics and registers them on registry.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.datasetsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nipa_datasets_published_total",
			Help: "Total number of datasets published",
		},
		[]string{"frequency"},
	)

	m.tablesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nipa_tables_skipped_total",
			Help: "Total number of tables or table frequencies that produced no dataset",
		},
		[]string{"reason"}, // missing, empty, stale
	)

	m.failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nipa_failures_total",
			Help: "Total number of table failures by pipeline stage",
		},
		[]string{"stage"},
	)

	// Runs take from a few seconds (offline, small catalog) to tens of minutes
	m.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nipa_run_duration_seconds",
			Help:    "Duration of transform runs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	m.lastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nipa_last_run_timestamp_seconds",
			Help: "Unix time the last transform run finished",
		},
	)

	m.ingestRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nipa_ingest_requests_total",
			Help: "Total number of BEA API requests",
		},
		[]string{"method", "status"},
	)
}

// Describe implements the Collector interface
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.datasetsPublished.Describe(ch)
	m.tablesSkipped.Describe(ch)
	m.failures.Describe(ch)
	m.runDuration.Describe(ch)
	m.lastRunTimestamp.Describe(ch)
	m.ingestRequests.Describe(ch)
}

// Collect implements the Collector interface
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.datasetsPublished.Collect(ch)
	m.tablesSkipped.Collect(ch)
	m.failures.Collect(ch)
	m.runDuration.Collect(ch)
	m.lastRunTimestamp.Collect(ch)
	m.ingestRequests.Collect(ch)
}

func (m *PipelineMetrics) DatasetPublished(f core.Frequency) {
	m.datasetsPublished.WithLabelValues(string(f)).Inc()
}

func (m *PipelineMetrics) TableSkipped(reason core.SkipReason) {
	m.tablesSkipped.WithLabelValues(string(reason)).Inc()
}

func (m *PipelineMetrics) StageFailed(stage core.Stage) {
	m.failures.WithLabelValues(string(stage)).Inc()
}

// RunFinished records the run's duration and completion time.
func (m *PipelineMetrics) RunFinished(report *core.RunReport) {
	if report == nil {
		return
	}
	m.runDuration.Observe(report.Duration().Seconds())
	if !report.FinishedAt.IsZero() {
		m.lastRunTimestamp.Set(float64(report.FinishedAt.Unix()))
	}
}

// ObserveRequest counts one BEA API request. status is the HTTP status code,
// or "error" when no response arrived.
func (m *PipelineMetrics) ObserveRequest(method, status string) {
	m.ingestRequests.WithLabelValues(method, status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
