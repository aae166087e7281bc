// Package observability provides Prometheus metrics for report runs,
// ingestion and the HTTP wrapper.
//
// Metrics register against a caller-supplied registry so tests and embedded
// uses stay isolated from the global one. All operations are safe for
// concurrent use.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

const metricsNamespace = "annostat"

const (
	reportSubsystem = "report"
	ingestSubsystem = "ingest"
	httpSubsystem   = "http"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds every collector annostat exports.
type Metrics struct {
	// ReportRunsTotal counts report runs.
	// Labels: report, status (success, error)
	ReportRunsTotal *prometheus.CounterVec

	// ReportDurationSeconds measures report run time.
	// Labels: report
	ReportDurationSeconds *prometheus.HistogramVec

	// ReportRows is the row count of the latest run of each report.
	// Labels: report
	ReportRows *prometheus.GaugeVec

	// IngestRecordsTotal counts candidate records by outcome.
	// Labels: source (csv, sqlite), outcome (accepted, rejected)
	IngestRecordsTotal *prometheus.CounterVec

	// IngestFailuresTotal counts validation failures.
	// Labels: kind
	IngestFailuresTotal *prometheus.CounterVec

	// HTTPRequestsTotal counts API requests.
	// Labels: route, method, code
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPDurationSeconds measures API latency.
	// Labels: route
	HTTPDurationSeconds *prometheus.HistogramVec
}

// NewMetrics creates and registers all collectors on reg.
// Registering twice on the same registry panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReportRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: reportSubsystem,
				Name:      "runs_total",
				Help:      "Total number of report runs by report and status",
			},
			[]string{"report", "status"},
		),
		ReportDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: reportSubsystem,
				Name:      "duration_seconds",
				Help:      "Report run duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"report"},
		),
		ReportRows: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: reportSubsystem,
				Name:      "rows",
				Help:      "Rows produced by the latest run of a report",
			},
			[]string{"report"},
		),
		IngestRecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: ingestSubsystem,
				Name:      "records_total",
				Help:      "Candidate records by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		IngestFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: ingestSubsystem,
				Name:      "failures_total",
				Help:      "Record validation failures by kind",
			},
			[]string{"kind"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "requests_total",
				Help:      "API requests by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		HTTPDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: httpSubsystem,
				Name:      "request_duration_seconds",
				Help:      "API request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

// =============================================================================
// Recording helpers (nil-safe)
// =============================================================================

// RecordReportRun records one report run.
func (m *Metrics) RecordReportRun(report string, err error, d time.Duration, rows int) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.ReportRunsTotal.WithLabelValues(report, status).Inc()
	m.ReportDurationSeconds.WithLabelValues(report).Observe(d.Seconds())
	if err == nil {
		m.ReportRows.WithLabelValues(report).Set(float64(rows))
	}
}

// RecordIngest records the outcome of one store build.
func (m *Metrics) RecordIngest(source string, accepted, rejected int, failureKinds []string) {
	if m == nil {
		return
	}
	m.IngestRecordsTotal.WithLabelValues(source, "accepted").Add(float64(accepted))
	m.IngestRecordsTotal.WithLabelValues(source, "rejected").Add(float64(rejected))
	for _, k := range failureKinds {
		m.IngestFailuresTotal.WithLabelValues(k).Inc()
	}
}

// RecordHTTP records one API request.
func (m *Metrics) RecordHTTP(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.HTTPDurationSeconds.WithLabelValues(route).Observe(d.Seconds())
}
