// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring qrgate services.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LatencyBuckets covers in-process factorization through slow peer calls,
// from 1ms to 10s.
var LatencyBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Factorization outcomes.
const (
	OutcomeSuccess       = "success"
	OutcomeRankDeficient = "rank_deficient"
	OutcomeInvalid       = "invalid"
	OutcomeError         = "error"
)

// Downstream call outcomes.
const (
	DownstreamOK         = "ok"
	DownstreamStatus     = "error_status"
	DownstreamNoResponse = "no_response"
	DownstreamTimeout    = "timeout"
)

var (
	// RequestsTotal counts HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrgate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrgate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LatencyBuckets,
		},
		[]string{"method"},
	)

	// InFlightRequests tracks requests currently being served.
	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "qrgate_requests_in_flight",
			Help: "Requests being served",
		},
	)

	// PipelineRunsTotal counts factorization pipeline runs by outcome.
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrgate_pipeline_runs_total",
			Help: "Factorization pipeline runs",
		},
		[]string{"outcome"},
	)

	// StageDuration records the time spent in each pipeline stage.
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrgate_stage_duration_seconds",
			Help:    "Pipeline stage duration",
			Buckets: LatencyBuckets,
		},
		[]string{"stage"},
	)

	// MatrixCells records the size of factorized inputs.
	MatrixCells = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qrgate_matrix_cells",
			Help:    "Cells per factorized matrix",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	// DownstreamRequestsTotal counts calls to peer services by outcome.
	DownstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrgate_downstream_requests_total",
			Help: "Downstream requests",
		},
		[]string{"service", "outcome"},
	)

	// DownstreamLatency records peer call latency in seconds.
	DownstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qrgate_downstream_latency_seconds",
			Help:    "Downstream latency",
			Buckets: LatencyBuckets,
		},
		[]string{"service"},
	)

	// AuthFailuresTotal counts rejected requests by failure kind.
	AuthFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrgate_auth_failures_total",
			Help: "Authentication failures",
		},
		[]string{"kind"},
	)

	// LoginsTotal counts login attempts by outcome.
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qrgate_logins_total",
			Help: "Login attempts",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		InFlightRequests,
		PipelineRunsTotal,
		StageDuration,
		MatrixCells,
		DownstreamRequestsTotal,
		DownstreamLatency,
		AuthFailuresTotal,
		LoginsTotal,
	)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
