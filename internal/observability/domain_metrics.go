package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sourceFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckframe_source_fetch_total",
			Help: "Total number of source fetches by scheme and outcome.",
		},
		[]string{"scheme", "outcome"},
	)
	sourceFetchBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckframe_source_fetch_bytes_total",
			Help: "Total number of bytes staged from remote sources.",
		},
		[]string{"scheme"},
	)
	pipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckframe_pipeline_runs_total",
			Help: "Total number of load-and-query pipeline runs by outcome.",
		},
		[]string{"outcome"},
	)
	pipelineErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckframe_pipeline_errors_total",
			Help: "Total number of failed pipeline runs by error kind.",
		},
		[]string{"kind"},
	)
	pipelineSupersededTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "duckframe_pipeline_superseded_total",
			Help: "Total number of pipeline runs discarded because a newer run was submitted.",
		},
	)
	ingestDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckframe_ingest_duration_ms",
			Help:    "Time spent materializing a source into the engine, in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"content_type"},
	)
	queryDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duckframe_query_duration_ms",
			Help:    "Query execution and conversion latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)
	queryResultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duckframe_query_result_rows",
			Help:    "Number of rows returned per query.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(
		sourceFetchTotal,
		sourceFetchBytesTotal,
		pipelineRunsTotal,
		pipelineErrorsTotal,
		pipelineSupersededTotal,
		ingestDurationMs,
		queryDurationMs,
		queryResultRows,
	)
}

func ObserveFetch(scheme, outcome string, bytes int64) {
	if scheme == "" {
		scheme = "unknown"
	}
	sourceFetchTotal.WithLabelValues(scheme, outcome).Inc()
	if bytes > 0 {
		sourceFetchBytesTotal.WithLabelValues(scheme).Add(float64(bytes))
	}
}

func ObserveIngest(contentType string, duration time.Duration) {
	ingestDurationMs.WithLabelValues(contentType).Observe(float64(duration.Milliseconds()))
}

func ObserveQuery(duration time.Duration, rows int) {
	queryDurationMs.Observe(float64(duration.Milliseconds()))
	if rows >= 0 {
		queryResultRows.Observe(float64(rows))
	}
}

func IncrementPipelineRun(outcome string) {
	pipelineRunsTotal.WithLabelValues(outcome).Inc()
}

func IncrementPipelineError(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	pipelineErrorsTotal.WithLabelValues(kind).Inc()
}

func IncrementPipelineSuperseded() {
	pipelineSupersededTotal.Inc()
}
