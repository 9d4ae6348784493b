// Package metrics exposes Prometheus collectors for adapter runs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/timmy/layoffwatch/internal/domain"
)

const namespace = "layoffwatch"

// Metrics holds the run collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	recordsFound   *prometheus.CounterVec
	recordsAdded   *prometheus.CounterVec
	duplicates     *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	runErrors      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	lastSuccessTS  *prometheus.GaugeVec
	lastRunSuccess *prometheus.GaugeVec
}

// New creates the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "adapter_runs_total",
		Help:      "Adapter runs by source and outcome",
	}, []string{"source", "status"})
	m.recordsFound = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_found_total",
		Help:      "Records produced by Normalize",
	}, []string{"source"})
	m.recordsAdded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_added_total",
		Help:      "Records newly inserted into the store",
	}, []string{"source"})
	m.duplicates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_duplicate_total",
		Help:      "Records already present in the store",
	}, []string{"source"})
	m.rejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_rejected_total",
		Help:      "Records skipped because they failed validation",
	}, []string{"source"})
	m.runErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "run_errors_total",
		Help:      "Errors recorded during adapter runs",
	}, []string{"source"})
	m.runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "adapter_run_duration_seconds",
		Help:      "Wall-clock duration of adapter runs",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"source"})
	m.lastSuccessTS = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix timestamp of the last successful run",
	}, []string{"source"})
	m.lastRunSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_success",
		Help:      "1 if the last run of the source succeeded, 0 otherwise",
	}, []string{"source"})

	m.registry.MustRegister(
		m.runsTotal, m.recordsFound, m.recordsAdded, m.duplicates, m.rejected,
		m.runErrors, m.runDuration, m.lastSuccessTS, m.lastRunSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records one finished run.
func (m *Metrics) Observe(r domain.RunResult) {
	status := "failed"
	if r.Success {
		status = "succeeded"
	}
	src := r.SourceID

	m.runsTotal.WithLabelValues(src, status).Inc()
	m.recordsFound.WithLabelValues(src).Add(float64(r.RecordsFound))
	m.recordsAdded.WithLabelValues(src).Add(float64(r.RecordsAdded))
	m.duplicates.WithLabelValues(src).Add(float64(r.Duplicates))
	m.rejected.WithLabelValues(src).Add(float64(r.RecordsRejected))
	m.runErrors.WithLabelValues(src).Add(float64(len(r.Errors)))
	m.runDuration.WithLabelValues(src).Observe(r.DurationSeconds)

	if r.Success {
		m.lastRunSuccess.WithLabelValues(src).Set(1)
		m.lastSuccessTS.WithLabelValues(src).Set(float64(r.StartedAt.Unix()) + r.DurationSeconds)
	} else {
		m.lastRunSuccess.WithLabelValues(src).Set(0)
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
