// Package metrics exposes pipeline instrumentation as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "strainmodel"

type Metrics struct {
	Registry *prometheus.Registry

	stageDuration    *prometheus.HistogramVec
	runs             *prometheus.CounterVec
	orthologs        *prometheus.CounterVec
	gapfillThreshold prometheus.Gauge
}

// New registers the pipeline collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}, []string{"stage"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished pipeline runs by outcome.",
		}, []string{"outcome"}),
		orthologs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orthologs_total",
			Help:      "Resolved orthologs by kind.",
		}, []string{"kind"}),
		gapfillThreshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gapfill_threshold",
			Help:      "Integer threshold at which the last gapfill converged, -1 when the ladder was exhausted.",
		}),
	}
	m.Registry.MustRegister(m.stageDuration, m.runs, m.orthologs, m.gapfillThreshold)
	return m
}

// RegisterRuntime adds the Go runtime and process collectors, for long running servers.
func (m *Metrics) RegisterRuntime() {
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) RunFinished(outcome string) {
	m.runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddOrthologs(kind string, n int) {
	m.orthologs.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) SetGapfillThreshold(v float64) {
	m.gapfillThreshold.Set(v)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// WriteTextfile writes the registry for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
