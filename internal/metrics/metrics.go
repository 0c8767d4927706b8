// Package metrics exposes Prometheus instrumentation for analysis runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nuken/m3u-epg-checker/pkg/issue"
)

const namespace = "m3uepg"

// Metrics holds the collectors for one registry.
type Metrics struct {
	registry *prometheus.Registry

	analysesTotal    *prometheus.CounterVec
	issuesTotal      *prometheus.CounterVec
	fetchFailures    *prometheus.CounterVec
	fixesGenerated   prometheus.Counter
	fixesPurged      prometheus.Counter
	analysisDuration prometheus.Histogram
}

// New registers the analysis collectors, plus the Go and process
// collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		analysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Completed analysis runs by mode",
		}, []string{"mode"}),
		issuesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issues_total",
			Help:      "Issues reported by source and severity",
		}, []string{"source", "severity"}),
		fetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Remote source fetches that failed, by source",
		}, []string{"source"}),
		fixesGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fixes_generated_total",
			Help:      "Fixed playlists produced",
		}),
		fixesPurged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fixes_purged_total",
			Help:      "Stored fixed playlists removed by the janitor",
		}),
		analysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of a full analysis run",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveAnalysis records a finished run.
func (m *Metrics) ObserveAnalysis(mode string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(mode).Inc()
	m.analysisDuration.Observe(elapsed.Seconds())
}

// RecordIssues counts issues by their source and severity.
func (m *Metrics) RecordIssues(issues issue.List) {
	if m == nil {
		return
	}
	for _, i := range issues {
		m.issuesTotal.WithLabelValues(string(i.Source), i.Severity.String()).Inc()
	}
}

// RecordFetchFailure counts a failed remote fetch for source.
func (m *Metrics) RecordFetchFailure(source issue.Source) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(string(source)).Inc()
}

// RecordFixGenerated counts a produced fixed playlist.
func (m *Metrics) RecordFixGenerated() {
	if m == nil {
		return
	}
	m.fixesGenerated.Inc()
}

// RecordPurged counts expired playlists removed from storage.
func (m *Metrics) RecordPurged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.fixesPurged.Add(float64(n))
}
