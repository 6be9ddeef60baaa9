// Package metrics exposes processing counters for long running commands.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joseph-ayodele/submissions-tracker/constants"
)

const namespace = "submissions"

// Recorder is what the submission service reports to. A nil *Metrics is a
// valid no-op Recorder.
type Recorder interface {
	Processed(status constants.ProcessStatus, warnings int, d time.Duration)
	Failed(code string)
	Deleted()
}

type Metrics struct {
	registry  *prometheus.Registry
	processed *prometheus.CounterVec
	failures  *prometheus.CounterVec
	warnings  prometheus.Counter
	perDoc    prometheus.Histogram
	duration  prometheus.Histogram
	deleted   prometheus.Counter
}

// New registers the tracker collectors on a fresh registry, together with
// the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_processed_total",
			Help:      "Documents processed, by outcome.",
		}, []string{"status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_failed_total",
			Help:      "Documents that could not be processed, by error code.",
		}, []string{"code"}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_warnings_total",
			Help:      "Non-fatal extraction warnings attached to processed documents.",
		}),
		perDoc: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "warnings_per_document",
			Help:      "Extraction warnings per processed document.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25},
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_duration_seconds",
			Help:      "Wall time spent processing one document.",
			Buckets:   prometheus.DefBuckets,
		}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_deleted_total",
			Help:      "Submissions removed from the store.",
		}),
	}
	m.registry.MustRegister(
		m.processed, m.failures, m.warnings, m.perDoc, m.duration, m.deleted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Processed(status constants.ProcessStatus, warnings int, d time.Duration) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(string(status)).Inc()
	m.warnings.Add(float64(warnings))
	m.perDoc.Observe(float64(warnings))
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) Failed(code string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(code).Inc()
}

func (m *Metrics) Deleted() {
	if m == nil {
		return
	}
	m.deleted.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests and for embedding extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
