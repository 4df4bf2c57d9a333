// Package metrics records pipeline runs as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"holorecon/pkg/pipeline"
)

// Recorder is a pipeline.Observer backed by its own registry.
type Recorder struct {
	registry *prometheus.Registry

	hookDuration *prometheus.HistogramVec
	hooks        *prometheus.CounterVec
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
}

var _ pipeline.Observer = (*Recorder)(nil)

// NewRecorder returns a Recorder with a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		hookDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "holorecon_hook_duration_seconds",
			Help:    "Time spent in one plugin hook.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
		}, []string{"stage", "plugin"}),
		hooks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "holorecon_hooks_total",
			Help: "Plugin hook invocations by stage.",
		}, []string{"stage"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "holorecon_runs_total",
			Help: "Finished pipeline runs by outcome.",
		}, []string{"outcome"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "holorecon_run_duration_seconds",
			Help:    "Wall time of a pipeline run.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
}

func (r *Recorder) ObserveHook(s pipeline.Stage, plugin string, d time.Duration) {
	r.hookDuration.WithLabelValues(s.String(), plugin).Observe(d.Seconds())
	r.hooks.WithLabelValues(s.String()).Inc()
}

func (r *Recorder) ObserveRun(o pipeline.Outcome, d time.Duration) {
	r.runs.WithLabelValues(string(o)).Inc()
	r.runDuration.Observe(d.Seconds())
}

// Registry exposes the underlying registry, for serving or tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WriteToTextfile writes the current metrics in the text exposition format,
// as read by the node exporter's textfile collector.
func (r *Recorder) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
