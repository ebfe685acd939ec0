// Package metrics records build statistics on a private Prometheus registry.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Build holds the collectors of the build pipeline. A nil *Build records
// nothing.
type Build struct {
	registry     *prometheus.Registry
	filesBuilt   prometheus.Counter
	filesSkipped prometheus.Counter
	diagnostics  *prometheus.CounterVec
	duration     prometheus.Histogram
	lastSuccess  prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Build {
	b := &Build{
		registry: prometheus.NewRegistry(),
		filesBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "b3_files_built_total",
			Help: "Tree files resolved, validated and written",
		}),
		filesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "b3_files_skipped_total",
			Help: "Tree files skipped because their inputs were unchanged",
		}),
		diagnostics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "b3_diagnostics_total",
				Help: "Diagnostics reported, by kind",
			},
			[]string{"kind"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "b3_build_duration_seconds",
			Help:    "Wall time of a build or check run",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "b3_last_build_success",
			Help: "1 if the last run reported no diagnostics, else 0",
		}),
	}
	b.registry.MustRegister(b.filesBuilt, b.filesSkipped, b.diagnostics, b.duration, b.lastSuccess)
	return b
}

// Registry exposes the registry for gathering.
func (b *Build) Registry() *prometheus.Registry {
	if b == nil {
		return nil
	}
	return b.registry
}

// FileBuilt counts one processed file.
func (b *Build) FileBuilt() {
	if b != nil {
		b.filesBuilt.Inc()
	}
}

// FileSkipped counts one file skipped by the manifest.
func (b *Build) FileSkipped() {
	if b != nil {
		b.filesSkipped.Inc()
	}
}

// Diagnostic counts one diagnostic of the given kind.
func (b *Build) Diagnostic(kind string) {
	if b != nil {
		b.diagnostics.WithLabelValues(kind).Inc()
	}
}

// Finish observes the run duration and outcome.
func (b *Build) Finish(elapsed time.Duration, ok bool) {
	if b == nil {
		return
	}
	b.duration.Observe(elapsed.Seconds())
	if ok {
		b.lastSuccess.Set(1)
	} else {
		b.lastSuccess.Set(0)
	}
}

// WriteFile writes the current values in the text exposition format, for
// node_exporter's textfile collector.
func (b *Build) WriteFile(path string) error {
	if b == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, b.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
