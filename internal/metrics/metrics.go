// Package metrics records sample runs as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jacentio/docsample/sample"
)

const namespace = "docsample"

// Metrics implements sample.Observer.
type Metrics struct {
	stageDuration *prometheus.HistogramVec
	runs          *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each sample stage.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"stage", "outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed sample runs.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.stageDuration, m.runs)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveStage records a finished stage.
func (m *Metrics) ObserveStage(stage sample.Stage, elapsed time.Duration, err error) {
	m.stageDuration.WithLabelValues(string(stage), outcome(err)).Observe(elapsed.Seconds())
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(err error) {
	m.runs.WithLabelValues(outcome(err)).Inc()
}
