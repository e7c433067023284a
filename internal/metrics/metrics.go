// Package metrics records per-run publishing metrics on a private Prometheus
// registry and pushes them to a Pushgateway when one is configured.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/roach88/threadpost/internal/scheduler"
)

// Metrics holds the run collectors.
type Metrics struct {
	Registry *prometheus.Registry

	Items       *prometheus.CounterVec
	RunDuration prometheus.Gauge
	LastRun     prometheus.Gauge
	RunFailures prometheus.Counter
}

var dispositions = []scheduler.Disposition{
	scheduler.DispositionPosted,
	scheduler.DispositionFailed,
	scheduler.DispositionDeferred,
	scheduler.DispositionSkipped,
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Items: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "threadpost_items_total", Help: "Items visited by publish runs, by disposition."},
			[]string{"disposition"},
		),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "threadpost_run_duration_seconds",
			Help: "Wall time of the last publish run.",
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "threadpost_last_run_timestamp_seconds",
			Help: "Unix time the last publish run finished.",
		}),
		RunFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "threadpost_run_failures_total",
			Help: "Publish runs that ended with a run-level error.",
		}),
	}
	m.Registry.MustRegister(m.Items, m.RunDuration, m.LastRun, m.RunFailures)

	for _, d := range dispositions {
		m.Items.WithLabelValues(string(d))
	}
	return m
}

// Observe records one run.
func (m *Metrics) Observe(summary scheduler.Summary, runErr error, elapsed time.Duration, finished time.Time) {
	for _, r := range summary.Results {
		m.Items.WithLabelValues(string(r.Disposition)).Inc()
	}
	m.RunDuration.Set(elapsed.Seconds())
	m.LastRun.Set(float64(finished.Unix()))
	if runErr != nil {
		m.RunFailures.Inc()
	}
}

// Push sends the registry to the Pushgateway at url under job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
