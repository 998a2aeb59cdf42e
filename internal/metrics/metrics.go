// Package metrics exports health run summaries in the Prometheus text format
// so a node exporter textfile collector can scrape the last run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"crmcheck/internal/healthcheck"
	"crmcheck/pkg/logging"
)

// Exporter holds the gauges describing one run.
type Exporter struct {
	registry *prometheus.Registry

	tests        *prometheus.GaugeVec
	leaked       *prometheus.GaugeVec
	duration     prometheus.Gauge
	authFailures prometheus.Gauge
	lastRun      prometheus.Gauge
}

// NewExporter creates an Exporter backed by its own registry.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		tests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crmcheck_tests",
			Help: "Test verdicts of the last health run by entity, category and status.",
		}, []string{"entity", "category", "status"}),
		leaked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crmcheck_leaked_entities",
			Help: "Records created by the last run that could not be confirmed deleted.",
		}, []string{"entity"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crmcheck_run_duration_seconds",
			Help: "Wall time of the last health run.",
		}),
		authFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crmcheck_auth_failures",
			Help: "Requests of the last run that ended in a terminal authentication failure.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crmcheck_last_run_timestamp_seconds",
			Help: "Unix time the last health run finished.",
		}),
	}
	e.registry.MustRegister(e.tests, e.leaked, e.duration, e.authFailures, e.lastRun)
	return e
}

// Registry exposes the underlying registry, e.g. for promhttp.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Observe replaces all gauges with the values of run.
func (e *Exporter) Observe(run *healthcheck.RunResult) {
	e.tests.Reset()
	e.leaked.Reset()

	for _, suite := range run.Suites {
		for category, s := range suite.Categories {
			c := string(category)
			e.tests.WithLabelValues(suite.Entity, c, string(healthcheck.StatusSuccess)).Set(float64(s.Passed))
			e.tests.WithLabelValues(suite.Entity, c, string(healthcheck.StatusFailed)).Set(float64(s.Failed))
			e.tests.WithLabelValues(suite.Entity, c, string(healthcheck.StatusWarning)).Set(float64(s.Warnings))
		}
		e.leaked.WithLabelValues(suite.Entity).Set(float64(len(run.Leaked[suite.Entity])))
	}
	e.duration.Set(run.Duration.Seconds())
	e.authFailures.Set(float64(run.AuthFailures))
	if !run.EndTime.IsZero() {
		e.lastRun.Set(float64(run.EndTime.Unix()))
	}
}

// WriteTextfile writes run to path in the Prometheus text format. The file
// is replaced atomically.
func WriteTextfile(path string, run *healthcheck.RunResult) error {
	e := NewExporter()
	e.Observe(run)
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	logging.Debug("Metrics", "wrote run %s metrics to %s", run.RunID, path)
	return nil
}
