package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters and histograms of the build service.
type Metrics struct {
	Builds        *prometheus.CounterVec // labels: outcome={success,config,domain,convergence,export,error}
	Iterations    prometheus.Histogram
	BuildDuration prometheus.Histogram
	Connections   prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mkvert",
			Name:      "builds_total",
			Help:      "Coordinate builds by outcome.",
		}, []string{"outcome"}),
		Iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mkvert",
			Name:      "solver_iterations",
			Help:      "Iterations needed by converged solves.",
			Buckets:   []float64{2, 3, 4, 5, 10, 20, 50, 100},
		}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mkvert",
			Name:      "build_duration_seconds",
			Help:      "Duration of a complete build, partition and solve.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mkvert",
			Name:      "websocket_connections",
			Help:      "Open websocket connections.",
		}),
	}
	reg.MustRegister(m.Builds, m.Iterations, m.BuildDuration, m.Connections)
	return m
}

func outcome(kind string) string {
	switch kind {
	case "":
		return "success"
	case "ConfigError":
		return "config"
	case "DomainError":
		return "domain"
	case "ConvergenceError":
		return "convergence"
	case "ExportError":
		return "export"
	}
	return "error"
}
