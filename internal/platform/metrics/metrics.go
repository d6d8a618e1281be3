// Package metrics exposes the traceability counters on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	RunsStarted   prometheus.Counter
	RunsCompleted prometheus.Counter
	RunsLoaded    prometheus.Counter
	RunsAborted   prometheus.Counter
	LotDecodes    *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forno_production_runs_started_total",
			Help: "Production runs started.",
		}),
		RunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forno_production_runs_completed_total",
			Help: "Production runs completed with a lot code.",
		}),
		RunsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forno_production_runs_loaded_total",
			Help: "Completed runs marked as loaded for delivery.",
		}),
		RunsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forno_production_runs_aborted_total",
			Help: "Production runs aborted before completion.",
		}),
		LotDecodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forno_lot_decodes_total",
			Help: "Lot decode requests by outcome.",
		}, []string{"result"}),
	}

	registry.MustRegister(
		m.RunsStarted,
		m.RunsCompleted,
		m.RunsLoaded,
		m.RunsAborted,
		m.LotDecodes,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
