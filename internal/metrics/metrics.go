// Package metrics exposes the tournament's Prometheus collectors on a private
// registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector the service updates.
type Metrics struct {
	Registry *prometheus.Registry

	RoundsStarted     *prometheus.CounterVec
	MatchesConfirmed  *prometheus.CounterVec
	PairingFailures   prometheus.Counter
	OperationalErrors *prometheus.CounterVec
	Snapshots         *prometheus.CounterVec
	PushSubscribers   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RoundsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tourney_rounds_started_total",
			Help: "Rounds opened, by format.",
		}, []string{"format"}),
		MatchesConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tourney_matches_confirmed_total",
			Help: "Confirmed games, by match kind.",
		}, []string{"kind"}),
		PairingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tourney_pairing_failures_total",
			Help: "Swiss rounds that could not be paired.",
		}),
		OperationalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tourney_operational_errors_total",
			Help: "Persistence or notification failures, by operation.",
		}, []string{"op"}),
		Snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tourney_snapshots_total",
			Help: "Event snapshots written, by result.",
		}, []string{"result"}),
		PushSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tourney_push_subscribers",
			Help: "Connected push observers.",
		}),
	}
	m.Registry.MustRegister(
		m.RoundsStarted,
		m.MatchesConfirmed,
		m.PairingFailures,
		m.OperationalErrors,
		m.Snapshots,
		m.PushSubscribers,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
