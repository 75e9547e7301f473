// Package metrics holds the Prometheus instruments for the locality balancer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultFound    = "found"
	ResultNotFound = "not_found"
	ResultRemoved  = "removed"
)

type Metrics struct {
	ClientsRegistered prometheus.Gauge
	Registrations     prometheus.Counter
	Deregistrations   *prometheus.CounterVec
	Selections        *prometheus.CounterVec
}

// New creates the instruments and registers them with reg. Passing a fresh
// prometheus.NewRegistry keeps tests independent of the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ClientsRegistered: f.NewGauge(prometheus.GaugeOpts{
			Name: "geolb_clients_registered",
			Help: "Current number of registered client entries",
		}),
		Registrations: f.NewCounter(prometheus.CounterOpts{
			Name: "geolb_registrations_total",
			Help: "Total number of client registrations",
		}),
		Deregistrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geolb_deregistrations_total",
			Help: "Total number of deregistration attempts by result",
		}, []string{"result"}),
		Selections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "geolb_selections_total",
			Help: "Total number of client selections by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncrementRegistrations() {
	m.Registrations.Inc()
}

func (m *Metrics) IncrementDeregistrations(result string) {
	m.Deregistrations.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementSelections(result string) {
	m.Selections.WithLabelValues(result).Inc()
}

func (m *Metrics) SetClientsRegistered(count int) {
	m.ClientsRegistered.Set(float64(count))
}
