/*
Package metrics defines the Prometheus collectors exported by the relay.

Collectors are registered on a private registry so several relays (for example
in tests) can live in one process.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatrelay"

// Route results recorded on MessagesRouted.
const (
	ResultDelivered   = "delivered"
	ResultNotFound    = "recipient_not_found"
	ResultInvalid     = "invalid_input"
	ResultUnavailable = "recipient_unavailable"
)

// Metrics holds the relay's collectors.
type Metrics struct {
	registry *prometheus.Registry

	ActiveUsers       prometheus.Gauge
	OpenConnections   prometheus.Gauge
	MessagesRouted    *prometheus.CounterVec
	PresenceBroadcast prometheus.Counter
	DroppedSends      prometheus.Counter
}

// New creates and registers all collectors, including the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		ActiveUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_users",
			Help:      "Number of identities currently registered.",
		}),
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_connections",
			Help:      "Number of live transport connections, identified or not.",
		}),
		MessagesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_routed_total",
			Help:      "Directed messages processed by the router, by result.",
		}, []string{"result"}),
		PresenceBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_broadcasts_total",
			Help:      "usersList snapshots fanned out to connected clients.",
		}),
		DroppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_sends_total",
			Help:      "Outbound events dropped because a connection queue was full or closed.",
		}),
	}

	reg.MustRegister(
		m.ActiveUsers,
		m.OpenConnections,
		m.MessagesRouted,
		m.PresenceBroadcast,
		m.DroppedSends,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
