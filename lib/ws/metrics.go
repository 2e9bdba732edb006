package ws

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the engine counters. They are created unregistered; the stats
// endpoint registers them together with the hub gauges.
type Metrics struct {
	eventsTotal      *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	droppedTotal     prometheus.Counter
	connectionsTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sketchbridge",
				Name:      "socket_events_total",
				Help:      "Inbound socket events by event name",
			},
			[]string{"event"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sketchbridge",
				Name:      "socket_errors_total",
				Help:      "Private error replies by code",
			},
			[]string{"code"},
		),
		droppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sketchbridge",
				Name:      "socket_dropped_clients_total",
				Help:      "Connections closed because their send queue overflowed",
			},
		),
		connectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sketchbridge",
				Name:      "socket_connections_total",
				Help:      "Accepted socket connections",
			},
		),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.eventsTotal,
		m.errorsTotal,
		m.droppedTotal,
		m.connectionsTotal,
	}
}
