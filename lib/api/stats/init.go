package stats

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sketchbridge/sketchbridge-go/lib"
	"github.com/sketchbridge/sketchbridge-go/lib/ws"
)

func hubGauges(hub *ws.Hub) []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "sketchbridge",
				Name:      "active_rooms",
				Help:      "Number of canvases with at least one joined connection",
			},
			func() float64 { return float64(hub.Stats().Rooms) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "sketchbridge",
				Name:      "connections",
				Help:      "Number of open socket connections",
			},
			func() float64 { return float64(hub.Stats().Connections) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "sketchbridge",
				Name:      "joined_connections",
				Help:      "Number of connections joined to a canvas",
			},
			func() float64 { return float64(hub.Stats().Joined) },
		),
	}
}

// NewRegistry collects the runtime, process and engine metrics.
func NewRegistry(handler *ws.CanvasMessageHandler) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reg.MustRegister(hubGauges(handler.Hub())...)
	reg.MustRegister(handler.Metrics().Collectors()...)
	return reg
}

func Init(store *lib.InitStore) {
	checks := []Checker{
		DBChecker{store.Store},
		EngineChecker{store.Handler.Hub()},
	}

	store.C.Get("/health", Handler(
		store.RetrievedSettings.GitVersion,
		"sketchbridge",
		checks,
	))

	if store.RetrievedSettings.EnableMetrics {
		handler := promhttp.HandlerFor(
			NewRegistry(store.Handler),
			promhttp.HandlerOpts{},
		)
		store.C.Get("/metrics", adaptor.HTTPHandler(handler))
	}
}
