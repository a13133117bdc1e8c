package live

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "slumberhouse_live_connections",
		Help: "Open live update connections.",
	}, []string{"registry"})

	pushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slumberhouse_live_pushes_total",
		Help: "Payloads written to live update connections.",
	}, []string{"registry", "result"})

	evictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slumberhouse_live_evictions_total",
		Help: "Live update connections dropped by the server.",
	}, []string{"registry", "reason"})
)
