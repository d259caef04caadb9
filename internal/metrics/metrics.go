package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps the Prometheus collectors exported by the gateway.
type Registry struct {
	ConnectionsActive prometheus.Gauge
	RoomsActive       prometheus.Gauge
	MessagesDelivered prometheus.Counter
	MessagesDropped   prometheus.Counter
	AuthFailures      *prometheus.CounterVec

	reg *prometheus.Registry
}

// NewRegistry creates and registers the gateway collectors on a private
// Prometheus registry so tests can create registries independently.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pms_ws_connections_active",
			Help: "Number of live WebSocket connections",
		}),
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pms_ws_rooms_active",
			Help: "Number of rooms with at least one member",
		}),
		MessagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pms_ws_messages_delivered_total",
			Help: "Total outbound messages handed to client send queues",
		}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pms_ws_messages_dropped_total",
			Help: "Total outbound messages dropped due to slow or closed clients",
		}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pms_ws_auth_failures_total",
			Help: "Total rejected connection attempts by reason",
		}, []string{"reason"}),
		reg: reg,
	}

	reg.MustRegister(
		r.ConnectionsActive,
		r.RoomsActive,
		r.MessagesDelivered,
		r.MessagesDropped,
		r.AuthFailures,
	)
	return r
}

// Handler returns an HTTP handler exposing the Prometheus metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
