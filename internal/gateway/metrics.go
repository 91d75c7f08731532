package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_ws_active_connections",
		Help: "Current number of open WebSocket connections.",
	})

	activeSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_ws_active_subscriptions",
		Help: "Current number of active post-set subscriptions.",
	})

	eventsConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_engagement_events_consumed_total",
			Help: "Total number of engagement events consumed from the queue by status.",
		},
		[]string{"status"},
	)

	framesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_ws_frames_sent_total",
		Help: "Total number of frames written to WebSocket clients.",
	})

	clientsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_ws_clients_dropped_total",
		Help: "Total number of clients dropped because their send buffer overflowed.",
	})
)
