package pkg

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "campus",
		Subsystem: "gateway",
		Name:      "connections",
		Help:      "Open websocket connections.",
	})

	GatewayFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus",
		Subsystem: "gateway",
		Name:      "frames_total",
		Help:      "Inbound websocket frames by type and outcome.",
	}, []string{"type", "outcome"})

	MessagesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "campus",
		Name:      "messages_created_total",
		Help:      "Messages persisted, by transport.",
	}, []string{"transport"})
)
