package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Process-wide realtime metrics, exposed on /metrics by the app package.
var (
	metricConnectedSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatcall",
		Subsystem: "realtime",
		Name:      "connected_sessions",
		Help:      "Registered live websocket sessions.",
	})

	metricOnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatcall",
		Subsystem: "presence",
		Name:      "online_users",
		Help:      "Users currently reported as online.",
	})

	metricActiveCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatcall",
		Subsystem: "calls",
		Name:      "in_flight",
		Help:      "Calls currently ringing or connected.",
	})

	metricCallOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatcall",
		Subsystem: "calls",
		Name:      "outcomes_total",
		Help:      "Terminal call outcomes by reason.",
	}, []string{"outcome"})

	metricMessagesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatcall",
		Subsystem: "messages",
		Name:      "delivered_total",
		Help:      "Room messages fanned out to live sessions.",
	})

	metricPushesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatcall",
		Subsystem: "push",
		Name:      "sent_total",
		Help:      "Push notifications handed to the gateway, by kind and result.",
	}, []string{"kind", "result"})
)
