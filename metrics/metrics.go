package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RealtimeEventsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomsync_realtime_events_published_total",
		Help: "Total number of insert events published to the realtime layer",
	})
	RealtimeEventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomsync_realtime_events_dropped_total",
		Help: "Total number of insert events dropped on slow or closed subscriptions",
	})
	RealtimeSubscriptionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roomsync_realtime_subscriptions_active",
		Help: "Current number of open realtime subscriptions",
	})
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomsync_messages_sent_total",
		Help: "Total number of chat messages persisted",
	})
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roomsync_ws_connections",
		Help: "Current number of active websocket connections",
	})
)

func init() {
	prometheus.MustRegister(
		RealtimeEventsPublished,
		RealtimeEventsDropped,
		RealtimeSubscriptionsActive,
		MessagesSent,
		WsConnections,
	)
}
