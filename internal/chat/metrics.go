package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connected_clients",
		Help: "Number of currently registered sessions",
	})

	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_messages_total",
		Help: "Total broadcasts processed by type",
	}, []string{"type"})

	BroadcastDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_broadcast_seconds",
		Help:    "Time to fan out one broadcast by type",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	DroppedDeliveries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_dropped_deliveries_total",
		Help: "Live deliveries dropped because the recipient was closed or its outbox was full",
	})

	PendingMessages = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_pending_messages",
		Help: "Messages held in offline queues across all nicknames",
	})

	EvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_evictions_total",
		Help: "Sessions closed because a new connection claimed their nickname",
	})

	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_rate_limited_total",
		Help: "Inbound lines dropped by the per-session rate limiter",
	})
)

func init() {
	prometheus.MustRegister(ConnectedClients)
	prometheus.MustRegister(MessagesTotal)
	prometheus.MustRegister(BroadcastDuration)
	prometheus.MustRegister(DroppedDeliveries)
	prometheus.MustRegister(PendingMessages)
	prometheus.MustRegister(EvictionsTotal)
	prometheus.MustRegister(RateLimitedTotal)
}
