package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "collabtext", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "collabtext", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)

	RelayPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "collabtext", Name: "relay_published_total", Help: "Messages published to the relay by topic kind."},
		[]string{"kind"},
	)
	RelayDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "collabtext", Name: "relay_delivered_total", Help: "Messages handed to subscribers by topic kind."},
		[]string{"kind"},
	)
	RelayDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "collabtext", Name: "relay_dropped_total", Help: "Messages dropped because a subscriber buffer was full."},
		[]string{"kind"},
	)

	GatewayConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "collabtext", Name: "gateway_connections", Help: "Open streaming connections."},
	)
	GatewayFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "collabtext", Name: "gateway_frames_total", Help: "Inbound frames by command."},
		[]string{"command"},
	)

	PresenceDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "collabtext", Name: "presence_documents", Help: "Documents with a presence entry (including empty ones)."},
	)
	PresenceUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "collabtext", Name: "presence_users", Help: "Sum of active users over all documents."},
	)

	DocumentOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "collabtext", Name: "document_operations_total", Help: "Document operations by kind and result."},
		[]string{"op", "result"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(RelayPublished)
	reg.MustRegister(RelayDelivered)
	reg.MustRegister(RelayDropped)
	reg.MustRegister(GatewayConnections)
	reg.MustRegister(GatewayFrames)
	reg.MustRegister(PresenceDocuments)
	reg.MustRegister(PresenceUsers)
	reg.MustRegister(DocumentOps)
}

// Result maps an error to the "result" label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
