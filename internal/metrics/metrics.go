// Package metrics exposes prometheus collectors for the console.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPublished counts envelopes published to the front topic, by type.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_events_published_total",
		Help: "Envelopes published to the front topic, by envelope type.",
	}, []string{"type"})

	// WebhookRequests counts inbound Sora webhook calls, by endpoint.
	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_webhook_requests_total",
		Help: "Inbound Sora webhook requests, by endpoint.",
	}, []string{"endpoint"})

	// SSEClients tracks currently connected event stream clients.
	SSEClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "console_sse_clients",
		Help: "Currently connected SSE clients.",
	})
)
