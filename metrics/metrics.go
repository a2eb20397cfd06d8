// Package metrics exposes client-side operational counters on a dedicated
// registry. Embedding applications may serve or push the registry; the SDK
// itself only increments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registry holds all collectors registered by this module.
	Registry = prometheus.NewRegistry()

	// RequestsTotal counts gateway requests by method and response status.
	RequestsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "echotrace",
		Subsystem: "client",
		Name:      "requests_total",
		Help:      "Requests dispatched through the authenticated gateway.",
	}, []string{"method", "status"})

	// RetriesTotal counts 401-triggered request retries.
	RetriesTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "echotrace",
		Subsystem: "client",
		Name:      "request_retries_total",
		Help:      "Requests re-dispatched after a refresh-on-401.",
	})

	// TokenRefreshTotal counts token refresh calls by result.
	TokenRefreshTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "echotrace",
		Subsystem: "session",
		Name:      "token_refresh_total",
		Help:      "Token refresh attempts by result.",
	}, []string{"result"})

	// ChannelReconnectsTotal counts reminder channel reconnect attempts.
	ChannelReconnectsTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "echotrace",
		Subsystem: "reminder",
		Name:      "channel_reconnects_total",
		Help:      "Reconnect attempts of the reminder channel.",
	})

	// RemindersReceivedTotal counts reminders delivered to the consumer.
	RemindersReceivedTotal = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "echotrace",
		Subsystem: "reminder",
		Name:      "received_total",
		Help:      "Reminder events delivered to the consumer.",
	})
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)
