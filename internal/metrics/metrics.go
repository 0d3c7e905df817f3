// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tripTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourbus_trip_transitions_total",
			Help: "Trip lifecycle transitions by target status and outcome",
		},
		[]string{"to", "outcome"},
	)

	tripsBooked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourbus_trips_booked_total",
			Help: "Trips booked by destination and bus class",
		},
		[]string{"destination", "bus_class"},
	)

	paymentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourbus_payments_total",
			Help: "Advance payment attempts by result",
		},
		[]string{"status"},
	)

	outboxRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourbus_outbox_events_total",
			Help: "Outbox events relayed to the broker by event type and result",
		},
		[]string{"event_type", "result"},
	)

	outboxBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tourbus_outbox_batch_size",
			Help: "Number of unpublished events claimed by the last relay pass",
		},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tourbus_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status code",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)
)

// Transition outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
)

// ObserveTransition counts a lifecycle request for target status to.
func ObserveTransition(to, outcome string) {
	tripTransitions.WithLabelValues(to, outcome).Inc()
}

// ObserveBooking counts a new trip.
func ObserveBooking(destination, busClass string) {
	tripsBooked.WithLabelValues(destination, busClass).Inc()
}

// ObservePayment counts a payment attempt result.
func ObservePayment(status string) {
	paymentsProcessed.WithLabelValues(status).Inc()
}

// ObserveRelay counts a relayed outbox event.
func ObserveRelay(eventType string, ok bool) {
	result := "published"
	if !ok {
		result = "failed"
	}
	outboxRelayed.WithLabelValues(eventType, result).Inc()
}

// SetRelayBatch records the size of the last relay batch.
func SetRelayBatch(n int) {
	outboxBacklog.Set(float64(n))
}

// ObserveHTTP records the latency of a finished request.
func ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(elapsed.Seconds())
}
