package domain

import (
	"encoding/json"
	"time"
)

// EventType names a lifecycle notification.
type EventType string

const (
	EventTripRequested    EventType = "TRIP_REQUESTED"
	EventTripApproved     EventType = "TRIP_APPROVED"
	EventTripCancelled    EventType = "TRIP_CANCELLED"
	EventPaymentConfirmed EventType = "PAYMENT_CONFIRMED"
	EventPaymentFailed    EventType = "PAYMENT_FAILED"
	EventTripCompleted    EventType = "TRIP_COMPLETED"
	EventRefundRequired   EventType = "PAYMENT_REFUND_REQUIRED"
)

// OwnerRecipient addresses the bus owner in notifications.
const OwnerRecipient = "owner"

// MaxDeliveryAttempts is how many failed publishes an event gets before the relay
// stops picking it up. Exhausted events stay in the outbox for inspection.
const MaxDeliveryAttempts = 10

// OutboxEvent is a notification persisted alongside the state change that caused it
// and relayed to the message broker later.
type OutboxEvent struct {
	ID          string
	TripID      string
	Type        EventType
	RecipientID string
	Payload     json.RawMessage
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	PublishedAt time.Time
}

// Published reports whether the relay has delivered the event.
func (e *OutboxEvent) Published() bool {
	return !e.PublishedAt.IsZero()
}
