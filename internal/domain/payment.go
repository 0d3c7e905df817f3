package domain

import (
	"fmt"
	"time"
)

// ChargeStatus represents the state of an advance payment attempt.
type ChargeStatus string

const (
	ChargeStatusPending ChargeStatus = "PENDING"
	ChargeStatusSuccess ChargeStatus = "SUCCESS"
	ChargeStatusFailed  ChargeStatus = "FAILED"
)

// Payment records an advance charged against a trip. At most one exists per trip.
type Payment struct {
	ID             string
	TripID         string
	Amount         int64
	Method         string
	Status         ChargeStatus
	IdempotencyKey string
	CreatedAt      time.Time
}

// PaymentKey is the idempotency key of the advance payment for tripID.
func PaymentKey(tripID string) string {
	return fmt.Sprintf("payment:%s", tripID)
}
