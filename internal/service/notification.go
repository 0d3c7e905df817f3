package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tourbus/internal/domain"
	"tourbus/internal/repository"
)

// NotificationPayload is the JSON body of an outbox event.
type NotificationPayload struct {
	TripID        string `json:"tripId"`
	RecipientID   string `json:"recipientId"`
	Title         string `json:"title"`
	Message       string `json:"message"`
	CustomerName  string `json:"customerName"`
	Destination   string `json:"destination"`
	TravelDate    string `json:"travelDate"`
	Status        string `json:"status"`
	DisplayStatus string `json:"displayStatus"`
	Amount        int64  `json:"amount,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// NotificationService turns lifecycle changes into outbox events. Events are written
// through the outbox of the caller's transaction so they commit with the change.
type NotificationService struct {
	logger *logrus.Logger
	now    func() time.Time
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(logger *logrus.Logger) *NotificationService {
	return &NotificationService{logger: logger, now: time.Now}
}

// TripRequested tells the owner a customer asked for a trip.
func (s *NotificationService) TripRequested(ctx context.Context, outbox repository.OutboxRepository, trip *domain.Trip) error {
	return s.enqueue(ctx, outbox, domain.EventTripRequested, domain.OwnerRecipient, trip, NotificationPayload{
		Title:   "New Trip Request",
		Message: fmt.Sprintf("%s requested a trip from %s to %s", trip.CustomerName, trip.Origin, trip.Destination),
		Amount:  trip.Cost,
	})
}

// TripApproved tells the customer to pay the advance.
func (s *NotificationService) TripApproved(ctx context.Context, outbox repository.OutboxRepository, trip *domain.Trip, advance int64) error {
	return s.enqueue(ctx, outbox, domain.EventTripApproved, trip.CustomerID, trip, NotificationPayload{
		Title:   "Trip Approved",
		Message: fmt.Sprintf("Your trip to %s was approved. Pay the advance of Rs. %d to confirm it.", trip.Destination, advance),
		Amount:  advance,
	})
}

// TripCancelled tells the customer the trip will not run.
func (s *NotificationService) TripCancelled(ctx context.Context, outbox repository.OutboxRepository, trip *domain.Trip) error {
	return s.enqueue(ctx, outbox, domain.EventTripCancelled, trip.CustomerID, trip, NotificationPayload{
		Title:   "Trip Cancelled",
		Message: fmt.Sprintf("Your trip to %s was cancelled", trip.Destination),
		Reason:  trip.CancelReason,
	})
}

// PaymentConfirmed tells both the customer and the owner that the advance was captured.
func (s *NotificationService) PaymentConfirmed(ctx context.Context, outbox repository.OutboxRepository, trip *domain.Trip) error {
	payload := NotificationPayload{
		Title:   "Payment Received",
		Message: fmt.Sprintf("Advance of Rs. %d received for the trip to %s. Balance due: Rs. %d", trip.AdvancePaid, trip.Destination, trip.Balance()),
		Amount:  trip.AdvancePaid,
	}
	if err := s.enqueue(ctx, outbox, domain.EventPaymentConfirmed, trip.CustomerID, trip, payload); err != nil {
		return err
	}
	return s.enqueue(ctx, outbox, domain.EventPaymentConfirmed, domain.OwnerRecipient, trip, payload)
}

// PaymentFailed tells the customer the charge did not go through.
func (s *NotificationService) PaymentFailed(ctx context.Context, outbox repository.OutboxRepository, trip *domain.Trip, amount int64) error {
	return s.enqueue(ctx, outbox, domain.EventPaymentFailed, trip.CustomerID, trip, NotificationPayload{
		Title:   "Payment Failed",
		Message: fmt.Sprintf("Payment of Rs. %d failed. Please try again.", amount),
		Amount:  amount,
	})
}

// RefundRequired alerts the owner that an advance was captured on a trip that was
// cancelled while the charge was in flight.
func (s *NotificationService) RefundRequired(ctx context.Context, outbox repository.OutboxRepository, trip *domain.Trip, payment *domain.Payment) error {
	return s.enqueue(ctx, outbox, domain.EventRefundRequired, domain.OwnerRecipient, trip, NotificationPayload{
		Title:   "Refund Required",
		Message: fmt.Sprintf("Advance of Rs. %d (payment %s) was captured after the trip to %s was cancelled.", payment.Amount, payment.ID, trip.Destination),
		Amount:  payment.Amount,
		Reason:  trip.CancelReason,
	})
}

// TripCompleted thanks the customer once the owner closes the trip.
func (s *NotificationService) TripCompleted(ctx context.Context, outbox repository.OutboxRepository, trip *domain.Trip) error {
	return s.enqueue(ctx, outbox, domain.EventTripCompleted, trip.CustomerID, trip, NotificationPayload{
		Title:   "Trip Completed",
		Message: fmt.Sprintf("Thank you for travelling to %s with us!", trip.Destination),
	})
}

func (s *NotificationService) enqueue(
	ctx context.Context,
	outbox repository.OutboxRepository,
	eventType domain.EventType,
	recipientID string,
	trip *domain.Trip,
	payload NotificationPayload,
) error {
	payload.TripID = trip.ID
	payload.RecipientID = recipientID
	payload.CustomerName = trip.CustomerName
	payload.Destination = trip.Destination
	payload.TravelDate = trip.TravelDate.Format("2006-01-02")
	payload.Status = string(trip.Status)
	payload.DisplayStatus = string(trip.DisplayStatus())

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	event := &domain.OutboxEvent{
		ID:          uuid.New().String(),
		TripID:      trip.ID,
		Type:        eventType,
		RecipientID: recipientID,
		Payload:     body,
		CreatedAt:   s.now(),
	}
	if err := outbox.Enqueue(ctx, event); err != nil {
		return storeError("enqueue notification", "trip", trip.ID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"event":     eventType,
		"trip_id":   trip.ID,
		"recipient": recipientID,
	}).Info("notification queued")
	return nil
}
