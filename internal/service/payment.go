package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tourbus/internal/domain"
	"tourbus/internal/metrics"
	"tourbus/internal/redis"
	"tourbus/internal/repository"
)

// PSP is the interface for a Payment Service Provider.
type PSP interface {
	Charge(ctx context.Context, tripID string, amount int64) (bool, error)
}

// MockPSP is a mock implementation of PSP.
type MockPSP struct{}

// NewMockPSP creates a new mock PSP.
func NewMockPSP() *MockPSP {
	return &MockPSP{}
}

// Charge simulates a payment charge. Always succeeds.
func (p *MockPSP) Charge(ctx context.Context, tripID string, amount int64) (bool, error) {
	return true, nil
}

// PaymentService charges the advance and hands the result to the trip lifecycle.
type PaymentService struct {
	store    repository.Store
	trips    *TripService
	notifier *NotificationService
	psp      PSP
	locker   redis.TripLocker
	lockTTL  time.Duration
	logger   *logrus.Logger
	now      func() time.Time
}

// NewPaymentService creates a new PaymentService. locker may be nil, in which case
// concurrent payments for one trip are not serialized before the charge.
func NewPaymentService(
	store repository.Store,
	trips *TripService,
	notifier *NotificationService,
	psp PSP,
	locker redis.TripLocker,
	lockTTL time.Duration,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		store:    store,
		trips:    trips,
		notifier: notifier,
		psp:      psp,
		locker:   locker,
		lockTTL:  lockTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// ProcessPaymentRequest contains the parameters for paying a trip's advance.
type ProcessPaymentRequest struct {
	TripID string
	// Amount defaults to the configured advance when zero.
	Amount int64
	Method string
}

// PaymentResult is the payment record and the trip after reconciliation.
type PaymentResult struct {
	Payment *domain.Payment
	Trip    *domain.Trip
}

// ProcessPayment charges the advance for an approved trip and confirms it.
// Paying an already paid trip returns the existing payment.
func (s *PaymentService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*PaymentResult, error) {
	if req.TripID == "" {
		return nil, &domain.ValidationError{Field: "tripId", Msg: "is required"}
	}

	advance := s.trips.AdvanceAmount()
	amount := req.Amount
	if amount == 0 {
		amount = advance
	}
	if amount != advance {
		return nil, &domain.ValidationError{Field: "amount", Msg: fmt.Sprintf("advance must be %d", advance)}
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		method = domain.DefaultPaymentMethod
	}

	if s.locker != nil {
		token, acquired, err := s.locker.AcquireTripLock(ctx, req.TripID, s.lockTTL)
		if err != nil {
			return nil, &domain.PersistenceError{Op: "acquire trip lock", Err: err}
		}
		if !acquired {
			return nil, ErrTripBusy
		}
		defer func() {
			// Use a fresh context so a cancelled request still releases the lock.
			err := s.locker.ReleaseTripLock(context.Background(), req.TripID, token)
			switch {
			case errors.Is(err, redis.ErrLockNotHeld):
				s.logger.WithField("trip_id", req.TripID).Warn("trip lock expired before the payment finished")
			case err != nil:
				s.logger.WithError(err).WithField("trip_id", req.TripID).Warn("failed to release trip lock")
			}
		}()
	}

	trip, err := s.trips.GetTrip(ctx, req.TripID)
	if err != nil {
		return nil, err
	}

	key := domain.PaymentKey(trip.ID)
	existing, err := s.store.Payments().GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, storeError("get payment", "payment", key, err)
	}

	if trip.IsPaid() {
		return &PaymentResult{Payment: existing, Trip: trip}, nil
	}
	if trip.Status != domain.TripStatusApproved {
		return nil, &domain.IllegalTransitionError{
			TripID: trip.ID,
			From:   trip.Status,
			To:     domain.TripStatusConfirmed,
			Reason: "payment requires an approved trip",
		}
	}

	// A charge that succeeded before the trip write failed only needs reconciling.
	if existing != nil && existing.Status == domain.ChargeStatusSuccess {
		confirmed, err := s.trips.ConfirmPayment(ctx, trip.ID, existing.Amount, existing.Method)
		if err != nil {
			return nil, err
		}
		return &PaymentResult{Payment: existing, Trip: confirmed}, nil
	}

	payment, err := s.pendingPayment(ctx, existing, trip.ID, amount, method)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{"trip_id": trip.ID, "payment_id": payment.ID, "amount": amount})

	success, chargeErr := s.psp.Charge(ctx, trip.ID, amount)
	if chargeErr != nil || !success {
		if err := s.recordFailure(ctx, payment, trip); err != nil {
			return nil, err
		}
		metrics.ObservePayment(string(domain.ChargeStatusFailed))
		if chargeErr != nil {
			log.WithError(chargeErr).Warn("payment charge failed")
			return nil, fmt.Errorf("%w: %v", ErrPaymentDeclined, chargeErr)
		}
		log.Warn("payment declined")
		return nil, ErrPaymentDeclined
	}

	if err := s.store.Payments().UpdateStatus(ctx, payment.ID, domain.ChargeStatusSuccess); err != nil {
		return nil, storeError("update payment", "payment", payment.ID, err)
	}
	payment.Status = domain.ChargeStatusSuccess
	metrics.ObservePayment(string(domain.ChargeStatusSuccess))

	confirmed, err := s.trips.ConfirmPayment(ctx, trip.ID, amount, method)
	if err != nil {
		var illegal *domain.IllegalTransitionError
		if errors.As(err, &illegal) && illegal.From == domain.TripStatusCancelled {
			s.refundRequired(ctx, trip.ID, payment, log)
			return nil, err
		}
		log.WithError(err).Error("payment captured but trip confirmation failed")
		return nil, err
	}

	log.Info("payment captured")
	return &PaymentResult{Payment: payment, Trip: confirmed}, nil
}

// pendingPayment returns the payment record for a new charge attempt, reusing a
// previous failed or interrupted attempt.
func (s *PaymentService) pendingPayment(ctx context.Context, existing *domain.Payment, tripID string, amount int64, method string) (*domain.Payment, error) {
	if existing != nil {
		if err := s.store.Payments().UpdateStatus(ctx, existing.ID, domain.ChargeStatusPending); err != nil {
			return nil, storeError("update payment", "payment", existing.ID, err)
		}
		existing.Status = domain.ChargeStatusPending
		return existing, nil
	}

	payment := &domain.Payment{
		ID:             uuid.New().String(),
		TripID:         tripID,
		Amount:         amount,
		Method:         method,
		Status:         domain.ChargeStatusPending,
		IdempotencyKey: domain.PaymentKey(tripID),
		CreatedAt:      s.now(),
	}
	if err := s.store.Payments().Create(ctx, payment); err != nil {
		return nil, storeError("create payment", "payment", payment.ID, err)
	}
	return payment, nil
}

func (s *PaymentService) recordFailure(ctx context.Context, payment *domain.Payment, trip *domain.Trip) error {
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Payments().UpdateStatus(ctx, payment.ID, domain.ChargeStatusFailed); err != nil {
			return storeError("update payment", "payment", payment.ID, err)
		}
		return s.notifier.PaymentFailed(ctx, tx.Outbox(), trip, payment.Amount)
	})
	if err != nil {
		return storeError("record payment failure", "payment", payment.ID, err)
	}
	payment.Status = domain.ChargeStatusFailed
	return nil
}

// refundRequired queues an owner alert for an advance captured on a trip that was
// cancelled during the charge.
func (s *PaymentService) refundRequired(ctx context.Context, tripID string, payment *domain.Payment, log *logrus.Entry) {
	log.Error("advance captured on a cancelled trip, refund required")
	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		log.WithError(err).Error("failed to load cancelled trip for refund alert")
		return
	}
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		return s.notifier.RefundRequired(ctx, tx.Outbox(), trip, payment)
	})
	if err != nil {
		log.WithError(err).Error("failed to queue refund alert")
	}
}

// GetPayment retrieves a payment by ID.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	if paymentID == "" {
		return nil, &domain.ValidationError{Field: "id", Msg: "is required"}
	}
	payment, err := s.store.Payments().GetByID(ctx, paymentID)
	if err != nil {
		return nil, storeError("get payment", "payment", paymentID, err)
	}
	return payment, nil
}

// Trip returns the trip a payment belongs to.
func (s *PaymentService) Trip(ctx context.Context, tripID string) (*domain.Trip, error) {
	return s.trips.GetTrip(ctx, tripID)
}
