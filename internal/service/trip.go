package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tourbus/internal/domain"
	"tourbus/internal/metrics"
	"tourbus/internal/repository"
)

// defaultCustomerName is used when a booking carries neither a profile nor a name.
const defaultCustomerName = "Customer"

// TripService owns every write to a trip's status and payment fields.
type TripService struct {
	store    repository.Store
	notifier *NotificationService
	users    *UserService
	advance  int64
	logger   *logrus.Logger
	now      func() time.Time
}

// NewTripService creates a new TripService. users may be nil, in which case bookings
// take the customer snapshot from the request alone.
func NewTripService(
	store repository.Store,
	notifier *NotificationService,
	users *UserService,
	advance int64,
	logger *logrus.Logger,
) *TripService {
	return &TripService{
		store:    store,
		notifier: notifier,
		users:    users,
		advance:  advance,
		logger:   logger,
		now:      time.Now,
	}
}

// AdvanceAmount is the advance a customer pays to confirm a trip.
func (s *TripService) AdvanceAmount() int64 {
	return s.advance
}

// BookRequest contains the parameters for booking a trip.
type BookRequest struct {
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Origin        string
	Destination   string
	TravelDate    time.Time
	TimeSlot      string
	BusClass      domain.BusClass
	// Cost is optional. When set it must match the computed fare.
	Cost int64
}

// Book validates a request, prices it and stores a pending trip.
func (s *TripService) Book(ctx context.Context, req BookRequest) (*domain.Trip, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, &domain.ValidationError{Field: "customerId", Msg: "is required"}
	}
	if !domain.IsOrigin(req.Origin) {
		return nil, &domain.ValidationError{Field: "from", Msg: "unknown origin " + `"` + req.Origin + `"`}
	}

	busClass := req.BusClass
	if busClass == "" {
		busClass = domain.BusClassNonAC
	}
	timeSlot := req.TimeSlot
	if timeSlot == "" {
		timeSlot = domain.DefaultTimeSlot
	}
	if !domain.IsTimeSlot(timeSlot) {
		return nil, &domain.ValidationError{Field: "timeSlot", Msg: "unknown departure time " + `"` + timeSlot + `"`}
	}

	if req.TravelDate.IsZero() {
		return nil, &domain.ValidationError{Field: "date", Msg: "is required"}
	}
	travelDate := truncateToDate(req.TravelDate)
	if travelDate.Before(truncateToDate(s.now())) {
		return nil, &domain.ValidationError{Field: "date", Msg: "must not be in the past"}
	}

	cost, err := domain.ComputeCost(req.Destination, busClass, 1)
	if err != nil {
		return nil, err
	}
	if req.Cost != 0 && req.Cost != cost {
		return nil, &domain.ValidationError{Field: "cost", Msg: "does not match the fare for this route"}
	}

	trip := &domain.Trip{
		ID:            uuid.New().String(),
		CustomerID:    req.CustomerID,
		Origin:        req.Origin,
		Destination:   req.Destination,
		TravelDate:    travelDate,
		TimeSlot:      timeSlot,
		BusClass:      busClass,
		Cost:          cost,
		Status:        domain.TripStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		RequestedAt:   s.now(),
	}
	s.fillCustomer(ctx, trip, req)

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Trips().Create(ctx, trip); err != nil {
			return storeError("create trip", "trip", trip.ID, err)
		}
		return s.notifier.TripRequested(ctx, tx.Outbox(), trip)
	})
	if err != nil {
		return nil, storeError("create trip", "trip", trip.ID, err)
	}

	metrics.ObserveBooking(trip.Destination, string(trip.BusClass))
	s.logger.WithFields(logrus.Fields{
		"trip_id":     trip.ID,
		"customer_id": trip.CustomerID,
		"destination": trip.Destination,
		"cost":        trip.Cost,
	}).Info("trip booked")

	return trip, nil
}

// fillCustomer copies the customer contact snapshot onto trip. A stored profile wins
// over the request body.
func (s *TripService) fillCustomer(ctx context.Context, trip *domain.Trip, req BookRequest) {
	trip.CustomerName = strings.TrimSpace(req.CustomerName)
	trip.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	trip.CustomerPhone = strings.TrimSpace(req.CustomerPhone)

	if s.users != nil {
		profile, err := s.users.Profile(ctx, req.CustomerID)
		switch {
		case err == nil:
			trip.CustomerName = profile.Name
			trip.CustomerEmail = profile.Email
			trip.CustomerPhone = profile.Phone
		case !domain.IsNotFound(err):
			s.logger.WithError(err).WithField("customer_id", req.CustomerID).Warn("profile lookup failed, using request details")
		}
	}

	if trip.CustomerName == "" {
		trip.CustomerName = defaultCustomerName
	}
}

// GetTrip retrieves a trip by ID.
func (s *TripService) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, &domain.ValidationError{Field: "id", Msg: "is required"}
	}
	trip, err := s.store.Trips().GetByID(ctx, tripID)
	if err != nil {
		return nil, storeError("get trip", "trip", tripID, err)
	}
	return trip, nil
}

// ListTrips returns every trip, newest request first.
func (s *TripService) ListTrips(ctx context.Context) ([]*domain.Trip, error) {
	trips, err := s.store.Trips().GetAll(ctx)
	if err != nil {
		return nil, storeError("list trips", "trip", "", err)
	}
	return trips, nil
}

// ListPending returns the trips waiting for the owner's decision.
func (s *TripService) ListPending(ctx context.Context) ([]*domain.Trip, error) {
	trips, err := s.store.Trips().GetByStatus(ctx, domain.TripStatusPending)
	if err != nil {
		return nil, storeError("list pending trips", "trip", "", err)
	}
	return trips, nil
}

// CustomerDashboard buckets a customer's trips by display status.
func (s *TripService) CustomerDashboard(ctx context.Context, customerID string) (domain.Buckets, error) {
	if customerID == "" {
		return domain.Buckets{}, &domain.ValidationError{Field: "customerId", Msg: "is required"}
	}
	trips, err := s.store.Trips().GetByCustomer(ctx, customerID)
	if err != nil {
		return domain.Buckets{}, storeError("list customer trips", "trip", "", err)
	}
	return domain.Bucketize(trips), nil
}

// OwnerDashboard buckets every trip by display status.
func (s *TripService) OwnerDashboard(ctx context.Context) (domain.Buckets, error) {
	trips, err := s.ListTrips(ctx)
	if err != nil {
		return domain.Buckets{}, err
	}
	return domain.Bucketize(trips), nil
}

// Approve moves a pending trip to approved.
func (s *TripService) Approve(ctx context.Context, tripID string) (*domain.Trip, error) {
	return s.transition(ctx, tripID, domain.TripStatusApproved, domain.TransitionInput{})
}

// Reject cancels a pending or approved trip.
func (s *TripService) Reject(ctx context.Context, tripID, reason string) (*domain.Trip, error) {
	return s.transition(ctx, tripID, domain.TripStatusCancelled, domain.TransitionInput{CancelReason: strings.TrimSpace(reason)})
}

// Complete closes a confirmed trip.
func (s *TripService) Complete(ctx context.Context, tripID string) (*domain.Trip, error) {
	return s.transition(ctx, tripID, domain.TripStatusCompleted, domain.TransitionInput{})
}

// ConfirmPayment records a captured advance and confirms the trip.
// Confirming an already paid trip returns it unchanged.
func (s *TripService) ConfirmPayment(ctx context.Context, tripID string, amount int64, method string) (*domain.Trip, error) {
	return s.transition(ctx, tripID, domain.TripStatusConfirmed, domain.TransitionInput{
		AdvanceAmount: amount,
		PaymentMethod: strings.TrimSpace(method),
	})
}

// SetStatus applies an owner-requested status. Confirmation only happens through payment.
func (s *TripService) SetStatus(ctx context.Context, tripID string, status domain.TripStatus, reason string) (*domain.Trip, error) {
	switch status {
	case domain.TripStatusApproved:
		return s.Approve(ctx, tripID)
	case domain.TripStatusCancelled:
		return s.Reject(ctx, tripID, reason)
	case domain.TripStatusCompleted:
		return s.Complete(ctx, tripID)
	case domain.TripStatusConfirmed:
		return nil, &domain.ValidationError{Field: "status", Msg: "trips are confirmed by paying the advance"}
	default:
		return nil, &domain.ValidationError{Field: "status", Msg: "must be one of approved, cancelled, completed"}
	}
}

// Delete removes a trip.
func (s *TripService) Delete(ctx context.Context, tripID string) error {
	if tripID == "" {
		return &domain.ValidationError{Field: "id", Msg: "is required"}
	}
	if err := s.store.Trips().Delete(ctx, tripID); err != nil {
		return storeError("delete trip", "trip", tripID, err)
	}
	s.logger.WithField("trip_id", tripID).Info("trip deleted")
	return nil
}

// transition locks the trip, plans the move to target and writes the field group and
// its notification in one transaction. A trip already at target is returned unchanged.
func (s *TripService) transition(ctx context.Context, tripID string, target domain.TripStatus, in domain.TransitionInput) (*domain.Trip, error) {
	if tripID == "" {
		return nil, &domain.ValidationError{Field: "id", Msg: "is required"}
	}

	var (
		result  *domain.Trip
		outcome = metrics.OutcomeNoop
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		trip, err := tx.Trips().LockByID(ctx, tripID)
		if err != nil {
			return storeError("lock trip", "trip", tripID, err)
		}

		update, changed, err := domain.PlanTransition(trip, target, in, s.now())
		if err != nil {
			return err
		}
		if !changed {
			result = trip
			return nil
		}

		updated, err := tx.Trips().UpdateFields(ctx, tripID, update)
		if err != nil {
			return storeError("update trip", "trip", tripID, err)
		}
		if err := s.notify(ctx, tx.Outbox(), target, updated); err != nil {
			return err
		}
		result = updated
		outcome = metrics.OutcomeApplied
		return nil
	})

	log := s.logger.WithFields(logrus.Fields{"trip_id": tripID, "to": target})
	if err != nil {
		if domain.IsIllegalTransition(err) || domain.IsValidation(err) {
			metrics.ObserveTransition(string(target), metrics.OutcomeRejected)
			log.WithError(err).Warn("trip transition rejected")
		} else {
			log.WithError(err).Error("trip transition failed")
		}
		return nil, storeError("transition trip", "trip", tripID, err)
	}

	metrics.ObserveTransition(string(target), outcome)
	if outcome == metrics.OutcomeApplied {
		log.Info("trip transitioned")
	} else {
		log.Debug("trip already in requested state")
	}
	return result, nil
}

func (s *TripService) notify(ctx context.Context, outbox repository.OutboxRepository, target domain.TripStatus, trip *domain.Trip) error {
	switch target {
	case domain.TripStatusApproved:
		return s.notifier.TripApproved(ctx, outbox, trip, s.advance)
	case domain.TripStatusCancelled:
		return s.notifier.TripCancelled(ctx, outbox, trip)
	case domain.TripStatusConfirmed:
		return s.notifier.PaymentConfirmed(ctx, outbox, trip)
	case domain.TripStatusCompleted:
		return s.notifier.TripCompleted(ctx, outbox, trip)
	}
	return nil
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
