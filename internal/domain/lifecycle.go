package domain

import "time"

var tripTransitions = map[TripStatus]map[TripStatus]struct{}{
	TripStatusPending: {
		TripStatusApproved:  {},
		TripStatusCancelled: {},
	},
	TripStatusApproved: {
		TripStatusConfirmed: {},
		TripStatusCancelled: {},
	},
	TripStatusConfirmed: {
		TripStatusCompleted: {},
	},
	TripStatusCompleted: {},
	TripStatusCancelled: {},
}

// CanTransition reports whether a trip in current may move to next.
// Staying in the same state is always allowed.
func CanTransition(current, next TripStatus) bool {
	if current == next {
		return true
	}
	allowed, ok := tripTransitions[current]
	if !ok {
		return false
	}
	_, ok = allowed[next]
	return ok
}

// IsTerminal reports whether no further transitions leave s.
func IsTerminal(s TripStatus) bool {
	return len(tripTransitions[s]) == 0
}

// TransitionInput carries the values some transitions record.
type TransitionInput struct {
	CancelReason  string
	AdvanceAmount int64
	PaymentMethod string
}

// PlanTransition computes the field group that moves trip to target.
// changed is false when the trip is already there; the caller must then write nothing.
func PlanTransition(trip *Trip, target TripStatus, in TransitionInput, now time.Time) (update TripUpdate, changed bool, err error) {
	if trip.Status == target {
		return TripUpdate{}, false, nil
	}
	if target == TripStatusConfirmed && trip.IsPaid() {
		return TripUpdate{}, false, nil
	}
	if !CanTransition(trip.Status, target) {
		return TripUpdate{}, false, &IllegalTransitionError{TripID: trip.ID, From: trip.Status, To: target}
	}

	status := target
	update.Status = &status

	switch target {
	case TripStatusApproved:
		update.ApprovedAt = &now

	case TripStatusCancelled:
		update.CancelledAt = &now
		reason := in.CancelReason
		update.CancelReason = &reason

	case TripStatusConfirmed:
		if in.AdvanceAmount <= 0 {
			return TripUpdate{}, false, &ValidationError{Field: "amount", Msg: "advance must be positive"}
		}
		if in.AdvanceAmount > trip.Cost {
			return TripUpdate{}, false, &ValidationError{Field: "amount", Msg: "advance exceeds trip cost"}
		}
		paid := PaymentStatusPaid
		method := in.PaymentMethod
		if method == "" {
			method = DefaultPaymentMethod
		}
		amount := in.AdvanceAmount
		update.PaymentStatus = &paid
		update.PaymentMethod = &method
		update.AdvancePaid = &amount
		update.PaymentDate = &now
		update.ConfirmedAt = &now

	case TripStatusCompleted:
		update.CompletedAt = &now
	}

	return update, true, nil
}
