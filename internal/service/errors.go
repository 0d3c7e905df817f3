package service

import (
	"errors"

	"tourbus/internal/domain"
	"tourbus/internal/repository"
)

var (
	// ErrTripBusy is returned when another request holds the trip's payment lock.
	ErrTripBusy = errors.New("trip is being updated by another request")

	// ErrPaymentDeclined is returned when the payment provider refuses the charge.
	ErrPaymentDeclined = errors.New("payment declined")

	// ErrTripNotPaid is returned when a receipt is requested before the advance is paid.
	ErrTripNotPaid = errors.New("trip has not been paid")
)

// storeError classifies a repository error for callers: a missing row becomes
// domain.NotFoundError, typed domain errors pass through, anything else is a
// domain.PersistenceError.
func storeError(op, resource, id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.NotFoundError{Resource: resource, ID: id, Err: err}
	}
	if domain.IsValidation(err) || domain.IsNotFound(err) || domain.IsIllegalTransition(err) || domain.IsPersistence(err) {
		return err
	}
	if errors.Is(err, ErrTripBusy) || errors.Is(err, ErrPaymentDeclined) || errors.Is(err, ErrTripNotPaid) {
		return err
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
