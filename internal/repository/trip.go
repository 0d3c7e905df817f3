package repository

import (
	"context"

	"tourbus/internal/domain"
)

// TripRepository defines the persistence operations for trips.
type TripRepository interface {
	// Create persists a new trip.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// LockByID retrieves a trip and holds it against concurrent transitions
	// until the surrounding transaction ends.
	LockByID(ctx context.Context, id string) (*domain.Trip, error)

	// GetByCustomer retrieves a customer's trips, newest request first.
	GetByCustomer(ctx context.Context, customerID string) ([]*domain.Trip, error)

	// GetByStatus retrieves trips in the given status, newest request first.
	GetByStatus(ctx context.Context, status domain.TripStatus) ([]*domain.Trip, error)

	// GetAll retrieves all trips, newest request first.
	GetAll(ctx context.Context) ([]*domain.Trip, error)

	// UpdateFields writes only the fields set in update and returns the stored trip.
	// Write-once timestamps keep their first value and AdvancePaid never decreases.
	UpdateFields(ctx context.Context, id string, update domain.TripUpdate) (*domain.Trip, error)

	// Delete removes a trip.
	Delete(ctx context.Context, id string) error
}
