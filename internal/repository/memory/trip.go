package memory

import (
	"context"
	"sort"
	"sync"

	"tourbus/internal/domain"
	"tourbus/internal/repository"
)

// TripRepository is an in-memory implementation of repository.TripRepository.
type TripRepository struct {
	mu    sync.RWMutex
	trips map[string]*domain.Trip
}

// NewTripRepository creates an empty TripRepository.
func NewTripRepository() *TripRepository {
	return &TripRepository{trips: make(map[string]*domain.Trip)}
}

func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *trip
	r.trips[trip.ID] = &stored
	return nil
}

func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	trip, ok := r.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *trip
	return &copy, nil
}

// LockByID is GetByID; Store.WithinTx already serializes transactions.
func (r *TripRepository) LockByID(ctx context.Context, id string) (*domain.Trip, error) {
	return r.GetByID(ctx, id)
}

func (r *TripRepository) GetByCustomer(ctx context.Context, customerID string) ([]*domain.Trip, error) {
	return r.filter(func(t *domain.Trip) bool { return t.CustomerID == customerID }), nil
}

func (r *TripRepository) GetByStatus(ctx context.Context, status domain.TripStatus) ([]*domain.Trip, error) {
	return r.filter(func(t *domain.Trip) bool { return t.Status == status }), nil
}

func (r *TripRepository) GetAll(ctx context.Context) ([]*domain.Trip, error) {
	return r.filter(func(*domain.Trip) bool { return true }), nil
}

func (r *TripRepository) UpdateFields(ctx context.Context, id string, update domain.TripUpdate) (*domain.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	trip, ok := r.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	update.Apply(trip)
	copy := *trip
	return &copy, nil
}

func (r *TripRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trips[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.trips, id)
	return nil
}

// filter returns copies of matching trips, newest request first.
func (r *TripRepository) filter(keep func(*domain.Trip) bool) []*domain.Trip {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Trip, 0, len(r.trips))
	for _, t := range r.trips {
		if keep(t) {
			copy := *t
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].RequestedAt.Equal(result[j].RequestedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].RequestedAt.After(result[j].RequestedAt)
	})
	return result
}

var _ repository.TripRepository = (*TripRepository)(nil)
