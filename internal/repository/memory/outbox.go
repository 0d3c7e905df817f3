package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"tourbus/internal/domain"
	"tourbus/internal/repository"
)

// OutboxRepository is an in-memory implementation of repository.OutboxRepository.
type OutboxRepository struct {
	mu     sync.RWMutex
	events []*domain.OutboxEvent // insertion order
}

// NewOutboxRepository creates an empty OutboxRepository.
func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, event *domain.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *event
	r.events = append(r.events, &stored)
	return nil
}

func (r *OutboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*domain.OutboxEvent
	for _, e := range r.events {
		if !e.Published() && e.Attempts < domain.MaxDeliveryAttempts {
			copy := *e
			result = append(result, &copy)
		}
	}
	slices.SortStableFunc(result, func(a, b *domain.OutboxEvent) int {
		return cmp.Compare(a.Attempts, b.Attempts)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	return r.update(id, func(e *domain.OutboxEvent) {
		e.PublishedAt = at
		e.Attempts++
		e.LastError = ""
	})
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.update(id, func(e *domain.OutboxEvent) {
		e.Attempts++
		e.LastError = reason
	})
}

func (r *OutboxRepository) ListByTrip(ctx context.Context, tripID string) ([]*domain.OutboxEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*domain.OutboxEvent
	for _, e := range r.events {
		if e.TripID == tripID {
			copy := *e
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (r *OutboxRepository) update(id string, fn func(*domain.OutboxEvent)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			fn(e)
			return nil
		}
	}
	return repository.ErrNotFound
}

var _ repository.OutboxRepository = (*OutboxRepository)(nil)
