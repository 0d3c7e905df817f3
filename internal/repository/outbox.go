package repository

import (
	"context"
	"time"

	"tourbus/internal/domain"
)

// OutboxRepository stores notifications until the relay publishes them.
type OutboxRepository interface {
	// Enqueue persists an event. Called inside the transaction of the change it describes.
	Enqueue(ctx context.Context, event *domain.OutboxEvent) error

	// FetchUnpublished claims up to limit unpublished events with attempts left.
	// Events with fewer failed attempts come first, then oldest first.
	FetchUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)

	// MarkPublished records a successful delivery.
	MarkPublished(ctx context.Context, id string, at time.Time) error

	// MarkFailed records a failed delivery attempt.
	MarkFailed(ctx context.Context, id string, reason string) error

	// ListByTrip returns every event recorded for a trip, oldest first.
	ListByTrip(ctx context.Context, tripID string) ([]*domain.OutboxEvent, error)
}
