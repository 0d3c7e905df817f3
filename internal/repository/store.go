package repository

import "context"

// Store groups the repositories that share a transaction boundary.
type Store interface {
	Trips() TripRepository
	Payments() PaymentRepository
	Users() UserRepository
	Outbox() OutboxRepository

	// WithinTx runs fn with repositories bound to one transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
