// Package memory keeps all state in process memory. It backs demo mode and tests;
// nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"tourbus/internal/repository"
)

// Store is an in-memory implementation of repository.Store.
type Store struct {
	txMu     sync.Mutex
	trips    *TripRepository
	payments *PaymentRepository
	users    *UserRepository
	outbox   *OutboxRepository
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		trips:    NewTripRepository(),
		payments: NewPaymentRepository(),
		users:    NewUserRepository(),
		outbox:   NewOutboxRepository(),
	}
}

func (s *Store) Trips() repository.TripRepository       { return s.trips }
func (s *Store) Payments() repository.PaymentRepository { return s.payments }
func (s *Store) Users() repository.UserRepository       { return s.users }
func (s *Store) Outbox() repository.OutboxRepository    { return s.outbox }

// WithinTx serializes fn against other transactions. Writes made before an error are kept:
// there is no rollback.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(&txStore{Store: s})
}

// txStore joins the already held transaction instead of locking again.
type txStore struct {
	*Store
}

func (s *txStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return fn(s)
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Store = (*txStore)(nil)
)
