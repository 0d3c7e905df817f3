package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"

	"tourbus/internal/repository"
)

//go:embed schema.sql
var schema string

// Migrate creates the tables the repositories need when they are missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Store is a PostgreSQL implementation of repository.Store.
type Store struct {
	db       *sqlx.DB
	trips    *TripRepository
	payments *PaymentRepository
	users    *UserRepository
	outbox   *OutboxRepository
}

// NewStore creates a Store backed by db.
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		db:       db,
		trips:    NewTripRepository(db),
		payments: NewPaymentRepository(db),
		users:    NewUserRepository(db),
		outbox:   NewOutboxRepository(db),
	}
}

func (s *Store) Trips() repository.TripRepository       { return s.trips }
func (s *Store) Payments() repository.PaymentRepository { return s.payments }
func (s *Store) Users() repository.UserRepository       { return s.users }
func (s *Store) Outbox() repository.OutboxRepository    { return s.outbox }

// WithinTx runs fn against transaction-scoped repositories.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(newTxStore(tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore exposes repositories bound to a single transaction.
type txStore struct {
	tx       *sqlx.Tx
	trips    *TripRepository
	payments *PaymentRepository
	users    *UserRepository
	outbox   *OutboxRepository
}

func newTxStore(tx *sqlx.Tx) *txStore {
	return &txStore{
		tx:       tx,
		trips:    NewTripRepositoryWithTx(tx),
		payments: NewPaymentRepositoryWithTx(tx),
		users:    NewUserRepositoryWithTx(tx),
		outbox:   NewOutboxRepositoryWithTx(tx),
	}
}

func (s *txStore) Trips() repository.TripRepository       { return s.trips }
func (s *txStore) Payments() repository.PaymentRepository { return s.payments }
func (s *txStore) Users() repository.UserRepository       { return s.users }
func (s *txStore) Outbox() repository.OutboxRepository    { return s.outbox }

// WithinTx on a transaction-scoped store joins the open transaction.
func (s *txStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return fn(s)
}

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Store = (*txStore)(nil)
)
