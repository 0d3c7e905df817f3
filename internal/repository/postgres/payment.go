package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"tourbus/internal/domain"
	"tourbus/internal/repository"
)

const paymentColumns = `id, trip_id, amount, method, status, idempotency_key, created_at`

type paymentRow struct {
	ID             string    `db:"id"`
	TripID         string    `db:"trip_id"`
	Amount         int64     `db:"amount"`
	Method         string    `db:"method"`
	Status         string    `db:"status"`
	IdempotencyKey string    `db:"idempotency_key"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r paymentRow) toDomain() *domain.Payment {
	return &domain.Payment{
		ID:             r.ID,
		TripID:         r.TripID,
		Amount:         r.Amount,
		Method:         r.Method,
		Status:         domain.ChargeStatus(r.Status),
		IdempotencyKey: r.IdempotencyKey,
		CreatedAt:      r.CreatedAt,
	}
}

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// NewPaymentRepositoryWithTx creates a payment repository using a transaction.
func NewPaymentRepositoryWithTx(tx *sqlx.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		payment.TripID,
		payment.Amount,
		payment.Method,
		string(payment.Status),
		payment.IdempotencyKey,
		payment.CreatedAt,
	)
	return err
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	var row paymentRow
	err := r.q.GetContext(ctx, &row, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// GetByIdempotencyKey retrieves a payment by its idempotency key.
// Returns nil if no payment exists with the given key.
func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	var row paymentRow
	err := r.q.GetContext(ctx, &row, `SELECT `+paymentColumns+` FROM payments WHERE idempotency_key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain(), nil
}

// UpdateStatus updates the status of a payment.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status domain.ChargeStatus) error {
	result, err := r.q.ExecContext(ctx, `UPDATE payments SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ repository.PaymentRepository = (*PaymentRepository)(nil)
