package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"tourbus/internal/domain"
	"tourbus/internal/repository"
)

const tripColumns = `id, customer_id, customer_name, customer_email, customer_phone,
	origin, destination, travel_date, time_slot, bus_class, cost,
	status, payment_status, payment_method, advance_paid, cancel_reason,
	requested_at, approved_at, confirmed_at, completed_at, cancelled_at, payment_date`

// tripRow mirrors the trips table.
type tripRow struct {
	ID            string       `db:"id"`
	CustomerID    string       `db:"customer_id"`
	CustomerName  string       `db:"customer_name"`
	CustomerEmail string       `db:"customer_email"`
	CustomerPhone string       `db:"customer_phone"`
	Origin        string       `db:"origin"`
	Destination   string       `db:"destination"`
	TravelDate    time.Time    `db:"travel_date"`
	TimeSlot      string       `db:"time_slot"`
	BusClass      string       `db:"bus_class"`
	Cost          int64        `db:"cost"`
	Status        string       `db:"status"`
	PaymentStatus string       `db:"payment_status"`
	PaymentMethod string       `db:"payment_method"`
	AdvancePaid   int64        `db:"advance_paid"`
	CancelReason  string       `db:"cancel_reason"`
	RequestedAt   time.Time    `db:"requested_at"`
	ApprovedAt    sql.NullTime `db:"approved_at"`
	ConfirmedAt   sql.NullTime `db:"confirmed_at"`
	CompletedAt   sql.NullTime `db:"completed_at"`
	CancelledAt   sql.NullTime `db:"cancelled_at"`
	PaymentDate   sql.NullTime `db:"payment_date"`
}

func (r tripRow) toDomain() *domain.Trip {
	return &domain.Trip{
		ID:            r.ID,
		CustomerID:    r.CustomerID,
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		CustomerPhone: r.CustomerPhone,
		Origin:        r.Origin,
		Destination:   r.Destination,
		TravelDate:    r.TravelDate,
		TimeSlot:      r.TimeSlot,
		BusClass:      domain.BusClass(r.BusClass),
		Cost:          r.Cost,
		Status:        domain.TripStatus(r.Status),
		PaymentStatus: domain.PaymentStatus(r.PaymentStatus),
		PaymentMethod: r.PaymentMethod,
		AdvancePaid:   r.AdvancePaid,
		CancelReason:  r.CancelReason,
		RequestedAt:   r.RequestedAt,
		ApprovedAt:    fromNullTime(r.ApprovedAt),
		ConfirmedAt:   fromNullTime(r.ConfirmedAt),
		CompletedAt:   fromNullTime(r.CompletedAt),
		CancelledAt:   fromNullTime(r.CancelledAt),
		PaymentDate:   fromNullTime(r.PaymentDate),
	}
}

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sqlx.DB) *TripRepository {
	return &TripRepository{q: db}
}

// NewTripRepositoryWithTx creates a trip repository using a transaction.
func NewTripRepositoryWithTx(tx *sqlx.Tx) *TripRepository {
	return &TripRepository{q: tx}
}

// Create persists a new trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`

	_, err := r.q.ExecContext(ctx, query,
		trip.ID,
		trip.CustomerID,
		trip.CustomerName,
		trip.CustomerEmail,
		trip.CustomerPhone,
		trip.Origin,
		trip.Destination,
		trip.TravelDate,
		trip.TimeSlot,
		string(trip.BusClass),
		trip.Cost,
		string(trip.Status),
		string(trip.PaymentStatus),
		trip.PaymentMethod,
		trip.AdvancePaid,
		trip.CancelReason,
		trip.RequestedAt,
		toNullTime(trip.ApprovedAt),
		toNullTime(trip.ConfirmedAt),
		toNullTime(trip.CompletedAt),
		toNullTime(trip.CancelledAt),
		toNullTime(trip.PaymentDate),
	)
	return err
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	return r.getOne(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id)
}

// LockByID retrieves a trip with a row lock held until the transaction ends.
func (r *TripRepository) LockByID(ctx context.Context, id string) (*domain.Trip, error) {
	return r.getOne(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1 FOR UPDATE`, id)
}

// GetByCustomer retrieves a customer's trips.
func (r *TripRepository) GetByCustomer(ctx context.Context, customerID string) ([]*domain.Trip, error) {
	return r.getMany(ctx, `SELECT `+tripColumns+` FROM trips WHERE customer_id = $1 ORDER BY requested_at DESC`, customerID)
}

// GetByStatus retrieves trips in a status.
func (r *TripRepository) GetByStatus(ctx context.Context, status domain.TripStatus) ([]*domain.Trip, error) {
	return r.getMany(ctx, `SELECT `+tripColumns+` FROM trips WHERE status = $1 ORDER BY requested_at DESC`, string(status))
}

// GetAll retrieves all trips.
func (r *TripRepository) GetAll(ctx context.Context) ([]*domain.Trip, error) {
	return r.getMany(ctx, `SELECT `+tripColumns+` FROM trips ORDER BY requested_at DESC`)
}

// UpdateFields applies a partial update keyed only by id.
func (r *TripRepository) UpdateFields(ctx context.Context, id string, update domain.TripUpdate) (*domain.Trip, error) {
	sets, args := buildTripUpdate(update)
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE trips SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), tripColumns)

	return r.getOne(ctx, query, args...)
}

// Delete removes a trip.
func (r *TripRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id)
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

func (r *TripRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Trip, error) {
	var row tripRow
	if err := r.q.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *TripRepository) getMany(ctx context.Context, query string, args ...any) ([]*domain.Trip, error) {
	var rows []tripRow
	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	trips := make([]*domain.Trip, 0, len(rows))
	for _, row := range rows {
		trips = append(trips, row.toDomain())
	}
	return trips, nil
}

// buildTripUpdate turns the set fields of update into SET clauses.
// Timestamps keep their stored value when already present; the advance only grows.
func buildTripUpdate(u domain.TripUpdate) ([]string, []any) {
	var sets []string
	var args []any

	add := func(clause string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(clause, len(args)))
	}

	if u.Status != nil {
		add("status = $%d", string(*u.Status))
	}
	if u.PaymentStatus != nil {
		add("payment_status = $%d", string(*u.PaymentStatus))
	}
	if u.PaymentMethod != nil {
		add("payment_method = $%d", *u.PaymentMethod)
	}
	if u.AdvancePaid != nil {
		add("advance_paid = GREATEST(advance_paid, $%d)", *u.AdvancePaid)
	}
	if u.CancelReason != nil {
		add("cancel_reason = $%d", *u.CancelReason)
	}
	if u.ApprovedAt != nil {
		add("approved_at = COALESCE(approved_at, $%d)", *u.ApprovedAt)
	}
	if u.ConfirmedAt != nil {
		add("confirmed_at = COALESCE(confirmed_at, $%d)", *u.ConfirmedAt)
	}
	if u.CompletedAt != nil {
		add("completed_at = COALESCE(completed_at, $%d)", *u.CompletedAt)
	}
	if u.CancelledAt != nil {
		add("cancelled_at = COALESCE(cancelled_at, $%d)", *u.CancelledAt)
	}
	if u.PaymentDate != nil {
		add("payment_date = COALESCE(payment_date, $%d)", *u.PaymentDate)
	}

	return sets, args
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func fromNullTime(t sql.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	return time.Time{}
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
