package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourbus/internal/domain"
	"tourbus/internal/repository"
)

var tripRowColumns = []string{
	"id", "customer_id", "customer_name", "customer_email", "customer_phone",
	"origin", "destination", "travel_date", "time_slot", "bus_class", "cost",
	"status", "payment_status", "payment_method", "advance_paid", "cancel_reason",
	"requested_at", "approved_at", "confirmed_at", "completed_at", "cancelled_at", "payment_date",
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func approvedTripRow(requestedAt, approvedAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(tripRowColumns).AddRow(
		"trip-1", "cust-1", "Asha", "asha@example.com", "9876543210",
		"Karur", "Ooty", requestedAt.Truncate(24*time.Hour), "09:00 AM", "AC", int64(63000),
		"approved", "pending", "", int64(0), "",
		requestedAt, approvedAt, nil, nil, nil, nil,
	)
}

func TestTripRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTripRepository(db)
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		requested := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
		approved := requested.Add(time.Hour)

		mock.ExpectQuery(`FROM trips WHERE id = \$1`).
			WithArgs("trip-1").
			WillReturnRows(approvedTripRow(requested, approved))

		trip, err := repo.GetByID(ctx, "trip-1")
		require.NoError(t, err)
		assert.Equal(t, domain.TripStatusApproved, trip.Status)
		assert.Equal(t, domain.BusClassAC, trip.BusClass)
		assert.EqualValues(t, 63000, trip.Cost)
		assert.Equal(t, approved, trip.ApprovedAt)
		assert.True(t, trip.ConfirmedAt.IsZero())
		assert.Equal(t, domain.DisplayAwaitingPayment, trip.DisplayStatus())

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		mock.ExpectQuery(`FROM trips WHERE id = \$1`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(tripRowColumns))

		trip, err := repo.GetByID(ctx, "missing")
		assert.Nil(t, trip)
		assert.ErrorIs(t, err, repository.ErrNotFound)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTripRepository_LockByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTripRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM trips WHERE id = \$1 FOR UPDATE`).
		WithArgs("trip-1").
		WillReturnRows(approvedTripRow(now, now))

	trip, err := repo.LockByID(context.Background(), "trip-1")
	require.NoError(t, err)
	assert.Equal(t, "trip-1", trip.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTripRepository(db)

	trip := &domain.Trip{
		ID:            "trip-1",
		CustomerID:    "cust-1",
		Origin:        "Salem",
		Destination:   "Munnar",
		TravelDate:    time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		TimeSlot:      "06:00 AM",
		BusClass:      domain.BusClassNonAC,
		Cost:          68000,
		Status:        domain.TripStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		RequestedAt:   time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO trips`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), trip))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepository_UpdateFields(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTripRepository(db)
	ctx := context.Background()

	t.Run("Writes only the field group", func(t *testing.T) {
		now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
		status := domain.TripStatusApproved

		mock.ExpectQuery(`UPDATE trips SET status = \$1, approved_at = COALESCE\(approved_at, \$2\) WHERE id = \$3 RETURNING`).
			WithArgs("approved", now, "trip-1").
			WillReturnRows(approvedTripRow(now.Add(-time.Hour), now))

		trip, err := repo.UpdateFields(ctx, "trip-1", domain.TripUpdate{Status: &status, ApprovedAt: &now})
		require.NoError(t, err)
		assert.Equal(t, domain.TripStatusApproved, trip.Status)
		assert.Equal(t, now, trip.ApprovedAt)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Advance never decreases", func(t *testing.T) {
		amount := int64(5000)

		mock.ExpectQuery(`UPDATE trips SET advance_paid = GREATEST\(advance_paid, \$1\) WHERE id = \$2`).
			WithArgs(amount, "trip-1").
			WillReturnRows(approvedTripRow(time.Now(), time.Now()))

		_, err := repo.UpdateFields(ctx, "trip-1", domain.TripUpdate{AdvancePaid: &amount})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not Found", func(t *testing.T) {
		status := domain.TripStatusCompleted

		mock.ExpectQuery(`UPDATE trips SET status = \$1 WHERE id = \$2`).
			WithArgs("completed", "missing").
			WillReturnRows(sqlmock.NewRows(tripRowColumns))

		_, err := repo.UpdateFields(ctx, "missing", domain.TripUpdate{Status: &status})
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Database Error", func(t *testing.T) {
		status := domain.TripStatusCompleted

		mock.ExpectQuery(`UPDATE trips SET status = \$1 WHERE id = \$2`).
			WithArgs("completed", "trip-1").
			WillReturnError(errors.New("connection reset"))

		_, err := repo.UpdateFields(ctx, "trip-1", domain.TripUpdate{Status: &status})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBuildTripUpdate_PaymentGroup(t *testing.T) {
	now := time.Now()
	status := domain.TripStatusConfirmed
	paid := domain.PaymentStatusPaid
	method := "UPI"
	amount := int64(5000)

	sets, args := buildTripUpdate(domain.TripUpdate{
		Status:        &status,
		PaymentStatus: &paid,
		PaymentMethod: &method,
		AdvancePaid:   &amount,
		ConfirmedAt:   &now,
		PaymentDate:   &now,
	})

	assert.Equal(t, []string{
		"status = $1",
		"payment_status = $2",
		"payment_method = $3",
		"advance_paid = GREATEST(advance_paid, $4)",
		"confirmed_at = COALESCE(confirmed_at, $5)",
		"payment_date = COALESCE(payment_date, $6)",
	}, sets)
	assert.Len(t, args, 6)

	sets, args = buildTripUpdate(domain.TripUpdate{})
	assert.Empty(t, sets)
	assert.Empty(t, args)
}

func TestTripRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTripRepository(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM trips WHERE id = \$1`).
		WithArgs("trip-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(ctx, "trip-1"))

	mock.ExpectExec(`DELETE FROM trips WHERE id = \$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(ctx, "missing"), repository.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewStore(db)
	ctx := context.Background()

	t.Run("Commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO outbox_events`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithinTx(ctx, func(tx repository.Store) error {
			return tx.Outbox().Enqueue(ctx, &domain.OutboxEvent{
				ID:          "evt-1",
				TripID:      "trip-1",
				Type:        domain.EventTripApproved,
				RecipientID: "cust-1",
				Payload:     []byte(`{}`),
				CreatedAt:   time.Now(),
			})
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rollback", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := store.WithinTx(ctx, func(tx repository.Store) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
