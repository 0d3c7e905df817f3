package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"tourbus/internal/domain"
	"tourbus/internal/repository"
)

const outboxColumns = `id, trip_id, event_type, recipient_id, payload, attempts, last_error, created_at, published_at`

type outboxRow struct {
	ID          string       `db:"id"`
	TripID      string       `db:"trip_id"`
	EventType   string       `db:"event_type"`
	RecipientID string       `db:"recipient_id"`
	Payload     []byte       `db:"payload"`
	Attempts    int          `db:"attempts"`
	LastError   string       `db:"last_error"`
	CreatedAt   time.Time    `db:"created_at"`
	PublishedAt sql.NullTime `db:"published_at"`
}

func (r outboxRow) toDomain() *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:          r.ID,
		TripID:      r.TripID,
		Type:        domain.EventType(r.EventType),
		RecipientID: r.RecipientID,
		Payload:     r.Payload,
		Attempts:    r.Attempts,
		LastError:   r.LastError,
		CreatedAt:   r.CreatedAt,
		PublishedAt: fromNullTime(r.PublishedAt),
	}
}

// OutboxRepository is a PostgreSQL implementation of repository.OutboxRepository.
type OutboxRepository struct {
	q Querier
}

// NewOutboxRepository creates a new PostgreSQL outbox repository.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{q: db}
}

// NewOutboxRepositoryWithTx creates an outbox repository using a transaction.
func NewOutboxRepositoryWithTx(tx *sqlx.Tx) *OutboxRepository {
	return &OutboxRepository{q: tx}
}

// Enqueue persists an event.
func (r *OutboxRepository) Enqueue(ctx context.Context, event *domain.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (id, trip_id, event_type, recipient_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.q.ExecContext(ctx, query,
		event.ID,
		event.TripID,
		string(event.Type),
		event.RecipientID,
		[]byte(event.Payload),
		event.CreatedAt,
	)
	return err
}

// FetchUnpublished claims a batch of pending events. Rows locked by another relay are skipped.
// Repeatedly failing rows sort behind fresh ones so they cannot block the queue.
func (r *OutboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE published_at IS NULL AND attempts < $1
		ORDER BY attempts, created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	var rows []outboxRow
	if err := r.q.SelectContext(ctx, &rows, query, domain.MaxDeliveryAttempts, limit); err != nil {
		return nil, err
	}
	return toOutboxEvents(rows), nil
}

// MarkPublished records a successful delivery.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE outbox_events SET published_at = $1, attempts = attempts + 1, last_error = '' WHERE id = $2`, at, id)
}

// MarkFailed records a failed delivery attempt.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	return r.exec(ctx, `UPDATE outbox_events SET attempts = attempts + 1, last_error = $1 WHERE id = $2`, reason, id)
}

// ListByTrip returns the events recorded for a trip.
func (r *OutboxRepository) ListByTrip(ctx context.Context, tripID string) ([]*domain.OutboxEvent, error) {
	var rows []outboxRow
	query := `SELECT ` + outboxColumns + ` FROM outbox_events WHERE trip_id = $1 ORDER BY created_at`
	if err := r.q.SelectContext(ctx, &rows, query, tripID); err != nil {
		return nil, err
	}
	return toOutboxEvents(rows), nil
}

func (r *OutboxRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, query, args...)
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

func toOutboxEvents(rows []outboxRow) []*domain.OutboxEvent {
	events := make([]*domain.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toDomain())
	}
	return events
}

var _ repository.OutboxRepository = (*OutboxRepository)(nil)
