package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"tourbus/internal/domain"
	"tourbus/internal/metrics"
	"tourbus/internal/queue"
	"tourbus/internal/repository"
)

// OutboxRelay moves committed notification events from the outbox to the broker.
type OutboxRelay struct {
	store     repository.Store
	publisher queue.Publisher
	interval  time.Duration
	batchSize int
	logger    *logrus.Logger
	now       func() time.Time
}

// NewOutboxRelay creates a new OutboxRelay.
func NewOutboxRelay(store repository.Store, publisher queue.Publisher, interval time.Duration, batchSize int, logger *logrus.Logger) *OutboxRelay {
	return &OutboxRelay{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// Run relays batches every interval until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.WithField("interval", r.interval.String()).Info("outbox relay started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.WithError(err).Error("outbox relay batch failed")
			}
		}
	}
}

// RelayOnce publishes one batch of unpublished events and returns how many were delivered.
// Events that fail to publish stay in the outbox for the next batch.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	delivered := 0
	err := r.store.WithinTx(ctx, func(tx repository.Store) error {
		events, err := tx.Outbox().FetchUnpublished(ctx, r.batchSize)
		if err != nil {
			return storeError("fetch outbox", "outbox event", "", err)
		}
		metrics.SetRelayBatch(len(events))

		for _, event := range events {
			msg := queue.Message{
				ID:        event.ID,
				Type:      string(event.Type),
				Recipient: event.RecipientID,
				Body:      event.Payload,
				Timestamp: event.CreatedAt,
			}
			log := r.logger.WithFields(logrus.Fields{
				"event_id":  event.ID,
				"event":     event.Type,
				"trip_id":   event.TripID,
				"recipient": event.RecipientID,
			})

			if pubErr := r.publisher.Publish(ctx, msg); pubErr != nil {
				metrics.ObserveRelay(string(event.Type), false)
				log.WithError(pubErr).Warn("outbox event publish failed")
				if err := tx.Outbox().MarkFailed(ctx, event.ID, pubErr.Error()); err != nil {
					return storeError("mark outbox failed", "outbox event", event.ID, err)
				}
				if event.Attempts+1 >= domain.MaxDeliveryAttempts {
					log.Error("outbox event exhausted its delivery attempts")
				}
				continue
			}

			if err := tx.Outbox().MarkPublished(ctx, event.ID, r.now()); err != nil {
				return storeError("mark outbox published", "outbox event", event.ID, err)
			}
			metrics.ObserveRelay(string(event.Type), true)
			delivered++
		}
		return nil
	})
	if err != nil {
		return 0, storeError("relay outbox", "outbox event", "", err)
	}
	return delivered, nil
}
