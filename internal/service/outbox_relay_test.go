package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourbus/internal/domain"
)

func TestOutboxRelay_RelayOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trip := f.bookApproved(t)

	pub := &stubPublisher{}
	relay := NewOutboxRelay(f.store, pub, time.Second, 10, newTestLogger())

	n, err := relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.published, 2)
	assert.Equal(t, string(domain.EventTripRequested), pub.published[0].Type)
	assert.Equal(t, string(domain.EventTripApproved), pub.published[1].Type)
	assert.Equal(t, domain.OwnerRecipient, pub.published[0].Recipient)
	assert.Equal(t, trip.CustomerID, pub.published[1].Recipient)

	var payload NotificationPayload
	require.NoError(t, json.Unmarshal(pub.published[1].Body, &payload))
	assert.Equal(t, trip.ID, payload.TripID)
	assert.Equal(t, "approved", payload.Status)
	assert.Equal(t, string(domain.DisplayAwaitingPayment), payload.DisplayStatus)
	assert.EqualValues(t, domain.DefaultAdvanceAmount, payload.Amount)

	// Nothing left.
	n, err = relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutboxRelay_PaymentConfirmedReachesBothParties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trip := f.bookApproved(t)
	_, err := f.payments.ProcessPayment(ctx, ProcessPaymentRequest{TripID: trip.ID, Method: "upi"})
	require.NoError(t, err)

	pub := &stubPublisher{}
	relay := NewOutboxRelay(f.store, pub, time.Second, 10, newTestLogger())
	_, err = relay.RelayOnce(ctx)
	require.NoError(t, err)

	recipients := map[string]string{}
	for _, msg := range pub.published {
		if msg.Type != string(domain.EventPaymentConfirmed) {
			continue
		}
		var payload NotificationPayload
		require.NoError(t, json.Unmarshal(msg.Body, &payload))
		assert.Equal(t, msg.Recipient, payload.RecipientID)
		recipients[msg.Recipient] = string(msg.Body)
	}
	require.Len(t, recipients, 2)
	assert.NotEqual(t, recipients[trip.CustomerID], recipients[domain.OwnerRecipient])
}

func TestOutboxRelay_FailedPublishIsRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	trip, err := f.trips.Book(ctx, validBooking())
	require.NoError(t, err)

	pub := &stubPublisher{fail: true}
	relay := NewOutboxRelay(f.store, pub, time.Second, 10, newTestLogger())

	n, err := relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	events, err := f.store.Outbox().ListByTrip(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Attempts)
	assert.Equal(t, "broker unavailable", events[0].LastError)
	assert.False(t, events[0].Published())

	pub.fail = false
	n, err = relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOutboxRelay_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	_, err := f.trips.Book(context.Background(), validBooking())
	require.NoError(t, err)

	pub := &stubPublisher{}
	relay := NewOutboxRelay(f.store, pub, 10*time.Millisecond, 10, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.published) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
