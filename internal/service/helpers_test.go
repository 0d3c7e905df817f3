package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"tourbus/internal/domain"
	"tourbus/internal/queue"
	"tourbus/internal/redis"
	"tourbus/internal/repository/memory"
)

var testNow = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fixture struct {
	store    *memory.Store
	users    *UserService
	trips    *TripService
	payments *PaymentService
	receipts *ReceiptService
	psp      *stubPSP
	locker   *stubLocker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := newTestLogger()
	store := memory.NewStore()
	notifier := NewNotificationService(logger)
	notifier.now = func() time.Time { return testNow }

	users := NewUserService(store.Users(), nil, logger)
	users.now = func() time.Time { return testNow }

	trips := NewTripService(store, notifier, users, domain.DefaultAdvanceAmount, logger)
	trips.now = func() time.Time { return testNow }

	psp := &stubPSP{ok: true}
	locker := &stubLocker{}
	payments := NewPaymentService(store, trips, notifier, psp, locker, 30*time.Second, logger)
	payments.now = func() time.Time { return testNow }

	receipts := NewReceiptService(trips)
	receipts.now = func() time.Time { return testNow }

	return &fixture{
		store:    store,
		users:    users,
		trips:    trips,
		payments: payments,
		receipts: receipts,
		psp:      psp,
		locker:   locker,
	}
}

func validBooking() BookRequest {
	return BookRequest{
		CustomerID:    "cust-1",
		CustomerName:  "Priya",
		CustomerEmail: "priya@example.com",
		CustomerPhone: "9876543210",
		Origin:        "Karur",
		Destination:   "Ooty",
		TravelDate:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		BusClass:      domain.BusClassAC,
	}
}

// bookApproved books and approves a trip.
func (f *fixture) bookApproved(t *testing.T) *domain.Trip {
	t.Helper()
	ctx := context.Background()
	trip, err := f.trips.Book(ctx, validBooking())
	require.NoError(t, err)
	trip, err = f.trips.Approve(ctx, trip.ID)
	require.NoError(t, err)
	return trip
}

func (f *fixture) eventsOf(t *testing.T, tripID string, eventType domain.EventType) []*domain.OutboxEvent {
	t.Helper()
	events, err := f.store.Outbox().ListByTrip(context.Background(), tripID)
	require.NoError(t, err)
	var out []*domain.OutboxEvent
	for _, e := range events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type stubPSP struct {
	mu    sync.Mutex
	ok    bool
	err   error
	calls int
	// during runs inside Charge, simulating work that races the charge.
	during func()
}

func (p *stubPSP) Charge(ctx context.Context, tripID string, amount int64) (bool, error) {
	p.mu.Lock()
	p.calls++
	during := p.during
	p.mu.Unlock()
	if during != nil {
		during()
	}
	return p.ok, p.err
}

type stubLocker struct {
	mu       sync.Mutex
	held     map[string]string
	err      error
	acquired int
	released int
}

func (l *stubLocker) AcquireTripLock(ctx context.Context, tripID string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", false, l.err
	}
	if l.held == nil {
		l.held = make(map[string]string)
	}
	if _, ok := l.held[tripID]; ok {
		return "", false, nil
	}
	l.acquired++
	token := fmt.Sprintf("tok-%d", l.acquired)
	l.held[tripID] = token
	return token, true, nil
}

func (l *stubLocker) ReleaseTripLock(ctx context.Context, tripID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[tripID] != token {
		return redis.ErrLockNotHeld
	}
	delete(l.held, tripID)
	l.released++
	return nil
}

type stubPublisher struct {
	mu        sync.Mutex
	fail      bool
	published []queue.Message
}

func (p *stubPublisher) Publish(ctx context.Context, msg queue.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, msg)
	return nil
}

func (p *stubPublisher) Close() error { return nil }
