package tests

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"tourbus/internal/domain"
	"tourbus/internal/service"
)

// harness wires the real services over mock infrastructure.
type harness struct {
	store    *MockStore
	locker   *MockLockStore
	psp      *MockPSP
	trips    *service.TripService
	payments *service.PaymentService
	users    *service.UserService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := NewMockStore()
	locker := NewMockLockStore()
	psp := NewMockPSP()
	notifier := service.NewNotificationService(logger)
	users := service.NewUserService(store.Users(), nil, logger)
	trips := service.NewTripService(store, notifier, users, domain.DefaultAdvanceAmount, logger)
	payments := service.NewPaymentService(store, trips, notifier, psp, locker, 5*time.Second, logger)

	return &harness{
		store:    store,
		locker:   locker,
		psp:      psp,
		trips:    trips,
		payments: payments,
		users:    users,
	}
}

// book creates a pending Karur to Ooty AC trip for customerID.
func (h *harness) book(t *testing.T, customerID string) *domain.Trip {
	t.Helper()
	trip, err := h.trips.Book(context.Background(), service.BookRequest{
		CustomerID:   customerID,
		CustomerName: "Priya",
		Origin:       "Karur",
		Destination:  "Ooty",
		TravelDate:   time.Now().AddDate(0, 1, 0),
		BusClass:     domain.BusClassAC,
	})
	if err != nil {
		t.Fatalf("book: unexpected error: %v", err)
	}
	return trip
}

// approved books and approves a trip.
func (h *harness) approved(t *testing.T, customerID string) *domain.Trip {
	t.Helper()
	trip := h.book(t, customerID)
	trip, err := h.trips.Approve(context.Background(), trip.ID)
	if err != nil {
		t.Fatalf("approve: unexpected error: %v", err)
	}
	return trip
}

func equalTypes(got, want []domain.EventType) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
