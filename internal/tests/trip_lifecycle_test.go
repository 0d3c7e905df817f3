package tests

import (
	"context"
	"sync"
	"testing"
	"time"

	"tourbus/internal/domain"
	"tourbus/internal/service"
)

// ──────────────────────────────────────────────
// 1. TRIP LIFECYCLE
// ──────────────────────────────────────────────

func TestLifecycle_FullJourney(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	trip := h.book(t, "cust-1")
	if trip.Status != domain.TripStatusPending || trip.PaymentStatus != domain.PaymentStatusPending {
		t.Fatalf("expected pending/pending, got %s/%s", trip.Status, trip.PaymentStatus)
	}
	if trip.Cost != 63000 {
		t.Errorf("expected cost 63000, got %d", trip.Cost)
	}

	if _, err := h.trips.Approve(ctx, trip.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	result, err := h.payments.ProcessPayment(ctx, service.ProcessPaymentRequest{TripID: trip.ID, Method: "UPI"})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if result.Trip.Status != domain.TripStatusConfirmed {
		t.Errorf("expected confirmed, got %s", result.Trip.Status)
	}
	if result.Trip.AdvancePaid != domain.DefaultAdvanceAmount {
		t.Errorf("expected advance %d, got %d", domain.DefaultAdvanceAmount, result.Trip.AdvancePaid)
	}

	completed, err := h.trips.Complete(ctx, trip.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.DisplayStatus() != domain.DisplayCompleted {
		t.Errorf("expected display %q, got %q", domain.DisplayCompleted, completed.DisplayStatus())
	}
	if completed.Cost != trip.Cost {
		t.Errorf("cost changed from %d to %d", trip.Cost, completed.Cost)
	}
	if completed.RequestedAt.IsZero() || completed.ApprovedAt.IsZero() ||
		completed.ConfirmedAt.IsZero() || completed.CompletedAt.IsZero() {
		t.Error("expected every lifecycle timestamp to be set")
	}

	want := []domain.EventType{
		domain.EventTripRequested,
		domain.EventTripApproved,
		domain.EventPaymentConfirmed,
		domain.EventPaymentConfirmed,
		domain.EventTripCompleted,
	}
	if got := h.store.OutboxRepo.EventTypes(trip.ID); !equalTypes(got, want) {
		t.Errorf("expected events %v, got %v", want, got)
	}

	if h.psp.ChargeCallCount != 1 {
		t.Errorf("expected 1 charge, got %d", h.psp.ChargeCallCount)
	}
	if h.locker.IsLocked(trip.ID) {
		t.Error("trip lock should be released after payment")
	}
}

func TestLifecycle_RepeatedTransitionIsNoop(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	trip := h.approved(t, "cust-1")

	again, err := h.trips.Approve(ctx, trip.ID)
	if err != nil {
		t.Fatalf("second approve: %v", err)
	}
	if !again.ApprovedAt.Equal(trip.ApprovedAt) {
		t.Error("approvedAt must keep its first value")
	}

	approvals := 0
	for _, typ := range h.store.OutboxRepo.EventTypes(trip.ID) {
		if typ == domain.EventTripApproved {
			approvals++
		}
	}
	if approvals != 1 {
		t.Errorf("expected 1 approval notification, got %d", approvals)
	}
}

func TestLifecycle_IllegalTransitions(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	pending := h.book(t, "cust-1")
	if _, err := h.trips.Complete(ctx, pending.ID); !domain.IsIllegalTransition(err) {
		t.Errorf("complete pending: expected illegal transition, got %v", err)
	}

	cancelled, err := h.trips.Reject(ctx, pending.ID, "  no driver  ")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if cancelled.CancelReason != "no driver" {
		t.Errorf("expected trimmed reason, got %q", cancelled.CancelReason)
	}
	if _, err := h.trips.Approve(ctx, pending.ID); !domain.IsIllegalTransition(err) {
		t.Errorf("approve cancelled: expected illegal transition, got %v", err)
	}

	paid := h.approved(t, "cust-2")
	if _, err := h.payments.ProcessPayment(ctx, service.ProcessPaymentRequest{TripID: paid.ID}); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if _, err := h.trips.Reject(ctx, paid.ID, "late"); !domain.IsIllegalTransition(err) {
		t.Errorf("reject confirmed: expected illegal transition, got %v", err)
	}
}

// ──────────────────────────────────────────────
// 2. ATOMICITY
// ──────────────────────────────────────────────

func TestLifecycle_OutboxFailureRollsBackTransition(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	trip := h.book(t, "cust-1")

	h.store.OutboxRepo.FailEnqueue(domain.EventTripApproved, ErrMockTimeout)
	_, err := h.trips.Approve(ctx, trip.ID)
	if !domain.IsPersistence(err) {
		t.Fatalf("expected persistence error, got %v", err)
	}

	stored := h.store.TripRepo.GetTrip(trip.ID)
	if stored.Status != domain.TripStatusPending {
		t.Errorf("expected trip to stay pending, got %s", stored.Status)
	}
	if !stored.ApprovedAt.IsZero() {
		t.Error("approvedAt must not survive a rolled back transition")
	}
	if h.store.RollbackCount == 0 {
		t.Error("expected a rollback")
	}

	h.store.OutboxRepo.FailEnqueue("", nil)
	if _, err := h.trips.Approve(ctx, trip.ID); err != nil {
		t.Fatalf("retry approve: %v", err)
	}
}

func TestLifecycle_BookingStoreFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.store.TripRepo.CreateError = ErrMockDBConstraint

	_, err := h.trips.Book(context.Background(), service.BookRequest{
		CustomerID:  "cust-1",
		Origin:      "Karur",
		Destination: "Munnar",
		TravelDate:  time.Now().AddDate(0, 0, 7),
	})
	if !domain.IsPersistence(err) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if h.store.TripRepo.CountTrips() != 0 {
		t.Error("no trip should be stored")
	}
	if len(h.store.OutboxRepo.snapshot()) != 0 {
		t.Error("no notification should be queued")
	}
}

// ──────────────────────────────────────────────
// 3. CONCURRENCY
// ──────────────────────────────────────────────

func TestLifecycle_ConcurrentApproveAndReject(t *testing.T) {
	t.Parallel()

	for i := 0; i < 20; i++ {
		h := newHarness(t)
		ctx := context.Background()
		trip := h.book(t, "cust-1")

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.trips.Approve(ctx, trip.ID)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := h.trips.Reject(ctx, trip.ID, "owner busy")
			errs <- err
		}()
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil && !domain.IsIllegalTransition(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		final := h.store.TripRepo.GetTrip(trip.ID)
		if final.Status != domain.TripStatusApproved && final.Status != domain.TripStatusCancelled {
			t.Fatalf("unexpected final status %s", final.Status)
		}
	}
}

func TestPayment_ConcurrentAttemptsChargeOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	trip := h.approved(t, "cust-1")

	const attempts = 10
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.payments.ProcessPayment(ctx, service.ProcessPaymentRequest{TripID: trip.ID})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil && err != service.ErrTripBusy {
			t.Errorf("unexpected error: %v", err)
		}
	}

	if h.psp.ChargeCallCount != 1 {
		t.Errorf("expected exactly 1 charge, got %d", h.psp.ChargeCallCount)
	}
	if h.store.PaymentRepo.CountPayments() != 1 {
		t.Errorf("expected 1 payment record, got %d", h.store.PaymentRepo.CountPayments())
	}
	if h.locker.IsLocked(trip.ID) {
		t.Error("lock should be released")
	}

	final := h.store.TripRepo.GetTrip(trip.ID)
	if final.Status != domain.TripStatusConfirmed || final.AdvancePaid != domain.DefaultAdvanceAmount {
		t.Errorf("expected confirmed with advance, got %s/%d", final.Status, final.AdvancePaid)
	}
}
