package domain

import "time"

// TripStatus represents the owner-controlled lifecycle state of a trip.
type TripStatus string

const (
	TripStatusPending   TripStatus = "pending"
	TripStatusApproved  TripStatus = "approved"
	TripStatusConfirmed TripStatus = "confirmed"
	TripStatusCompleted TripStatus = "completed"
	TripStatusCancelled TripStatus = "cancelled"
)

// Valid reports whether s is a known trip status.
func (s TripStatus) Valid() bool {
	switch s {
	case TripStatusPending, TripStatusApproved, TripStatusConfirmed, TripStatusCompleted, TripStatusCancelled:
		return true
	}
	return false
}

// PaymentStatus is the settlement flag of a trip, moved independently of TripStatus.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	// PaymentStatusPartial is reserved; no flow produces it yet.
	PaymentStatusPartial PaymentStatus = "partial"
)

// DefaultPaymentMethod is recorded when a payment does not name one.
const DefaultPaymentMethod = "Online Payment"

// Trip is a single bus booking and its lifecycle state.
// Zero-value timestamps mean "not reached yet".
type Trip struct {
	ID string

	CustomerID    string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	Origin      string
	Destination string
	TravelDate  time.Time
	TimeSlot    string
	BusClass    BusClass

	Cost int64 // frozen at creation

	Status        TripStatus
	PaymentStatus PaymentStatus
	PaymentMethod string
	AdvancePaid   int64

	RequestedAt  time.Time
	ApprovedAt   time.Time
	ConfirmedAt  time.Time
	CompletedAt  time.Time
	CancelledAt  time.Time
	PaymentDate  time.Time
	CancelReason string
}

// IsPaid reports whether the advance has been captured.
func (t *Trip) IsPaid() bool {
	return t.PaymentStatus == PaymentStatusPaid
}

// Balance is the amount still due at boarding.
func (t *Trip) Balance() int64 {
	return t.Cost - t.AdvancePaid
}

// TripUpdate is a partial-field write against a single trip. Nil fields are left untouched.
// Cost has no field here: it cannot be changed after creation.
type TripUpdate struct {
	Status        *TripStatus
	PaymentStatus *PaymentStatus
	PaymentMethod *string
	AdvancePaid   *int64 // never lowers the stored value
	CancelReason  *string

	// Write-once: ignored when the stored value is already set.
	ApprovedAt  *time.Time
	ConfirmedAt *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
	PaymentDate *time.Time
}

// Empty reports whether the update carries no fields.
func (u TripUpdate) Empty() bool {
	return u.Status == nil && u.PaymentStatus == nil && u.PaymentMethod == nil &&
		u.AdvancePaid == nil && u.CancelReason == nil && u.ApprovedAt == nil &&
		u.ConfirmedAt == nil && u.CompletedAt == nil && u.CancelledAt == nil && u.PaymentDate == nil
}

// Apply merges u into t following the same rules the database enforces.
func (u TripUpdate) Apply(t *Trip) {
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.PaymentStatus != nil {
		t.PaymentStatus = *u.PaymentStatus
	}
	if u.PaymentMethod != nil {
		t.PaymentMethod = *u.PaymentMethod
	}
	if u.AdvancePaid != nil && *u.AdvancePaid > t.AdvancePaid {
		t.AdvancePaid = *u.AdvancePaid
	}
	if u.CancelReason != nil {
		t.CancelReason = *u.CancelReason
	}
	setOnce(&t.ApprovedAt, u.ApprovedAt)
	setOnce(&t.ConfirmedAt, u.ConfirmedAt)
	setOnce(&t.CompletedAt, u.CompletedAt)
	setOnce(&t.CancelledAt, u.CancelledAt)
	setOnce(&t.PaymentDate, u.PaymentDate)
}

func setOnce(dst *time.Time, v *time.Time) {
	if v != nil && dst.IsZero() {
		*dst = *v
	}
}

// Receipt is the printable booking confirmation for a paid trip.
type Receipt struct {
	ReceiptNo string
	IssuedAt  time.Time

	CustomerID    string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	Origin      string
	Destination string
	TravelDate  time.Time
	TimeSlot    string
	BusClass    BusClass
	TripStatus  TripStatus

	TotalCost     int64
	AdvancePaid   int64
	Balance       int64
	PaymentMethod string
	PaymentDate   time.Time

	Notes []string
}
