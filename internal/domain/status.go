package domain

// DisplayStatus is the label dashboards show for a trip. It is derived on every read.
type DisplayStatus string

const (
	DisplayPendingApproval DisplayStatus = "pending approval"
	DisplayAwaitingPayment DisplayStatus = "awaiting payment"
	DisplayConfirmed       DisplayStatus = "confirmed"
	DisplayCompleted       DisplayStatus = "completed"
	DisplayCancelled       DisplayStatus = "cancelled"
)

// DeriveDisplayStatus maps (status, paymentStatus) to a display label.
// The two inputs are written by different flows, so every combination is handled.
func DeriveDisplayStatus(status TripStatus, payment PaymentStatus) DisplayStatus {
	switch {
	case status == TripStatusCompleted:
		return DisplayCompleted
	case status == TripStatusCancelled:
		return DisplayCancelled
	case status == TripStatusPending:
		return DisplayPendingApproval
	case status == TripStatusConfirmed || payment == PaymentStatusPaid:
		return DisplayConfirmed
	default:
		return DisplayAwaitingPayment
	}
}

// DisplayStatus returns the derived label for t.
func (t *Trip) DisplayStatus() DisplayStatus {
	return DeriveDisplayStatus(t.Status, t.PaymentStatus)
}

// Buckets groups trips by display status. Every trip lands in exactly one bucket
// and keeps its input order.
type Buckets struct {
	Pending   []*Trip
	Approved  []*Trip // approved, not yet paid
	Confirmed []*Trip
	Completed []*Trip
	Cancelled []*Trip
	All       []*Trip
}

// Bucketize recomputes bucket membership from the live fields of trips.
func Bucketize(trips []*Trip) Buckets {
	b := Buckets{
		Pending:   []*Trip{},
		Approved:  []*Trip{},
		Confirmed: []*Trip{},
		Completed: []*Trip{},
		Cancelled: []*Trip{},
		All:       make([]*Trip, 0, len(trips)),
	}
	for _, t := range trips {
		b.All = append(b.All, t)
		switch t.DisplayStatus() {
		case DisplayPendingApproval:
			b.Pending = append(b.Pending, t)
		case DisplayAwaitingPayment:
			b.Approved = append(b.Approved, t)
		case DisplayConfirmed:
			b.Confirmed = append(b.Confirmed, t)
		case DisplayCompleted:
			b.Completed = append(b.Completed, t)
		case DisplayCancelled:
			b.Cancelled = append(b.Cancelled, t)
		}
	}
	return b
}
