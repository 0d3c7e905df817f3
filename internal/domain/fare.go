package domain

import "sort"

// BusClass is the bus category chosen at booking.
type BusClass string

const (
	BusClassAC    BusClass = "AC"
	BusClassNonAC BusClass = "Non-AC"
)

// Valid reports whether c is a known bus class.
func (c BusClass) Valid() bool {
	return c == BusClassAC || c == BusClassNonAC
}

// Fare components in rupees.
const (
	ACSurcharge = 5000
	ServiceFee  = 3000
)

// DefaultAdvanceAmount is the advance collected to confirm a trip.
const DefaultAdvanceAmount = 5000

// DefaultTimeSlot is used when a booking does not name a departure time.
const DefaultTimeSlot = "09:00 AM"

var baseRates = map[string]int64{
	"Kodaikanal": 50000,
	"Ooty":       55000,
	"Munnar":     65000,
	"Valparai":   52000,
}

var origins = []string{"Karur", "Namakkal", "Salem", "Trichy", "Erode"}

var timeSlots = []string{"06:00 AM", "09:00 AM", "12:00 PM", "03:00 PM", "06:00 PM", "09:00 PM"}

// ComputeCost returns the fare for a trip to destination in busClass over dayCount days.
// Bookings always pass dayCount=1.
func ComputeCost(destination string, busClass BusClass, dayCount int) (int64, error) {
	base, ok := baseRates[destination]
	if !ok {
		return 0, &ValidationError{Field: "to", Msg: "unknown destination " + quote(destination)}
	}
	if !busClass.Valid() {
		return 0, &ValidationError{Field: "acType", Msg: "must be AC or Non-AC"}
	}
	if dayCount < 1 {
		return 0, &ValidationError{Field: "days", Msg: "must be at least 1"}
	}

	amount := base + ServiceFee
	if busClass == BusClassAC {
		amount += ACSurcharge
	}
	return amount * int64(dayCount), nil
}

// BaseRate returns the base rate for destination.
func BaseRate(destination string) (int64, bool) {
	r, ok := baseRates[destination]
	return r, ok
}

// Destinations returns the bookable destinations in alphabetical order.
func Destinations() []string {
	out := make([]string, 0, len(baseRates))
	for d := range baseRates {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Origins returns the pickup towns.
func Origins() []string {
	return append([]string(nil), origins...)
}

// TimeSlots returns the departure times offered.
func TimeSlots() []string {
	return append([]string(nil), timeSlots...)
}

// IsOrigin reports whether name is a known pickup town.
func IsOrigin(name string) bool {
	return contains(origins, name)
}

// IsTimeSlot reports whether slot is an offered departure time.
func IsTimeSlot(slot string) bool {
	return contains(timeSlots, slot)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func quote(s string) string {
	return `"` + s + `"`
}
