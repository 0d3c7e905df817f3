package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tourbus/internal/domain"
)

// FareHandler serves the fare tables and quotes.
type FareHandler struct {
	advance int64
}

// NewFareHandler creates a new FareHandler.
func NewFareHandler(advance int64) *FareHandler {
	return &FareHandler{advance: advance}
}

// DestinationRate is a destination and its daily base rate.
type DestinationRate struct {
	Name     string `json:"name"`
	BaseRate int64  `json:"baseRate"`
}

// ListFares handles GET /api/fares
func (h *FareHandler) ListFares(c *gin.Context) {
	names := domain.Destinations()
	destinations := make([]DestinationRate, 0, len(names))
	for _, name := range names {
		rate, _ := domain.BaseRate(name)
		destinations = append(destinations, DestinationRate{Name: name, BaseRate: rate})
	}

	respondJSON(c, http.StatusOK, gin.H{
		"origins":       domain.Origins(),
		"destinations":  destinations,
		"timeSlots":     domain.TimeSlots(),
		"busClasses":    []domain.BusClass{domain.BusClassAC, domain.BusClassNonAC},
		"acSurcharge":   domain.ACSurcharge,
		"serviceFee":    domain.ServiceFee,
		"advanceAmount": h.advance,
	})
}

// Quote handles GET /api/fares/quote?to=&acType=&days=
func (h *FareHandler) Quote(c *gin.Context) {
	days := 1
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, &domain.ValidationError{Field: "days", Msg: "must be a whole number", Err: err})
			return
		}
		days = n
	}

	busClass := domain.BusClass(c.DefaultQuery("acType", string(domain.BusClassNonAC)))
	cost, err := domain.ComputeCost(c.Query("to"), busClass, days)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{
		"success": true,
		"to":      c.Query("to"),
		"acType":  busClass,
		"days":    days,
		"cost":    cost,
		"advance": h.advance,
	})
}
