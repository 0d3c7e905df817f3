package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tourbus/internal/domain"
	"tourbus/internal/middleware"
	"tourbus/internal/service"
)

// TripHandler handles HTTP requests for trips.
type TripHandler struct {
	tripService    *service.TripService
	receiptService *service.ReceiptService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(tripService *service.TripService, receiptService *service.ReceiptService) *TripHandler {
	return &TripHandler{tripService: tripService, receiptService: receiptService}
}

// TripResponse is the HTTP representation of a trip.
type TripResponse struct {
	ID            string `json:"id"`
	CustomerID    string `json:"customerId"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
	From          string `json:"from"`
	To            string `json:"to"`
	Date          string `json:"date"`
	TimeSlot      string `json:"timeSlot"`
	ACType        string `json:"acType"`
	Cost          int64  `json:"cost"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	DisplayStatus string `json:"displayStatus"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
	AdvancePaid   int64  `json:"advancePaid"`
	Balance       int64  `json:"balance"`
	RequestedAt   string `json:"requestedAt"`
	ApprovedAt    string `json:"approvedAt,omitempty"`
	ConfirmedAt   string `json:"confirmedAt,omitempty"`
	CompletedAt   string `json:"completedAt,omitempty"`
	CancelledAt   string `json:"cancelledAt,omitempty"`
	PaymentDate   string `json:"paymentDate,omitempty"`
	CancelReason  string `json:"cancelReason,omitempty"`
}

func toTripResponse(t *domain.Trip) TripResponse {
	return TripResponse{
		ID:            t.ID,
		CustomerID:    t.CustomerID,
		CustomerName:  t.CustomerName,
		CustomerEmail: t.CustomerEmail,
		CustomerPhone: t.CustomerPhone,
		From:          t.Origin,
		To:            t.Destination,
		Date:          t.TravelDate.Format("2006-01-02"),
		TimeSlot:      t.TimeSlot,
		ACType:        string(t.BusClass),
		Cost:          t.Cost,
		Status:        string(t.Status),
		PaymentStatus: string(t.PaymentStatus),
		DisplayStatus: string(t.DisplayStatus()),
		PaymentMethod: t.PaymentMethod,
		AdvancePaid:   t.AdvancePaid,
		Balance:       t.Balance(),
		RequestedAt:   formatTime(t.RequestedAt),
		ApprovedAt:    formatTime(t.ApprovedAt),
		ConfirmedAt:   formatTime(t.ConfirmedAt),
		CompletedAt:   formatTime(t.CompletedAt),
		CancelledAt:   formatTime(t.CancelledAt),
		PaymentDate:   formatTime(t.PaymentDate),
		CancelReason:  t.CancelReason,
	}
}

func toTripResponses(trips []*domain.Trip) []TripResponse {
	out := make([]TripResponse, 0, len(trips))
	for _, t := range trips {
		out = append(out, toTripResponse(t))
	}
	return out
}

// TripResult wraps a trip after a write.
type TripResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Trip    TripResponse `json:"trip"`
}

// DashboardResponse buckets trips by display status.
type DashboardResponse struct {
	Success        bool           `json:"success"`
	PendingTrips   []TripResponse `json:"pendingTrips"`
	ApprovedTrips  []TripResponse `json:"approvedTrips"`
	ConfirmedTrips []TripResponse `json:"confirmedTrips"`
	CompletedTrips []TripResponse `json:"completedTrips"`
	CancelledTrips []TripResponse `json:"cancelledTrips"`
	AllTrips       []TripResponse `json:"allTrips"`
}

// OwnerDashboardResponse adds the trips the owner still has to run.
type OwnerDashboardResponse struct {
	DashboardResponse
	UpcomingTrips []TripResponse `json:"upcomingTrips"`
}

func toDashboard(b domain.Buckets) DashboardResponse {
	return DashboardResponse{
		Success:        true,
		PendingTrips:   toTripResponses(b.Pending),
		ApprovedTrips:  toTripResponses(b.Approved),
		ConfirmedTrips: toTripResponses(b.Confirmed),
		CompletedTrips: toTripResponses(b.Completed),
		CancelledTrips: toTripResponses(b.Cancelled),
		AllTrips:       toTripResponses(b.All),
	}
}

// BookTripRequest is the HTTP request body for booking a trip.
type BookTripRequest struct {
	CustomerID    string `json:"customerId"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
	From          string `json:"from"`
	To            string `json:"to"`
	Date          string `json:"date"`
	TimeSlot      string `json:"timeSlot"`
	ACType        string `json:"acType"`
	Cost          int64  `json:"cost"`
}

// Book handles POST /api/trips and POST /api/trips/book
func (h *TripHandler) Book(c *gin.Context) {
	var req BookTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	// An authenticated customer always books for themselves.
	if claims := middleware.ClaimsFrom(c); claims != nil && claims.Role == domain.RoleCustomer {
		req.CustomerID = claims.UserID
	}

	travelDate, err := parseTravelDate(req.Date)
	if err != nil {
		respondError(c, err)
		return
	}

	trip, err := h.tripService.Book(c.Request.Context(), service.BookRequest{
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		Origin:        strings.TrimSpace(req.From),
		Destination:   strings.TrimSpace(req.To),
		TravelDate:    travelDate,
		TimeSlot:      strings.TrimSpace(req.TimeSlot),
		BusClass:      domain.BusClass(strings.TrimSpace(req.ACType)),
		Cost:          req.Cost,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, TripResult{
		Success: true,
		Message: "Trip request submitted successfully",
		Trip:    toTripResponse(trip),
	})
}

// parseTravelDate accepts a calendar date or a full RFC 3339 timestamp.
func parseTravelDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &domain.ValidationError{Field: "date", Msg: "is required"}
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: "date", Msg: "must be YYYY-MM-DD", Err: err}
	}
	return t, nil
}

// ListTrips handles GET /api/trips
func (h *TripHandler) ListTrips(c *gin.Context) {
	trips, err := h.tripService.ListTrips(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toTripResponses(trips))
}

// ListPending handles GET /api/trips/pending
func (h *TripHandler) ListPending(c *gin.Context) {
	trips, err := h.tripService.ListPending(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"success": true, "trips": toTripResponses(trips)})
}

// CustomerDashboard handles GET /api/trips/customer/:id
func (h *TripHandler) CustomerDashboard(c *gin.Context) {
	customerID := c.Param("id")
	if forbidOtherCustomer(c, customerID) {
		return
	}

	buckets, err := h.tripService.CustomerDashboard(c.Request.Context(), customerID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toDashboard(buckets))
}

// OwnerDashboard handles GET /api/trips/owner/all
func (h *TripHandler) OwnerDashboard(c *gin.Context) {
	buckets, err := h.tripService.OwnerDashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	dashboard := toDashboard(buckets)
	respondJSON(c, http.StatusOK, OwnerDashboardResponse{
		DashboardResponse: dashboard,
		UpcomingTrips:     dashboard.ConfirmedTrips,
	})
}

// GetTrip handles GET /api/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.tripService.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if forbidOtherCustomer(c, trip.CustomerID) {
		return
	}
	respondJSON(c, http.StatusOK, toTripResponse(trip))
}

// Approve handles PUT /api/trips/:id/approve
func (h *TripHandler) Approve(c *gin.Context) {
	trip, err := h.tripService.Approve(c.Request.Context(), c.Param("id"))
	h.respondTransition(c, trip, err, "Trip approved successfully")
}

// RejectRequest is the optional body of a rejection.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// Reject handles PUT /api/trips/:id/reject
func (h *TripHandler) Reject(c *gin.Context) {
	var req RejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	trip, err := h.tripService.Reject(c.Request.Context(), c.Param("id"), req.Reason)
	h.respondTransition(c, trip, err, "Trip rejected")
}

// Complete handles PUT /api/trips/:id/complete
func (h *TripHandler) Complete(c *gin.Context) {
	trip, err := h.tripService.Complete(c.Request.Context(), c.Param("id"))
	h.respondTransition(c, trip, err, "Trip marked as completed")
}

// UpdateStatusRequest is the HTTP request body for a status change.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// UpdateStatus handles PUT /api/trips/:id/status
func (h *TripHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	status := domain.TripStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	trip, err := h.tripService.SetStatus(c.Request.Context(), c.Param("id"), status, req.Reason)
	h.respondTransition(c, trip, err, "Trip status updated to "+string(status))
}

func (h *TripHandler) respondTransition(c *gin.Context, trip *domain.Trip, err error, message string) {
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, TripResult{Success: true, Message: message, Trip: toTripResponse(trip)})
}

// Delete handles DELETE /api/trips/:id
func (h *TripHandler) Delete(c *gin.Context) {
	if err := h.tripService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Receipt handles GET /api/trips/:id/receipt
func (h *TripHandler) Receipt(c *gin.Context) {
	ctx := c.Request.Context()
	trip, err := h.tripService.GetTrip(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if forbidOtherCustomer(c, trip.CustomerID) {
		return
	}

	receipt, err := h.receiptService.Generate(ctx, trip.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, h.receiptService.FormatReceipt(receipt))
		return
	}

	pdf, err := h.receiptService.RenderPDF(receipt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+h.receiptService.Filename(receipt)+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
