package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tourbus/internal/domain"
	"tourbus/internal/middleware"
	"tourbus/internal/service"
)

// PaymentHandler handles HTTP requests for payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// CreatePaymentRequest is the HTTP request body for POST /api/payments/create.
type CreatePaymentRequest struct {
	TripID        string `json:"tripId"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"paymentMethod"`
}

// TripPaymentRequest is the HTTP request body for POST /api/trips/:id/payment.
type TripPaymentRequest struct {
	PaymentMethod string `json:"paymentMethod"`
	AdvancePaid   int64  `json:"advancePaid"`
}

// PaymentResponse is the HTTP representation of a payment.
type PaymentResponse struct {
	ID             string `json:"id"`
	TripID         string `json:"tripId"`
	Amount         int64  `json:"amount"`
	Method         string `json:"method"`
	Status         string `json:"status"`
	IdempotencyKey string `json:"idempotencyKey"`
	CreatedAt      string `json:"createdAt"`
}

// PaymentResult is the response to a payment request.
type PaymentResult struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Payment *PaymentResponse `json:"payment,omitempty"`
	Trip    TripResponse     `json:"trip"`
}

func toPaymentResponse(p *domain.Payment) *PaymentResponse {
	if p == nil {
		return nil
	}
	return &PaymentResponse{
		ID:             p.ID,
		TripID:         p.TripID,
		Amount:         p.Amount,
		Method:         p.Method,
		Status:         string(p.Status),
		IdempotencyKey: p.IdempotencyKey,
		CreatedAt:      formatTime(p.CreatedAt),
	}
}

// CreatePayment handles POST /api/payments/create
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	h.pay(c, service.ProcessPaymentRequest{
		TripID: req.TripID,
		Amount: req.Amount,
		Method: req.PaymentMethod,
	})
}

// PayTrip handles POST /api/trips/:id/payment
func (h *PaymentHandler) PayTrip(c *gin.Context) {
	var req TripPaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	h.pay(c, service.ProcessPaymentRequest{
		TripID: c.Param("id"),
		Amount: req.AdvancePaid,
		Method: req.PaymentMethod,
	})
}

func (h *PaymentHandler) pay(c *gin.Context, req service.ProcessPaymentRequest) {
	if h.forbidForeignTrip(c, req.TripID) {
		return
	}
	result, err := h.paymentService.ProcessPayment(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, PaymentResult{
		Success: true,
		Message: "Payment successful! Your trip is confirmed.",
		Payment: toPaymentResponse(result.Payment),
		Trip:    toTripResponse(result.Trip),
	})
}

// GetPayment handles GET /api/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if h.forbidForeignTrip(c, payment.TripID) {
		return
	}
	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// forbidForeignTrip stops a customer from touching another customer's trip. It
// reports whether a response was written.
func (h *PaymentHandler) forbidForeignTrip(c *gin.Context, tripID string) bool {
	claims := middleware.ClaimsFrom(c)
	if claims == nil || claims.Role != domain.RoleCustomer {
		return false
	}
	trip, err := h.paymentService.Trip(c.Request.Context(), tripID)
	if err != nil {
		respondError(c, err)
		return true
	}
	return forbidOtherCustomer(c, trip.CustomerID)
}
