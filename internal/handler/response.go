package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tourbus/internal/domain"
	"tourbus/internal/middleware"
	"tourbus/internal/repository"
	"tourbus/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Server-side failures are recorded on the context and hidden from the client.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	msg := err.Error()
	switch code {
	case http.StatusServiceUnavailable:
		_ = c.Error(err)
		msg = "service temporarily unavailable"
	case http.StatusInternalServerError:
		_ = c.Error(err)
		msg = "internal server error"
	}
	c.JSON(code, ErrorResponse{Error: msg, Code: errorCode(err)})
}

// respondBadRequest sends a 400 for a request that could not be bound.
func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "VALIDATION_ERROR"})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest

	case domain.IsNotFound(err), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	case domain.IsIllegalTransition(err),
		errors.Is(err, service.ErrTripBusy),
		errors.Is(err, service.ErrTripNotPaid):
		return http.StatusConflict

	case errors.Is(err, service.ErrPaymentDeclined):
		return http.StatusPaymentRequired

	case domain.IsPersistence(err):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case domain.IsValidation(err):
		return "VALIDATION_ERROR"
	case domain.IsNotFound(err), errors.Is(err, repository.ErrNotFound):
		return "NOT_FOUND"
	case domain.IsIllegalTransition(err):
		return "ILLEGAL_TRANSITION"
	case errors.Is(err, service.ErrTripBusy):
		return "TRIP_BUSY"
	case errors.Is(err, service.ErrTripNotPaid):
		return "TRIP_NOT_PAID"
	case errors.Is(err, service.ErrPaymentDeclined):
		return "PAYMENT_DECLINED"
	case domain.IsPersistence(err):
		return "PERSISTENCE_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// forbidOtherCustomer rejects an authenticated customer acting on another customer's
// data. It reports whether the request was rejected.
func forbidOtherCustomer(c *gin.Context, customerID string) bool {
	claims := middleware.ClaimsFrom(c)
	if claims == nil || claims.Role != domain.RoleCustomer || claims.UserID == customerID {
		return false
	}
	c.JSON(http.StatusForbidden, ErrorResponse{Error: "insufficient permissions", Code: "FORBIDDEN"})
	return true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02T15:04:05Z07:00")
}
