package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourbus/internal/auth"
	"tourbus/internal/domain"
	"tourbus/internal/handler"
	"tourbus/internal/repository/memory"
	"tourbus/internal/service"
)

const testSecret = "test-secret-key-for-testing-purposes-only"

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, tokens *auth.Service) *gin.Engine {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := memory.NewStore()
	notifier := service.NewNotificationService(logger)
	users := service.NewUserService(store.Users(), nil, logger)
	trips := service.NewTripService(store, notifier, users, domain.DefaultAdvanceAmount, logger)
	payments := service.NewPaymentService(store, trips, notifier, service.NewMockPSP(), nil, time.Second, logger)

	return NewRouter(RouterDeps{
		TripHandler:    handler.NewTripHandler(trips, service.NewReceiptService(trips)),
		PaymentHandler: handler.NewPaymentHandler(payments),
		UserHandler:    handler.NewUserHandler(users),
		FareHandler:    handler.NewFareHandler(domain.DefaultAdvanceAmount),
		Logger:         logger,
		Tokens:         tokens,
	})
}

func do(t *testing.T, r http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func bookingBody(customerID string) handler.BookTripRequest {
	return handler.BookTripRequest{
		CustomerID:   customerID,
		CustomerName: "Priya",
		From:         "Karur",
		To:           "Ooty",
		Date:         time.Now().AddDate(0, 0, 30).Format("2006-01-02"),
		ACType:       string(domain.BusClassAC),
	}
}

func TestRouter_TripLifecycle(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(t, r, http.MethodPost, "/api/trips/book", bookingBody("cust-1"), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booked := decode[handler.TripResult](t, w)
	id := booked.Trip.ID
	assert.Equal(t, "pending", booked.Trip.Status)
	assert.Equal(t, "pending approval", booked.Trip.DisplayStatus)
	assert.EqualValues(t, 63000, booked.Trip.Cost)

	// Paying before approval is a conflict.
	w = do(t, r, http.MethodPost, "/api/trips/"+id+"/payment", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ILLEGAL_TRANSITION", decode[handler.ErrorResponse](t, w).Code)

	w = do(t, r, http.MethodPut, "/api/trips/"+id+"/approve", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "approved", decode[handler.TripResult](t, w).Trip.Status)

	w = do(t, r, http.MethodGet, "/api/trips/"+id+"/receipt?format=text", nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "TRIP_NOT_PAID", decode[handler.ErrorResponse](t, w).Code)

	w = do(t, r, http.MethodPost, "/api/trips/"+id+"/payment", map[string]any{"paymentMethod": "upi"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	paid := decode[handler.PaymentResult](t, w)
	assert.True(t, paid.Success)
	assert.Equal(t, "confirmed", paid.Trip.Status)
	assert.Equal(t, "paid", paid.Trip.PaymentStatus)
	assert.EqualValues(t, 5000, paid.Trip.AdvancePaid)
	assert.EqualValues(t, 58000, paid.Trip.Balance)
	require.NotNil(t, paid.Payment)

	// A second payment returns the same record.
	w = do(t, r, http.MethodPost, "/api/payments/create", map[string]any{"tripId": id}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, paid.Payment.ID, decode[handler.PaymentResult](t, w).Payment.ID)

	w = do(t, r, http.MethodGet, "/api/payments/"+paid.Payment.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/trips/"+id+"/receipt?format=text", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "BOOKING CONFIRMATION")
	assert.Contains(t, w.Body.String(), id)

	w = do(t, r, http.MethodGet, "/api/trips/"+id+"/receipt", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".pdf")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = do(t, r, http.MethodGet, "/api/trips/owner/all", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	owner := decode[handler.OwnerDashboardResponse](t, w)
	assert.Len(t, owner.ConfirmedTrips, 1)
	assert.Len(t, owner.UpcomingTrips, 1)
	assert.Empty(t, owner.PendingTrips)

	w = do(t, r, http.MethodPut, "/api/trips/"+id+"/complete", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", decode[handler.TripResult](t, w).Trip.DisplayStatus)

	w = do(t, r, http.MethodGet, "/api/trips/customer/cust-1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	dashboard := decode[handler.DashboardResponse](t, w)
	assert.Len(t, dashboard.CompletedTrips, 1)
	assert.Len(t, dashboard.AllTrips, 1)
}

func TestRouter_Errors(t *testing.T) {
	r := newTestRouter(t, nil)

	t.Run("unknown destination", func(t *testing.T) {
		body := bookingBody("cust-1")
		body.To = "Goa"
		w := do(t, r, http.MethodPost, "/api/trips", body, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", decode[handler.ErrorResponse](t, w).Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/trips", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing trip", func(t *testing.T) {
		w := do(t, r, http.MethodPut, "/api/trips/nope/approve", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "NOT_FOUND", decode[handler.ErrorResponse](t, w).Code)
	})

	t.Run("confirmed is not settable directly", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/trips", bookingBody("cust-2"), "")
		require.Equal(t, http.StatusCreated, w.Code)
		id := decode[handler.TripResult](t, w).Trip.ID

		w = do(t, r, http.MethodPut, "/api/trips/"+id+"/status", map[string]string{"status": "confirmed"}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = do(t, r, http.MethodPut, "/api/trips/"+id+"/reject", map[string]string{"reason": "no bus"}, "")
		require.Equal(t, http.StatusOK, w.Code)
		rejected := decode[handler.TripResult](t, w)
		assert.Equal(t, "cancelled", rejected.Trip.Status)
		assert.Equal(t, "no bus", rejected.Trip.CancelReason)

		w = do(t, r, http.MethodPut, "/api/trips/"+id+"/approve", nil, "")
		assert.Equal(t, http.StatusConflict, w.Code)

		w = do(t, r, http.MethodDelete, "/api/trips/"+id, nil, "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		w = do(t, r, http.MethodGet, "/api/trips/"+id, nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestRouter_FaresAndUsers(t *testing.T) {
	r := newTestRouter(t, nil)

	w := do(t, r, http.MethodGet, "/api/fares/quote?to=Valparai&acType=AC&days=3", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	quote := decode[map[string]any](t, w)
	assert.EqualValues(t, 180000, quote["cost"])

	w = do(t, r, http.MethodGet, "/api/fares/quote?to=Ooty&days=x", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/fares", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/api/users", map[string]string{"name": "Priya", "email": "Priya@Example.com"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := decode[handler.UserResponse](t, w)
	assert.Equal(t, "priya@example.com", user.Email)
	assert.Equal(t, "customer", user.Role)

	w = do(t, r, http.MethodPost, "/api/users", map[string]string{"name": "Again", "email": "priya@example.com"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/users/"+user.ID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	// The stored profile fills in the booking snapshot.
	body := bookingBody(user.ID)
	body.CustomerName = ""
	w = do(t, r, http.MethodPost, "/api/trips", body, "")
	require.Equal(t, http.StatusCreated, w.Code)
	trip := decode[handler.TripResult](t, w).Trip
	assert.Equal(t, "Priya", trip.CustomerName)
	assert.Equal(t, "priya@example.com", trip.CustomerEmail)
}

func TestRouter_Auth(t *testing.T) {
	tokens := auth.NewService(testSecret, time.Hour)
	r := newTestRouter(t, tokens)

	owner, err := tokens.GenerateToken("owner-1", domain.RoleOwner)
	require.NoError(t, err)
	customer, err := tokens.GenerateToken("cust-1", domain.RoleCustomer)
	require.NoError(t, err)

	// Public routes need no token.
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/api/fares", nil, "").Code)
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/health", nil, "").Code)

	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodGet, "/api/trips", nil, "").Code)

	// A customer always books as themselves.
	w := do(t, r, http.MethodPost, "/api/trips", bookingBody("someone-else"), customer)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[handler.TripResult](t, w).Trip.ID
	assert.Equal(t, "cust-1", decode[handler.TripResult](t, w).Trip.CustomerID)

	w = do(t, r, http.MethodPut, "/api/trips/"+id+"/approve", nil, customer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodGet, "/api/trips/customer/cust-2", nil, customer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodGet, "/api/trips/customer/cust-1", nil, customer)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPut, "/api/trips/"+id+"/approve", nil, owner)
	assert.Equal(t, http.StatusOK, w.Code)

	other, err := tokens.GenerateToken("cust-2", domain.RoleCustomer)
	require.NoError(t, err)
	w = do(t, r, http.MethodGet, "/api/trips/"+id, nil, other)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Payments follow the same own-data rule as trips.
	w = do(t, r, http.MethodPost, "/api/trips/"+id+"/payment", nil, other)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, r, http.MethodPost, "/api/payments/create", map[string]any{"tripId": id}, other)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPost, "/api/trips/"+id+"/payment", nil, customer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	paymentID := decode[handler.PaymentResult](t, w).Payment.ID

	w = do(t, r, http.MethodGet, "/api/payments/"+paymentID, nil, other)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), id)
	w = do(t, r, http.MethodGet, "/api/payments/"+paymentID, nil, customer)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodGet, "/api/payments/"+paymentID, nil, owner)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_IdempotentReplayChecksRoleFirst(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	tokens := auth.NewService(testSecret, time.Hour)
	db, mock := redismock.NewClientMock()

	r := NewRouter(RouterDeps{
		TripHandler:    &handler.TripHandler{},
		PaymentHandler: &handler.PaymentHandler{},
		UserHandler:    &handler.UserHandler{},
		FareHandler:    handler.NewFareHandler(domain.DefaultAdvanceAmount),
		Logger:         logger,
		RedisClient:    db,
		Tokens:         tokens,
	})

	owner, err := tokens.GenerateToken("owner-1", domain.RoleOwner)
	require.NoError(t, err)
	customer, err := tokens.GenerateToken("cust-1", domain.RoleCustomer)
	require.NoError(t, err)

	send := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/trips/t1/approve", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "k1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	cached := `{"status_code":200,"body":{"success":true,"trip":{"customerPhone":"9999"}},"headers":{"Content-Type":["application/json"]}}`
	mock.ExpectGet("idempotency:owner-1:PUT:/api/trips/t1/approve:k1").SetVal(cached)

	w := send(owner)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "true", w.Header().Get("Idempotent-Replayed"))

	w = send(customer)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NotContains(t, w.Body.String(), "9999")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRouter_CORS(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	deps := RouterDeps{
		TripHandler:    &handler.TripHandler{},
		PaymentHandler: &handler.PaymentHandler{},
		UserHandler:    &handler.UserHandler{},
		FareHandler:    handler.NewFareHandler(domain.DefaultAdvanceAmount),
		Logger:         logger,
	}

	// No configured origins leaves CORS headers off instead of failing.
	r := NewRouter(deps)
	req := httptest.NewRequest(http.MethodGet, "/api/fares", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	deps.AllowedOrigins = []string{"https://app.example"}
	r = NewRouter(deps)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_Health(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	r := NewRouter(RouterDeps{
		TripHandler:    &handler.TripHandler{},
		PaymentHandler: &handler.PaymentHandler{},
		UserHandler:    &handler.UserHandler{},
		FareHandler:    handler.NewFareHandler(domain.DefaultAdvanceAmount),
		Logger:         logger,
		Health:         func() error { return errors.New("db down") },
	})

	w := do(t, r, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, r, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger("debug", "production")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger = NewLogger("loud", "development")
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}
