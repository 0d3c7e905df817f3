package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"tourbus/internal/auth"
	"tourbus/internal/domain"
	"tourbus/internal/handler"
	"tourbus/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TripHandler    *handler.TripHandler
	PaymentHandler *handler.PaymentHandler
	UserHandler    *handler.UserHandler
	FareHandler    *handler.FareHandler
	Logger         *logrus.Logger
	// Optional. Nil disables idempotent replay.
	RedisClient *redis.Client
	// Optional. Nil leaves every route open.
	Tokens         *auth.Service
	NewRelicApp    *newrelic.Application
	AllowedOrigins []string
	// Health reports backend readiness; nil means always healthy.
	Health func() error
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(deps.Logger))
	if len(deps.AllowedOrigins) > 0 {
		router.Use(middleware.CORS(deps.AllowedOrigins))
	}

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")

	// Fare tables and sign-up stay public.
	fares := api.Group("/fares")
	{
		fares.GET("", deps.FareHandler.ListFares)
		fares.GET("/quote", deps.FareHandler.Quote)
	}
	api.POST("/users", deps.UserHandler.CreateUser)

	protected := api.Group("")
	if deps.Tokens != nil {
		protected.Use(middleware.Authenticate(deps.Tokens))
	}
	// Replay runs after the role check so a cached response never skips it.
	var replay gin.HandlerFunc = passThrough
	if deps.RedisClient != nil {
		replay = middleware.IdempotencyMiddleware(deps.RedisClient, deps.Logger)
	}
	guard := func(roles ...domain.Role) func(gin.HandlerFunc) []gin.HandlerFunc {
		check := requireRoles(deps.Tokens != nil, roles...)
		return func(h gin.HandlerFunc) []gin.HandlerFunc {
			return []gin.HandlerFunc{check, replay, h}
		}
	}
	ownerOnly := guard(domain.RoleOwner)
	signedIn := guard(domain.RoleOwner, domain.RoleCustomer)

	users := protected.Group("/users")
	{
		users.GET("", ownerOnly(deps.UserHandler.ListUsers)...)
		users.GET("/:id", signedIn(deps.UserHandler.GetUser)...)
	}

	trips := protected.Group("/trips")
	{
		trips.POST("", signedIn(deps.TripHandler.Book)...)
		trips.POST("/book", signedIn(deps.TripHandler.Book)...)
		trips.GET("", ownerOnly(deps.TripHandler.ListTrips)...)
		trips.GET("/pending", ownerOnly(deps.TripHandler.ListPending)...)
		trips.GET("/owner/all", ownerOnly(deps.TripHandler.OwnerDashboard)...)
		trips.GET("/customer/:id", signedIn(deps.TripHandler.CustomerDashboard)...)
		trips.GET("/:id", signedIn(deps.TripHandler.GetTrip)...)
		trips.GET("/:id/receipt", signedIn(deps.TripHandler.Receipt)...)
		trips.PUT("/:id/approve", ownerOnly(deps.TripHandler.Approve)...)
		trips.PUT("/:id/reject", ownerOnly(deps.TripHandler.Reject)...)
		trips.PUT("/:id/complete", ownerOnly(deps.TripHandler.Complete)...)
		trips.PUT("/:id/status", ownerOnly(deps.TripHandler.UpdateStatus)...)
		trips.POST("/:id/payment", signedIn(deps.PaymentHandler.PayTrip)...)
		trips.DELETE("/:id", ownerOnly(deps.TripHandler.Delete)...)
	}

	payments := protected.Group("/payments")
	{
		payments.POST("/create", signedIn(deps.PaymentHandler.CreatePayment)...)
		payments.GET("/:id", signedIn(deps.PaymentHandler.GetPayment)...)
	}

	return router
}

func passThrough(c *gin.Context) { c.Next() }

// requireRoles is a pass-through when auth is disabled.
func requireRoles(enabled bool, roles ...domain.Role) gin.HandlerFunc {
	if !enabled {
		return passThrough
	}
	return middleware.RequireRoles(roles...)
}
