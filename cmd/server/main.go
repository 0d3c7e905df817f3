package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"tourbus/internal/app"
	"tourbus/internal/auth"
	"tourbus/internal/config"
	"tourbus/internal/handler"
	"tourbus/internal/queue"
	internalRedis "tourbus/internal/redis"
	"tourbus/internal/repository"
	"tourbus/internal/repository/memory"
	"tourbus/internal/repository/postgres"
	"tourbus/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := app.NewLogger(cfg.Server.LogLevel, cfg.Server.Environment)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize New Relic")
		} else {
			logger.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	var (
		store       repository.Store
		health      func() error
		redisClient *redis.Client
	)

	if cfg.Booking.DemoMode {
		logger.Warn("demo mode: using in-memory store, trips are lost on restart")
		store = memory.NewStore()
	} else {
		db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to database")
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			logger.WithError(err).Fatal("failed to apply schema")
		}
		logger.Info("connected to PostgreSQL")
		store = postgres.NewStore(db)
		health = pingDatabase(db)

		if cfg.Redis.Enabled {
			redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
			if err != nil {
				logger.WithError(err).Fatal("failed to connect to redis")
			}
			defer redisClient.Close()
			logger.Info("connected to Redis")
		}
	}

	publisher := newPublisher(cfg.RabbitMQ, logger)
	defer publisher.Close()

	server, relay := wireServer(store, redisClient, publisher, nrApp, health, cfg, logger)

	relayCtx, stopRelay := context.WithCancel(context.Background())
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relay.Run(relayCtx)
	}()

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	stopRelay()
	<-relayDone

	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}
	logger.Info("server exited")
}

// newPublisher connects to RabbitMQ when configured and falls back to logging
// notifications otherwise.
func newPublisher(cfg config.RabbitMQConfig, logger *logrus.Logger) queue.Publisher {
	if cfg.URL == "" {
		logger.Info("RABBITMQ_URL not set, notifications are logged only")
		return queue.NewLogPublisher(logger)
	}
	publisher, err := queue.NewRabbitPublisher(cfg.URL, cfg.Queue, logger)
	if err != nil {
		logger.WithError(err).Warn("failed to connect to RabbitMQ, notifications are logged only")
		return queue.NewLogPublisher(logger)
	}
	logger.WithField("queue", cfg.Queue).Info("publishing notifications to RabbitMQ")
	return publisher
}

func pingDatabase(db *sqlx.DB) func() error {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	}
}

// wireServer wires all dependencies and returns the HTTP server and the outbox relay.
func wireServer(
	store repository.Store,
	redisClient *redis.Client,
	publisher queue.Publisher,
	nrApp *newrelic.Application,
	health func() error,
	cfg *config.Config,
	logger *logrus.Logger,
) (*http.Server, *service.OutboxRelay) {
	var (
		cache  internalRedis.ProfileCache
		locker internalRedis.TripLocker
	)
	if redisClient != nil {
		cache = internalRedis.NewCacheStore(redisClient)
		locker = internalRedis.NewLockStore(redisClient)
	}

	// Initialize services.
	notificationService := service.NewNotificationService(logger)
	userService := service.NewUserService(store.Users(), cache, logger)
	tripService := service.NewTripService(store, notificationService, userService, cfg.Booking.AdvanceAmount, logger)
	paymentService := service.NewPaymentService(
		store, tripService, notificationService, service.NewMockPSP(), locker, cfg.Booking.LockTTL, logger,
	)
	receiptService := service.NewReceiptService(tripService)
	relay := service.NewOutboxRelay(store, publisher, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, logger)

	var tokens *auth.Service
	if cfg.Auth.Enabled {
		tokens = auth.NewService(cfg.Auth.Secret, cfg.Auth.TokenExpiry)
	}

	router := app.NewRouter(app.RouterDeps{
		TripHandler:    handler.NewTripHandler(tripService, receiptService),
		PaymentHandler: handler.NewPaymentHandler(paymentService),
		UserHandler:    handler.NewUserHandler(userService),
		FareHandler:    handler.NewFareHandler(cfg.Booking.AdvanceAmount),
		Logger:         logger,
		RedisClient:    redisClient,
		Tokens:         tokens,
		NewRelicApp:    nrApp,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Health:         health,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, relay
}
