package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/tair/purchase-ingest/internal/config"
	"github.com/tair/purchase-ingest/internal/purchase"
	httpDelivery "github.com/tair/purchase-ingest/internal/purchase/delivery/http"
	"github.com/tair/purchase-ingest/internal/purchase/repository"
	"github.com/tair/purchase-ingest/kafka"
	"github.com/tair/purchase-ingest/pkg/database"
	"github.com/tair/purchase-ingest/pkg/logger"
	"github.com/tair/purchase-ingest/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("purchase-service", true)
		logger.Logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	logger.Init(cfg.Service.Name, cfg.IsDevelopment())
	logger.SetLevel(cfg.Service.LogLevel)

	logger.Logger.Info().
		Str("service", cfg.Service.Name).
		Str("environment", cfg.Service.Environment).
		Str("log_level", cfg.Service.LogLevel).
		Str("store_driver", cfg.Database.Driver).
		Msg("Starting purchase service")

	// Initialize tracer
	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Service.Name, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to initialize tracer")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tracing.Shutdown(ctx, tp); err != nil {
					logger.Logger.Error().Err(err).Msg("Failed to shutdown tracer")
				}
			}()
		}
	}

	// Connect to database
	sqlDB, err := database.NewPostgresConnection(cfg.DatabaseConnection())
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer sqlDB.Close()

	db, err := database.NewGormConnection(sqlDB, logger.Logger)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to open gorm session")
	}

	// Schema is owned by the gorm model whichever driver serves requests
	if err := repository.NewGormPurchaseRepository(db, nil).AutoMigrate(); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	logger.Logger.Info().Msg("Database initialized successfully")

	redisClient := connectRedis(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	publisher, err := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("Kafka publisher unavailable, POST /test disabled")
		publisher = nil
	} else {
		defer publisher.Close()
	}

	// Initialize handlers with Wire DI
	svc, err := purchase.InitializeService(cfg, db, sqlDB, redisClient, publisher, prometheus.DefaultRegisterer, logger.Logger)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize service")
	}

	// Start consumer
	consumer, err := kafka.NewConsumer(
		cfg.Kafka.Brokers,
		cfg.Kafka.GroupID,
		[]string{cfg.Kafka.Topic},
		kafka.WithRedeliverOnError(cfg.Kafka.RedeliverOnError),
		kafka.WithRetryBackoff(cfg.Kafka.RetryBackoff),
		kafka.WithDefaultEventType(cfg.Kafka.DefaultEventType),
	)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to create Kafka consumer")
	}
	consumer.RegisterHandler(kafka.EventTypePurchaseCreated, svc.Ingest.Handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := consumer.Start(ctx); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to start Kafka consumer")
	}

	// Start HTTP server
	server := newHTTPServer(svc.HTTP, sqlDB, cfg.HTTP.Port)
	go func() {
		logger.Logger.Info().
			Str("port", cfg.HTTP.Port).
			Str("metrics_endpoint", "/metrics").
			Msg("HTTP server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down server...")

	cancel()
	if err := consumer.Close(); err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to close Kafka consumer")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to shutdown HTTP server")
	}
}

func newHTTPServer(handler *httpDelivery.PurchaseHandler, db httpDelivery.Pinger, port string) *http.Server {
	// Setup router
	router := mux.NewRouter()

	middlewareConfig := httpDelivery.DefaultMiddlewareConfig()
	httpDelivery.RegisterMiddlewares(router, middlewareConfig)

	// Register routes
	handler.RegisterRoutes(router)
	handler.RegisterHealthCheck(router, db)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              ":" + port,
		Handler:           httpDelivery.SetupCORS(middlewareConfig)(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// connectRedis returns nil when no address is configured or Redis is unreachable
func connectRedis(cfg *config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		logger.Logger.Info().Msg("REDIS_ADDR not set, purchase cache disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Logger.Warn().
			Err(err).
			Str("redis_addr", cfg.Redis.Addr).
			Msg("Failed to connect to Redis - purchase cache will be disabled")
		client.Close()
		return nil
	}

	logger.Logger.Info().
		Str("redis_addr", cfg.Redis.Addr).
		Msg("Connected to Redis for purchase cache")
	return client
}
