package main

import (
	"context"
	"flag"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	httpapi "github.com/HenryGill4/OpCentrix-sub006/internal/api/http"
	"github.com/HenryGill4/OpCentrix-sub006/internal/application"
	"github.com/HenryGill4/OpCentrix-sub006/internal/config"
	"github.com/HenryGill4/OpCentrix-sub006/internal/infrastructure/lock"
	mongoRepo "github.com/HenryGill4/OpCentrix-sub006/internal/infrastructure/mongodb"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/cloudevents"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/kafka"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/logging"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/metrics"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/middleware"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/mongodb"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/outbox"
	"github.com/HenryGill4/OpCentrix-sub006/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LoggerConfig())
	logger.SetDefault()
	logger.Info("Starting scheduling-service API")

	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	tracerProvider, err := tracing.Initialize(ctx, cfg.TracerConfig())
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "enabled", cfg.Tracing.Enabled, "endpoint", cfg.Tracing.Endpoint)
	}

	// Initialize Prometheus metrics
	m := metrics.New(metrics.DefaultConfig(config.ServiceName))

	// Initialize MongoDB
	mongoClient, err := mongodb.NewClient(ctx, cfg.MongoConfig(),
		mongodb.WithMetrics(m),
		mongodb.WithLogger(logger),
		mongodb.WithExpectedErrors(mongoRepo.ExpectedErrors...),
	)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Close(closeCtx)
	}()
	logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)

	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceScheduling)
	store := mongoRepo.NewStore(mongoClient, eventFactory)
	if err := store.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Error("Failed to create indexes")
		os.Exit(1)
	}

	// Lock: Redis when several replicas share the database, in-process otherwise
	var locker application.Locker
	if cfg.Redis.Enabled {
		lockConfig := cfg.RedisLockConfig()
		rdb, err := lock.NewRedisClient(ctx, lockConfig)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to Redis")
			os.Exit(1)
		}
		redisLocker := lock.NewRedisLocker(rdb, lockConfig, logger)
		defer redisLocker.Close()
		locker = redisLocker
		logger.Info("Using Redis lock", "addr", lockConfig.Addr)
	} else {
		locker = lock.NewKeyedLocker()
		logger.Info("Using in-process lock")
	}
	locker = application.WithLockTimeout(locker, cfg.Scheduling.LockTimeout)

	// Outbox relay to Kafka
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.KafkaProducerConfig(), logger, m)
		defer producer.Close()

		publisher := outbox.NewPublisher(store.Outbox(), producer, logger, m, cfg.OutboxConfig())
		if err := publisher.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start outbox publisher")
			os.Exit(1)
		}
		defer publisher.Stop()
		logger.Info("Outbox publisher started", "brokers", cfg.Kafka.Brokers)
	} else {
		logger.Warn("Kafka disabled; events stay in the outbox")
	}

	// Initialize application services
	repos := application.Repositories{
		Jobs:       store.Jobs(),
		Machines:   store.Machines(),
		Parts:      store.Parts(),
		Stages:     store.Stages(),
		Executions: store.Executions(),
	}
	engine := application.NewEngine(cfg.Engine(), store.Machines())
	schedulingService := application.NewSchedulingService(repos, engine, locker, m, logger)
	tracker := application.NewStageExecutionTracker(repos, engine.Changeover, locker, m, logger)

	// Setup Gin router with middleware
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(config.ServiceName, logger.Logger)
	middlewareConfig.Validations = httpapi.Validations()
	middleware.Setup(router, middlewareConfig)

	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.TracingMiddleware(middleware.DefaultTracingConfig(config.ServiceName)))
	if cfg.Server.RequestTimeout > 0 {
		router.Use(requestTimeout(cfg.Server.RequestTimeout))
	}

	router.NoMethod(middleware.NoMethod())

	// Health check endpoints
	router.GET("/health", middleware.HealthCheck(config.ServiceName))
	router.GET("/ready", middleware.ReadinessCheck(config.ServiceName, func() error {
		checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return mongoClient.HealthCheck(checkCtx)
	}))

	// Metrics endpoint
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	httpapi.SetupRoutes(router, httpapi.NewHandlers(schedulingService, tracker, logger))

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &nethttp.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()
	logger.Info("Server started", "addr", addr)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}

// requestTimeout bounds the context every handler runs with.
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
