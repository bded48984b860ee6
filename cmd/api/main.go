package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stockroom/batch-service/internal/application"
	"github.com/stockroom/batch-service/internal/infrastructure/events"
	repos "github.com/stockroom/batch-service/internal/infrastructure/mongodb"
	"github.com/stockroom/batch-service/pkg/cloudevents"
	"github.com/stockroom/batch-service/pkg/kafka"
	"github.com/stockroom/batch-service/pkg/logging"
	"github.com/stockroom/batch-service/pkg/metrics"
	"github.com/stockroom/batch-service/pkg/middleware"
	"github.com/stockroom/batch-service/pkg/mongodb"
	"github.com/stockroom/batch-service/pkg/outbox"
	outboxmongo "github.com/stockroom/batch-service/pkg/outbox/mongodb"
	"github.com/stockroom/batch-service/pkg/tracing"
)

const serviceName = "batch-service"

type config struct {
	ServerAddr       string
	Environment      string
	LogLevel         string
	MongoURI         string
	MongoDatabase    string
	KafkaBrokers     []string
	OTLPEndpoint     string
	TracingEnabled   bool
	TracingSample    float64
	SweepInterval    time.Duration
	OutboxInterval   time.Duration
	OutboxBatchSize  int
	ShutdownTimeout  time.Duration
	TrustedProxies   []string
}

func loadConfig() *config {
	return &config{
		ServerAddr:      getEnv("SERVER_ADDR", ":8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		MongoURI:        getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGODB_DATABASE", "stockroom"),
		KafkaBrokers:    strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		OTLPEndpoint:    getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled:  getEnvBool("TRACING_ENABLED", true),
		TracingSample:   getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		SweepInterval:   getEnvDuration("HEALTH_SWEEP_INTERVAL", 24*time.Hour),
		OutboxInterval:  getEnvDuration("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxBatchSize: getEnvInt("OUTBOX_BATCH_SIZE", 100),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		TrustedProxies:  splitNonEmpty(getEnv("TRUSTED_PROXIES", "")),
	}
}

func main() {
	cfg := loadConfig()

	logger := logging.New(&logging.Config{
		Level:       logging.LogLevel(cfg.LogLevel),
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Version:     getEnv("VERSION", "unknown"),
		Output:      os.Stdout,
	})
	logger.SetDefault()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracerProvider, err := tracing.Initialize(ctx, &tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: getEnv("VERSION", "unknown"),
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TracingSample,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		os.Exit(1)
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

	mongoClient, err := mongodb.NewClient(ctx, &mongodb.Config{
		URI:            cfg.MongoURI,
		Database:       cfg.MongoDatabase,
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    100,
		MinPoolSize:    10,
	})
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	db := mongodb.NewInstrumentedClient(mongoClient, m, logger)

	batchRepo := repos.NewBatchRepository(db)
	productRepo := repos.NewProductRepository(db)
	auditRepo := repos.NewAuditRepository(db)
	notificationRepo := repos.NewNotificationRepository(db)
	outboxRepo := outboxmongo.NewRepository(mongoClient.Database())

	ensureIndexes(ctx, logger, batchRepo, productRepo, auditRepo, notificationRepo, outboxRepo)

	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = cfg.KafkaBrokers
	producer := kafka.NewInstrumentedProducer(kafka.NewProducer(kafkaConfig), m, logger)

	publisher := outbox.NewPublisher(outboxRepo, producer, logger, m, &outbox.PublisherConfig{
		PollInterval: cfg.OutboxInterval,
		BatchSize:    cfg.OutboxBatchSize,
	})
	if err := publisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}

	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceBatchService)
	recorder := events.NewOutboxRecorder(outboxRepo, eventFactory)

	guard := application.NewCapacityGuard(batchRepo, productRepo)
	merger := application.NewBatchMerger(batchRepo)
	notifier := application.NewNotifier(notificationRepo, recorder, logger, m)
	health := application.NewHealthEvaluator(batchRepo, productRepo, notifier, logger, m)
	allocator := application.NewBatchAllocator(batchRepo, productRepo, auditRepo, db, recorder, guard, merger, health, logger, m)
	sorter := application.NewWarehouseSorter(batchRepo, productRepo, auditRepo, db, recorder, guard, merger, logger, m)

	scheduler := application.NewScheduler(health, cfg.SweepInterval, logger)
	scheduler.Start(ctx)

	router := buildRouter(cfg, logger, m, db, &handlers{
		allocator: allocator,
		sorter:    sorter,
		health:    health,
		guard:     guard,
		audits:    auditRepo,
		logger:    logger,
	})

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", "addr", cfg.ServerAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server failed")
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}

	scheduler.Stop()
	if err := publisher.Stop(); err != nil {
		logger.WithError(err).Warn("Outbox publisher stop failed")
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("Kafka producer close failed")
	}
	if err := db.Close(shutdownCtx); err != nil {
		logger.WithError(err).Warn("MongoDB close failed")
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Tracer shutdown failed")
	}

	logger.Info("Service stopped")
}

func buildRouter(cfg *config, logger *logging.Logger, m *metrics.Metrics, db *mongodb.InstrumentedClient, h *handlers) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	mwConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	mwConfig.TrustedProxies = cfg.TrustedProxies
	middleware.Setup(router, mwConfig)
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.TracingMiddleware(serviceName))

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return db.HealthCheck(ctx)
	}))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/batches", h.createBatch)
		v1.GET("/batches", h.listBatches)
		v1.GET("/batches/:batchId", h.getBatch)
		v1.PATCH("/batches/:batchId", h.updateBatch)
		v1.DELETE("/batches/:batchId", h.removeBatch)

		v1.POST("/warehouse/sort", h.sortWarehouse)
		v1.GET("/shelves/:shelf/load", h.shelfLoad)
		v1.POST("/products/:productId/health-check", h.runHealthCheck)
		v1.GET("/audit", h.listAudit)
	}

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	return router
}

func ensureIndexes(ctx context.Context, logger *logging.Logger, indexed ...interface {
	EnsureIndexes(ctx context.Context) error
}) {
	for _, repo := range indexed {
		if err := repo.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Warn("Failed to ensure indexes")
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitNonEmpty(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
