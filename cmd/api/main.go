package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/stock-redistribution/internal/application"
	policyConfig "github.com/wms-platform/stock-redistribution/internal/config"
	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/internal/infrastructure/costs"
	"github.com/wms-platform/stock-redistribution/internal/infrastructure/fulfillment"
	mongoRepo "github.com/wms-platform/stock-redistribution/internal/infrastructure/mongodb"
	redisInfra "github.com/wms-platform/stock-redistribution/internal/infrastructure/redis"
	"github.com/wms-platform/stock-redistribution/pkg/cloudevents"
	"github.com/wms-platform/stock-redistribution/pkg/idempotency"
	"github.com/wms-platform/stock-redistribution/pkg/kafka"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
	"github.com/wms-platform/stock-redistribution/pkg/metrics"
	"github.com/wms-platform/stock-redistribution/pkg/middleware"
	"github.com/wms-platform/stock-redistribution/pkg/mongodb"
	"github.com/wms-platform/stock-redistribution/pkg/outbox"
	"github.com/wms-platform/stock-redistribution/pkg/resilience"
	"github.com/wms-platform/stock-redistribution/pkg/temporal"
	"github.com/wms-platform/stock-redistribution/pkg/tracing"
)

const serviceName = "redistribution-service"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting redistribution-service API")

	config := loadConfig()
	ctx := context.Background()

	policy, err := loadPolicy(config.PolicyFile, logger)
	if err != nil {
		logger.WithError(err).Error("Invalid policy file", "path", config.PolicyFile)
		os.Exit(1)
	}

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	tracingConfig.Environment = getEnv("ENVIRONMENT", "development")
	tracingConfig.Enabled = getEnv("TRACING_ENABLED", "true") == "true"

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint, "enabled", tracingConfig.Enabled)
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))

	// MongoDB
	mongoClient, err := mongodb.NewClient(ctx, config.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	instrumentedMongo := mongodb.NewInstrumentedClient(mongoClient)
	defer instrumentedMongo.Close(context.Background())
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	db := instrumentedMongo.Database()
	observer := mongodb.NewObserver(config.MongoDB.Database, m, logger)
	eventFactory := cloudevents.NewEventFactory("/" + serviceName)

	productRepo, err := mongoRepo.NewProductRepository(ctx, db, eventFactory, observer)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize product repository")
		os.Exit(1)
	}
	warehouseRepo, err := mongoRepo.NewWarehouseRepository(ctx, db, observer)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize warehouse repository")
		os.Exit(1)
	}
	transferRepo, err := mongoRepo.NewTransferLogRepository(ctx, db, observer)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize transfer repository")
		os.Exit(1)
	}
	requestRepo, err := mongoRepo.NewDistributionRequestRepository(ctx, db, observer)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize request repository")
		os.Exit(1)
	}

	idempotencyKeyRepo := idempotency.NewMongoKeyRepository(db)
	if err := idempotencyKeyRepo.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to initialize idempotency indexes")
	}

	// Kafka producer and outbox relay
	kafkaProducer := kafka.NewProducer(config.Kafka)
	instrumentedProducer := kafka.NewInstrumentedProducer(kafkaProducer, m, logger)
	defer kafkaProducer.Close()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	outboxPublisher := outbox.NewPublisher(productRepo.OutboxRepository(), instrumentedProducer, logger, m, outbox.DefaultPublisherConfig())
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer outboxPublisher.Stop()

	// Redis backs the SKU lock and the rate cache when enabled
	var (
		locker      domain.SKULocker = redisInfra.NewMemoryLocker()
		redisCheck func(ctx context.Context) error
	)
	var costProvider domain.TransferCostProvider = &policy.TransferCosts
	if config.RateQuoteURL != "" {
		breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("rate-quote"), logger, m)
		costProvider = costs.NewRateQuoteProvider(config.RateQuoteURL, breaker, costProvider, logger)
		logger.Info("Rate quote provider enabled", "url", config.RateQuoteURL)
	}
	if config.RedisEnabled {
		redisClient, err := redisInfra.NewClient(ctx, config.Redis)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to Redis")
			os.Exit(1)
		}
		defer redisClient.Close()
		locker = redisInfra.NewSKULocker(redisClient, config.Redis.KeyPrefix, logger)
		costProvider = costs.NewCachedCostProvider(redisClient, costProvider, config.Redis.KeyPrefix, policy.CostCacheTTL, logger)
		redisCheck = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		logger.Info("Connected to Redis", "addr", config.Redis.Addr)
	} else {
		logger.Warn("Redis disabled, SKU locks are process-local")
	}

	// Temporal fulfillment, or inline when the cluster is unreachable
	var dispatcher domain.TransferDispatcher = application.NewInlineDispatcher(warehouseRepo, transferRepo, logger)
	if config.Temporal.HostPort != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		temporalClient, err := temporal.NewClient(dialCtx, config.Temporal)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Temporal unavailable, fulfilling transfers inline")
		} else {
			defer temporalClient.Close()
			dispatcher = fulfillment.NewTemporalDispatcher(temporalClient, logger, m)
			logger.Info("Connected to Temporal", "hostPort", config.Temporal.HostPort, "namespace", config.Temporal.Namespace)
		}
	}

	productService := application.NewProductService(productRepo, policy.Policy, policy.Thresholds, logger)
	warehouseService := application.NewWarehouseService(warehouseRepo, logger)
	redistributionService := application.NewRedistributionService(application.RedistributionDependencies{
		Products:    productRepo,
		Warehouses:  warehouseRepo,
		Costs:       costProvider,
		Transfers:   transferRepo,
		Requests:    requestRepo,
		Locker:      locker,
		Dispatcher:  dispatcher,
		Policy:      policy.Policy,
		LockTimeout: policy.LockTimeout,
		Logger:      logger,
		Metrics:     m,
	})

	idempotencyConfig := idempotency.DefaultConfig(serviceName, idempotencyKeyRepo)
	idempotencyConfig.Logger = logger
	idempotencyConfig.Metrics = idempotency.NewMetrics(m.Registry())

	router := newRouter(routerDeps{
		logger:         logger,
		metrics:        m,
		corsOrigins:    config.CORSAllowedOrigins,
		products:       productService,
		warehouses:     warehouseService,
		redistribution: redistributionService,
		idempotency:    idempotencyConfig,
		ready: func(ctx context.Context) error {
			if err := instrumentedMongo.HealthCheck(ctx); err != nil {
				return err
			}
			if redisCheck != nil {
				return redisCheck(ctx)
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}

type routerDeps struct {
	logger         *logging.Logger
	metrics        *metrics.Metrics
	corsOrigins    []string
	products       *application.ProductService
	warehouses     *application.WarehouseService
	redistribution *application.RedistributionService
	idempotency    *idempotency.Config
	ready          func(ctx context.Context) error
}

func newRouter(deps routerDeps) *gin.Engine {
	router := gin.New()

	middlewareConfig := middleware.DefaultConfig(serviceName, deps.logger)
	if len(deps.corsOrigins) > 0 {
		middlewareConfig.CORSAllowedOrigins = deps.corsOrigins
	}
	middleware.Setup(router, middlewareConfig)
	if deps.metrics != nil {
		router.Use(middleware.MetricsMiddleware(deps.metrics))
		router.GET("/metrics", middleware.MetricsEndpoint(deps.metrics))
	}
	router.Use(middleware.TracingMiddleware(middleware.DefaultTracingConfig(serviceName)))

	router.NoRoute(middleware.NoRoute())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func(c *gin.Context) error {
		if deps.ready == nil {
			return nil
		}
		return deps.ready(c.Request.Context())
	}))

	logger := deps.logger
	api := router.Group("/api/v1")
	{
		api.POST("/products", createProductHandler(deps.products, logger))
		api.GET("/products", listProductsHandler(deps.products, logger))
		api.GET("/products/:sku", getProductHandler(deps.products, logger))
		api.DELETE("/products/:sku", deleteProductHandler(deps.products, logger))
		api.POST("/products/:sku/restock", restockHandler(deps.products, logger))
		api.POST("/products/:sku/sales", recordSaleHandler(deps.products, logger))
		api.GET("/products/:sku/excess", excessHandler(deps.products, logger))

		api.POST("/warehouses", upsertWarehouseHandler(deps.warehouses, logger))
		api.GET("/warehouses", listWarehousesHandler(deps.warehouses, logger))
		api.PUT("/warehouses/:warehouseId/stock/:sku", setWarehouseStockHandler(deps.warehouses, logger))

		api.GET("/redistribution/requests", listRequestsHandler(deps.redistribution, logger))
		api.POST("/redistribution/:sku/preview", previewHandler(deps.redistribution, logger))
		execute := []gin.HandlerFunc{executeHandler(deps.redistribution, logger)}
		if deps.idempotency != nil {
			execute = append([]gin.HandlerFunc{idempotency.Middleware(deps.idempotency)}, execute...)
		}
		api.POST("/redistribution/:sku/execute", execute...)

		api.GET("/transfers", listTransfersHandler(deps.redistribution, logger))
	}

	return router
}

// loadPolicy reads the policy file; a missing file falls back to the built-in defaults
func loadPolicy(path string, logger *logging.Logger) (*policyConfig.File, error) {
	policy, err := policyConfig.Load(path)
	if errors.Is(err, policyConfig.ErrFileNotFound) {
		logger.Warn("Policy file not found, using defaults", "path", path)
		return policyConfig.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	logger.Info("Policy loaded",
		"path", path,
		"minFloorUnits", policy.Policy.MinFloorUnits,
		"supplyHorizonDays", policy.Policy.SupplyHorizonDays,
		"historyWindow", policy.Policy.HistoryWindow,
	)
	return policy, nil
}

// Config holds application configuration
type Config struct {
	ServerAddr         string
	PolicyFile         string
	RateQuoteURL       string
	CORSAllowedOrigins []string
	RedisEnabled       bool
	MongoDB            *mongodb.Config
	Kafka              *kafka.Config
	Temporal           *temporal.Config
	Redis              *redisInfra.Config
}

func loadConfig() *Config {
	mongoConfig := mongodb.DefaultConfig()
	mongoConfig.URI = getEnv("MONGODB_URI", mongoConfig.URI)
	mongoConfig.Database = getEnv("MONGODB_DATABASE", mongoConfig.Database)

	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = splitList(getEnv("KAFKA_BROKERS", "localhost:9092"))

	temporalConfig := temporal.DefaultConfig()
	temporalConfig.HostPort = os.Getenv("TEMPORAL_HOST")
	temporalConfig.Namespace = getEnv("TEMPORAL_NAMESPACE", temporalConfig.Namespace)
	temporalConfig.Identity = serviceName

	return &Config{
		ServerAddr:         getEnv("SERVER_ADDR", ":8080"),
		PolicyFile:         getEnv("POLICY_FILE", policyConfig.DefaultPath),
		RateQuoteURL:       os.Getenv("RATE_QUOTE_URL"),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		RedisEnabled:       getEnv("REDIS_ENABLED", "false") == "true",
		MongoDB:            mongoConfig,
		Kafka:              kafkaConfig,
		Temporal:           temporalConfig,
		Redis: &redisInfra.Config{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			KeyPrefix: "redistribution",
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
