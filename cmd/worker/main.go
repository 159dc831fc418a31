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

	"github.com/wms-platform/stock-redistribution/internal/activities"
	"github.com/wms-platform/stock-redistribution/internal/application"
	policyConfig "github.com/wms-platform/stock-redistribution/internal/config"
	mongoRepo "github.com/wms-platform/stock-redistribution/internal/infrastructure/mongodb"
	"github.com/wms-platform/stock-redistribution/internal/workflows"
	"github.com/wms-platform/stock-redistribution/pkg/cloudevents"
	"github.com/wms-platform/stock-redistribution/pkg/idempotency"
	"github.com/wms-platform/stock-redistribution/pkg/kafka"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
	"github.com/wms-platform/stock-redistribution/pkg/metrics"
	"github.com/wms-platform/stock-redistribution/pkg/mongodb"
	"github.com/wms-platform/stock-redistribution/pkg/temporal"
	"github.com/wms-platform/stock-redistribution/pkg/tracing"
)

const serviceName = "redistribution-worker"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting redistribution worker")

	config := loadConfig()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy, err := policyConfig.Load(config.PolicyFile)
	if errors.Is(err, policyConfig.ErrFileNotFound) {
		logger.Warn("Policy file not found, using defaults", "path", config.PolicyFile)
		policy = policyConfig.Default()
	} else if err != nil {
		logger.WithError(err).Error("Invalid policy file", "path", config.PolicyFile)
		os.Exit(1)
	}

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
			_ = tracerProvider.Shutdown(shutdownCtx)
		}()
	}

	m := metrics.New(metrics.DefaultConfig(serviceName))
	metricsServer := &http.Server{Addr: config.MetricsAddr, Handler: m.Handler(), ReadTimeout: 10 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server error", "error", err)
		}
	}()

	mongoClient, err := mongodb.NewClient(ctx, config.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(context.Background())
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	db := mongoClient.Database()
	observer := mongodb.NewObserver(config.MongoDB.Database, m, logger)
	eventFactory := cloudevents.NewEventFactory("/redistribution-service")

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

	// Temporal worker for transfer fulfillment
	if config.Temporal.HostPort != "" {
		temporalClient, err := temporal.NewClient(ctx, config.Temporal)
		if err != nil {
			logger.WithError(err).Error("Failed to create Temporal client")
			os.Exit(1)
		}
		defer temporalClient.Close()
		logger.Info("Connected to Temporal", "hostPort", config.Temporal.HostPort, "namespace", config.Temporal.Namespace)

		transferActivities := activities.NewTransferActivities(warehouseRepo, transferRepo, logger)

		w := temporalClient.NewWorker(temporal.DefaultWorkerOptions(temporal.TaskQueues.Redistribution))
		w.RegisterWorkflow(workflows.TransferFulfillmentWorkflow)
		w.RegisterActivity(transferActivities.UpdateDestinationStock)
		w.RegisterActivity(transferActivities.MarkTransfersInTransit)
		w.RegisterActivity(transferActivities.MarkTransfersReceived)
		w.RegisterActivity(transferActivities.MarkTransfersFailed)

		if err := w.Start(); err != nil {
			logger.WithError(err).Error("Failed to start Temporal worker")
			os.Exit(1)
		}
		defer w.Stop()
		logger.Info("Temporal worker started", "taskQueue", temporal.TaskQueues.Redistribution)
	} else {
		logger.Warn("TEMPORAL_HOST not set, transfer fulfillment worker disabled")
	}

	// Sales event consumer
	messageRepo := idempotency.NewMongoMessageRepository(db)
	if err := messageRepo.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Warn("Failed to initialize processed message indexes")
	}
	dedupConfig := idempotency.DefaultConsumerConfig(serviceName, kafka.Topics.SalesEvents, config.Kafka.ConsumerGroup, messageRepo)
	dedupConfig.Logger = logger
	dedupConfig.Metrics = idempotency.NewMetrics(m.Registry())

	productService := application.NewProductService(productRepo, policy.Policy, policy.Thresholds, logger)
	salesHandler := application.NewSalesEventHandler(productService, logger)

	consumer := kafka.NewConsumer(config.Kafka, logger, m)
	consumer.Subscribe(kafka.Topics.SalesEvents, cloudevents.UnitSold,
		idempotency.DeduplicatingHandler(dedupConfig, salesHandler.HandleUnitSold))
	logger.Info("Consuming sales events", "topic", kafka.Topics.SalesEvents, "group", config.Kafka.ConsumerGroup)

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("Consumer stopped")
	}
	if err := consumer.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close consumer")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("Worker stopped")
}

// Config holds worker configuration
type Config struct {
	MetricsAddr string
	PolicyFile  string
	MongoDB     *mongodb.Config
	Kafka       *kafka.Config
	Temporal    *temporal.Config
}

func loadConfig() *Config {
	mongoConfig := mongodb.DefaultConfig()
	mongoConfig.URI = getEnv("MONGODB_URI", mongoConfig.URI)
	mongoConfig.Database = getEnv("MONGODB_DATABASE", mongoConfig.Database)

	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	kafkaConfig.ConsumerGroup = getEnv("KAFKA_CONSUMER_GROUP", "redistribution-sales")
	kafkaConfig.ClientID = serviceName

	temporalConfig := temporal.DefaultConfig()
	temporalConfig.HostPort = os.Getenv("TEMPORAL_HOST")
	temporalConfig.Namespace = getEnv("TEMPORAL_NAMESPACE", temporalConfig.Namespace)

	return &Config{
		MetricsAddr: getEnv("METRICS_ADDR", ":9091"),
		PolicyFile:  getEnv("POLICY_FILE", policyConfig.DefaultPath),
		MongoDB:     mongoConfig,
		Kafka:       kafkaConfig,
		Temporal:    temporalConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
