package mongodb

import (
	"context"
	"time"

	"github.com/wms-platform/stock-redistribution/pkg/logging"
	"github.com/wms-platform/stock-redistribution/pkg/metrics"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Observer records spans, metrics and debug logs for repository operations.
// A nil Observer is valid and only runs the operation.
type Observer struct {
	database string
	metrics  *metrics.Metrics
	logger   *logging.Logger
	tracer   trace.Tracer
}

// NewObserver creates an Observer for the named database
func NewObserver(database string, m *metrics.Metrics, logger *logging.Logger) *Observer {
	return &Observer{
		database: database,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("mongodb"),
	}
}

// Observe runs op as a traced and measured operation on collection
func (o *Observer) Observe(ctx context.Context, collection, operation string, op func(ctx context.Context) error) error {
	if o == nil {
		return op(ctx)
	}

	ctx, span := o.tracer.Start(ctx, "mongodb."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(o.database),
			semconv.DBOperationKey.String(operation),
			attribute.String("db.collection", collection),
		),
	)
	defer span.End()

	start := time.Now()
	err := op(ctx)
	duration := time.Since(start)

	// A missing document is a normal lookup result, not a failed operation
	success := err == nil || err == mongo.ErrNoDocuments
	if !success {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	if o.metrics != nil {
		o.metrics.RecordMongoDBOperation(collection, operation, success, duration)
	}
	if o.logger != nil {
		o.logger.DatabaseQuery(ctx, collection, operation, duration, success)
	}
	return err
}

// InstrumentedClient wraps a Client with a traced health check
type InstrumentedClient struct {
	*Client
	tracer trace.Tracer
}

// NewInstrumentedClient creates a traced client wrapper
func NewInstrumentedClient(client *Client) *InstrumentedClient {
	return &InstrumentedClient{
		Client: client,
		tracer: otel.Tracer("mongodb"),
	}
}

// HealthCheck performs a health check with tracing
func (c *InstrumentedClient) HealthCheck(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "mongodb.ping",
		trace.WithAttributes(
			semconv.DBSystemMongoDB,
			semconv.DBNameKey.String(c.config.Database),
		),
	)
	defer span.End()

	err := c.Client.HealthCheck(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
