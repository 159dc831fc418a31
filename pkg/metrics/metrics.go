package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all redistribution service metrics
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka metrics
	KafkaEventsPublished *prometheus.CounterVec
	KafkaEventsConsumed  *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	// MongoDB metrics
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec

	// Outbox metrics
	OutboxPending   prometheus.Gauge
	OutboxPublished *prometheus.CounterVec
	OutboxRetries   prometheus.Counter

	// Temporal metrics
	WorkflowsStarted *prometheus.CounterVec

	// Redistribution metrics
	PlansComputed      *prometheus.CounterVec
	UnitsDistributed   prometheus.Counter
	ExecutionsRejected *prometheus.CounterVec
	PlanAllocations    prometheus.Histogram

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
	}
}

// New creates a new Metrics instance backed by its own registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ns := config.Namespace
	constLabels := prometheus.Labels{"service": config.ServiceName}

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,
	}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total", Help: "Total number of HTTP requests"},
		[]string{"service", "method", "path", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"service", "method", "path"},
	)
	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_in_flight", Help: "Number of HTTP requests currently being processed", ConstLabels: constLabels},
	)

	m.KafkaEventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "kafka_events_published_total", Help: "Total number of Kafka events published"},
		[]string{"service", "topic", "event_type", "status"},
	)
	m.KafkaEventsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "kafka_events_consumed_total", Help: "Total number of Kafka events consumed"},
		[]string{"service", "topic", "event_type", "status"},
	)
	m.KafkaPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "kafka_publish_duration_seconds",
			Help:      "Kafka publish duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"service", "topic"},
	)

	m.MongoDBOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "mongodb_operations_total", Help: "Total number of MongoDB operations"},
		[]string{"service", "collection", "operation", "status"},
	)
	m.MongoDBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "mongodb_operation_duration_seconds",
			Help:      "MongoDB operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"service", "collection", "operation"},
	)

	m.OutboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: ns, Name: "outbox_pending_events", Help: "Unpublished events found in the outbox on the last poll", ConstLabels: constLabels},
	)
	m.OutboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "outbox_events_published_total", Help: "Outbox events relayed to Kafka"},
		[]string{"service", "event_type", "status"},
	)
	m.OutboxRetries = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: ns, Name: "outbox_retries_total", Help: "Outbox publish retries", ConstLabels: constLabels},
	)

	m.WorkflowsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "temporal_workflows_started_total", Help: "Total number of Temporal workflows started"},
		[]string{"service", "workflow_type"},
	)

	m.PlansComputed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "redistribution_plans_total", Help: "Distribution plans computed"},
		[]string{"service", "mode", "outcome"},
	)
	m.UnitsDistributed = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: ns, Name: "redistribution_units_distributed_total", Help: "Units moved out of source stock by executed plans", ConstLabels: constLabels},
	)
	m.ExecutionsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "redistribution_executions_rejected_total", Help: "Plan executions rejected at commit time"},
		[]string{"service", "reason"},
	)
	m.PlanAllocations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   ns,
			Name:        "redistribution_plan_allocations",
			Help:        "Number of warehouse allocations per computed plan",
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 10, 20},
			ConstLabels: constLabels,
		},
	)

	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: ns, Name: "circuit_breaker_state", Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)"},
		[]string{"service", "name"},
	)
	m.CircuitBreakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: ns, Name: "circuit_breaker_trips_total", Help: "Total number of circuit breaker trips"},
		[]string{"service", "name"},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.KafkaEventsPublished,
		m.KafkaEventsConsumed,
		m.KafkaPublishDuration,
		m.MongoDBOperations,
		m.MongoDBOperationDuration,
		m.OutboxPending,
		m.OutboxPublished,
		m.OutboxRetries,
		m.WorkflowsStarted,
		m.PlansComputed,
		m.UnitsDistributed,
		m.ExecutionsRejected,
		m.PlanAllocations,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordKafkaPublish records a Kafka publish
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordKafkaConsume records a consumed Kafka event
func (m *Metrics) RecordKafkaConsume(topic, eventType string, success bool) {
	m.KafkaEventsConsumed.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, statusLabel(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// SetOutboxPending sets the number of unpublished outbox events
func (m *Metrics) SetOutboxPending(count int) {
	m.OutboxPending.Set(float64(count))
}

// RecordOutboxPublish records an outbox relay attempt
func (m *Metrics) RecordOutboxPublish(eventType string, success bool) {
	m.OutboxPublished.WithLabelValues(m.serviceName, eventType, statusLabel(success)).Inc()
}

// RecordOutboxRetry records an outbox retry
func (m *Metrics) RecordOutboxRetry() {
	m.OutboxRetries.Inc()
}

// RecordWorkflowStarted records a workflow start
func (m *Metrics) RecordWorkflowStarted(workflowType string) {
	m.WorkflowsStarted.WithLabelValues(m.serviceName, workflowType).Inc()
}

// RecordPlan records a computed distribution plan
func (m *Metrics) RecordPlan(mode, outcome string, allocations int) {
	m.PlansComputed.WithLabelValues(m.serviceName, mode, outcome).Inc()
	m.PlanAllocations.Observe(float64(allocations))
}

// RecordUnitsDistributed adds committed units to the distribution counter
func (m *Metrics) RecordUnitsDistributed(units int) {
	m.UnitsDistributed.Add(float64(units))
}

// RecordExecutionRejected records a rejected commit
func (m *Metrics) RecordExecutionRejected(reason string) {
	m.ExecutionsRejected.WithLabelValues(m.serviceName, reason).Inc()
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(name string) {
	m.CircuitBreakerTrips.WithLabelValues(m.serviceName, name).Inc()
}
