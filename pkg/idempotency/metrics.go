package idempotency

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds idempotency-related Prometheus metrics
type Metrics struct {
	Hits                *prometheus.CounterVec
	Misses              *prometheus.CounterVec
	ParameterMismatches *prometheus.CounterVec
	ConcurrentConflicts *prometheus.CounterVec
	StorageErrors       *prometheus.CounterVec

	// Labels: service, topic, event_type
	DuplicateMessages *prometheus.CounterVec
}

// NewMetrics registers the idempotency metrics with the given registerer
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		Hits: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "idempotency_hits_total", Help: "Cached responses returned for a repeated idempotency key"},
			[]string{"service", "endpoint", "method"},
		),
		Misses: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "idempotency_misses_total", Help: "New keyed requests processed"},
			[]string{"service", "endpoint", "method"},
		),
		ParameterMismatches: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "idempotency_parameter_mismatches_total", Help: "Keyed requests replayed with a different body"},
			[]string{"service", "endpoint", "method"},
		),
		ConcurrentConflicts: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "idempotency_concurrent_collisions_total", Help: "Keyed requests rejected while the key was in flight"},
			[]string{"service", "endpoint", "method"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "idempotency_storage_errors_total", Help: "Idempotency storage failures"},
			[]string{"service", "operation"},
		),
		DuplicateMessages: factory.NewCounterVec(
			prometheus.CounterOpts{Name: "message_deduplication_hits_total", Help: "Duplicate messages skipped"},
			[]string{"service", "topic", "event_type"},
		),
	}
}

func (m *Metrics) recordHit(service, endpoint, method string) {
	if m != nil {
		m.Hits.WithLabelValues(service, endpoint, method).Inc()
	}
}

func (m *Metrics) recordMiss(service, endpoint, method string) {
	if m != nil {
		m.Misses.WithLabelValues(service, endpoint, method).Inc()
	}
}

func (m *Metrics) recordMismatch(service, endpoint, method string) {
	if m != nil {
		m.ParameterMismatches.WithLabelValues(service, endpoint, method).Inc()
	}
}

func (m *Metrics) recordConflict(service, endpoint, method string) {
	if m != nil {
		m.ConcurrentConflicts.WithLabelValues(service, endpoint, method).Inc()
	}
}

func (m *Metrics) recordStorageError(service, operation string) {
	if m != nil {
		m.StorageErrors.WithLabelValues(service, operation).Inc()
	}
}

func (m *Metrics) recordDuplicate(service, topic, eventType string) {
	if m != nil {
		m.DuplicateMessages.WithLabelValues(service, topic, eventType).Inc()
	}
}
