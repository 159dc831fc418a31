package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wms-platform/stock-redistribution/pkg/kafka"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
	"github.com/wms-platform/stock-redistribution/pkg/metrics"
)

// Publisher relays events from the outbox to Kafka
type Publisher struct {
	repo      Repository
	producer  kafka.EventPublisher
	logger    *logging.Logger
	metrics   *metrics.Metrics
	interval  time.Duration
	batchSize int

	mu           sync.Mutex
	running      bool
	stopCh       chan struct{}
	stoppedCh    chan struct{}
	publishedCnt int
	failedCnt    int
}

// PublisherConfig holds configuration for the outbox publisher
type PublisherConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// DefaultPublisherConfig returns default configuration
func DefaultPublisherConfig() *PublisherConfig {
	return &PublisherConfig{
		PollInterval: 1 * time.Second,
		BatchSize:    100,
	}
}

// NewPublisher creates a new outbox publisher
func NewPublisher(repo Repository, producer kafka.EventPublisher, logger *logging.Logger, m *metrics.Metrics, config *PublisherConfig) *Publisher {
	if config == nil {
		config = DefaultPublisherConfig()
	}

	return &Publisher{
		repo:      repo,
		producer:  producer,
		logger:    logger.WithComponent("outbox-publisher"),
		metrics:   m,
		interval:  config.PollInterval,
		batchSize: config.BatchSize,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start starts the polling loop
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("publisher already running")
	}
	p.running = true

	p.logger.Info("Starting outbox publisher", "interval", p.interval, "batchSize", p.batchSize)
	go p.run(ctx)
	return nil
}

// Stop stops the polling loop and waits for the current batch to finish
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return fmt.Errorf("publisher not running")
	}
	p.mu.Unlock()

	close(p.stopCh)
	<-p.stoppedCh

	p.mu.Lock()
	p.running = false
	stats := map[string]int{"published": p.publishedCnt, "failed": p.failedCnt}
	p.mu.Unlock()

	p.logger.Info("Outbox publisher stopped", "published", stats["published"], "failed", stats["failed"])
	return nil
}

func (p *Publisher) run(ctx context.Context) {
	defer close(p.stoppedCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.ProcessBatch(ctx)
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ProcessBatch publishes one batch of pending events and returns how many were relayed
func (p *Publisher) ProcessBatch(ctx context.Context) int {
	events, err := p.repo.FindUnpublished(ctx, p.batchSize)
	if err != nil {
		p.logger.WithError(err).Error("Failed to find unpublished events")
		return 0
	}

	if p.metrics != nil {
		p.metrics.SetOutboxPending(len(events))
	}

	published := 0
	for _, event := range events {
		if err := p.publishEvent(ctx, event); err != nil {
			p.logger.WithError(err).Error("Failed to publish event",
				"eventId", event.ID,
				"eventType", event.EventType,
				"aggregateId", event.AggregateID,
			)
			p.mu.Lock()
			p.failedCnt++
			p.mu.Unlock()

			if p.metrics != nil {
				p.metrics.RecordOutboxPublish(event.EventType, false)
				p.metrics.RecordOutboxRetry()
			}
			if err := p.repo.IncrementRetry(ctx, event.ID, err.Error()); err != nil {
				p.logger.WithError(err).Error("Failed to increment retry count", "eventId", event.ID)
			}
			continue
		}

		published++
		p.mu.Lock()
		p.publishedCnt++
		p.mu.Unlock()

		if p.metrics != nil {
			p.metrics.RecordOutboxPublish(event.EventType, true)
		}
		if err := p.repo.MarkPublished(ctx, event.ID); err != nil {
			p.logger.WithError(err).Error("Failed to mark event as published", "eventId", event.ID)
		}
	}
	return published
}

func (p *Publisher) publishEvent(ctx context.Context, event *OutboxEvent) error {
	cloudEvent, err := event.ToCloudEvent()
	if err != nil {
		return fmt.Errorf("failed to convert to CloudEvent: %w", err)
	}

	if err := p.producer.PublishEvent(ctx, event.Topic, cloudEvent); err != nil {
		return fmt.Errorf("failed to publish to Kafka: %w", err)
	}
	return nil
}

// Stats returns publisher counters
func (p *Publisher) Stats() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]int{
		"published": p.publishedCnt,
		"failed":    p.failedCnt,
	}
}
