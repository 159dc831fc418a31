package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
	"github.com/wms-platform/stock-redistribution/pkg/cloudevents"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
	"github.com/wms-platform/stock-redistribution/pkg/metrics"
)

// EventHandler handles a CloudEvent
type EventHandler func(ctx context.Context, event *cloudevents.WMSCloudEvent) error

// Consumer consumes CloudEvents from Kafka topics and routes them by event type
type Consumer struct {
	config   *Config
	readers  map[string]*kafka.Reader
	handlers map[string]map[string]EventHandler // topic -> eventType -> handler
	logger   *logging.Logger
	metrics  *metrics.Metrics
	wg       sync.WaitGroup
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config *Config, logger *logging.Logger, m *metrics.Metrics) *Consumer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Consumer{
		config:   config,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]map[string]EventHandler),
		logger:   logger,
		metrics:  m,
	}
}

// Subscribe registers a handler for an event type on a topic. "*" matches any type.
func (c *Consumer) Subscribe(topic string, eventType string, handler EventHandler) {
	if _, exists := c.handlers[topic]; !exists {
		c.handlers[topic] = make(map[string]EventHandler)
	}
	c.handlers[topic][eventType] = handler
}

// Start consumes all subscribed topics until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	for topic := range c.handlers {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:        c.config.Brokers,
			GroupID:        c.config.ConsumerGroup,
			Topic:          topic,
			MinBytes:       c.config.MinBytes,
			MaxBytes:       c.config.MaxBytes,
			MaxWait:        c.config.MaxWait,
			CommitInterval: c.config.CommitTimeout,
		})
		c.readers[topic] = reader

		c.wg.Add(1)
		go func(topic string, reader *kafka.Reader) {
			defer c.wg.Done()
			c.consumeTopic(ctx, topic, reader)
		}(topic, reader)
	}

	<-ctx.Done()
	c.wg.Wait()
	return ctx.Err()
}

func (c *Consumer) consumeTopic(ctx context.Context, topic string, reader *kafka.Reader) {
	c.logger.Info("Starting consumer for topic", "topic", topic, "group", c.config.ConsumerGroup)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Stopping consumer for topic", "topic", topic)
				return
			}
			c.logger.WithError(err).Error("Error fetching message", "topic", topic)
			continue
		}

		event, err := ParseMessage(msg)
		if err != nil {
			// Poison messages are committed so they cannot block the partition
			c.logger.WithError(err).Error("Error parsing message", "topic", topic, "offset", msg.Offset)
			c.commit(ctx, reader, topic, msg)
			continue
		}

		c.logger.KafkaConsume(ctx, topic, event.Type, msg.Partition, msg.Offset)

		if err := c.HandleEvent(ctx, topic, event); err != nil {
			c.logger.WithError(err).Error("Error handling event",
				"topic", topic,
				"eventType", event.Type,
				"eventId", event.ID,
			)
			if c.metrics != nil {
				c.metrics.RecordKafkaConsume(topic, event.Type, false)
			}
			// Uncommitted messages are redelivered after a rebalance or restart
			continue
		}

		if c.metrics != nil {
			c.metrics.RecordKafkaConsume(topic, event.Type, true)
		}
		c.commit(ctx, reader, topic, msg)
	}
}

func (c *Consumer) commit(ctx context.Context, reader *kafka.Reader, topic string, msg kafka.Message) {
	if err := reader.CommitMessages(ctx, msg); err != nil {
		c.logger.WithError(err).Error("Error committing message", "topic", topic)
	}
}

// ParseMessage decodes a structured-mode CloudEvent, letting ce-* headers
// fill extensions the body does not carry
func ParseMessage(msg kafka.Message) (*cloudevents.WMSCloudEvent, error) {
	var event cloudevents.WMSCloudEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	for _, header := range msg.Headers {
		switch header.Key {
		case "ce-wmscorrelationid":
			if event.CorrelationID == "" {
				event.CorrelationID = string(header.Value)
			}
		case "ce-wmsworkflowid":
			if event.WorkflowID == "" {
				event.WorkflowID = string(header.Value)
			}
		case "ce-type":
			if event.Type == "" {
				event.Type = string(header.Value)
			}
		case "ce-id":
			if event.ID == "" {
				event.ID = string(header.Value)
			}
		}
	}

	return &event, nil
}

// HandleEvent routes an event to the handler registered for its type
func (c *Consumer) HandleEvent(ctx context.Context, topic string, event *cloudevents.WMSCloudEvent) error {
	handlers, exists := c.handlers[topic]
	if !exists {
		return fmt.Errorf("no handlers registered for topic %s", topic)
	}

	if event.CorrelationID != "" {
		ctx = logging.ContextWithCorrelationID(ctx, event.CorrelationID)
	}

	if handler, exists := handlers[event.Type]; exists {
		return handler(ctx, event)
	}
	if handler, exists := handlers["*"]; exists {
		return handler(ctx, event)
	}

	c.logger.Warn("No handler found for event type", "topic", topic, "eventType", event.Type)
	return nil
}

// Close closes all readers
func (c *Consumer) Close() error {
	var lastErr error
	for topic, reader := range c.readers {
		if err := reader.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close reader for topic %s: %w", topic, err)
		}
	}
	return lastErr
}
