package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/wms-platform/stock-redistribution/pkg/cloudevents"
	"github.com/wms-platform/stock-redistribution/pkg/kafka"
)

// DeduplicatingHandler wraps a consumer handler so each CloudEvent ID is
// processed at most once per topic and consumer group
func DeduplicatingHandler(config *ConsumerConfig, handler kafka.EventHandler) kafka.EventHandler {
	return func(ctx context.Context, event *cloudevents.WMSCloudEvent) error {
		logger := config.logger().WithContext(ctx)

		processed, err := config.Repository.IsProcessed(ctx, event.ID, config.Topic, config.ConsumerGroup)
		if err != nil {
			logger.Error("Failed to check if message is processed", "error", err, "messageId", event.ID, "topic", config.Topic)
			return err
		}
		if processed {
			logger.Info("Duplicate message skipped", "messageId", event.ID, "topic", config.Topic, "eventType", event.Type)
			config.Metrics.recordDuplicate(config.ServiceName, config.Topic, event.Type)
			return nil
		}

		// Not marked on error so the redelivery is processed
		if err := handler(ctx, event); err != nil {
			return err
		}

		now := time.Now().UTC()
		err = config.Repository.MarkProcessed(ctx, &ProcessedMessage{
			MessageID:     event.ID,
			Topic:         config.Topic,
			EventType:     event.Type,
			ConsumerGroup: config.ConsumerGroup,
			ServiceID:     config.ServiceName,
			ProcessedAt:   now,
			ExpiresAt:     now.Add(config.RetentionPeriod),
			CorrelationID: event.CorrelationID,
		})
		if errors.Is(err, ErrMessageAlreadyProcessed) {
			logger.Warn("Message was processed concurrently", "messageId", event.ID, "topic", config.Topic)
			return nil
		}
		if err != nil {
			logger.Error("Failed to mark message as processed", "error", err, "messageId", event.ID, "topic", config.Topic)
			return err
		}
		return nil
	}
}
