package mongodb

import (
	"context"
	"fmt"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/pkg/cloudevents"
	"github.com/wms-platform/stock-redistribution/pkg/kafka"
	"github.com/wms-platform/stock-redistribution/pkg/outbox"
)

const aggregateTypeProduct = "Product"

// toOutboxEvents converts a product's pending domain events into outbox rows
func toOutboxEvents(ctx context.Context, factory *cloudevents.EventFactory, sku string, events []domain.DomainEvent) ([]*outbox.OutboxEvent, error) {
	outboxEvents := make([]*outbox.OutboxEvent, 0, len(events))
	for _, event := range events {
		var cloudEvent *cloudevents.WMSCloudEvent
		switch e := event.(type) {
		case *domain.ProductCreatedEvent, *domain.StockRestockedEvent,
			*domain.SaleRecordedEvent, *domain.StockDistributedEvent:
			cloudEvent = factory.CreateEvent(ctx, e.EventType(), "redistribution/"+sku, e)
		default:
			continue
		}

		outboxEvent, err := outbox.NewOutboxEventFromCloudEvent(sku, aggregateTypeProduct, kafka.Topics.RedistributionEvents, cloudEvent)
		if err != nil {
			return nil, fmt.Errorf("failed to create outbox event: %w", err)
		}
		outboxEvents = append(outboxEvents, outboxEvent)
	}
	return outboxEvents, nil
}
