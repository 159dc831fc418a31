package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
)

// EventFactory creates CloudEvents for a single source
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent creates a new event. The correlation ID is taken from ctx when present.
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, data interface{}) *WMSCloudEvent {
	return &WMSCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
		CorrelationID:   logging.CorrelationIDFromContext(ctx),
	}
}

// CreateEventWithCorrelation creates an event with explicit correlation tracking
func (f *EventFactory) CreateEventWithCorrelation(ctx context.Context, eventType, subject string, data interface{}, correlationID, workflowID string) *WMSCloudEvent {
	event := f.CreateEvent(ctx, eventType, subject, data)
	event.CorrelationID = correlationID
	event.WorkflowID = workflowID
	return event
}
