package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/wms-platform/stock-redistribution/pkg/cloudevents"
)

// DefaultMaxRetries bounds how often the publisher retries an event
const DefaultMaxRetries = 10

// OutboxEvent is an event stored alongside an aggregate write for reliable delivery
type OutboxEvent struct {
	ID            string          `bson:"_id" json:"id"`
	AggregateID   string          `bson:"aggregateId" json:"aggregateId"`
	AggregateType string          `bson:"aggregateType" json:"aggregateType"`
	EventType     string          `bson:"eventType" json:"eventType"`
	Topic         string          `bson:"topic" json:"topic"`
	Payload       json.RawMessage `bson:"payload" json:"payload"`
	CreatedAt     time.Time       `bson:"createdAt" json:"createdAt"`
	PublishedAt   *time.Time      `bson:"publishedAt,omitempty" json:"publishedAt,omitempty"`
	RetryCount    int             `bson:"retryCount" json:"retryCount"`
	LastError     string          `bson:"lastError,omitempty" json:"lastError,omitempty"`
	MaxRetries    int             `bson:"maxRetries" json:"maxRetries"`
}

// NewOutboxEventFromCloudEvent creates an outbox event from a CloudEvent
func NewOutboxEventFromCloudEvent(aggregateID, aggregateType, topic string, cloudEvent *cloudevents.WMSCloudEvent) (*OutboxEvent, error) {
	payload, err := json.Marshal(cloudEvent)
	if err != nil {
		return nil, err
	}

	return &OutboxEvent{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     cloudEvent.Type,
		Topic:         topic,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
		MaxRetries:    DefaultMaxRetries,
	}, nil
}

// IsPublished checks if the event has been published
func (e *OutboxEvent) IsPublished() bool {
	return e.PublishedAt != nil
}

// ShouldRetry checks if the event should be retried
func (e *OutboxEvent) ShouldRetry() bool {
	return !e.IsPublished() && e.RetryCount < e.MaxRetries
}

// ToCloudEvent converts the outbox payload back to a CloudEvent
func (e *OutboxEvent) ToCloudEvent() (*cloudevents.WMSCloudEvent, error) {
	var cloudEvent cloudevents.WMSCloudEvent
	if err := json.Unmarshal(e.Payload, &cloudEvent); err != nil {
		return nil, err
	}
	return &cloudEvent, nil
}

// Repository defines outbox event persistence
type Repository interface {
	// SaveAll saves events; callers pass a session context to join a transaction
	SaveAll(ctx context.Context, events []*OutboxEvent) error

	// FindUnpublished retrieves unpublished, retryable events oldest first
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	MarkPublished(ctx context.Context, eventID string) error

	// IncrementRetry increments the retry count and records the last error
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error
}
