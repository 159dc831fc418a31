package idempotency

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IdempotencyKey stores the request fingerprint and the response of a keyed request
type IdempotencyKey struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	Key                string             `bson:"key"`
	ServiceID          string             `bson:"serviceId"`
	RequestPath        string             `bson:"requestPath"`
	RequestMethod      string             `bson:"requestMethod"`
	RequestFingerprint string             `bson:"requestFingerprint"` // SHA256 of the body

	LockedAt *time.Time `bson:"lockedAt,omitempty"`

	ResponseCode    int               `bson:"responseCode,omitempty"`
	ResponseBody    []byte            `bson:"responseBody,omitempty"`
	ResponseHeaders map[string]string `bson:"responseHeaders,omitempty"`

	CreatedAt   time.Time  `bson:"createdAt"`
	CompletedAt *time.Time `bson:"completedAt,omitempty"`
	ExpiresAt   time.Time  `bson:"expiresAt"`
}

// IsCompleted returns true if the request has been completed
func (ik *IdempotencyKey) IsCompleted() bool {
	return ik.CompletedAt != nil
}

// IsLocked returns true if the request is currently being processed
func (ik *IdempotencyKey) IsLocked() bool {
	return ik.LockedAt != nil && ik.CompletedAt == nil
}

// ProcessedMessage records a consumed CloudEvent so redeliveries are skipped
type ProcessedMessage struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	MessageID     string             `bson:"messageId"`
	Topic         string             `bson:"topic"`
	EventType     string             `bson:"eventType"`
	ConsumerGroup string             `bson:"consumerGroup"`
	ServiceID     string             `bson:"serviceId"`
	ProcessedAt   time.Time          `bson:"processedAt"`
	ExpiresAt     time.Time          `bson:"expiresAt"`
	CorrelationID string             `bson:"correlationId,omitempty"`
}
