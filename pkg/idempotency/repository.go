package idempotency

import "context"

// KeyRepository manages idempotency keys for REST APIs
type KeyRepository interface {
	// AcquireLock atomically creates or locks the key. The boolean reports
	// whether the key was newly created.
	AcquireLock(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error)

	// ReleaseLock unlocks a key without storing a response so the client can retry
	ReleaseLock(ctx context.Context, keyID string) error

	// StoreResponse caches the final response and marks the key completed
	StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error

	EnsureIndexes(ctx context.Context) error
}

// MessageRepository manages processed messages for Kafka consumers
type MessageRepository interface {
	// MarkProcessed returns ErrMessageAlreadyProcessed on a duplicate
	MarkProcessed(ctx context.Context, msg *ProcessedMessage) error
	IsProcessed(ctx context.Context, messageID, topic, consumerGroup string) (bool, error)
	EnsureIndexes(ctx context.Context) error
}
