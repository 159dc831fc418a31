package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/stock-redistribution/pkg/outbox"
)

// DefaultCollectionName is the name of the outbox collection
const DefaultCollectionName = "outbox_events"

// OutboxRepository implements outbox.Repository for MongoDB
type OutboxRepository struct {
	collection *mongo.Collection
}

// NewOutboxRepository creates a new MongoDB outbox repository
func NewOutboxRepository(db *mongo.Database) *OutboxRepository {
	return &OutboxRepository{collection: db.Collection(DefaultCollectionName)}
}

// SaveAll inserts events. Pass a mongo.SessionContext to join the caller's transaction.
func (r *OutboxRepository) SaveAll(ctx context.Context, events []*outbox.OutboxEvent) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]interface{}, len(events))
	for i, event := range events {
		docs[i] = event
	}

	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to save outbox events: %w", err)
	}
	return nil
}

// FindUnpublished retrieves unpublished events that still have retries left
func (r *OutboxRepository) FindUnpublished(ctx context.Context, limit int) ([]*outbox.OutboxEvent, error) {
	filter := bson.M{
		"publishedAt": bson.M{"$exists": false},
		"$expr":       bson.M{"$lt": bson.A{"$retryCount", "$maxRetries"}},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find unpublished events: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*outbox.OutboxEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode outbox events: %w", err)
	}
	return events, nil
}

// MarkPublished marks an event as published
func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": eventID},
		bson.M{"$set": bson.M{"publishedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark event as published: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("event not found: %s", eventID)
	}
	return nil
}

// IncrementRetry increments the retry count and updates last error
func (r *OutboxRepository) IncrementRetry(ctx context.Context, eventID string, errorMsg string) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": eventID},
		bson.M{
			"$inc": bson.M{"retryCount": 1},
			"$set": bson.M{"lastError": errorMsg},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to increment retry count: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("event not found: %s", eventID)
	}
	return nil
}

// FindByAggregateID retrieves all events for an aggregate, oldest first
func (r *OutboxRepository) FindByAggregateID(ctx context.Context, aggregateID string) ([]*outbox.OutboxEvent, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"aggregateId": aggregateID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find events by aggregate ID: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*outbox.OutboxEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode outbox events: %w", err)
	}
	return events, nil
}

// EnsureIndexes creates the polling, lookup and TTL indexes
func (r *OutboxRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "publishedAt", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("idx_publishedAt_createdAt"),
		},
		{
			Keys:    bson.D{{Key: "aggregateId", Value: 1}, {Key: "createdAt", Value: 1}},
			Options: options.Index().SetName("idx_aggregateId_createdAt"),
		},
		{
			// Published events expire after 7 days; unpublished ones have no publishedAt and are kept
			Keys:    bson.D{{Key: "publishedAt", Value: 1}},
			Options: options.Index().SetName("idx_publishedAt_ttl").SetExpireAfterSeconds(604800),
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
