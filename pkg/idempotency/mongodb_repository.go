package idempotency

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	idempotencyKeysCollection   = "idempotency_keys"
	processedMessagesCollection = "processed_messages"
)

// MongoKeyRepository implements KeyRepository using MongoDB
type MongoKeyRepository struct {
	collection *mongo.Collection
}

// NewMongoKeyRepository creates a new MongoDB-backed key repository
func NewMongoKeyRepository(db *mongo.Database) *MongoKeyRepository {
	return &MongoKeyRepository{collection: db.Collection(idempotencyKeysCollection)}
}

// AcquireLock upserts the key. The lock timestamp is only written on insert,
// so a second caller sees the original lock age.
func (r *MongoKeyRepository) AcquireLock(ctx context.Context, key *IdempotencyKey) (*IdempotencyKey, bool, error) {
	now := time.Now().UTC()
	id := primitive.NewObjectID()

	filter := bson.M{"serviceId": key.ServiceID, "key": key.Key}
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":                id,
			"key":                key.Key,
			"serviceId":          key.ServiceID,
			"requestPath":        key.RequestPath,
			"requestMethod":      key.RequestMethod,
			"requestFingerprint": key.RequestFingerprint,
			"lockedAt":           now,
			"createdAt":          key.CreatedAt,
			"expiresAt":          key.ExpiresAt,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var result IdempotencyKey
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result); err != nil {
		return nil, false, err
	}
	return &result, result.ID == id, nil
}

// ReleaseLock removes an uncompleted key so the same key can be retried
func (r *MongoKeyRepository) ReleaseLock(ctx context.Context, keyID string) error {
	objID, err := primitive.ObjectIDFromHex(keyID)
	if err != nil {
		return err
	}
	_, err = r.collection.DeleteOne(ctx, bson.M{"_id": objID, "completedAt": bson.M{"$exists": false}})
	return err
}

// StoreResponse stores the final response for a completed request
func (r *MongoKeyRepository) StoreResponse(ctx context.Context, keyID string, responseCode int, responseBody []byte, headers map[string]string) error {
	objID, err := primitive.ObjectIDFromHex(keyID)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"responseCode":    responseCode,
			"responseBody":    responseBody,
			"responseHeaders": headers,
			"completedAt":     time.Now().UTC(),
		},
		"$unset": bson.M{"lockedAt": ""},
	}
	_, err = r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	return err
}

// EnsureIndexes creates the unique key index and the TTL index
func (r *MongoKeyRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "serviceId", Value: 1}, {Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_service_key"),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_ttl"),
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// MongoMessageRepository implements MessageRepository using MongoDB
type MongoMessageRepository struct {
	collection *mongo.Collection
}

// NewMongoMessageRepository creates a new MongoDB-backed message repository
func NewMongoMessageRepository(db *mongo.Database) *MongoMessageRepository {
	return &MongoMessageRepository{collection: db.Collection(processedMessagesCollection)}
}

// MarkProcessed marks a message as processed
func (r *MongoMessageRepository) MarkProcessed(ctx context.Context, msg *ProcessedMessage) error {
	if _, err := r.collection.InsertOne(ctx, msg); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrMessageAlreadyProcessed
		}
		return err
	}
	return nil
}

// IsProcessed checks if a message has been processed
func (r *MongoMessageRepository) IsProcessed(ctx context.Context, messageID, topic, consumerGroup string) (bool, error) {
	filter := bson.M{"messageId": messageID, "topic": topic, "consumerGroup": consumerGroup}
	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// EnsureIndexes creates the unique message index and the TTL index
func (r *MongoMessageRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "messageId", Value: 1}, {Key: "topic", Value: 1}, {Key: "consumerGroup", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_msg_topic_group"),
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_ttl"),
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}
