package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	sharedMongo "github.com/wms-platform/stock-redistribution/pkg/mongodb"
)

const requestsCollection = "distribution_requests"

// DistributionRequestRepository is the append-only log of preview and execute calls
type DistributionRequestRepository struct {
	collection *mongo.Collection
	observer   *sharedMongo.Observer
}

// NewDistributionRequestRepository creates the repository and its indexes
func NewDistributionRequestRepository(ctx context.Context, db *mongo.Database, observer *sharedMongo.Observer) (*DistributionRequestRepository, error) {
	repo := &DistributionRequestRepository{
		collection: db.Collection(requestsCollection),
		observer:   observer,
	}

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "sku", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("failed to create request indexes: %w", err)
	}
	return repo, nil
}

func (r *DistributionRequestRepository) Append(ctx context.Context, request *domain.DistributionRequest) error {
	return r.observer.Observe(ctx, requestsCollection, "append", func(ctx context.Context) error {
		_, err := r.collection.InsertOne(ctx, request)
		return err
	})
}

// Find lists requests newest first. An empty sku lists all.
func (r *DistributionRequestRepository) Find(ctx context.Context, sku string, limit, offset int) ([]*domain.DistributionRequest, error) {
	filter := bson.M{}
	if sku != "" {
		filter["sku"] = sku
	}
	opts := sharedMongo.NewPagination(limit, offset).FindOptions(sharedMongo.SortDescending("createdAt"))

	requests := make([]*domain.DistributionRequest, 0)
	err := r.observer.Observe(ctx, requestsCollection, "find", func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &requests)
	})
	return requests, err
}
