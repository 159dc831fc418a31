package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	sharedMongo "github.com/wms-platform/stock-redistribution/pkg/mongodb"
)

// TransferLogRepository reads transfer orders. They are inserted by
// ProductRepository.ApplyDistribution.
type TransferLogRepository struct {
	collection *mongo.Collection
	observer   *sharedMongo.Observer
}

// NewTransferLogRepository creates a TransferLogRepository and its indexes
func NewTransferLogRepository(ctx context.Context, db *mongo.Database, observer *sharedMongo.Observer) (*TransferLogRepository, error) {
	repo := &TransferLogRepository{
		collection: db.Collection(transfersCollection),
		observer:   observer,
	}

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "transferId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "distributionId", Value: 1}}},
		{Keys: bson.D{{Key: "sku", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("failed to create transfer indexes: %w", err)
	}
	return repo, nil
}

func (r *TransferLogRepository) FindByDistributionID(ctx context.Context, distributionID string) ([]*domain.TransferOrder, error) {
	opts := options.Find().SetSort(sharedMongo.SortAscending("createdAt"))
	return r.find(ctx, "find_by_distribution", bson.M{"distributionId": distributionID}, opts)
}

func (r *TransferLogRepository) FindBySKU(ctx context.Context, sku string, limit, offset int) ([]*domain.TransferOrder, error) {
	opts := sharedMongo.NewPagination(limit, offset).FindOptions(sharedMongo.SortDescending("createdAt"))
	return r.find(ctx, "find_by_sku", bson.M{"sku": sku}, opts)
}

func (r *TransferLogRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.TransferOrder, error) {
	opts := sharedMongo.NewPagination(limit, offset).FindOptions(sharedMongo.SortDescending("createdAt"))
	return r.find(ctx, "find_all", bson.M{}, opts)
}

func (r *TransferLogRepository) find(ctx context.Context, operation string, filter bson.M, opts *options.FindOptions) ([]*domain.TransferOrder, error) {
	orders := make([]*domain.TransferOrder, 0)
	err := r.observer.Observe(ctx, transfersCollection, operation, func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &orders)
	})
	return orders, err
}

// UpdateStatus moves a distribution's orders that are in one of the from
// states to the target state and reports how many changed
func (r *TransferLogRepository) UpdateStatus(ctx context.Context, distributionID string, from []domain.TransferStatus, to domain.TransferStatus) (int64, error) {
	var modified int64
	err := r.observer.Observe(ctx, transfersCollection, "update_status", func(ctx context.Context) error {
		filter := bson.M{
			"distributionId": distributionID,
			"status":         bson.M{"$in": from},
		}
		update := bson.M{"$set": bson.M{"status": to, "updatedAt": sharedMongo.Now()}}

		result, err := r.collection.UpdateMany(ctx, filter, update)
		if err != nil {
			return err
		}
		modified = result.ModifiedCount
		return nil
	})
	return modified, err
}
