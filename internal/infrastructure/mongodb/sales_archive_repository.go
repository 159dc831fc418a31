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

const salesArchiveCollection = "demand_history_archive"

// SalesArchiveRepository keeps daily sales trimmed out of product documents.
// One document per SKU and date; re-archiving the same day is a no-op.
type SalesArchiveRepository struct {
	collection *mongo.Collection
	observer   *sharedMongo.Observer
}

// NewSalesArchiveRepository creates the repository and its indexes
func NewSalesArchiveRepository(ctx context.Context, db *mongo.Database, observer *sharedMongo.Observer) (*SalesArchiveRepository, error) {
	repo := &SalesArchiveRepository{
		collection: db.Collection(salesArchiveCollection),
		observer:   observer,
	}

	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "sku", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := repo.collection.Indexes().CreateOne(ctx, index); err != nil {
		return nil, fmt.Errorf("failed to create sales archive index: %w", err)
	}
	return repo, nil
}

func (r *SalesArchiveRepository) Archive(ctx context.Context, sku string, records []domain.SalesRecord) error {
	if len(records) == 0 {
		return nil
	}

	now := sharedMongo.Now()
	models := make([]mongo.WriteModel, 0, len(records))
	for _, rec := range records {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"sku": sku, "date": rec.Date}).
			SetUpdate(bson.M{"$setOnInsert": bson.M{
				"sku":        sku,
				"date":       rec.Date,
				"unitsSold":  rec.UnitsSold,
				"archivedAt": now,
			}}).
			SetUpsert(true))
	}

	return r.observer.Observe(ctx, salesArchiveCollection, "archive", func(ctx context.Context) error {
		_, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
		return err
	})
}

// FindBySKU returns the archived records for a SKU in date order
func (r *SalesArchiveRepository) FindBySKU(ctx context.Context, sku string) ([]domain.SalesRecord, error) {
	records := make([]domain.SalesRecord, 0)
	err := r.observer.Observe(ctx, salesArchiveCollection, "find_by_sku", func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, bson.M{"sku": sku}, options.Find().SetSort(sharedMongo.SortAscending("date")))
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &records)
	})
	return records, err
}
