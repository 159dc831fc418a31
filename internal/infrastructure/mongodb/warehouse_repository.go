package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	sharedMongo "github.com/wms-platform/stock-redistribution/pkg/mongodb"
)

const warehousesCollection = "warehouses"

// WarehouseRepository stores the warehouse directory. Stock positions live in
// a map keyed by SKU and are written with field-level updates.
type WarehouseRepository struct {
	collection *mongo.Collection
	observer   *sharedMongo.Observer
}

// NewWarehouseRepository creates a WarehouseRepository and its indexes
func NewWarehouseRepository(ctx context.Context, db *mongo.Database, observer *sharedMongo.Observer) (*WarehouseRepository, error) {
	repo := &WarehouseRepository{
		collection: db.Collection(warehousesCollection),
		observer:   observer,
	}

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "warehouseId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "active", Value: 1}}},
	}
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("failed to create warehouse indexes: %w", err)
	}
	return repo, nil
}

// Save upserts the descriptive fields. Existing stock positions are left alone.
func (r *WarehouseRepository) Save(ctx context.Context, warehouse *domain.Warehouse) error {
	return r.observer.Observe(ctx, warehousesCollection, "save", func(ctx context.Context) error {
		warehouse.UpdatedAt = sharedMongo.Now()
		stock := warehouse.Stock
		if stock == nil {
			stock = map[string]domain.WarehouseStock{}
		}

		update := bson.M{
			"$set": bson.M{
				"name":                warehouse.Name,
				"location":            warehouse.Location,
				"active":              warehouse.Active,
				"projectedDemandDays": warehouse.ProjectedDemandDays,
				"updatedAt":           warehouse.UpdatedAt,
			},
			"$setOnInsert": bson.M{
				"warehouseId": warehouse.WarehouseID,
				"stock":       stock,
				"createdAt":   warehouse.CreatedAt,
			},
		}
		_, err := r.collection.UpdateOne(ctx, bson.M{"warehouseId": warehouse.WarehouseID}, update, options.Update().SetUpsert(true))
		return err
	})
}

func (r *WarehouseRepository) FindByID(ctx context.Context, warehouseID string) (*domain.Warehouse, error) {
	var warehouse domain.Warehouse
	err := r.observer.Observe(ctx, warehousesCollection, "find_by_id", func(ctx context.Context) error {
		return r.collection.FindOne(ctx, bson.M{"warehouseId": warehouseID}).Decode(&warehouse)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &warehouse, nil
}

// FindActive returns every active warehouse ordered by ID
func (r *WarehouseRepository) FindActive(ctx context.Context) ([]*domain.Warehouse, error) {
	opts := options.Find().SetSort(sharedMongo.SortAscending("warehouseId"))
	return r.find(ctx, "find_active", bson.M{"active": true}, opts)
}

func (r *WarehouseRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.Warehouse, error) {
	opts := sharedMongo.NewPagination(limit, offset).FindOptions(sharedMongo.SortAscending("warehouseId"))
	return r.find(ctx, "find_all", bson.M{}, opts)
}

func (r *WarehouseRepository) find(ctx context.Context, operation string, filter bson.M, opts *options.FindOptions) ([]*domain.Warehouse, error) {
	warehouses := make([]*domain.Warehouse, 0)
	err := r.observer.Observe(ctx, warehousesCollection, operation, func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &warehouses)
	})
	return warehouses, err
}

// SetStock replaces one SKU position
func (r *WarehouseRepository) SetStock(ctx context.Context, warehouseID, sku string, stock domain.WarehouseStock) error {
	return r.observer.Observe(ctx, warehousesCollection, "set_stock", func(ctx context.Context) error {
		update := bson.M{"$set": bson.M{
			"stock." + sku: stock,
			"updatedAt":    sharedMongo.Now(),
		}}
		return r.updateOne(ctx, warehouseID, update)
	})
}

// IncrementStock credits received units to one SKU position, creating it if needed
func (r *WarehouseRepository) IncrementStock(ctx context.Context, warehouseID, sku string, quantity int) error {
	return r.observer.Observe(ctx, warehousesCollection, "increment_stock", func(ctx context.Context) error {
		update := bson.M{
			"$inc": bson.M{"stock." + sku + ".currentStock": quantity},
			"$set": bson.M{"updatedAt": sharedMongo.Now()},
		}
		return r.updateOne(ctx, warehouseID, update)
	})
}

func (r *WarehouseRepository) updateOne(ctx context.Context, warehouseID string, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"warehouseId": warehouseID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrWarehouseNotFound
	}
	return nil
}
