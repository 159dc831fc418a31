package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/pkg/cloudevents"
	sharedMongo "github.com/wms-platform/stock-redistribution/pkg/mongodb"
	outboxMongo "github.com/wms-platform/stock-redistribution/pkg/outbox/mongodb"
)

const (
	productsCollection  = "products"
	transfersCollection = "transfer_orders"
)

// ProductRepository stores products and writes their events to the outbox
// in the same transaction
type ProductRepository struct {
	db           *mongo.Database
	collection   *mongo.Collection
	transfers    *mongo.Collection
	outboxRepo   *outboxMongo.OutboxRepository
	eventFactory *cloudevents.EventFactory
	observer     *sharedMongo.Observer
}

// NewProductRepository creates a ProductRepository and its indexes
func NewProductRepository(ctx context.Context, db *mongo.Database, eventFactory *cloudevents.EventFactory, observer *sharedMongo.Observer) (*ProductRepository, error) {
	repo := &ProductRepository{
		db:           db,
		collection:   db.Collection(productsCollection),
		transfers:    db.Collection(transfersCollection),
		outboxRepo:   outboxMongo.NewOutboxRepository(db),
		eventFactory: eventFactory,
		observer:     observer,
	}

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "sku", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "onHand", Value: 1}}},
	}
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("failed to create product indexes: %w", err)
	}
	if err := repo.outboxRepo.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create outbox indexes: %w", err)
	}
	return repo, nil
}

// OutboxRepository returns the outbox this repository writes to
func (r *ProductRepository) OutboxRepository() *outboxMongo.OutboxRepository {
	return r.outboxRepo
}

func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	return r.observer.Observe(ctx, productsCollection, "create", func(ctx context.Context) error {
		err := sharedMongo.RunInTransaction(ctx, r.db.Client(), func(sessCtx mongo.SessionContext) error {
			if _, err := r.collection.InsertOne(sessCtx, product); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					return domain.ErrProductExists
				}
				return fmt.Errorf("failed to insert product: %w", err)
			}
			return r.saveEvents(sessCtx, product)
		})
		if err != nil {
			return err
		}
		product.ClearDomainEvents()
		return nil
	})
}

// Save writes the product if the stored version still matches product.Version
func (r *ProductRepository) Save(ctx context.Context, product *domain.Product) error {
	return r.observer.Observe(ctx, productsCollection, "save", func(ctx context.Context) error {
		product.UpdatedAt = sharedMongo.Now()

		err := sharedMongo.RunInTransaction(ctx, r.db.Client(), func(sessCtx mongo.SessionContext) error {
			filter := bson.M{"sku": product.SKU, "version": product.Version}
			update := bson.M{
				"$set": bson.M{
					"name":          product.Name,
					"category":      product.Category,
					"location":      product.Location,
					"unitCost":      product.UnitCost,
					"onHand":        product.OnHand,
					"demandHistory": product.DemandHistory,
					"updatedAt":     product.UpdatedAt,
				},
				"$inc": bson.M{"version": 1},
			}

			result, err := r.collection.UpdateOne(sessCtx, filter, update)
			if err != nil {
				return fmt.Errorf("failed to save product: %w", err)
			}
			if result.MatchedCount == 0 {
				return domain.ErrConcurrentModification
			}
			return r.saveEvents(sessCtx, product)
		})
		if err != nil {
			return err
		}

		product.Version++
		product.ClearDomainEvents()
		return nil
	})
}

func (r *ProductRepository) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	var product domain.Product
	err := r.observer.Observe(ctx, productsCollection, "find_by_sku", func(ctx context.Context) error {
		return r.collection.FindOne(ctx, bson.M{"sku": sku}).Decode(&product)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *ProductRepository) FindAll(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	query := bson.M{}
	onHand := bson.M{}
	if filter.OnHandAbove != nil {
		onHand["$gt"] = *filter.OnHandAbove
	}
	if filter.OnHandBelow != nil {
		onHand["$lt"] = *filter.OnHandBelow
	}
	if len(onHand) > 0 {
		query["onHand"] = onHand
	}

	opts := sharedMongo.NewPagination(filter.Limit, filter.Offset).FindOptions(sharedMongo.SortAscending("sku"))

	products := make([]*domain.Product, 0)
	err := r.observer.Observe(ctx, productsCollection, "find_all", func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, query, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &products)
	})
	return products, err
}

func (r *ProductRepository) Delete(ctx context.Context, sku string) error {
	return r.observer.Observe(ctx, productsCollection, "delete", func(ctx context.Context) error {
		result, err := r.collection.DeleteOne(ctx, bson.M{"sku": sku})
		if err != nil {
			return err
		}
		if result.DeletedCount == 0 {
			return domain.ErrProductNotFound
		}
		return nil
	})
}

// ApplyDistribution decrements onHand, queues the StockDistributed event and
// inserts the transfer orders in one transaction. The update is guarded on
// both version and remaining stock.
func (r *ProductRepository) ApplyDistribution(ctx context.Context, commit *domain.DistributionCommit) error {
	product := commit.Product
	if err := commit.Validate(); err != nil {
		return err
	}

	return r.observer.Observe(ctx, productsCollection, "apply_distribution", func(ctx context.Context) error {
		now := sharedMongo.Now()

		err := sharedMongo.RunInTransaction(ctx, r.db.Client(), func(sessCtx mongo.SessionContext) error {
			filter := bson.M{
				"sku":     product.SKU,
				"version": product.Version,
				"onHand":  bson.M{"$gte": commit.Total},
			}
			update := bson.M{
				"$inc": bson.M{"onHand": -commit.Total, "version": 1},
				"$set": bson.M{"updatedAt": now},
			}

			result, err := r.collection.UpdateOne(sessCtx, filter, update)
			if err != nil {
				return fmt.Errorf("failed to decrement stock: %w", err)
			}
			if result.MatchedCount == 0 {
				return r.explainMiss(sessCtx, product.SKU, commit.Total)
			}

			if err := r.saveEvents(sessCtx, product); err != nil {
				return err
			}

			docs := make([]interface{}, len(commit.Transfers))
			for i, t := range commit.Transfers {
				docs[i] = t
			}
			if _, err := r.transfers.InsertMany(sessCtx, docs); err != nil {
				return fmt.Errorf("failed to insert transfer orders: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}

		product.Version++
		product.UpdatedAt = now
		product.ClearDomainEvents()
		return nil
	})
}

// explainMiss re-reads the product to tell a stock shortfall from a version race
func (r *ProductRepository) explainMiss(ctx context.Context, sku string, total int) error {
	var current domain.Product
	err := r.collection.FindOne(ctx, bson.M{"sku": sku}).Decode(&current)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to reload product: %w", err)
	}
	if current.OnHand < total {
		return &domain.InsufficientStockError{SKU: sku, Attempted: total, Available: current.OnHand}
	}
	return domain.ErrConcurrentModification
}

func (r *ProductRepository) saveEvents(sessCtx mongo.SessionContext, product *domain.Product) error {
	events, err := toOutboxEvents(sessCtx, r.eventFactory, product.SKU, product.GetDomainEvents())
	if err != nil {
		return err
	}
	if err := r.outboxRepo.SaveAll(sessCtx, events); err != nil {
		return fmt.Errorf("failed to save outbox events: %w", err)
	}
	return nil
}
