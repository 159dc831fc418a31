package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	mongoRepo "github.com/wms-platform/stock-redistribution/internal/infrastructure/mongodb"
	"github.com/wms-platform/stock-redistribution/pkg/cloudevents"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
	"github.com/wms-platform/stock-redistribution/pkg/mongodb"
)

// Trims each product's demand history to the newest -keep days and archives
// the dropped records to demand_history_archive

var (
	mongoURI  = flag.String("mongo-uri", getEnv("MONGODB_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
	dbName    = flag.String("db", getEnv("MONGODB_DATABASE", "redistribution"), "Database name")
	dryRun    = flag.Bool("dry-run", true, "Dry run mode (no actual writes)")
	keep      = flag.Int("keep", 90, "Number of newest sales records to keep per product")
	batchSize = flag.Int("batch-size", 100, "Products read per page (1-500)")
)

type migrationStats struct {
	Scanned   int
	Trimmed   int
	Archived  int
	Conflicts int
}

func main() {
	flag.Parse()

	logConfig := logging.DefaultConfig("redistribution-migrate")
	logger := logging.New(logConfig)

	if *keep < 0 || *batchSize <= 0 || *batchSize > 500 {
		logger.Error("Invalid flags", "keep", *keep, "batchSize", *batchSize)
		os.Exit(2)
	}

	logger.Info("Starting demand history migration",
		"database", *dbName,
		"dryRun", *dryRun,
		"keep", *keep,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoConfig := mongodb.DefaultConfig()
	mongoConfig.URI = *mongoURI
	mongoConfig.Database = *dbName
	client, err := mongodb.NewClient(ctx, mongoConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer client.Close(context.Background())

	runCtx := context.Background()
	db := client.Database()
	products, err := mongoRepo.NewProductRepository(runCtx, db, cloudevents.NewEventFactory("/redistribution-service"), nil)
	if err != nil {
		logger.WithError(err).Error("Failed to open product repository")
		os.Exit(1)
	}
	archive, err := mongoRepo.NewSalesArchiveRepository(runCtx, db, nil)
	if err != nil {
		logger.WithError(err).Error("Failed to open archive repository")
		os.Exit(1)
	}

	stats, err := trimHistories(runCtx, products, archive, *keep, *batchSize, *dryRun, logger)
	if err != nil {
		logger.WithError(err).Error("Migration failed")
		os.Exit(1)
	}

	logger.Info("Migration completed",
		"scanned", stats.Scanned,
		"trimmed", stats.Trimmed,
		"archived", stats.Archived,
		"conflicts", stats.Conflicts,
		"dryRun", *dryRun,
	)
}

// trimHistories pages through every product. Dropped records are archived before
// the product is saved; the archive ignores records it already holds, so a rerun
// after a partial failure is safe.
func trimHistories(
	ctx context.Context,
	products domain.ProductRepository,
	archive domain.SalesArchiveRepository,
	keep, batchSize int,
	dryRun bool,
	logger *logging.Logger,
) (migrationStats, error) {
	var stats migrationStats

	for offset := 0; ; offset += batchSize {
		page, err := products.FindAll(ctx, domain.ProductFilter{Limit: batchSize, Offset: offset})
		if err != nil {
			return stats, fmt.Errorf("failed to list products at offset %d: %w", offset, err)
		}

		for _, product := range page {
			stats.Scanned++
			dropped := product.TrimHistory(keep)
			if len(dropped) == 0 {
				continue
			}
			stats.Trimmed++
			stats.Archived += len(dropped)

			if dryRun {
				logger.Info("Would trim history", "sku", product.SKU, "dropped", len(dropped), "kept", len(product.DemandHistory))
				continue
			}

			if err := archive.Archive(ctx, product.SKU, dropped); err != nil {
				return stats, fmt.Errorf("failed to archive %s: %w", product.SKU, err)
			}
			if err := products.Save(ctx, product); err != nil {
				if errors.Is(err, domain.ErrConcurrentModification) {
					stats.Conflicts++
					logger.Warn("Product changed during migration, skipped", "sku", product.SKU)
					continue
				}
				return stats, fmt.Errorf("failed to save %s: %w", product.SKU, err)
			}
			logger.Info("Trimmed history", "sku", product.SKU, "dropped", len(dropped))
		}

		if len(page) < batchSize {
			return stats, nil
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
