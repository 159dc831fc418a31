package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	policyConfig "github.com/wms-platform/stock-redistribution/internal/config"
	"github.com/wms-platform/stock-redistribution/internal/domain"
	mongoRepo "github.com/wms-platform/stock-redistribution/internal/infrastructure/mongodb"
	"github.com/wms-platform/stock-redistribution/pkg/cloudevents"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
	"github.com/wms-platform/stock-redistribution/pkg/mongodb"
)

// Reports products whose demand history has grown past a threshold, plus
// overstock and low-stock counts

var (
	mongoURI   = flag.String("mongo-uri", getEnv("MONGODB_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
	dbName     = flag.String("db", getEnv("MONGODB_DATABASE", "redistribution"), "Database name")
	policyFile = flag.String("policy", getEnv("POLICY_FILE", policyConfig.DefaultPath), "Policy file with stock thresholds")
	threshold  = flag.Int("threshold", 365, "Alert when a product holds more sales records than this")
	interval   = flag.Duration("interval", 0, "Repeat the scan at this interval (0 runs once)")
	limit      = flag.Int("limit", 50, "Maximum number of oversized products to report")
)

const pageSize = 200

type historyInfo struct {
	SKU     string
	Records int
}

type report struct {
	Scanned   int
	Oversized []historyInfo
	ByStatus  map[domain.StockStatus]int
}

func main() {
	flag.Parse()

	logger := logging.New(logging.DefaultConfig("redistribution-monitor"))

	policy, err := policyConfig.Load(*policyFile)
	if errors.Is(err, policyConfig.ErrFileNotFound) {
		policy = policyConfig.Default()
	} else if err != nil {
		logger.WithError(err).Error("Invalid policy file", "path", *policyFile)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mongoConfig := mongodb.DefaultConfig()
	mongoConfig.URI = *mongoURI
	mongoConfig.Database = *dbName
	client, err := mongodb.NewClient(connectCtx, mongoConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer client.Close(context.Background())

	products, err := mongoRepo.NewProductRepository(ctx, client.Database(), cloudevents.NewEventFactory("/redistribution-service"), nil)
	if err != nil {
		logger.WithError(err).Error("Failed to open product repository")
		os.Exit(1)
	}

	for {
		r, err := scan(ctx, products, policy.Thresholds, *threshold)
		if err != nil {
			logger.WithError(err).Error("Scan failed")
		} else {
			logReport(logger, r, *threshold, *limit)
		}

		if *interval <= 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(*interval):
		}
	}
}

func scan(ctx context.Context, products domain.ProductRepository, thresholds domain.StockThresholds, maxRecords int) (*report, error) {
	r := &report{ByStatus: make(map[domain.StockStatus]int)}

	for offset := 0; ; offset += pageSize {
		page, err := products.FindAll(ctx, domain.ProductFilter{Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, fmt.Errorf("failed to list products at offset %d: %w", offset, err)
		}
		for _, p := range page {
			r.Scanned++
			r.ByStatus[p.StockStatus(thresholds)]++
			if len(p.DemandHistory) > maxRecords {
				r.Oversized = append(r.Oversized, historyInfo{SKU: p.SKU, Records: len(p.DemandHistory)})
			}
		}
		if len(page) < pageSize {
			break
		}
	}

	sort.SliceStable(r.Oversized, func(i, j int) bool {
		return r.Oversized[i].Records > r.Oversized[j].Records
	})
	return r, nil
}

func logReport(logger *logging.Logger, r *report, maxRecords, max int) {
	logger.Info("Stock scan completed",
		"scanned", r.Scanned,
		"overstock", r.ByStatus[domain.StockStatusOverstock],
		"normal", r.ByStatus[domain.StockStatusNormal],
		"low", r.ByStatus[domain.StockStatusLow],
		"oversizedHistories", len(r.Oversized),
	)

	for i, info := range r.Oversized {
		if i == max {
			logger.Warn("Oversized history list truncated", "remaining", len(r.Oversized)-max)
			break
		}
		logger.Warn("Demand history above threshold",
			"sku", info.SKU,
			"records", info.Records,
			"threshold", maxRecords,
		)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
