package costs

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
)

// DefaultCacheTTL is how long a quoted cost is reused
const DefaultCacheTTL = 10 * time.Minute

// CachedCostProvider keeps quoted costs in Redis. Cache errors are logged and
// the underlying provider is used directly.
type CachedCostProvider struct {
	client redis.Cmdable
	next   domain.TransferCostProvider
	prefix string
	ttl    time.Duration
	logger *logging.Logger
}

// NewCachedCostProvider wraps next with a Redis cache
func NewCachedCostProvider(client redis.Cmdable, next domain.TransferCostProvider, prefix string, ttl time.Duration, logger *logging.Logger) *CachedCostProvider {
	if prefix == "" {
		prefix = "redistribution"
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CachedCostProvider{client: client, next: next, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *CachedCostProvider) key(fromLocation, warehouseID string) string {
	return c.prefix + ":cost:" + fromLocation + ":" + warehouseID
}

func (c *CachedCostProvider) GetTransferCost(ctx context.Context, fromLocation string, warehouse *domain.Warehouse) (float64, error) {
	key := c.key(fromLocation, warehouse.WarehouseID)

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if cost, parseErr := strconv.ParseFloat(cached, 64); parseErr == nil {
			return cost, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.WithContext(ctx).Warn("Cost cache read failed", "key", key, "error", err)
	}

	cost, err := c.next.GetTransferCost(ctx, fromLocation, warehouse)
	if err != nil {
		return 0, err
	}

	if err := c.client.Set(ctx, key, strconv.FormatFloat(cost, 'f', -1, 64), c.ttl).Err(); err != nil {
		c.logger.WithContext(ctx).Warn("Cost cache write failed", "key", key, "error", err)
	}
	return cost, nil
}
