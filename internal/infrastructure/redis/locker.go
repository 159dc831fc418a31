package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
)

const (
	// DefaultLockTTL is the lease on a held lock, so a crashed holder cannot block a SKU forever
	DefaultLockTTL = 30 * time.Second

	// DefaultRetryInterval is the pause between acquisition attempts
	DefaultRetryInterval = 50 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SKULocker is a distributed per-SKU lock on SET NX PX
type SKULocker struct {
	client        goredis.Cmdable
	prefix        string
	ttl           time.Duration
	retryInterval time.Duration
	logger        *logging.Logger
}

// NewSKULocker creates a SKULocker. Keys are "<prefix>:lock:<sku>".
func NewSKULocker(client goredis.Cmdable, prefix string, logger *logging.Logger) *SKULocker {
	if prefix == "" {
		prefix = "redistribution"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SKULocker{
		client:        client,
		prefix:        prefix,
		ttl:           DefaultLockTTL,
		retryInterval: DefaultRetryInterval,
		logger:        logger,
	}
}

// Lock blocks until the SKU lock is held or ctx ends. Expiry of ctx yields
// domain.ErrLockNotAcquired.
func (l *SKULocker) Lock(ctx context.Context, sku string) (func(context.Context) error, error) {
	key := l.prefix + ":lock:" + sku
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("failed to acquire lock for %s: %w", sku, err)
		}
		if ok {
			return func(ctx context.Context) error {
				return l.release(ctx, key, token)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrLockNotAcquired, sku, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *SKULocker) release(ctx context.Context, key, token string) error {
	deleted, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	if deleted == 0 {
		l.logger.Warn("Lock expired before release", "key", key)
	}
	return nil
}
