package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/stock-redistribution/internal/domain"
)

// TestMemoryLockerSerializes tests mutual exclusion per SKU
func TestMemoryLockerSerializes(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	var mu sync.Mutex
	inside, maxInside := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "SKU-100")
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			assert.NoError(t, unlock(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside)
	assert.Empty(t, locker.slots)
}

// TestMemoryLockerTimeout tests that a held SKU times out other callers
func TestMemoryLockerTimeout(t *testing.T) {
	locker := NewMemoryLocker()
	unlock, err := locker.Lock(context.Background(), "SKU-100")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "SKU-100")
	assert.ErrorIs(t, err, domain.ErrLockNotAcquired)

	other, err := locker.Lock(context.Background(), "SKU-200")
	require.NoError(t, err)
	require.NoError(t, other(context.Background()))

	require.NoError(t, unlock(context.Background()))
	require.NoError(t, unlock(context.Background()))

	again, err := locker.Lock(context.Background(), "SKU-100")
	require.NoError(t, err)
	require.NoError(t, again(context.Background()))
}
