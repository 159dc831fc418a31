package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/wms-platform/stock-redistribution/internal/domain"
)

// MemoryLocker is the single-process SKU lock used when Redis is disabled
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch      chan struct{}
	waiters int
}

// NewMemoryLocker creates a MemoryLocker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*lockSlot)}
}

// Lock blocks until the SKU is free or ctx ends
func (l *MemoryLocker) Lock(ctx context.Context, sku string) (func(context.Context) error, error) {
	l.mu.Lock()
	slot, ok := l.slots[sku]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[sku] = slot
	}
	slot.waiters++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.done(sku, slot)
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrLockNotAcquired, sku, ctx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-slot.ch
			l.done(sku, slot)
		})
		return nil
	}, nil
}

// done drops the slot once nobody holds or waits on it
func (l *MemoryLocker) done(sku string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.waiters--
	if slot.waiters == 0 {
		delete(l.slots, sku)
	}
}
