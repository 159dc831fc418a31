package domain

import (
	"context"
	"fmt"
)

// ProductFilter narrows product listings by on-hand range
type ProductFilter struct {
	OnHandAbove *int
	OnHandBelow *int
	Limit       int
	Offset      int
}

// FilterForStatus builds a filter matching one stock status
func FilterForStatus(status StockStatus, t StockThresholds) ProductFilter {
	f := ProductFilter{}
	switch status {
	case StockStatusOverstock:
		f.OnHandAbove = &t.Overstock
	case StockStatusLow:
		f.OnHandBelow = &t.Low
	case StockStatusNormal:
		above, below := t.Low-1, t.Overstock+1
		f.OnHandAbove, f.OnHandBelow = &above, &below
	}
	return f
}

// DistributionCommit is everything written atomically when a plan executes.
// Product carries the decremented stock, the version it was read at, and the
// StockDistributed event.
type DistributionCommit struct {
	Product   *Product
	Total     int
	Transfers []*TransferOrder
}

// Validate checks that the commit removes a positive total matching its transfer orders
func (c *DistributionCommit) Validate() error {
	if c.Total <= 0 {
		return fmt.Errorf("%w: commit total %d must be positive", ErrInvalidQuantity, c.Total)
	}
	shipped := 0
	for _, t := range c.Transfers {
		if t.Quantity <= 0 || t.Quantity > c.Total-shipped {
			return fmt.Errorf("%w: transfer orders do not add up to %d", ErrInvalidQuantity, c.Total)
		}
		shipped += t.Quantity
	}
	if shipped != c.Total {
		return fmt.Errorf("%w: transfer orders ship %d of %d", ErrInvalidQuantity, shipped, c.Total)
	}
	return nil
}

// ProductRepository defines the interface for product persistence.
// FindBySKU returns nil, nil when the product does not exist.
type ProductRepository interface {
	Create(ctx context.Context, product *Product) error
	Save(ctx context.Context, product *Product) error
	FindBySKU(ctx context.Context, sku string) (*Product, error)
	FindAll(ctx context.Context, filter ProductFilter) ([]*Product, error)
	Delete(ctx context.Context, sku string) error

	// ApplyDistribution decrements stock only if the stored version matches and
	// onHand still covers the total. A miss returns *InsufficientStockError or
	// ErrConcurrentModification.
	ApplyDistribution(ctx context.Context, commit *DistributionCommit) error
}

// WarehouseRepository defines the interface for the warehouse directory
type WarehouseRepository interface {
	Save(ctx context.Context, warehouse *Warehouse) error
	FindByID(ctx context.Context, warehouseID string) (*Warehouse, error)
	FindActive(ctx context.Context) ([]*Warehouse, error)
	FindAll(ctx context.Context, limit, offset int) ([]*Warehouse, error)
	SetStock(ctx context.Context, warehouseID, sku string, stock WarehouseStock) error
}

// DestinationStockUpdater credits received units to a destination warehouse
type DestinationStockUpdater interface {
	IncrementStock(ctx context.Context, warehouseID, sku string, quantity int) error
}

// TransferLogRepository reads and advances transfer orders
type TransferLogRepository interface {
	FindByDistributionID(ctx context.Context, distributionID string) ([]*TransferOrder, error)
	FindBySKU(ctx context.Context, sku string, limit, offset int) ([]*TransferOrder, error)
	FindAll(ctx context.Context, limit, offset int) ([]*TransferOrder, error)
	UpdateStatus(ctx context.Context, distributionID string, from []TransferStatus, to TransferStatus) (int64, error)
}

// DistributionRequestRepository is the append-only request log
type DistributionRequestRepository interface {
	Append(ctx context.Context, request *DistributionRequest) error
	Find(ctx context.Context, sku string, limit, offset int) ([]*DistributionRequest, error)
}

// TransferCostProvider prices shipping from the source location to a warehouse
type TransferCostProvider interface {
	GetTransferCost(ctx context.Context, fromLocation string, warehouse *Warehouse) (float64, error)
}

// SKULocker serializes executions per SKU. The returned function releases the lock.
type SKULocker interface {
	Lock(ctx context.Context, sku string) (unlock func(ctx context.Context) error, err error)
}

// TransferDispatcher hands committed transfers to fulfillment
type TransferDispatcher interface {
	Dispatch(ctx context.Context, distributionID, sku string, transfers []*TransferOrder) error
}

// SalesArchiveRepository keeps sales records trimmed from a product's history
type SalesArchiveRepository interface {
	Archive(ctx context.Context, sku string, records []SalesRecord) error
}
