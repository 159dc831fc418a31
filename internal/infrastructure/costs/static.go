// Package costs prices transfers from the source location to destination warehouses
package costs

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/wms-platform/stock-redistribution/internal/domain"
)

// ErrNoRate is returned when no cost is known for a warehouse
var ErrNoRate = errors.New("no transfer rate for warehouse")

// StaticCostTable is the configured cost per 100 units for each warehouse,
// with an optional default for warehouses not listed
type StaticCostTable struct {
	Default    float64            `yaml:"default"`
	Warehouses map[string]float64 `yaml:"warehouses"`
}

// Validate rejects non-positive or non-finite costs
func (t *StaticCostTable) Validate() error {
	if t.Default < 0 || !finite(t.Default) {
		return &domain.ConfigurationError{Field: "transferCosts.default", Value: t.Default, Reason: "must be a finite number >= 0"}
	}
	for id, cost := range t.Warehouses {
		if cost <= 0 || !finite(cost) {
			return &domain.ConfigurationError{Field: "transferCosts.warehouses." + id, Value: cost, Reason: "must be a finite number > 0"}
		}
	}
	return nil
}

// GetTransferCost looks the warehouse up, falling back to the default.
// A zero default means unlisted warehouses have no rate.
func (t *StaticCostTable) GetTransferCost(ctx context.Context, fromLocation string, warehouse *domain.Warehouse) (float64, error) {
	if cost, ok := t.Warehouses[warehouse.WarehouseID]; ok {
		return cost, nil
	}
	if t.Default > 0 {
		return t.Default, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrNoRate, warehouse.WarehouseID)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
