package domain

import (
	"fmt"
	"math"
	"time"
)

// Bounds for the per-warehouse demand projection that caps suggested quantities
const (
	MinProjectedDemandDays = 15
	MaxProjectedDemandDays = 50
)

// WarehouseCandidate is one destination considered for a product's excess.
// Candidates are built per planning call and not retained.
type WarehouseCandidate struct {
	ID           string  `json:"id" bson:"id"`
	Name         string  `json:"name" bson:"name"`
	Location     string  `json:"location,omitempty" bson:"location,omitempty"`
	CurrentStock int     `json:"currentStock" bson:"currentStock"`
	DemandRate   float64 `json:"demandRate" bson:"demandRate"`
	TransferCost float64 `json:"transferCost" bson:"transferCost"`
	SuggestedQty int     `json:"suggestedQty" bson:"suggestedQty"`
}

// Validate checks the numeric fields a candidate must carry
func (c WarehouseCandidate) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidCandidate)
	}
	if c.CurrentStock < 0 {
		return fmt.Errorf("%w: %s currentStock %d is negative", ErrInvalidCandidate, c.ID, c.CurrentStock)
	}
	if c.DemandRate < 0 || math.IsNaN(c.DemandRate) || math.IsInf(c.DemandRate, 0) {
		return fmt.Errorf("%w: %s demandRate %v is not a finite non-negative number", ErrInvalidCandidate, c.ID, c.DemandRate)
	}
	if c.TransferCost <= 0 || math.IsNaN(c.TransferCost) || math.IsInf(c.TransferCost, 0) {
		return fmt.Errorf("%w: %s transferCost %v must be positive", ErrInvalidCandidate, c.ID, c.TransferCost)
	}
	return nil
}

// DaysOfSupply is how long current stock lasts at the demand rate.
// Zero demand never runs out; zero stock with demand is already out.
func (c WarehouseCandidate) DaysOfSupply() float64 {
	if c.DemandRate == 0 {
		return math.Inf(1)
	}
	return float64(c.CurrentStock) / c.DemandRate
}

// PriorityScore is demand pressure per unit of transfer cost
func (c WarehouseCandidate) PriorityScore() float64 {
	if c.CurrentStock == 0 {
		return math.Inf(1)
	}
	return (c.DemandRate / float64(c.CurrentStock)) / c.TransferCost
}

// NeededUnits is the shortfall against a full horizon of demand
func (c WarehouseCandidate) NeededUnits(policy Policy) int {
	return ceilUnits(c.DemandRate*float64(policy.SupplyHorizonDays)) - c.CurrentStock
}

// SuggestedQuantity projects demand over days clamped to [15, 50]
func SuggestedQuantity(demandRate float64, projectedDays int) int {
	days := min(max(projectedDays, MinProjectedDemandDays), MaxProjectedDemandDays)
	return ceilUnits(demandRate * float64(days))
}

// WarehouseStock is a warehouse's position in one SKU
type WarehouseStock struct {
	CurrentStock int     `bson:"currentStock" json:"currentStock"`
	DemandRate   float64 `bson:"demandRate" json:"demandRate"`
}

// Warehouse is a destination in the warehouse directory
type Warehouse struct {
	WarehouseID         string                    `bson:"warehouseId" json:"warehouseId"`
	Name                string                    `bson:"name" json:"name"`
	Location            string                    `bson:"location" json:"location"`
	Active              bool                      `bson:"active" json:"active"`
	ProjectedDemandDays int                       `bson:"projectedDemandDays,omitempty" json:"projectedDemandDays,omitempty"`
	Stock               map[string]WarehouseStock `bson:"stock" json:"stock"`
	CreatedAt           time.Time                 `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time                 `bson:"updatedAt" json:"updatedAt"`
}

// NewWarehouse creates an active warehouse with no stock positions
func NewWarehouse(warehouseID, name, location string, projectedDemandDays int) *Warehouse {
	now := time.Now().UTC()
	return &Warehouse{
		WarehouseID:         warehouseID,
		Name:                name,
		Location:            location,
		Active:              true,
		ProjectedDemandDays: projectedDemandDays,
		Stock:               make(map[string]WarehouseStock),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// SetStock records the warehouse's position in a SKU
func (w *Warehouse) SetStock(sku string, stock WarehouseStock) error {
	if stock.CurrentStock < 0 {
		return fmt.Errorf("%w: currentStock %d is negative", ErrInvalidQuantity, stock.CurrentStock)
	}
	if stock.DemandRate < 0 || math.IsNaN(stock.DemandRate) || math.IsInf(stock.DemandRate, 0) {
		return fmt.Errorf("%w: demandRate %v is not a finite non-negative number", ErrInvalidQuantity, stock.DemandRate)
	}
	if w.Stock == nil {
		w.Stock = make(map[string]WarehouseStock)
	}
	w.Stock[sku] = stock
	w.UpdatedAt = time.Now().UTC()
	return nil
}

// Candidate builds the planning view of this warehouse for a SKU.
// A warehouse with no position in the SKU counts as empty with no demand.
func (w *Warehouse) Candidate(sku string, transferCost float64, policy Policy) WarehouseCandidate {
	stock := w.Stock[sku]
	days := w.ProjectedDemandDays
	if days == 0 {
		days = policy.SupplyHorizonDays
	}
	return WarehouseCandidate{
		ID:           w.WarehouseID,
		Name:         w.Name,
		Location:     w.Location,
		CurrentStock: stock.CurrentStock,
		DemandRate:   stock.DemandRate,
		TransferCost: transferCost,
		SuggestedQty: SuggestedQuantity(stock.DemandRate, days),
	}
}
