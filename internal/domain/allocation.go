package domain

import (
	"fmt"
	"math"
)

// Allocation is a planned transfer of units to one warehouse
type Allocation struct {
	WarehouseID   string  `json:"warehouseId" bson:"warehouseId"`
	WarehouseName string  `json:"warehouseName" bson:"warehouseName"`
	Quantity      int     `json:"quantity" bson:"quantity"`
	Reason        string  `json:"reason" bson:"reason"`
	PriorityScore float64 `json:"priorityScore" bson:"priorityScore"`
	DaysOfSupply  float64 `json:"daysOfSupply" bson:"daysOfSupply"`
	TransferCost  float64 `json:"transferCost" bson:"transferCost"`
}

// Allocate walks the ranked list once, giving each warehouse the smallest of its
// horizon shortfall, its suggested quantity, and what is left of the excess.
// Warehouses that would receive nothing are omitted.
func Allocate(ranked []RankedWarehouse, excessStock int, policy Policy) []Allocation {
	allocations := make([]Allocation, 0, len(ranked))
	remaining := excessStock

	for _, w := range ranked {
		if remaining <= 0 {
			break
		}
		qty := min(w.NeededUnits(policy), remaining, w.SuggestedQty)
		if qty <= 0 {
			continue
		}
		allocations = append(allocations, Allocation{
			WarehouseID:   w.ID,
			WarehouseName: w.Name,
			Quantity:      qty,
			Reason:        allocationReason(w.DemandRate, w.DaysOfSupply),
			PriorityScore: w.PriorityScore,
			DaysOfSupply:  w.DaysOfSupply,
			TransferCost:  w.TransferCost,
		})
		remaining -= qty
	}
	return allocations
}

func allocationReason(demandRate, daysOfSupply float64) string {
	if math.IsInf(daysOfSupply, 1) {
		return fmt.Sprintf("demand %.2f/day, inf days supply", demandRate)
	}
	return fmt.Sprintf("demand %.2f/day, %.1f days supply", demandRate, daysOfSupply)
}
