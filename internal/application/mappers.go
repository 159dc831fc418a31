package application

import (
	"math"

	"github.com/wms-platform/stock-redistribution/internal/domain"
)

// ToProductDTO converts a domain Product to ProductDTO
func ToProductDTO(p *domain.Product, thresholds domain.StockThresholds) *ProductDTO {
	if p == nil {
		return nil
	}

	history := p.DemandHistory
	if history == nil {
		history = []domain.SalesRecord{}
	}

	return &ProductDTO{
		SKU:           p.SKU,
		Name:          p.Name,
		Category:      p.Category,
		Location:      p.Location,
		UnitCost:      p.UnitCost,
		OnHand:        p.OnHand,
		StockStatus:   string(p.StockStatus(thresholds)),
		DemandHistory: history,
		Version:       p.Version,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// ToProductDTOs converts a slice of products
func ToProductDTOs(products []*domain.Product, thresholds domain.StockThresholds) []ProductDTO {
	dtos := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, *ToProductDTO(p, thresholds))
	}
	return dtos
}

// ToPlanDTO converts a domain DistributionPlan to PlanDTO
func ToPlanDTO(plan domain.DistributionPlan) *PlanDTO {
	allocations := make([]AllocationDTO, 0, len(plan.Allocations))
	for _, a := range plan.Allocations {
		allocations = append(allocations, toAllocationDTO(a))
	}

	excluded := plan.ExcludedWarehouses
	if excluded == nil {
		excluded = []string{}
	}

	return &PlanDTO{
		SKU:                plan.SKU,
		OnHand:             plan.OnHand,
		AvgDemand:          plan.AvgDemand,
		OptimalStock:       plan.OptimalStock,
		ExcessStock:        plan.ExcessStock,
		TotalQuantity:      plan.TotalQuantity(),
		ShouldDistribute:   !plan.IsEmpty(),
		Allocations:        allocations,
		ExcludedWarehouses: excluded,
		Policy:             plan.Policy,
		GeneratedAt:        plan.GeneratedAt,
	}
}

// JSON has no infinity, so an unbounded score is reported as null plus a flag
func toAllocationDTO(a domain.Allocation) AllocationDTO {
	dto := AllocationDTO{
		WarehouseID:   a.WarehouseID,
		WarehouseName: a.WarehouseName,
		Quantity:      a.Quantity,
		Reason:        a.Reason,
		DaysOfSupply:  a.DaysOfSupply,
		TransferCost:  a.TransferCost,
	}
	if math.IsInf(a.PriorityScore, 1) {
		dto.MaximalUrgency = true
	} else {
		score := a.PriorityScore
		dto.PriorityScore = &score
	}
	return dto
}

// ToTransferDTOs converts transfer orders
func ToTransferDTOs(orders []*domain.TransferOrder) []TransferDTO {
	dtos := make([]TransferDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, TransferDTO{
			TransferID:     o.TransferID,
			DistributionID: o.DistributionID,
			SKU:            o.SKU,
			FromLocation:   o.FromLocation,
			ToWarehouseID:  o.ToWarehouseID,
			Quantity:       o.Quantity,
			EstimatedCost:  o.EstimatedCost,
			Status:         string(o.Status),
			Reason:         o.Reason,
			CreatedAt:      o.CreatedAt,
			UpdatedAt:      o.UpdatedAt,
		})
	}
	return dtos
}

// ToWarehouseDTO converts a domain Warehouse to WarehouseDTO
func ToWarehouseDTO(w *domain.Warehouse) *WarehouseDTO {
	if w == nil {
		return nil
	}
	stock := w.Stock
	if stock == nil {
		stock = map[string]domain.WarehouseStock{}
	}
	return &WarehouseDTO{
		WarehouseID:         w.WarehouseID,
		Name:                w.Name,
		Location:            w.Location,
		Active:              w.Active,
		ProjectedDemandDays: w.ProjectedDemandDays,
		Stock:               stock,
		CreatedAt:           w.CreatedAt,
		UpdatedAt:           w.UpdatedAt,
	}
}

// ToWarehouseDTOs converts a slice of warehouses
func ToWarehouseDTOs(warehouses []*domain.Warehouse) []WarehouseDTO {
	dtos := make([]WarehouseDTO, 0, len(warehouses))
	for _, w := range warehouses {
		dtos = append(dtos, *ToWarehouseDTO(w))
	}
	return dtos
}

// ToDistributionRequestDTOs converts request log entries
func ToDistributionRequestDTOs(requests []*domain.DistributionRequest) []DistributionRequestDTO {
	dtos := make([]DistributionRequestDTO, 0, len(requests))
	for _, r := range requests {
		dtos = append(dtos, DistributionRequestDTO{
			RequestID:      r.RequestID,
			DistributionID: r.DistributionID,
			SKU:            r.SKU,
			Mode:           string(r.Mode),
			Outcome:        string(r.Outcome),
			ExcessStock:    r.ExcessStock,
			TotalQuantity:  r.TotalQuantity,
			Allocations:    r.Allocations,
			Attempted:      r.Attempted,
			Available:      r.Available,
			Policy:         r.Policy,
			CorrelationID:  r.CorrelationID,
			CreatedAt:      r.CreatedAt,
		})
	}
	return dtos
}
