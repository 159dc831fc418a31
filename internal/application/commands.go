package application

import "github.com/wms-platform/stock-redistribution/internal/domain"

// CreateProductCommand represents the command to register a product
type CreateProductCommand struct {
	SKU      string
	Name     string
	Category string
	Location string
	OnHand   int
	UnitCost string
}

// RestockCommand represents the command to add units at the source
type RestockCommand struct {
	SKU      string
	Quantity int
}

// RecordSaleCommand represents the command to record a day of sales
type RecordSaleCommand struct {
	SKU       string
	Date      string
	UnitsSold int
}

// ListProductsQuery lists products, optionally by stock status
type ListProductsQuery struct {
	Status string
	Limit  int
	Offset int
}

// GetExcessQuery computes excess for one product
type GetExcessQuery struct {
	SKU               string
	Override          *domain.PolicyOverride
	SeasonalityFactor *float64
}

// CandidateInput is a caller-supplied destination that bypasses the warehouse directory
type CandidateInput struct {
	WarehouseID  string
	Name         string
	Location     string
	CurrentStock int
	DemandRate   float64
	TransferCost float64
	SuggestedQty *int
}

// ApprovedAllocation is one line of a previously previewed plan
type ApprovedAllocation struct {
	WarehouseID string
	Quantity    int
}

// PlanCommand drives both preview and execute
type PlanCommand struct {
	SKU               string
	Override          *domain.PolicyOverride
	SeasonalityFactor *float64
	Candidates        []CandidateInput
	ExpectedPlan      []ApprovedAllocation
}

// CreateWarehouseCommand represents the command to upsert a warehouse
type CreateWarehouseCommand struct {
	WarehouseID         string
	Name                string
	Location            string
	ProjectedDemandDays int
	Active              *bool
}

// SetWarehouseStockCommand sets a warehouse's position in one SKU
type SetWarehouseStockCommand struct {
	WarehouseID  string
	SKU          string
	CurrentStock int
	DemandRate   float64
}

// ListTransfersQuery lists transfer orders
type ListTransfersQuery struct {
	SKU            string
	DistributionID string
	Limit          int
	Offset         int
}

// ListRequestsQuery lists the distribution request log
type ListRequestsQuery struct {
	SKU    string
	Limit  int
	Offset int
}
