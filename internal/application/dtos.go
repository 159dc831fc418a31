package application

import (
	"time"

	"github.com/wms-platform/stock-redistribution/internal/domain"
)

// ProductDTO represents a product in responses
type ProductDTO struct {
	SKU           string               `json:"sku"`
	Name          string               `json:"name"`
	Category      string               `json:"category"`
	Location      string               `json:"location"`
	UnitCost      string               `json:"unitCost"`
	OnHand        int                  `json:"onHand"`
	StockStatus   string               `json:"stockStatus"`
	DemandHistory []domain.SalesRecord `json:"demandHistory"`
	Version       int64                `json:"version"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// ExcessDTO is the demand and excess view of a product
type ExcessDTO struct {
	SKU               string        `json:"sku"`
	OnHand            int           `json:"onHand"`
	AvgDemand         float64       `json:"avgDemand"`
	SeasonalityFactor float64       `json:"seasonalityFactor"`
	OptimalStock      int           `json:"optimalStock"`
	ExcessStock       int           `json:"excessStock"`
	ExcessValue       string        `json:"excessValue"`
	StockStatus       string        `json:"stockStatus"`
	Policy            domain.Policy `json:"policy"`
}

// AllocationDTO represents one planned transfer. A nil priority score means
// the destination is empty and maximally urgent.
type AllocationDTO struct {
	WarehouseID    string   `json:"warehouseId"`
	WarehouseName  string   `json:"warehouseName"`
	Quantity       int      `json:"quantity"`
	Reason         string   `json:"reason"`
	PriorityScore  *float64 `json:"priorityScore"`
	MaximalUrgency bool     `json:"maximalUrgency,omitempty"`
	DaysOfSupply   float64  `json:"daysOfSupply"`
	TransferCost   float64  `json:"transferCost"`
}

// PlanDTO represents a distribution plan
type PlanDTO struct {
	SKU                string          `json:"sku"`
	OnHand             int             `json:"onHand"`
	AvgDemand          float64         `json:"avgDemand"`
	OptimalStock       int             `json:"optimalStock"`
	ExcessStock        int             `json:"excessStock"`
	TotalQuantity      int             `json:"totalQuantity"`
	ShouldDistribute   bool            `json:"shouldDistribute"`
	Allocations        []AllocationDTO `json:"allocations"`
	ExcludedWarehouses []string        `json:"excludedWarehouses"`
	Policy             domain.Policy   `json:"policy"`
	GeneratedAt        time.Time       `json:"generatedAt"`
}

// TransferDTO represents a transfer order
type TransferDTO struct {
	TransferID     string    `json:"transferId"`
	DistributionID string    `json:"distributionId"`
	SKU            string    `json:"sku"`
	FromLocation   string    `json:"fromLocation"`
	ToWarehouseID  string    `json:"toWarehouseId"`
	Quantity       int       `json:"quantity"`
	EstimatedCost  string    `json:"estimatedCost"`
	Status         string    `json:"status"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ExecutionDTO is the outcome of an execute call
type ExecutionDTO struct {
	Executed           bool                       `json:"executed"`
	Plan               *PlanDTO                   `json:"plan"`
	Result             *domain.DistributionResult `json:"result,omitempty"`
	Transfers          []TransferDTO              `json:"transfers"`
	TotalEstimatedCost string                     `json:"totalEstimatedCost,omitempty"`
}

// WarehouseDTO represents a warehouse directory entry
type WarehouseDTO struct {
	WarehouseID         string                           `json:"warehouseId"`
	Name                string                           `json:"name"`
	Location            string                           `json:"location"`
	Active              bool                             `json:"active"`
	ProjectedDemandDays int                              `json:"projectedDemandDays,omitempty"`
	Stock               map[string]domain.WarehouseStock `json:"stock"`
	CreatedAt           time.Time                        `json:"createdAt"`
	UpdatedAt           time.Time                        `json:"updatedAt"`
}

// DistributionRequestDTO represents a request log entry
type DistributionRequestDTO struct {
	RequestID      string        `json:"requestId"`
	DistributionID string        `json:"distributionId,omitempty"`
	SKU            string        `json:"sku"`
	Mode           string        `json:"mode"`
	Outcome        string        `json:"outcome"`
	ExcessStock    int           `json:"excessStock"`
	TotalQuantity  int           `json:"totalQuantity"`
	Allocations    int           `json:"allocations"`
	Attempted      int           `json:"attempted,omitempty"`
	Available      int           `json:"available,omitempty"`
	Policy         domain.Policy `json:"policy"`
	CorrelationID  string        `json:"correlationId,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}
