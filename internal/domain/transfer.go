package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferStatus tracks a transfer order through fulfillment
type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusInTransit TransferStatus = "in_transit"
	TransferStatusReceived  TransferStatus = "received"
	TransferStatusFailed    TransferStatus = "failed"
)

// TransferOrder is the audit record of units sent to one warehouse
type TransferOrder struct {
	TransferID     string         `bson:"transferId" json:"transferId"`
	DistributionID string         `bson:"distributionId" json:"distributionId"`
	SKU            string         `bson:"sku" json:"sku"`
	FromLocation   string         `bson:"fromLocation" json:"fromLocation"`
	ToWarehouseID  string         `bson:"toWarehouseId" json:"toWarehouseId"`
	Quantity       int            `bson:"quantity" json:"quantity"`
	EstimatedCost  string         `bson:"estimatedCost" json:"estimatedCost"`
	Status         TransferStatus `bson:"status" json:"status"`
	Reason         string         `bson:"reason" json:"reason"`
	CreatedAt      time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// EstimateTransferCost prices a shipment; transfer cost is quoted per 100 units
func EstimateTransferCost(quantity int, transferCost float64) decimal.Decimal {
	return decimal.NewFromFloat(transferCost).
		Mul(decimal.NewFromInt(int64(quantity))).
		Div(decimal.NewFromInt(100)).
		Round(2)
}

// NewTransferOrders builds one pending transfer per allocation.
// newID supplies transfer identifiers.
func NewTransferOrders(distributionID, fromLocation string, plan DistributionPlan, newID func() string) []*TransferOrder {
	now := time.Now().UTC()
	orders := make([]*TransferOrder, 0, len(plan.Allocations))
	for _, a := range plan.Allocations {
		orders = append(orders, &TransferOrder{
			TransferID:     newID(),
			DistributionID: distributionID,
			SKU:            plan.SKU,
			FromLocation:   fromLocation,
			ToWarehouseID:  a.WarehouseID,
			Quantity:       a.Quantity,
			EstimatedCost:  EstimateTransferCost(a.Quantity, a.TransferCost).StringFixed(2),
			Status:         TransferStatusPending,
			Reason:         a.Reason,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return orders
}

// TotalEstimatedCost sums the estimated cost of a set of transfers
func TotalEstimatedCost(orders []*TransferOrder) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		if c, err := decimal.NewFromString(o.EstimatedCost); err == nil {
			total = total.Add(c)
		}
	}
	return total
}

// DistributionMode distinguishes read-only previews from committing executions
type DistributionMode string

const (
	DistributionModePreview DistributionMode = "preview"
	DistributionModeExecute DistributionMode = "execute"
)

// DistributionOutcome is how a planning request ended
type DistributionOutcome string

const (
	OutcomePlanned          DistributionOutcome = "planned"
	OutcomeNoRedistribution DistributionOutcome = "no_redistribution"
	OutcomeExecuted         DistributionOutcome = "executed"
	OutcomeRejected         DistributionOutcome = "rejected"
)

// DistributionRequest is the append-only log entry for every planning request
type DistributionRequest struct {
	RequestID      string              `bson:"requestId" json:"requestId"`
	DistributionID string              `bson:"distributionId,omitempty" json:"distributionId,omitempty"`
	SKU            string              `bson:"sku" json:"sku"`
	Mode           DistributionMode    `bson:"mode" json:"mode"`
	Outcome        DistributionOutcome `bson:"outcome" json:"outcome"`
	ExcessStock    int                 `bson:"excessStock" json:"excessStock"`
	TotalQuantity  int                 `bson:"totalQuantity" json:"totalQuantity"`
	Allocations    int                 `bson:"allocations" json:"allocations"`
	Attempted      int                 `bson:"attempted,omitempty" json:"attempted,omitempty"`
	Available      int                 `bson:"available,omitempty" json:"available,omitempty"`
	Policy         Policy              `bson:"policy" json:"policy"`
	CorrelationID  string              `bson:"correlationId,omitempty" json:"correlationId,omitempty"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
}
