package domain

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultSourceLocation is used when a product is registered without a location
const DefaultSourceLocation = "MAIN"

// Product is the aggregate root for a SKU held at the central source location
type Product struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	SKU           string             `bson:"sku"`
	Name          string             `bson:"name"`
	Category      string             `bson:"category"`
	Location      string             `bson:"location"`
	UnitCost      string             `bson:"unitCost"`
	OnHand        int                `bson:"onHand"`
	DemandHistory []SalesRecord      `bson:"demandHistory"`
	Version       int64              `bson:"version"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`

	DomainEvents []DomainEvent `bson:"-"`
}

// DistributionResult summarizes a committed plan
type DistributionResult struct {
	DistributionID    string    `json:"distributionId"`
	SKU               string    `json:"sku"`
	TotalDistributed  int       `json:"totalDistributed"`
	WarehousesUpdated int       `json:"warehousesUpdated"`
	PreviousOnHand    int       `json:"previousOnHand"`
	NewOnHand         int       `json:"newOnHand"`
	DistributedAt     time.Time `json:"distributedAt"`
}

// NewProduct creates a new product
func NewProduct(sku, name, category, location string, onHand int, unitCost decimal.Decimal) (*Product, error) {
	if onHand < 0 {
		return nil, fmt.Errorf("%w: onHand %d is negative", ErrInvalidQuantity, onHand)
	}
	if unitCost.IsNegative() {
		return nil, fmt.Errorf("%w: unitCost %s is negative", ErrInvalidQuantity, unitCost)
	}
	if location == "" {
		location = DefaultSourceLocation
	}

	now := time.Now().UTC()
	product := &Product{
		SKU:           sku,
		Name:          name,
		Category:      category,
		Location:      location,
		UnitCost:      unitCost.StringFixed(2),
		OnHand:        onHand,
		DemandHistory: []SalesRecord{},
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
		DomainEvents:  make([]DomainEvent, 0),
	}

	product.AddDomainEvent(&ProductCreatedEvent{
		SKU:       sku,
		Name:      name,
		Category:  category,
		OnHand:    onHand,
		CreatedAt: now,
	})

	return product, nil
}

// UnitCostDecimal parses the stored unit cost
func (p *Product) UnitCostDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(p.UnitCost)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Restock adds received units to the source location
func (p *Product) Restock(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: restock quantity must be positive", ErrInvalidQuantity)
	}
	if quantity > math.MaxInt-p.OnHand {
		return fmt.Errorf("%w: restock of %d would overflow onHand %d", ErrInvalidQuantity, quantity, p.OnHand)
	}

	p.OnHand += quantity
	p.UpdatedAt = time.Now().UTC()

	p.AddDomainEvent(&StockRestockedEvent{
		SKU:         p.SKU,
		Quantity:    quantity,
		NewOnHand:   p.OnHand,
		RestockedAt: p.UpdatedAt,
	})

	return nil
}

// RecordSale adds a day of sales to the demand history. Sales for a date already
// present accumulate into that day; history stays in date order.
func (p *Product) RecordSale(record SalesRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	idx := sort.Search(len(p.DemandHistory), func(i int) bool {
		return p.DemandHistory[i].Date >= record.Date
	})

	dayTotal := record.UnitsSold
	switch {
	case idx < len(p.DemandHistory) && p.DemandHistory[idx].Date == record.Date:
		if record.UnitsSold > math.MaxInt-p.DemandHistory[idx].UnitsSold {
			return fmt.Errorf("%w: unitsSold for %s would overflow", ErrInvalidSalesRecord, record.Date)
		}
		p.DemandHistory[idx].UnitsSold += record.UnitsSold
		dayTotal = p.DemandHistory[idx].UnitsSold
	case idx == len(p.DemandHistory):
		p.DemandHistory = append(p.DemandHistory, record)
	default:
		p.DemandHistory = append(p.DemandHistory, SalesRecord{})
		copy(p.DemandHistory[idx+1:], p.DemandHistory[idx:])
		p.DemandHistory[idx] = record
	}
	p.UpdatedAt = time.Now().UTC()

	p.AddDomainEvent(&SaleRecordedEvent{
		SKU:        p.SKU,
		Date:       record.Date,
		UnitsSold:  record.UnitsSold,
		DayTotal:   dayTotal,
		RecordedAt: p.UpdatedAt,
	})

	return nil
}

// AverageDemand estimates daily demand over the policy's history window
func (p *Product) AverageDemand(policy Policy) float64 {
	return EstimateAverageDemand(p.DemandHistory, policy.HistoryWindow)
}

// Excess computes the product's excess under a policy
func (p *Product) Excess(policy Policy) ExcessResult {
	return CalculateExcess(p.OnHand, p.AverageDemand(policy), policy)
}

// StockStatus classifies the on-hand level
func (p *Product) StockStatus(t StockThresholds) StockStatus {
	return ClassifyStock(p.OnHand, t)
}

// Distribute commits a plan against the on-hand stock. It decrements by the plan's
// total or fails with *InsufficientStockError and leaves the product untouched.
func (p *Product) Distribute(distributionID string, plan DistributionPlan) (*DistributionResult, error) {
	total, err := plan.CheckedTotal()
	if err != nil {
		return nil, err
	}
	if total > p.OnHand {
		return nil, &InsufficientStockError{SKU: p.SKU, Attempted: total, Available: p.OnHand}
	}

	previous := p.OnHand
	p.OnHand -= total
	p.UpdatedAt = time.Now().UTC()

	summaries := make([]AllocationSummary, 0, len(plan.Allocations))
	for _, a := range plan.Allocations {
		summaries = append(summaries, AllocationSummary{WarehouseID: a.WarehouseID, Quantity: a.Quantity})
	}

	p.AddDomainEvent(&StockDistributedEvent{
		SKU:              p.SKU,
		DistributionID:   distributionID,
		TotalDistributed: total,
		PreviousOnHand:   previous,
		NewOnHand:        p.OnHand,
		Allocations:      summaries,
		DistributedAt:    p.UpdatedAt,
	})

	return &DistributionResult{
		DistributionID:    distributionID,
		SKU:               p.SKU,
		TotalDistributed:  total,
		WarehousesUpdated: len(plan.Allocations),
		PreviousOnHand:    previous,
		NewOnHand:         p.OnHand,
		DistributedAt:     p.UpdatedAt,
	}, nil
}

// TrimHistory drops all but the newest keep records and returns the dropped ones
func (p *Product) TrimHistory(keep int) []SalesRecord {
	if keep < 0 || len(p.DemandHistory) <= keep {
		return nil
	}
	cut := len(p.DemandHistory) - keep
	dropped := make([]SalesRecord, cut)
	copy(dropped, p.DemandHistory[:cut])
	p.DemandHistory = append([]SalesRecord{}, p.DemandHistory[cut:]...)
	p.UpdatedAt = time.Now().UTC()
	return dropped
}

// AddDomainEvent adds a domain event
func (p *Product) AddDomainEvent(event DomainEvent) {
	p.DomainEvents = append(p.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (p *Product) ClearDomainEvents() {
	p.DomainEvents = make([]DomainEvent, 0)
}

// GetDomainEvents returns all domain events
func (p *Product) GetDomainEvents() []DomainEvent {
	return p.DomainEvents
}
