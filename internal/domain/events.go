package domain

import "time"

// DomainEvent represents a domain event
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
}

// ProductCreatedEvent is raised when a product is registered
type ProductCreatedEvent struct {
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	OnHand    int       `json:"onHand"`
	CreatedAt time.Time `json:"createdAt"`
}

func (e *ProductCreatedEvent) EventType() string     { return "wms.redistribution.product-created" }
func (e *ProductCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// StockRestockedEvent is raised when units are received at the source
type StockRestockedEvent struct {
	SKU         string    `json:"sku"`
	Quantity    int       `json:"quantity"`
	NewOnHand   int       `json:"newOnHand"`
	RestockedAt time.Time `json:"restockedAt"`
}

func (e *StockRestockedEvent) EventType() string     { return "wms.redistribution.stock-restocked" }
func (e *StockRestockedEvent) OccurredAt() time.Time { return e.RestockedAt }

// SaleRecordedEvent is raised when a day of sales is added to the demand history
type SaleRecordedEvent struct {
	SKU        string    `json:"sku"`
	Date       string    `json:"date"`
	UnitsSold  int       `json:"unitsSold"`
	DayTotal   int       `json:"dayTotal"`
	RecordedAt time.Time `json:"recordedAt"`
}

func (e *SaleRecordedEvent) EventType() string     { return "wms.redistribution.sale-recorded" }
func (e *SaleRecordedEvent) OccurredAt() time.Time { return e.RecordedAt }

// AllocationSummary is the event payload view of one allocation
type AllocationSummary struct {
	WarehouseID string `json:"warehouseId"`
	Quantity    int    `json:"quantity"`
}

// StockDistributedEvent is raised when a plan is committed against the source
type StockDistributedEvent struct {
	SKU              string              `json:"sku"`
	DistributionID   string              `json:"distributionId"`
	TotalDistributed int                 `json:"totalDistributed"`
	PreviousOnHand   int                 `json:"previousOnHand"`
	NewOnHand        int                 `json:"newOnHand"`
	Allocations      []AllocationSummary `json:"allocations"`
	DistributedAt    time.Time           `json:"distributedAt"`
}

func (e *StockDistributedEvent) EventType() string     { return "wms.redistribution.stock-distributed" }
func (e *StockDistributedEvent) OccurredAt() time.Time { return e.DistributedAt }
