package cloudevents

import (
	"time"
)

// Event types emitted and consumed by the redistribution service
const (
	ProductCreated   = "wms.redistribution.product-created"
	StockRestocked   = "wms.redistribution.stock-restocked"
	SaleRecorded     = "wms.redistribution.sale-recorded"
	StockDistributed = "wms.redistribution.stock-distributed"

	// UnitSold is published by point-of-sale systems on the sales topic
	UnitSold = "wms.sales.unit-sold"
)

// Event sources
const (
	SourceRedistribution = "/wms/redistribution-service"
	SourceSales          = "/wms/sales"
)

// WMSCloudEvent represents a CloudEvents v1.0 compliant event
type WMSCloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	// Extensions
	CorrelationID string `json:"wmscorrelationid,omitempty"`
	WorkflowID    string `json:"wmsworkflowid,omitempty"`
}

// UnitSoldData is the payload of a sales event
type UnitSoldData struct {
	SKU       string `json:"sku"`
	Date      string `json:"date"`
	UnitsSold int    `json:"unitsSold"`
}
