package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wms-platform/stock-redistribution/pkg/cloudevents"
	"github.com/wms-platform/stock-redistribution/pkg/errors"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
)

// SalesEventHandler feeds point-of-sale events into product demand history
type SalesEventHandler struct {
	products *ProductService
	logger   *logging.Logger
}

// NewSalesEventHandler creates a new SalesEventHandler
func NewSalesEventHandler(products *ProductService, logger *logging.Logger) *SalesEventHandler {
	return &SalesEventHandler{products: products, logger: logger}
}

// HandleUnitSold records one sales event. Unknown products and malformed payloads
// are logged and dropped so they do not block the partition.
func (h *SalesEventHandler) HandleUnitSold(ctx context.Context, event *cloudevents.WMSCloudEvent) error {
	data, err := decodeUnitSold(event.Data)
	if err != nil {
		h.logger.Warn("Dropping malformed sales event", "eventId", event.ID, "error", err)
		return nil
	}

	_, err = h.products.RecordSale(ctx, RecordSaleCommand{
		SKU:       data.SKU,
		Date:      data.Date,
		UnitsSold: data.UnitsSold,
	})
	if err == nil {
		return nil
	}

	if appErr, ok := errors.AsAppError(err); ok && appErr.HTTPStatus < 500 {
		h.logger.WithSKU(data.SKU).Warn("Dropping rejected sales event", "eventId", event.ID, "code", appErr.Code)
		return nil
	}
	return err
}

// Data arrives as a generic map after JSON decoding of the envelope
func decodeUnitSold(raw any) (*cloudevents.UnitSoldData, error) {
	if typed, ok := raw.(*cloudevents.UnitSoldData); ok {
		return typed, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event data: %w", err)
	}
	var data cloudevents.UnitSoldData
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("failed to decode unit-sold data: %w", err)
	}
	if data.SKU == "" {
		return nil, fmt.Errorf("unit-sold data has no sku")
	}
	return &data, nil
}
