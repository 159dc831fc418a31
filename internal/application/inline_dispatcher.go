package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
)

// InlineDispatcher fulfills transfers in-process when no workflow engine is configured.
// Destination stock is credited immediately and orders move straight to received.
type InlineDispatcher struct {
	stock     domain.DestinationStockUpdater
	transfers domain.TransferLogRepository
	logger    *logging.Logger
}

// NewInlineDispatcher creates a new InlineDispatcher
func NewInlineDispatcher(stock domain.DestinationStockUpdater, transfers domain.TransferLogRepository, logger *logging.Logger) *InlineDispatcher {
	return &InlineDispatcher{stock: stock, transfers: transfers, logger: logger}
}

// Dispatch credits every destination, then marks the distribution's orders received.
// On the first failure the remaining orders are marked failed.
func (d *InlineDispatcher) Dispatch(ctx context.Context, distributionID, sku string, transfers []*domain.TransferOrder) error {
	for _, t := range transfers {
		if err := d.stock.IncrementStock(ctx, t.ToWarehouseID, sku, t.Quantity); err != nil {
			if _, markErr := d.transfers.UpdateStatus(ctx, distributionID,
				[]domain.TransferStatus{domain.TransferStatusPending}, domain.TransferStatusFailed); markErr != nil {
				d.logger.Error("Failed to mark transfers failed", "distributionId", distributionID, "error", markErr)
			}
			return fmt.Errorf("failed to credit warehouse %s: %w", t.ToWarehouseID, err)
		}
	}

	if _, err := d.transfers.UpdateStatus(ctx, distributionID,
		[]domain.TransferStatus{domain.TransferStatusPending}, domain.TransferStatusReceived); err != nil {
		return fmt.Errorf("failed to mark transfers received: %w", err)
	}

	d.logger.Info("Transfers fulfilled inline", "distributionId", distributionID, "sku", sku, "transfers", len(transfers))
	return nil
}
