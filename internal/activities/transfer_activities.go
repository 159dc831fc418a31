package activities

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/internal/workflows"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
)

// TransferActivities contains the activities behind TransferFulfillmentWorkflow
type TransferActivities struct {
	stock     domain.DestinationStockUpdater
	transfers domain.TransferLogRepository
	logger    *logging.Logger
}

// NewTransferActivities creates a new TransferActivities instance
func NewTransferActivities(stock domain.DestinationStockUpdater, transfers domain.TransferLogRepository, logger *logging.Logger) *TransferActivities {
	return &TransferActivities{
		stock:     stock,
		transfers: transfers,
		logger:    logger,
	}
}

// UpdateDestinationStock credits the received units to the destination warehouse
func (a *TransferActivities) UpdateDestinationStock(ctx context.Context, input workflows.UpdateDestinationStockInput) error {
	if input.Quantity <= 0 {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("transfer %s has non-positive quantity %d", input.TransferID, input.Quantity),
			workflows.ErrTypeInvalidTransfer, nil)
	}

	err := a.stock.IncrementStock(ctx, input.WarehouseID, input.SKU, input.Quantity)
	if errors.Is(err, domain.ErrWarehouseNotFound) {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("warehouse %s not found", input.WarehouseID),
			workflows.ErrTypeWarehouseNotFound, err)
	}
	if err != nil {
		return fmt.Errorf("failed to credit warehouse %s: %w", input.WarehouseID, err)
	}

	a.logger.Info("Destination stock credited",
		"distributionId", input.DistributionID,
		"transferId", input.TransferID,
		"warehouseId", input.WarehouseID,
		"sku", input.SKU,
		"quantity", input.Quantity,
	)
	return nil
}

// MarkTransfersInTransit moves pending orders to in-transit
func (a *TransferActivities) MarkTransfersInTransit(ctx context.Context, input workflows.TransferStatusInput) (int64, error) {
	return a.advance(ctx, input,
		[]domain.TransferStatus{domain.TransferStatusPending},
		domain.TransferStatusInTransit)
}

// MarkTransfersReceived moves open orders to received
func (a *TransferActivities) MarkTransfersReceived(ctx context.Context, input workflows.TransferStatusInput) (int64, error) {
	return a.advance(ctx, input,
		[]domain.TransferStatus{domain.TransferStatusPending, domain.TransferStatusInTransit},
		domain.TransferStatusReceived)
}

// MarkTransfersFailed moves open orders to failed
func (a *TransferActivities) MarkTransfersFailed(ctx context.Context, input workflows.TransferStatusInput) (int64, error) {
	return a.advance(ctx, input,
		[]domain.TransferStatus{domain.TransferStatusPending, domain.TransferStatusInTransit},
		domain.TransferStatusFailed)
}

func (a *TransferActivities) advance(ctx context.Context, input workflows.TransferStatusInput, from []domain.TransferStatus, to domain.TransferStatus) (int64, error) {
	n, err := a.transfers.UpdateStatus(ctx, input.DistributionID, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to mark distribution %s %s: %w", input.DistributionID, to, err)
	}

	attrs := []any{"distributionId", input.DistributionID, "status", string(to), "orders", n}
	if input.Reason != "" {
		attrs = append(attrs, "reason", input.Reason)
	}
	a.logger.Info("Transfer orders updated", attrs...)
	return n, nil
}
