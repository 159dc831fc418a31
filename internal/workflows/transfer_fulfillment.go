package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"
)

// TransferLine is one transfer order handed to fulfillment
type TransferLine struct {
	TransferID    string `json:"transferId"`
	ToWarehouseID string `json:"toWarehouseId"`
	Quantity      int    `json:"quantity"`
}

// TransferFulfillmentInput is the input to TransferFulfillmentWorkflow
type TransferFulfillmentInput struct {
	DistributionID string         `json:"distributionId"`
	SKU            string         `json:"sku"`
	Transfers      []TransferLine `json:"transfers"`
}

// TransferFulfillmentResult summarizes a fulfillment run
type TransferFulfillmentResult struct {
	DistributionID string `json:"distributionId"`
	Status         string `json:"status"`
	UnitsReceived  int    `json:"unitsReceived"`
	OrdersUpdated  int64  `json:"ordersUpdated"`
}

// UpdateDestinationStockInput credits one destination warehouse
type UpdateDestinationStockInput struct {
	DistributionID string `json:"distributionId"`
	TransferID     string `json:"transferId"`
	WarehouseID    string `json:"warehouseId"`
	SKU            string `json:"sku"`
	Quantity       int    `json:"quantity"`
}

// TransferStatusInput advances every order of a distribution
type TransferStatusInput struct {
	DistributionID string `json:"distributionId"`
	Reason         string `json:"reason,omitempty"`
}

// WorkflowID returns the deterministic workflow id for a distribution
func WorkflowID(distributionID string) string {
	return "transfer-fulfillment-" + distributionID
}

// TransferFulfillmentWorkflow moves a committed distribution's orders to in-transit,
// credits each destination, then marks the orders received. When a destination
// cannot be credited the remaining orders are marked failed.
func TransferFulfillmentWorkflow(ctx workflow.Context, input TransferFulfillmentInput) (*TransferFulfillmentResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting transfer fulfillment",
		"distributionId", input.DistributionID,
		"sku", input.SKU,
		"transfers", len(input.Transfers),
	)

	result := &TransferFulfillmentResult{DistributionID: input.DistributionID}
	statusCtx := workflow.WithActivityOptions(ctx, GetActivityOptions(30*time.Second, StandardRetry))

	var moved int64
	if err := workflow.ExecuteActivity(statusCtx, "MarkTransfersInTransit", TransferStatusInput{
		DistributionID: input.DistributionID,
	}).Get(ctx, &moved); err != nil {
		return nil, fmt.Errorf("failed to mark transfers in transit: %w", err)
	}

	stockCtx := workflow.WithActivityOptions(ctx, GetActivityOptions(time.Minute, StandardRetry))
	for _, t := range input.Transfers {
		err := workflow.ExecuteActivity(stockCtx, "UpdateDestinationStock", UpdateDestinationStockInput{
			DistributionID: input.DistributionID,
			TransferID:     t.TransferID,
			WarehouseID:    t.ToWarehouseID,
			SKU:            input.SKU,
			Quantity:       t.Quantity,
		}).Get(ctx, nil)
		if err != nil {
			logger.Error("Destination stock update failed",
				"distributionId", input.DistributionID,
				"warehouseId", t.ToWarehouseID,
				"error", err,
			)
			return nil, markFailed(ctx, input.DistributionID, t.ToWarehouseID, err)
		}
		result.UnitsReceived += t.Quantity
	}

	if err := workflow.ExecuteActivity(statusCtx, "MarkTransfersReceived", TransferStatusInput{
		DistributionID: input.DistributionID,
	}).Get(ctx, &result.OrdersUpdated); err != nil {
		return nil, fmt.Errorf("failed to mark transfers received: %w", err)
	}

	result.Status = "received"
	logger.Info("Transfer fulfillment completed",
		"distributionId", input.DistributionID,
		"unitsReceived", result.UnitsReceived,
	)
	return result, nil
}

func markFailed(ctx workflow.Context, distributionID, warehouseID string, cause error) error {
	failCtx := workflow.WithActivityOptions(ctx, GetActivityOptions(30*time.Second, AggressiveRetry))
	err := workflow.ExecuteActivity(failCtx, "MarkTransfersFailed", TransferStatusInput{
		DistributionID: distributionID,
		Reason:         fmt.Sprintf("failed to credit warehouse %s", warehouseID),
	}).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Error("Failed to mark transfers failed", "distributionId", distributionID, "error", err)
	}
	return fmt.Errorf("transfer fulfillment failed at warehouse %s: %w", warehouseID, cause)
}
