package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/internal/workflows"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
	"github.com/wms-platform/stock-redistribution/pkg/metrics"
	"github.com/wms-platform/stock-redistribution/pkg/temporal"
)

// WorkflowStarter starts workflow executions; *temporal.Client satisfies it
type WorkflowStarter interface {
	StartWorkflow(ctx context.Context, workflowID, taskQueue, workflowName string, args ...interface{}) (client.WorkflowRun, error)
}

// TemporalDispatcher hands committed transfers to TransferFulfillmentWorkflow
type TemporalDispatcher struct {
	starter WorkflowStarter
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewTemporalDispatcher creates a new TemporalDispatcher
func NewTemporalDispatcher(starter WorkflowStarter, logger *logging.Logger, m *metrics.Metrics) *TemporalDispatcher {
	return &TemporalDispatcher{starter: starter, logger: logger, metrics: m}
}

// Dispatch starts one fulfillment workflow per distribution. The workflow id is
// derived from the distribution id so a repeated dispatch cannot start a second run.
func (d *TemporalDispatcher) Dispatch(ctx context.Context, distributionID, sku string, transfers []*domain.TransferOrder) error {
	input := workflows.TransferFulfillmentInput{
		DistributionID: distributionID,
		SKU:            sku,
		Transfers:      make([]workflows.TransferLine, 0, len(transfers)),
	}
	for _, t := range transfers {
		input.Transfers = append(input.Transfers, workflows.TransferLine{
			TransferID:    t.TransferID,
			ToWarehouseID: t.ToWarehouseID,
			Quantity:      t.Quantity,
		})
	}

	run, err := d.starter.StartWorkflow(ctx,
		workflows.WorkflowID(distributionID),
		temporal.TaskQueues.Redistribution,
		temporal.WorkflowNames.TransferFulfillment,
		input,
	)
	var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
	if errors.As(err, &alreadyStarted) {
		d.logger.Warn("Transfer fulfillment already dispatched",
			"distributionId", distributionID,
			"runId", alreadyStarted.RunId,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to start transfer fulfillment for %s: %w", distributionID, err)
	}

	if d.metrics != nil {
		d.metrics.RecordWorkflowStarted(temporal.WorkflowNames.TransferFulfillment)
	}
	d.logger.WorkflowStart(ctx, temporal.WorkflowNames.TransferFulfillment, run.GetID())
	return nil
}
