package workflows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

func newTransferTestEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()

	markStatus := func(ctx context.Context, input TransferStatusInput) (int64, error) { return 0, nil }
	env.RegisterActivityWithOptions(markStatus, activity.RegisterOptions{Name: "MarkTransfersInTransit"})
	env.RegisterActivityWithOptions(markStatus, activity.RegisterOptions{Name: "MarkTransfersReceived"})
	env.RegisterActivityWithOptions(markStatus, activity.RegisterOptions{Name: "MarkTransfersFailed"})
	env.RegisterActivityWithOptions(func(ctx context.Context, input UpdateDestinationStockInput) error { return nil },
		activity.RegisterOptions{Name: "UpdateDestinationStock"})
	return env
}

func testFulfillmentInput() TransferFulfillmentInput {
	return TransferFulfillmentInput{
		DistributionID: "dist-1",
		SKU:            "SKU-100",
		Transfers: []TransferLine{
			{TransferID: "tr-1", ToWarehouseID: "WH-A", Quantity: 40},
			{TransferID: "tr-2", ToWarehouseID: "WH-B", Quantity: 20},
		},
	}
}

// TestTransferFulfillmentWorkflow_Success tests the happy path
func TestTransferFulfillmentWorkflow_Success(t *testing.T) {
	env := newTransferTestEnv(t)

	env.OnActivity("MarkTransfersInTransit", mock.Anything, TransferStatusInput{DistributionID: "dist-1"}).Return(int64(2), nil).Once()
	env.OnActivity("UpdateDestinationStock", mock.Anything, mock.MatchedBy(func(in UpdateDestinationStockInput) bool {
		return in.WarehouseID == "WH-A" && in.Quantity == 40 && in.SKU == "SKU-100"
	})).Return(nil).Once()
	env.OnActivity("UpdateDestinationStock", mock.Anything, mock.MatchedBy(func(in UpdateDestinationStockInput) bool {
		return in.WarehouseID == "WH-B" && in.Quantity == 20
	})).Return(nil).Once()
	env.OnActivity("MarkTransfersReceived", mock.Anything, TransferStatusInput{DistributionID: "dist-1"}).Return(int64(2), nil).Once()

	env.ExecuteWorkflow(TransferFulfillmentWorkflow, testFulfillmentInput())

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result TransferFulfillmentResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, "received", result.Status)
	require.Equal(t, 60, result.UnitsReceived)
	require.Equal(t, int64(2), result.OrdersUpdated)
	env.AssertExpectations(t)
}

// TestTransferFulfillmentWorkflow_DestinationFailure tests that a failed credit marks the orders failed
func TestTransferFulfillmentWorkflow_DestinationFailure(t *testing.T) {
	env := newTransferTestEnv(t)

	env.OnActivity("MarkTransfersInTransit", mock.Anything, mock.Anything).Return(int64(2), nil)
	env.OnActivity("UpdateDestinationStock", mock.Anything, mock.MatchedBy(func(in UpdateDestinationStockInput) bool {
		return in.WarehouseID == "WH-A"
	})).Return(nil)
	env.OnActivity("UpdateDestinationStock", mock.Anything, mock.MatchedBy(func(in UpdateDestinationStockInput) bool {
		return in.WarehouseID == "WH-B"
	})).Return(temporal.NewNonRetryableApplicationError("warehouse WH-B not found", ErrTypeWarehouseNotFound, nil))
	env.OnActivity("MarkTransfersFailed", mock.Anything, mock.MatchedBy(func(in TransferStatusInput) bool {
		return in.DistributionID == "dist-1" && in.Reason != ""
	})).Return(int64(2), nil).Once()

	env.ExecuteWorkflow(TransferFulfillmentWorkflow, testFulfillmentInput())

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	require.Contains(t, err.Error(), "WH-B")
	env.AssertNotCalled(t, "MarkTransfersReceived", mock.Anything, mock.Anything)
}

// TestTransferFulfillmentWorkflow_InTransitFailure tests that nothing is credited when the status update fails
func TestTransferFulfillmentWorkflow_InTransitFailure(t *testing.T) {
	env := newTransferTestEnv(t)

	env.OnActivity("MarkTransfersInTransit", mock.Anything, mock.Anything).
		Return(int64(0), temporal.NewNonRetryableApplicationError("mongo down", "StorageError", nil))

	env.ExecuteWorkflow(TransferFulfillmentWorkflow, testFulfillmentInput())

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	env.AssertNotCalled(t, "UpdateDestinationStock", mock.Anything, mock.Anything)
}

// TestWorkflowID tests the deterministic workflow id
func TestWorkflowID(t *testing.T) {
	require.Equal(t, "transfer-fulfillment-dist-9", WorkflowID("dist-9"))
}
