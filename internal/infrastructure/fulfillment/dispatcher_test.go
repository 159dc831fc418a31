package fulfillment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/internal/workflows"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
	"github.com/wms-platform/stock-redistribution/pkg/temporal"
)

type MockStarter struct {
	mock.Mock
}

func (m *MockStarter) StartWorkflow(ctx context.Context, workflowID, taskQueue, workflowName string, args ...interface{}) (client.WorkflowRun, error) {
	called := m.Called(ctx, workflowID, taskQueue, workflowName, args[0])
	if called.Get(0) == nil {
		return nil, called.Error(1)
	}
	return called.Get(0).(client.WorkflowRun), called.Error(1)
}

// TestTemporalDispatcher tests starting the fulfillment workflow
func TestTemporalDispatcher(t *testing.T) {
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return("transfer-fulfillment-dist-1")

	starter := &MockStarter{}
	starter.On("StartWorkflow", mock.Anything,
		"transfer-fulfillment-dist-1",
		temporal.TaskQueues.Redistribution,
		temporal.WorkflowNames.TransferFulfillment,
		mock.MatchedBy(func(in workflows.TransferFulfillmentInput) bool {
			return in.DistributionID == "dist-1" && in.SKU == "SKU-100" && len(in.Transfers) == 2
		}),
	).Return(run, nil)

	dispatcher := NewTemporalDispatcher(starter, logging.NewNop(), nil)
	err := dispatcher.Dispatch(context.Background(), "dist-1", "SKU-100", []*domain.TransferOrder{
		{TransferID: "tr-1", ToWarehouseID: "WH-A", Quantity: 40},
		{TransferID: "tr-2", ToWarehouseID: "WH-B", Quantity: 20},
	})

	require.NoError(t, err)
	starter.AssertExpectations(t)
	run.AssertExpectations(t)
}

// TestTemporalDispatcher_StartError tests that a failed start is reported
func TestTemporalDispatcher_StartError(t *testing.T) {
	starter := &MockStarter{}
	starter.On("StartWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("frontend unavailable"))

	dispatcher := NewTemporalDispatcher(starter, logging.NewNop(), nil)
	err := dispatcher.Dispatch(context.Background(), "dist-1", "SKU-100", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dist-1")
}

// TestTemporalDispatcher_AlreadyStarted tests that a duplicate dispatch is not an error
func TestTemporalDispatcher_AlreadyStarted(t *testing.T) {
	starter := &MockStarter{}
	starter.On("StartWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &serviceerror.WorkflowExecutionAlreadyStarted{Message: "workflow execution already started", RunId: "run-1"})

	dispatcher := NewTemporalDispatcher(starter, logging.NewNop(), nil)
	err := dispatcher.Dispatch(context.Background(), "dist-1", "SKU-100", nil)

	assert.NoError(t, err)
	starter.AssertExpectations(t)
}
