package activities

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/internal/workflows"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
)

// MockStockUpdater is a mock implementation of the destination stock updater
type MockStockUpdater struct {
	mock.Mock
}

func (m *MockStockUpdater) IncrementStock(ctx context.Context, warehouseID, sku string, quantity int) error {
	args := m.Called(ctx, warehouseID, sku, quantity)
	return args.Error(0)
}

// MockTransferLog is a mock implementation of the transfer log repository
type MockTransferLog struct {
	mock.Mock
}

func (m *MockTransferLog) FindByDistributionID(ctx context.Context, id string) ([]*domain.TransferOrder, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]*domain.TransferOrder), args.Error(1)
}

func (m *MockTransferLog) FindBySKU(ctx context.Context, sku string, limit, offset int) ([]*domain.TransferOrder, error) {
	args := m.Called(ctx, sku, limit, offset)
	return args.Get(0).([]*domain.TransferOrder), args.Error(1)
}

func (m *MockTransferLog) FindAll(ctx context.Context, limit, offset int) ([]*domain.TransferOrder, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*domain.TransferOrder), args.Error(1)
}

func (m *MockTransferLog) UpdateStatus(ctx context.Context, id string, from []domain.TransferStatus, to domain.TransferStatus) (int64, error) {
	args := m.Called(ctx, id, from, to)
	return args.Get(0).(int64), args.Error(1)
}

func newTestActivities() (*TransferActivities, *MockStockUpdater, *MockTransferLog) {
	stock := &MockStockUpdater{}
	transfers := &MockTransferLog{}
	return NewTransferActivities(stock, transfers, logging.NewNop()), stock, transfers
}

// TestUpdateDestinationStock tests crediting a destination warehouse
func TestUpdateDestinationStock(t *testing.T) {
	tests := []struct {
		name          string
		input         workflows.UpdateDestinationStockInput
		repoErr       error
		expectErr     bool
		nonRetryable  string
		expectInvoked bool
	}{
		{
			name:          "Credits warehouse",
			input:         workflows.UpdateDestinationStockInput{TransferID: "tr-1", WarehouseID: "WH-A", SKU: "SKU-100", Quantity: 40},
			expectInvoked: true,
		},
		{
			name:          "Unknown warehouse is not retried",
			input:         workflows.UpdateDestinationStockInput{TransferID: "tr-1", WarehouseID: "WH-X", SKU: "SKU-100", Quantity: 40},
			repoErr:       domain.ErrWarehouseNotFound,
			expectErr:     true,
			nonRetryable:  workflows.ErrTypeWarehouseNotFound,
			expectInvoked: true,
		},
		{
			name:          "Storage error is retryable",
			input:         workflows.UpdateDestinationStockInput{TransferID: "tr-1", WarehouseID: "WH-A", SKU: "SKU-100", Quantity: 40},
			repoErr:       errors.New("connection reset"),
			expectErr:     true,
			expectInvoked: true,
		},
		{
			name:         "Zero quantity is rejected",
			input:        workflows.UpdateDestinationStockInput{TransferID: "tr-1", WarehouseID: "WH-A", SKU: "SKU-100", Quantity: 0},
			expectErr:    true,
			nonRetryable: workflows.ErrTypeInvalidTransfer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testSuite := &testsuite.WorkflowTestSuite{}
			env := testSuite.NewTestActivityEnvironment()

			activities, stock, _ := newTestActivities()
			if tt.expectInvoked {
				stock.On("IncrementStock", mock.Anything, tt.input.WarehouseID, tt.input.SKU, tt.input.Quantity).Return(tt.repoErr)
			}
			env.RegisterActivity(activities.UpdateDestinationStock)

			_, err := env.ExecuteActivity(activities.UpdateDestinationStock, tt.input)

			if !tt.expectErr {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				var appErr *temporal.ApplicationError
				if tt.nonRetryable != "" {
					require.True(t, errors.As(err, &appErr))
					require.Equal(t, tt.nonRetryable, appErr.Type())
					require.True(t, appErr.NonRetryable())
				} else if errors.As(err, &appErr) {
					require.False(t, appErr.NonRetryable())
				}
			}
			stock.AssertExpectations(t)
		})
	}
}

// TestMarkTransfers tests the status transitions
func TestMarkTransfers(t *testing.T) {
	open := []domain.TransferStatus{domain.TransferStatusPending, domain.TransferStatusInTransit}

	tests := []struct {
		name     string
		activity func(a *TransferActivities) interface{}
		from     []domain.TransferStatus
		to       domain.TransferStatus
	}{
		{
			name:     "In transit",
			activity: func(a *TransferActivities) interface{} { return a.MarkTransfersInTransit },
			from:     []domain.TransferStatus{domain.TransferStatusPending},
			to:       domain.TransferStatusInTransit,
		},
		{
			name:     "Received",
			activity: func(a *TransferActivities) interface{} { return a.MarkTransfersReceived },
			from:     open,
			to:       domain.TransferStatusReceived,
		},
		{
			name:     "Failed",
			activity: func(a *TransferActivities) interface{} { return a.MarkTransfersFailed },
			from:     open,
			to:       domain.TransferStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testSuite := &testsuite.WorkflowTestSuite{}
			env := testSuite.NewTestActivityEnvironment()

			activities, _, transfers := newTestActivities()
			transfers.On("UpdateStatus", mock.Anything, "dist-1", tt.from, tt.to).Return(int64(3), nil)
			fn := tt.activity(activities)
			env.RegisterActivity(fn)

			val, err := env.ExecuteActivity(fn, workflows.TransferStatusInput{DistributionID: "dist-1"})
			require.NoError(t, err)

			var n int64
			require.NoError(t, val.Get(&n))
			require.Equal(t, int64(3), n)
			transfers.AssertExpectations(t)
		})
	}
}

// TestMarkTransfers_StorageError tests that repository failures surface
func TestMarkTransfers_StorageError(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()

	activities, _, transfers := newTestActivities()
	transfers.On("UpdateStatus", mock.Anything, "dist-1", mock.Anything, domain.TransferStatusReceived).
		Return(int64(0), errors.New("mongo down"))
	env.RegisterActivity(activities.MarkTransfersReceived)

	_, err := env.ExecuteActivity(activities.MarkTransfersReceived, workflows.TransferStatusInput{DistributionID: "dist-1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "mongo down")
}
