package application

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/pkg/errors"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
)

type redistributionFixture struct {
	service    *RedistributionService
	products   *fakeProductRepo
	warehouses *fakeWarehouseRepo
	requests   *fakeRequestLog
	transfers  *fakeTransferLog
	locker     *fakeLocker
	dispatcher *fakeDispatcher
}

func testProduct(onHand int, dailySales ...int) *domain.Product {
	p, _ := domain.NewProduct("SKU-100", "Widget", "hardware", "MAIN", onHand, decimal.RequireFromString("4.50"))
	for i, units := range dailySales {
		_ = p.RecordSale(domain.SalesRecord{Date: fmt.Sprintf("2024-03-%02d", i+1), UnitsSold: units})
	}
	return p
}

func testWarehouse(id string, stock int, rate float64) *domain.Warehouse {
	w := domain.NewWarehouse(id, "Warehouse "+id, "REGION-"+id, 0)
	_ = w.SetStock("SKU-100", domain.WarehouseStock{CurrentStock: stock, DemandRate: rate})
	return w
}

func newRedistributionFixture(product *domain.Product) *redistributionFixture {
	products := newFakeProductRepo(product)
	warehouses := newFakeWarehouseRepo(
		testWarehouse("A", 15, 2.4),
		testWarehouse("B", 8, 1.8),
	)
	costs := &fakeCostProvider{costs: map[string]float64{"A": 45.50, "B": 52.75}}
	transfers := &fakeTransferLog{products: products}
	requests := &fakeRequestLog{}
	locker := &fakeLocker{}
	dispatcher := &fakeDispatcher{}

	n := 0
	service := NewRedistributionService(RedistributionDependencies{
		Products:   products,
		Warehouses: warehouses,
		Costs:      costs,
		Transfers:  transfers,
		Requests:   requests,
		Locker:     locker,
		Dispatcher: dispatcher,
		Policy:     domain.DefaultPolicy(),
		Logger:     logging.NewNop(),
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})

	return &redistributionFixture{
		service:    service,
		products:   products,
		warehouses: warehouses,
		requests:   requests,
		transfers:  transfers,
		locker:     locker,
		dispatcher: dispatcher,
	}
}

// TestRedistributionPreview tests planning without mutation
func TestRedistributionPreview(t *testing.T) {
	f := newRedistributionFixture(testProduct(120, 2, 2, 2, 2))

	plan, err := f.service.Preview(context.Background(), PlanCommand{SKU: "SKU-100"})

	require.NoError(t, err)
	assert.Equal(t, 60, plan.OptimalStock)
	assert.Equal(t, 60, plan.ExcessStock)
	assert.True(t, plan.ShouldDistribute)
	assert.False(t, plan.GeneratedAt.IsZero())
	require.Len(t, plan.Allocations, 2)
	assert.Equal(t, "B", plan.Allocations[0].WarehouseID)
	assert.Equal(t, 46, plan.Allocations[0].Quantity)
	assert.Equal(t, "A", plan.Allocations[1].WarehouseID)
	assert.Equal(t, 14, plan.Allocations[1].Quantity)

	assert.Equal(t, 120, f.products.onHand("SKU-100"))
	assert.Equal(t, 0, f.dispatcher.calls)
	require.NotNil(t, f.requests.last())
	assert.Equal(t, domain.OutcomePlanned, f.requests.last().Outcome)
	assert.Equal(t, domain.DistributionModePreview, f.requests.last().Mode)
}

// TestRedistributionPreviewOverrides tests policy and candidate overrides
func TestRedistributionPreviewOverrides(t *testing.T) {
	intPtr := func(v int) *int { return &v }
	floatPtr := func(v float64) *float64 { return &v }

	tests := []struct {
		name       string
		cmd        PlanCommand
		expectCode string
		check      func(t *testing.T, plan *PlanDTO)
	}{
		{
			name:       "Zero horizon is rejected",
			cmd:        PlanCommand{SKU: "SKU-100", Override: &domain.PolicyOverride{SupplyHorizonDays: intPtr(0)}},
			expectCode: errors.CodeInvalidConfiguration,
		},
		{
			name:       "Non-positive seasonality is rejected",
			cmd:        PlanCommand{SKU: "SKU-100", SeasonalityFactor: floatPtr(0)},
			expectCode: errors.CodeInvalidConfiguration,
		},
		{
			name:       "Unknown product",
			cmd:        PlanCommand{SKU: "SKU-404"},
			expectCode: errors.CodeNotFound,
		},
		{
			name: "Seasonality raises optimal stock",
			cmd:  PlanCommand{SKU: "SKU-100", SeasonalityFactor: floatPtr(1.5)},
			check: func(t *testing.T, plan *PlanDTO) {
				assert.Equal(t, 90, plan.OptimalStock)
				assert.Equal(t, 30, plan.ExcessStock)
				assert.Equal(t, 30, plan.TotalQuantity)
			},
		},
		{
			name: "Explicit candidates bypass the directory",
			cmd: PlanCommand{SKU: "SKU-100", Candidates: []CandidateInput{
				{WarehouseID: "X", CurrentStock: 0, DemandRate: 1, TransferCost: 10},
			}},
			check: func(t *testing.T, plan *PlanDTO) {
				require.Len(t, plan.Allocations, 1)
				assert.Equal(t, "X", plan.Allocations[0].WarehouseID)
				assert.Equal(t, 30, plan.Allocations[0].Quantity)
				assert.True(t, plan.Allocations[0].MaximalUrgency)
				assert.Nil(t, plan.Allocations[0].PriorityScore)
			},
		},
		{
			name: "Explicit zero suggested quantity receives nothing",
			cmd: PlanCommand{SKU: "SKU-100", Candidates: []CandidateInput{
				{WarehouseID: "X", CurrentStock: 0, DemandRate: 1, TransferCost: 10, SuggestedQty: intPtr(0)},
			}},
			check: func(t *testing.T, plan *PlanDTO) {
				assert.False(t, plan.ShouldDistribute)
				assert.Empty(t, plan.Allocations)
			},
		},
		{
			name: "Invalid candidate cost",
			cmd: PlanCommand{SKU: "SKU-100", Candidates: []CandidateInput{
				{WarehouseID: "X", CurrentStock: 0, DemandRate: 1, TransferCost: 0},
			}},
			expectCode: errors.CodeValidationError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRedistributionFixture(testProduct(120, 2, 2, 2, 2))
			plan, err := f.service.Preview(context.Background(), tt.cmd)

			if tt.expectCode != "" {
				appErr, ok := errors.AsAppError(err)
				require.True(t, ok, "expected app error, got %v", err)
				assert.Equal(t, tt.expectCode, appErr.Code)
				return
			}
			require.NoError(t, err)
			tt.check(t, plan)
		})
	}
}

// TestRedistributionPreviewSkipsUnpricedWarehouses tests cost lookup failures
func TestRedistributionPreviewSkipsUnpricedWarehouses(t *testing.T) {
	f := newRedistributionFixture(testProduct(120, 2, 2, 2, 2))
	require.NoError(t, f.warehouses.Save(context.Background(), testWarehouse("C", 0, 5)))

	plan, err := f.service.Preview(context.Background(), PlanCommand{SKU: "SKU-100"})

	require.NoError(t, err)
	for _, a := range plan.Allocations {
		assert.NotEqual(t, "C", a.WarehouseID)
	}
}

// TestRedistributionExecute tests committing a computed plan
func TestRedistributionExecute(t *testing.T) {
	f := newRedistributionFixture(testProduct(120, 2, 2, 2, 2))

	result, err := f.service.Execute(context.Background(), PlanCommand{SKU: "SKU-100"})

	require.NoError(t, err)
	assert.True(t, result.Executed)
	assert.Equal(t, 60, result.Result.TotalDistributed)
	assert.Equal(t, 2, result.Result.WarehousesUpdated)
	assert.Equal(t, 60, result.Result.NewOnHand)
	assert.Equal(t, 60, f.products.onHand("SKU-100"))

	require.Len(t, result.Transfers, 2)
	assert.Equal(t, "B", result.Transfers[0].ToWarehouseID)
	assert.Equal(t, "24.27", result.Transfers[0].EstimatedCost)
	assert.Equal(t, "pending", result.Transfers[0].Status)
	assert.Equal(t, "30.64", result.TotalEstimatedCost)

	assert.Equal(t, 1, f.dispatcher.calls)
	assert.Len(t, f.products.orders, 2)
	assert.Empty(t, f.locker.held)
	assert.Equal(t, domain.OutcomeExecuted, f.requests.last().Outcome)
	assert.Equal(t, result.Result.DistributionID, f.requests.last().DistributionID)

	var distributed *domain.StockDistributedEvent
	for _, e := range f.products.events {
		if ev, ok := e.(*domain.StockDistributedEvent); ok {
			distributed = ev
		}
	}
	require.NotNil(t, distributed)
	assert.Equal(t, 60, distributed.TotalDistributed)
}

// TestRedistributionExecuteNoExcess tests the no-redistribution path
func TestRedistributionExecuteNoExcess(t *testing.T) {
	f := newRedistributionFixture(testProduct(40, 2, 2))

	result, err := f.service.Execute(context.Background(), PlanCommand{SKU: "SKU-100"})

	require.NoError(t, err)
	assert.False(t, result.Executed)
	assert.Nil(t, result.Result)
	assert.Empty(t, result.Transfers)
	assert.Equal(t, 40, f.products.onHand("SKU-100"))
	assert.Equal(t, 0, f.dispatcher.calls)
	assert.Equal(t, domain.OutcomeNoRedistribution, f.requests.last().Outcome)
}

// TestRedistributionExecuteApprovedPlan tests committing a previewed plan verbatim
func TestRedistributionExecuteApprovedPlan(t *testing.T) {
	t.Run("Commits the approved quantities", func(t *testing.T) {
		f := newRedistributionFixture(testProduct(120, 2, 2))
		result, err := f.service.Execute(context.Background(), PlanCommand{
			SKU:          "SKU-100",
			ExpectedPlan: []ApprovedAllocation{{WarehouseID: "A", Quantity: 10}},
		})
		require.NoError(t, err)
		assert.Equal(t, 10, result.Result.TotalDistributed)
		assert.Equal(t, 110, f.products.onHand("SKU-100"))
	})

	t.Run("Insufficient stock rejects without mutation", func(t *testing.T) {
		f := newRedistributionFixture(testProduct(50))
		_, err := f.service.Execute(context.Background(), PlanCommand{
			SKU: "SKU-100",
			ExpectedPlan: []ApprovedAllocation{
				{WarehouseID: "B", Quantity: 46},
				{WarehouseID: "A", Quantity: 24},
			},
		})

		appErr, ok := errors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeInsufficientStock, appErr.Code)
		assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)
		assert.Equal(t, "70", appErr.Details["attempted"])
		assert.Equal(t, "50", appErr.Details["available"])
		assert.Equal(t, 50, f.products.onHand("SKU-100"))
		assert.Empty(t, f.products.orders)
		assert.Equal(t, 0, f.dispatcher.calls)

		last := f.requests.last()
		assert.Equal(t, domain.OutcomeRejected, last.Outcome)
		assert.Equal(t, 70, last.Attempted)
		assert.Equal(t, 50, last.Available)
	})

	rejected := []struct {
		name  string
		setup func(t *testing.T, f *redistributionFixture)
		plan  []ApprovedAllocation
	}{
		{
			name: "Warehouse now holds a full horizon",
			setup: func(t *testing.T, f *redistributionFixture) {
				require.NoError(t, f.warehouses.SetStock(context.Background(), "A", "SKU-100", domain.WarehouseStock{CurrentStock: 500, DemandRate: 1}))
			},
			plan: []ApprovedAllocation{{WarehouseID: "A", Quantity: 100}},
		},
		{name: "Line above the warehouse shortfall", plan: []ApprovedAllocation{{WarehouseID: "B", Quantity: 47}}},
		{name: "Lines above the excess", plan: []ApprovedAllocation{{WarehouseID: "A", Quantity: 57}, {WarehouseID: "B", Quantity: 46}}},
		{name: "Lines that would overflow", plan: []ApprovedAllocation{{WarehouseID: "A", Quantity: math.MaxInt}, {WarehouseID: "B", Quantity: math.MaxInt}}},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			f := newRedistributionFixture(testProduct(120, 2, 2))
			if tt.setup != nil {
				tt.setup(t, f)
			}

			result, err := f.service.Execute(context.Background(), PlanCommand{SKU: "SKU-100", ExpectedPlan: tt.plan})

			assert.Nil(t, result)
			appErr, ok := errors.AsAppError(err)
			require.True(t, ok, "expected app error, got %v", err)
			assert.Equal(t, errors.CodeConflict, appErr.Code)
			assert.Equal(t, 120, f.products.onHand("SKU-100"))
			assert.Empty(t, f.products.orders)
			assert.Equal(t, 0, f.dispatcher.calls)
			assert.Empty(t, f.locker.held)
			assert.Equal(t, domain.OutcomeRejected, f.requests.last().Outcome)
		})
	}

	t.Run("Unknown warehouse", func(t *testing.T) {
		f := newRedistributionFixture(testProduct(120))
		_, err := f.service.Execute(context.Background(), PlanCommand{
			SKU:          "SKU-100",
			ExpectedPlan: []ApprovedAllocation{{WarehouseID: "Z", Quantity: 5}},
		})
		appErr, ok := errors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeNotFound, appErr.Code)
	})
}

// TestRedistributionExecuteConflicts tests lock and version failures
func TestRedistributionExecuteConflicts(t *testing.T) {
	t.Run("Lock not acquired", func(t *testing.T) {
		f := newRedistributionFixture(testProduct(120, 2, 2))
		f.locker.lockErr = domain.ErrLockNotAcquired

		_, err := f.service.Execute(context.Background(), PlanCommand{SKU: "SKU-100"})
		appErr, ok := errors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeConflict, appErr.Code)
		assert.Equal(t, 120, f.products.onHand("SKU-100"))
	})

	t.Run("Stock moved under the plan", func(t *testing.T) {
		f := newRedistributionFixture(testProduct(120, 2, 2))
		f.products.applyErr = &domain.InsufficientStockError{SKU: "SKU-100", Attempted: 60, Available: 30}

		_, err := f.service.Execute(context.Background(), PlanCommand{SKU: "SKU-100"})
		appErr, ok := errors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeInsufficientStock, appErr.Code)
		assert.Equal(t, 0, f.dispatcher.calls)
	})

	t.Run("Version moved under the plan", func(t *testing.T) {
		f := newRedistributionFixture(testProduct(120, 2, 2))
		f.products.applyErr = domain.ErrConcurrentModification

		_, err := f.service.Execute(context.Background(), PlanCommand{SKU: "SKU-100"})
		appErr, ok := errors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeConflict, appErr.Code)
		assert.Empty(t, f.locker.held)
	})

	t.Run("Dispatch failure keeps the commit", func(t *testing.T) {
		f := newRedistributionFixture(testProduct(120, 2, 2))
		f.dispatcher.dispatchErr = fmt.Errorf("temporal unavailable")

		result, err := f.service.Execute(context.Background(), PlanCommand{SKU: "SKU-100"})
		require.NoError(t, err)
		assert.True(t, result.Executed)
		assert.Equal(t, 60, f.products.onHand("SKU-100"))
	})
}

// TestInlineDispatcher tests in-process fulfillment
func TestInlineDispatcher(t *testing.T) {
	f := newRedistributionFixture(testProduct(120, 2, 2, 2))
	dispatcher := NewInlineDispatcher(f.warehouses, f.transfers, logging.NewNop())
	f.service.dispatcher = dispatcher

	result, err := f.service.Execute(context.Background(), PlanCommand{SKU: "SKU-100"})
	require.NoError(t, err)

	assert.Equal(t, 8+46, f.warehouses.warehouses["B"].Stock["SKU-100"].CurrentStock)
	assert.Equal(t, 15+14, f.warehouses.warehouses["A"].Stock["SKU-100"].CurrentStock)

	orders, err := f.transfers.FindByDistributionID(context.Background(), result.Result.DistributionID)
	require.NoError(t, err)
	for _, o := range orders {
		assert.Equal(t, domain.TransferStatusReceived, o.Status)
	}
}

// TestRedistributionListings tests the audit queries
func TestRedistributionListings(t *testing.T) {
	f := newRedistributionFixture(testProduct(120, 2, 2))
	ctx := context.Background()

	_, err := f.service.Preview(ctx, PlanCommand{SKU: "SKU-100"})
	require.NoError(t, err)
	executed, err := f.service.Execute(ctx, PlanCommand{SKU: "SKU-100"})
	require.NoError(t, err)

	requests, err := f.service.ListRequests(ctx, ListRequestsQuery{SKU: "SKU-100"})
	require.NoError(t, err)
	require.Len(t, requests, 2)
	assert.Equal(t, "execute", requests[0].Mode)
	assert.Equal(t, "preview", requests[1].Mode)

	transfers, err := f.service.ListTransfers(ctx, ListTransfersQuery{DistributionID: executed.Result.DistributionID})
	require.NoError(t, err)
	assert.Len(t, transfers, 2)
}
