package application

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wms-platform/stock-redistribution/internal/domain"
	"github.com/wms-platform/stock-redistribution/pkg/errors"
	"github.com/wms-platform/stock-redistribution/pkg/logging"
	"github.com/wms-platform/stock-redistribution/pkg/metrics"
	"github.com/wms-platform/stock-redistribution/pkg/tracing"
)

// DefaultLockTimeout bounds how long an execute waits for the SKU lock
const DefaultLockTimeout = 5 * time.Second

// RedistributionDependencies wires the collaborators of RedistributionService
type RedistributionDependencies struct {
	Products    domain.ProductRepository
	Warehouses  domain.WarehouseRepository
	Costs       domain.TransferCostProvider
	Transfers   domain.TransferLogRepository
	Requests    domain.DistributionRequestRepository
	Locker      domain.SKULocker
	Dispatcher  domain.TransferDispatcher
	Policy      domain.Policy
	LockTimeout time.Duration
	Logger      *logging.Logger
	Metrics     *metrics.Metrics
	NewID       func() string
}

// RedistributionService plans and commits stock redistribution.
// Preview and Execute run the same planner.
type RedistributionService struct {
	products    domain.ProductRepository
	warehouses  domain.WarehouseRepository
	costs       domain.TransferCostProvider
	transfers   domain.TransferLogRepository
	requests    domain.DistributionRequestRepository
	locker      domain.SKULocker
	dispatcher  domain.TransferDispatcher
	policy      domain.Policy
	lockTimeout time.Duration
	logger      *logging.Logger
	metrics     *metrics.Metrics
	newID       func() string
}

// NewRedistributionService creates a new RedistributionService
func NewRedistributionService(deps RedistributionDependencies) *RedistributionService {
	s := &RedistributionService{
		products:    deps.Products,
		warehouses:  deps.Warehouses,
		costs:       deps.Costs,
		transfers:   deps.Transfers,
		requests:    deps.Requests,
		locker:      deps.Locker,
		dispatcher:  deps.Dispatcher,
		policy:      deps.Policy,
		lockTimeout: deps.LockTimeout,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		newID:       deps.NewID,
	}
	if s.lockTimeout <= 0 {
		s.lockTimeout = DefaultLockTimeout
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	return s
}

// Preview builds a plan without touching stock
func (s *RedistributionService) Preview(ctx context.Context, cmd PlanCommand) (_ *PlanDTO, err error) {
	ctx, span := tracing.Start(ctx, "redistribution.preview",
		tracing.AttrSKU.String(cmd.SKU),
		tracing.AttrMode.String(string(domain.DistributionModePreview)),
	)
	defer func() { tracing.End(span, err) }()

	policy, factor, err := s.resolveSettings(cmd)
	if err != nil {
		return nil, err
	}

	product, err := s.loadProduct(ctx, cmd.SKU)
	if err != nil {
		return nil, err
	}

	candidates, err := s.resolveCandidates(ctx, product, cmd.Candidates, policy)
	if err != nil {
		return nil, err
	}

	plan := s.buildPlan(product, candidates, policy, factor)

	outcome := domain.OutcomePlanned
	if plan.IsEmpty() {
		outcome = domain.OutcomeNoRedistribution
	}
	s.recordRequest(ctx, domain.DistributionModePreview, outcome, plan, "", nil)
	span.SetAttributes(
		tracing.AttrExcessStock.Int(plan.ExcessStock),
		tracing.AttrAllocations.Int(len(plan.Allocations)),
		tracing.AttrTotalQuantity.Int(plan.TotalQuantity()),
		tracing.AttrOutcome.String(string(outcome)),
	)

	s.logger.Plan(ctx, string(domain.DistributionModePreview), cmd.SKU, plan.ExcessStock, len(plan.Allocations), plan.TotalQuantity())
	return ToPlanDTO(plan), nil
}

// Execute builds or accepts a plan and commits it atomically against the product's stock.
// An empty plan returns Executed=false without writing anything but the request log.
func (s *RedistributionService) Execute(ctx context.Context, cmd PlanCommand) (_ *ExecutionDTO, err error) {
	ctx, span := tracing.Start(ctx, "redistribution.execute",
		tracing.AttrSKU.String(cmd.SKU),
		tracing.AttrMode.String(string(domain.DistributionModeExecute)),
	)
	defer func() { tracing.End(span, err) }()

	policy, factor, err := s.resolveSettings(cmd)
	if err != nil {
		return nil, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	unlock, err := s.locker.Lock(lockCtx, cmd.SKU)
	cancel()
	if err != nil {
		s.rejected("lock")
		return nil, toAppError(err, "distribution")
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release sku lock", "sku", cmd.SKU, "error", err)
		}
	}()

	product, err := s.loadProduct(ctx, cmd.SKU)
	if err != nil {
		return nil, err
	}

	candidates, err := s.resolveCandidates(ctx, product, cmd.Candidates, policy)
	if err != nil {
		return nil, err
	}

	var plan domain.DistributionPlan
	if cmd.ExpectedPlan != nil {
		plan, err = s.approvedPlan(product, candidates, cmd.ExpectedPlan, policy, factor)
		if err != nil {
			return nil, s.reject(ctx, plan, err)
		}
	} else {
		plan = s.buildPlan(product, candidates, policy, factor)
	}

	if plan.IsEmpty() {
		s.recordRequest(ctx, domain.DistributionModeExecute, domain.OutcomeNoRedistribution, plan, "", nil)
		span.SetAttributes(tracing.AttrOutcome.String(string(domain.OutcomeNoRedistribution)))
		s.logger.Info("No redistribution needed", "sku", cmd.SKU, "excessStock", plan.ExcessStock)
		return &ExecutionDTO{Executed: false, Plan: ToPlanDTO(plan), Transfers: []TransferDTO{}}, nil
	}

	s.logger.Plan(ctx, string(domain.DistributionModeExecute), cmd.SKU, plan.ExcessStock, len(plan.Allocations), plan.TotalQuantity())

	distributionID := s.newID()
	span.SetAttributes(
		tracing.AttrDistributionID.String(distributionID),
		tracing.AttrAllocations.Int(len(plan.Allocations)),
		tracing.AttrTotalQuantity.Int(plan.TotalQuantity()),
	)
	result, err := product.Distribute(distributionID, plan)
	if err != nil {
		return nil, s.reject(ctx, plan, err)
	}

	transfers := domain.NewTransferOrders(distributionID, product.Location, plan, s.newID)
	commit := &domain.DistributionCommit{Product: product, Total: result.TotalDistributed, Transfers: transfers}
	if err := s.products.ApplyDistribution(ctx, commit); err != nil {
		if !isRejection(err) {
			s.logger.Error("Failed to commit distribution", "sku", cmd.SKU, "distributionId", distributionID, "error", err)
		}
		return nil, s.reject(ctx, plan, err)
	}

	s.recordRequest(ctx, domain.DistributionModeExecute, domain.OutcomeExecuted, plan, distributionID, nil)
	span.SetAttributes(tracing.AttrOutcome.String(string(domain.OutcomeExecuted)))
	if s.metrics != nil {
		s.metrics.RecordUnitsDistributed(result.TotalDistributed)
	}

	if err := s.dispatcher.Dispatch(ctx, distributionID, cmd.SKU, transfers); err != nil {
		s.logger.Error("Failed to dispatch transfers, orders remain pending",
			"sku", cmd.SKU,
			"distributionId", distributionID,
			"error", err,
		)
	}

	s.logger.Audit(ctx, "distribute", "product", cmd.SKU, map[string]any{
		"distributionId":    distributionID,
		"totalDistributed":  result.TotalDistributed,
		"warehousesUpdated": result.WarehousesUpdated,
		"newOnHand":         result.NewOnHand,
	})

	return &ExecutionDTO{
		Executed:           true,
		Plan:               ToPlanDTO(plan),
		Result:             result,
		Transfers:          ToTransferDTOs(transfers),
		TotalEstimatedCost: domain.TotalEstimatedCost(transfers).StringFixed(2),
	}, nil
}

// ListTransfers returns transfer orders by distribution, by SKU, or all
func (s *RedistributionService) ListTransfers(ctx context.Context, query ListTransfersQuery) ([]TransferDTO, error) {
	var (
		orders []*domain.TransferOrder
		err    error
	)
	switch {
	case query.DistributionID != "":
		orders, err = s.transfers.FindByDistributionID(ctx, query.DistributionID)
	case query.SKU != "":
		orders, err = s.transfers.FindBySKU(ctx, query.SKU, query.Limit, query.Offset)
	default:
		orders, err = s.transfers.FindAll(ctx, query.Limit, query.Offset)
	}
	if err != nil {
		s.logger.Error("Failed to list transfers", "error", err)
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	return ToTransferDTOs(orders), nil
}

// ListRequests returns the request log, newest first
func (s *RedistributionService) ListRequests(ctx context.Context, query ListRequestsQuery) ([]DistributionRequestDTO, error) {
	requests, err := s.requests.Find(ctx, query.SKU, query.Limit, query.Offset)
	if err != nil {
		s.logger.Error("Failed to list distribution requests", "error", err)
		return nil, fmt.Errorf("failed to list distribution requests: %w", err)
	}
	return ToDistributionRequestDTOs(requests), nil
}

func (s *RedistributionService) resolveSettings(cmd PlanCommand) (domain.Policy, float64, error) {
	policy, err := s.policy.Merge(cmd.Override)
	if err != nil {
		return domain.Policy{}, 0, toAppError(err, "policy")
	}
	factor, err := seasonality(cmd.SeasonalityFactor)
	if err != nil {
		return domain.Policy{}, 0, err
	}
	return policy, factor, nil
}

func (s *RedistributionService) loadProduct(ctx context.Context, sku string) (*domain.Product, error) {
	product, err := s.products.FindBySKU(ctx, sku)
	if err != nil {
		s.logger.Error("Failed to get product", "sku", sku, "error", err)
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, errors.ErrNotFoundWithID("product", sku)
	}
	return product, nil
}

func (s *RedistributionService) buildPlan(product *domain.Product, candidates []domain.WarehouseCandidate, policy domain.Policy, factor float64) domain.DistributionPlan {
	plan := domain.BuildDistributionPlan(domain.PlanInput{
		SKU:        product.SKU,
		OnHand:     product.OnHand,
		AvgDemand:  product.AverageDemand(policy) * factor,
		Candidates: candidates,
		Policy:     policy,
	})
	plan.GeneratedAt = time.Now().UTC()
	return plan
}

// approvedPlan validates a previewed allocation list against the current candidates
func (s *RedistributionService) approvedPlan(
	product *domain.Product,
	candidates []domain.WarehouseCandidate,
	approved []ApprovedAllocation,
	policy domain.Policy,
	factor float64,
) (domain.DistributionPlan, error) {
	lines := make([]domain.ApprovedLine, 0, len(approved))
	for _, a := range approved {
		lines = append(lines, domain.ApprovedLine{WarehouseID: a.WarehouseID, Quantity: a.Quantity})
	}
	plan, err := domain.ApprovePlan(domain.PlanInput{
		SKU:        product.SKU,
		OnHand:     product.OnHand,
		AvgDemand:  product.AverageDemand(policy) * factor,
		Candidates: candidates,
		Policy:     policy,
	}, lines)
	plan.GeneratedAt = time.Now().UTC()
	return plan, err
}

// resolveCandidates uses caller-supplied candidates when present, otherwise the
// active warehouse directory priced by the cost provider. Warehouses that cannot
// be priced are left out of the plan.
func (s *RedistributionService) resolveCandidates(
	ctx context.Context,
	product *domain.Product,
	inputs []CandidateInput,
	policy domain.Policy,
) ([]domain.WarehouseCandidate, error) {
	if len(inputs) > 0 {
		candidates := make([]domain.WarehouseCandidate, 0, len(inputs))
		for _, in := range inputs {
			c := domain.WarehouseCandidate{
				ID:           in.WarehouseID,
				Name:         in.Name,
				Location:     in.Location,
				CurrentStock: in.CurrentStock,
				DemandRate:   in.DemandRate,
				TransferCost: in.TransferCost,
			}
			if in.SuggestedQty != nil {
				c.SuggestedQty = *in.SuggestedQty
			} else {
				c.SuggestedQty = domain.SuggestedQuantity(in.DemandRate, policy.SupplyHorizonDays)
			}
			if err := c.Validate(); err != nil {
				return nil, toAppError(err, "candidate")
			}
			candidates = append(candidates, c)
		}
		return candidates, nil
	}

	warehouses, err := s.warehouses.FindActive(ctx)
	if err != nil {
		s.logger.Error("Failed to load warehouses", "error", err)
		return nil, fmt.Errorf("failed to load warehouses: %w", err)
	}

	candidates := make([]domain.WarehouseCandidate, 0, len(warehouses))
	for _, w := range warehouses {
		cost, err := s.costs.GetTransferCost(ctx, product.Location, w)
		if err != nil {
			s.logger.Warn("Skipping warehouse without transfer cost",
				"warehouseId", w.WarehouseID,
				"from", product.Location,
				"error", err,
			)
			continue
		}
		c := w.Candidate(product.SKU, cost, policy)
		if err := c.Validate(); err != nil {
			s.logger.Warn("Skipping invalid warehouse candidate", "warehouseId", w.WarehouseID, "error", err)
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (s *RedistributionService) reject(ctx context.Context, plan domain.DistributionPlan, err error) error {
	var insufficient *domain.InsufficientStockError
	if stderrors.As(err, &insufficient) {
		s.rejected("insufficient_stock")
		s.recordRequest(ctx, domain.DistributionModeExecute, domain.OutcomeRejected, plan, "", insufficient)
		s.logger.Rejection(ctx, plan.SKU, "insufficient_stock", err)
	} else if stderrors.Is(err, domain.ErrConcurrentModification) {
		s.rejected("concurrent_modification")
		s.recordRequest(ctx, domain.DistributionModeExecute, domain.OutcomeRejected, plan, "", nil)
		s.logger.Rejection(ctx, plan.SKU, "concurrent_modification", err)
	} else if stderrors.Is(err, domain.ErrPlanNotApplicable) {
		s.rejected("plan_not_applicable")
		s.recordRequest(ctx, domain.DistributionModeExecute, domain.OutcomeRejected, plan, "", nil)
		s.logger.Rejection(ctx, plan.SKU, "plan_not_applicable", err)
	}
	return toAppError(err, "distribution")
}

func (s *RedistributionService) rejected(reason string) {
	if s.metrics != nil {
		s.metrics.RecordExecutionRejected(reason)
	}
}

func isRejection(err error) bool {
	return stderrors.Is(err, domain.ErrInsufficientStock) ||
		stderrors.Is(err, domain.ErrConcurrentModification) ||
		stderrors.Is(err, domain.ErrPlanNotApplicable)
}

// recordRequest appends to the request log. A failed append is logged, not returned.
func (s *RedistributionService) recordRequest(
	ctx context.Context,
	mode domain.DistributionMode,
	outcome domain.DistributionOutcome,
	plan domain.DistributionPlan,
	distributionID string,
	insufficient *domain.InsufficientStockError,
) {
	if s.metrics != nil {
		s.metrics.RecordPlan(string(mode), string(outcome), len(plan.Allocations))
	}

	request := &domain.DistributionRequest{
		RequestID:      s.newID(),
		DistributionID: distributionID,
		SKU:            plan.SKU,
		Mode:           mode,
		Outcome:        outcome,
		ExcessStock:    plan.ExcessStock,
		TotalQuantity:  plan.TotalQuantity(),
		Allocations:    len(plan.Allocations),
		Policy:         plan.Policy,
		CorrelationID:  logging.CorrelationIDFromContext(ctx),
		CreatedAt:      time.Now().UTC(),
	}
	if insufficient != nil {
		request.Attempted = insufficient.Attempted
		request.Available = insufficient.Available
	}

	if err := s.requests.Append(ctx, request); err != nil {
		s.logger.Warn("Failed to append distribution request", "sku", plan.SKU, "error", err)
	}
}
