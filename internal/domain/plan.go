package domain

import (
	"fmt"
	"math"
	"time"
)

// DistributionPlan is the full recommendation for one product.
// Building a plan never changes stock; only Product.Distribute commits one.
type DistributionPlan struct {
	SKU                string       `json:"sku" bson:"sku"`
	OnHand             int          `json:"onHand" bson:"onHand"`
	AvgDemand          float64      `json:"avgDemand" bson:"avgDemand"`
	OptimalStock       int          `json:"optimalStock" bson:"optimalStock"`
	ExcessStock        int          `json:"excessStock" bson:"excessStock"`
	Allocations        []Allocation `json:"allocations" bson:"allocations"`
	ExcludedWarehouses []string     `json:"excludedWarehouses" bson:"excludedWarehouses"`
	Policy             Policy       `json:"policy" bson:"policy"`

	// GeneratedAt is stamped by the caller; the planner leaves it zero
	GeneratedAt time.Time `json:"generatedAt" bson:"generatedAt"`
}

// PlanInput carries what the planner needs for one product
type PlanInput struct {
	SKU        string
	OnHand     int
	AvgDemand  float64
	Candidates []WarehouseCandidate
	Policy     Policy
}

// TotalQuantity sums the allocated units
func (p DistributionPlan) TotalQuantity() int {
	total := 0
	for _, a := range p.Allocations {
		total += a.Quantity
	}
	return total
}

// CheckedTotal sums the allocated units, rejecting non-positive lines and
// totals that do not fit in an int
func (p DistributionPlan) CheckedTotal() (int, error) {
	if len(p.Allocations) == 0 {
		return 0, fmt.Errorf("%w: plan allocates nothing", ErrInvalidQuantity)
	}
	total := 0
	for _, a := range p.Allocations {
		if a.Quantity <= 0 {
			return 0, fmt.Errorf("%w: allocation to %s has quantity %d", ErrInvalidQuantity, a.WarehouseID, a.Quantity)
		}
		if a.Quantity > math.MaxInt-total {
			return 0, fmt.Errorf("%w: plan total overflows at %s", ErrInvalidQuantity, a.WarehouseID)
		}
		total += a.Quantity
	}
	return total, nil
}

// IsEmpty reports whether the plan moves no stock
func (p DistributionPlan) IsEmpty() bool {
	return len(p.Allocations) == 0
}

// Allocation returns the allocation for a warehouse, if any
func (p DistributionPlan) Allocation(warehouseID string) (Allocation, bool) {
	for _, a := range p.Allocations {
		if a.WarehouseID == warehouseID {
			return a, true
		}
	}
	return Allocation{}, false
}

func newPlan(in PlanInput, excess ExcessResult) DistributionPlan {
	return DistributionPlan{
		SKU:                in.SKU,
		OnHand:             in.OnHand,
		AvgDemand:          excess.AvgDemand,
		OptimalStock:       excess.OptimalStock,
		ExcessStock:        excess.ExcessStock,
		Allocations:        []Allocation{},
		ExcludedWarehouses: []string{},
		Policy:             in.Policy,
	}
}

// BuildDistributionPlan runs excess calculation, ranking and allocation.
// No excess means no ranking; the plan comes back with empty allocations.
func BuildDistributionPlan(in PlanInput) DistributionPlan {
	excess := CalculateExcess(in.OnHand, in.AvgDemand, in.Policy)
	plan := newPlan(in, excess)
	if excess.ExcessStock == 0 {
		return plan
	}

	ranked, excluded := PartitionBySupply(in.Candidates, in.Policy)
	sortRanked(ranked)
	plan.ExcludedWarehouses = excluded
	plan.Allocations = Allocate(ranked, excess.ExcessStock, in.Policy)
	return plan
}

// ApprovedLine is one warehouse and quantity from a previously previewed plan
type ApprovedLine struct {
	WarehouseID string
	Quantity    int
}

// ApprovePlan rebuilds a previewed plan against current candidates, keeping the
// caller's lines in order instead of re-ranking. Every line must name a candidate
// that passes the supply gate and stay within what the allocator could give it,
// and together the lines must fit the product's stock and excess.
//
// On failure the returned plan carries the lines accepted so far, so the rejection
// can be recorded. A total above onHand fails with *InsufficientStockError.
func ApprovePlan(in PlanInput, lines []ApprovedLine) (DistributionPlan, error) {
	excess := CalculateExcess(in.OnHand, in.AvgDemand, in.Policy)
	plan := newPlan(in, excess)

	eligible, excluded := PartitionBySupply(in.Candidates, in.Policy)
	plan.ExcludedWarehouses = excluded

	byID := make(map[string]RankedWarehouse, len(eligible))
	for _, w := range eligible {
		byID[w.ID] = w
	}
	gated := make(map[string]bool, len(excluded))
	for _, id := range excluded {
		gated[id] = true
	}

	seen := make(map[string]bool, len(lines))
	total := 0
	for _, line := range lines {
		if seen[line.WarehouseID] {
			return plan, fmt.Errorf("%w: %s appears twice in the plan", ErrInvalidCandidate, line.WarehouseID)
		}
		seen[line.WarehouseID] = true
		if line.Quantity <= 0 {
			return plan, fmt.Errorf("%w: quantity for %s must be positive", ErrInvalidQuantity, line.WarehouseID)
		}

		w, ok := byID[line.WarehouseID]
		if !ok {
			if gated[line.WarehouseID] {
				return plan, fmt.Errorf("%w: %s already holds %d days of supply or more",
					ErrPlanNotApplicable, line.WarehouseID, in.Policy.SupplyHorizonDays)
			}
			return plan, fmt.Errorf("%w: %s", ErrWarehouseNotFound, line.WarehouseID)
		}

		limit := min(w.NeededUnits(in.Policy), w.SuggestedQty)
		if line.Quantity > limit {
			return plan, fmt.Errorf("%w: %s can take at most %d units, plan has %d",
				ErrPlanNotApplicable, line.WarehouseID, max(limit, 0), line.Quantity)
		}
		if line.Quantity > math.MaxInt-total {
			return plan, fmt.Errorf("%w: plan total overflows at %s", ErrInvalidQuantity, line.WarehouseID)
		}
		total += line.Quantity

		plan.Allocations = append(plan.Allocations, Allocation{
			WarehouseID:   w.ID,
			WarehouseName: w.Name,
			Quantity:      line.Quantity,
			Reason:        "approved plan",
			PriorityScore: w.PriorityScore,
			DaysOfSupply:  w.DaysOfSupply,
			TransferCost:  w.TransferCost,
		})
	}

	if total > in.OnHand {
		return plan, &InsufficientStockError{SKU: in.SKU, Attempted: total, Available: in.OnHand}
	}
	if total > excess.ExcessStock {
		return plan, fmt.Errorf("%w: plan moves %d units but excess is %d", ErrPlanNotApplicable, total, excess.ExcessStock)
	}
	return plan, nil
}
