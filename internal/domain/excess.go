package domain

// ExcessResult is the outcome of the excess calculation for one product
type ExcessResult struct {
	AvgDemand    float64 `json:"avgDemand"`
	OptimalStock int     `json:"optimalStock"`
	ExcessStock  int     `json:"excessStock"`
}

// OptimalStock is the larger of the policy floor and the demand projected over the horizon
func OptimalStock(avgDemand float64, policy Policy) int {
	return max(policy.MinFloorUnits, ceilUnits(avgDemand*float64(policy.SupplyHorizonDays)))
}

// CalculateExcess returns the units above the optimal stock level.
// Zero demand leaves only the floor, so stagnant stock is fully eligible.
func CalculateExcess(onHand int, avgDemand float64, policy Policy) ExcessResult {
	optimal := OptimalStock(avgDemand, policy)
	return ExcessResult{
		AvgDemand:    avgDemand,
		OptimalStock: optimal,
		ExcessStock:  max(0, onHand-optimal),
	}
}
