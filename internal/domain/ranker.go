package domain

import "sort"

// RankedWarehouse is an eligible candidate with its derived metrics
type RankedWarehouse struct {
	WarehouseCandidate
	DaysOfSupply  float64
	PriorityScore float64
}

// PartitionBySupply splits candidates into those short of the horizon and the IDs of those that are not
func PartitionBySupply(candidates []WarehouseCandidate, policy Policy) (eligible []RankedWarehouse, excluded []string) {
	eligible = make([]RankedWarehouse, 0, len(candidates))
	excluded = make([]string, 0)
	horizon := float64(policy.SupplyHorizonDays)

	for _, c := range candidates {
		days := c.DaysOfSupply()
		if days >= horizon {
			excluded = append(excluded, c.ID)
			continue
		}
		eligible = append(eligible, RankedWarehouse{
			WarehouseCandidate: c,
			DaysOfSupply:       days,
			PriorityScore:      c.PriorityScore(),
		})
	}
	return eligible, excluded
}

// RankWarehouses drops candidates with a full horizon of supply and orders the rest
// by priority score descending. Equal scores go to the cheaper transfer first,
// then keep their input order.
func RankWarehouses(candidates []WarehouseCandidate, policy Policy) []RankedWarehouse {
	ranked, _ := PartitionBySupply(candidates, policy)
	sortRanked(ranked)
	return ranked
}

func sortRanked(ranked []RankedWarehouse) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].PriorityScore != ranked[j].PriorityScore {
			return ranked[i].PriorityScore > ranked[j].PriorityScore
		}
		return ranked[i].TransferCost < ranked[j].TransferCost
	})
}
