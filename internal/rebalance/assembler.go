package rebalance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/portfolio-advisor/internal/models"
)

// Materiality of an aggregate delta: the larger of a fixed floor and 1% of
// the node's target value.
func materialityThreshold(floor, target decimal.Decimal) decimal.Decimal {
	onePercent := target.Abs().Div(decimal.NewFromInt(100))
	if onePercent.GreaterThan(floor) {
		return onePercent
	}
	return floor
}

// Assemble merges type/subtype-level allocation deltas with the asset-level
// actions of a rebalancing cycle into one recommendation. An exact-ticker
// action always supersedes an aggregate one, and no ticker appears twice.
func Assemble(accountID string, date time.Time, tree []*models.AllocationNode, totalTarget decimal.Decimal, result Result, materialityFloor decimal.Decimal) models.Recommendation {
	rec := models.Recommendation{
		AccountID:         accountID,
		Date:              date,
		Status:            models.RecommendationPending,
		TotalSalesValue:   decimal.Zero,
		SalesLimitReached: result.SalesLimitReached,
	}

	// Aggregate deltas first: they carry the least specificity and any
	// exact-ticker action below takes precedence for its symbol.
	for _, node := range tree {
		collectAggregates(node, totalTarget, materialityFloor, &rec.Actions)
	}

	seen := make(map[string]bool)
	appendActions := func(actions []models.RebalancingAction) {
		for _, a := range actions {
			if a.Symbol != "" && seen[a.Symbol] {
				continue
			}
			seen[a.Symbol] = true
			rec.Actions = append(rec.Actions, a)
		}
	}
	appendActions(result.Sells)
	appendActions(result.Buys)
	appendActions(result.Rebalances)

	for _, a := range rec.Actions {
		switch {
		case a.Kind == models.ActionSell:
			rec.TotalSalesValue = rec.TotalSalesValue.Add(a.Difference.Abs())
		case a.Kind == models.ActionRebalance && a.Symbol != "" && a.Quantity.Sign() < 0:
			rec.TotalSalesValue = rec.TotalSalesValue.Add(a.Difference.Abs())
		}
	}

	return rec
}

func collectAggregates(node *models.AllocationNode, totalTarget, floor decimal.Decimal, out *[]models.RebalancingAction) {
	if node.Level == models.AllocationLevelAsset {
		return
	}
	target := node.TargetValue(totalTarget)
	delta := target.Sub(node.CurrentValue)
	if delta.Abs().GreaterThan(materialityThreshold(floor, target)) {
		*out = append(*out, models.RebalancingAction{
			Kind:         models.ActionRebalance,
			Subtype:      node.Name,
			CurrentValue: node.CurrentValue,
			TargetValue:  target,
			Difference:   delta,
			Reason:       "allocation drift beyond materiality threshold",
		})
	}
	for _, child := range node.Children {
		collectAggregates(child, totalTarget, floor, out)
	}
}
