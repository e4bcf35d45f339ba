package rebalance

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/trogers1052/portfolio-advisor/internal/models"
)

// Holding is the priced view of one held position fed into the rebalancer.
type Holding struct {
	Symbol   string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Value    decimal.Decimal
}

// Params are the constraints of one rebalancing cycle.
type Params struct {
	RankThreshold         int
	MaxHoldings           int
	RemainingMonthlyLimit decimal.Decimal
	TargetTotalValue      decimal.Decimal
}

// PriceFor resolves a current price for a symbol not yet held, used to size
// buy quantities. ok=false leaves the buy sized by value only.
type PriceFor func(symbol string) (decimal.Decimal, bool)

// Result carries the three action lists of one cycle. CommittedSellValue
// covers complete and partial liquidation sells only; it never exceeds
// Params.RemainingMonthlyLimit.
type Result struct {
	Sells              []models.RebalancingAction
	Buys               []models.RebalancingAction
	Rebalances         []models.RebalancingAction
	CommittedSellValue decimal.Decimal
	SalesLimitReached  bool
	UniverseEmpty      bool
}

// member is one position of the final holding set.
type member struct {
	symbol      string
	quantity    decimal.Decimal
	price       decimal.Decimal
	value       decimal.Decimal
	rank        int
	ranked      bool
	sellOnly    bool // above threshold or unranked: may be sold, never topped up
	saleBlocked bool // wanted a sale this cycle but the budget ran out
}

// Recommend produces sell/keep/buy decisions for one cycle.
//
// Priority order: keep everything ranked at or under the threshold; walk the
// sell candidates (unranked first, then worst rank first) committing complete
// sales while they fit the remaining monthly limit; size partial sales from
// whatever budget is left; fill free holding slots with the best-ranked
// unheld candidates; then spread the target value equally across the final
// set. Positions above the rank threshold are never bought, only sold.
func Recommend(holdings []Holding, universe []models.RankedCandidate, params Params, priceFor PriceFor) Result {
	if len(universe) == 0 {
		return Result{UniverseEmpty: true, CommittedSellValue: decimal.Zero}
	}

	rankOf := make(map[string]int, len(universe))
	for _, c := range universe {
		rankOf[c.Symbol] = c.Rank
	}

	var keeps []member
	var unranked, overThreshold []member
	held := make(map[string]bool, len(holdings))

	for _, h := range holdings {
		if h.Quantity.LessThanOrEqual(decimal.Zero) {
			continue
		}
		held[h.Symbol] = true
		m := member{symbol: h.Symbol, quantity: h.Quantity, price: h.Price, value: h.Value}
		if rank, ok := rankOf[h.Symbol]; ok {
			m.rank = rank
			m.ranked = true
			if rank <= params.RankThreshold {
				keeps = append(keeps, m)
				continue
			}
			m.sellOnly = true
			overThreshold = append(overThreshold, m)
			continue
		}
		m.sellOnly = true
		unranked = append(unranked, m)
	}

	// Worst rank sells first; unranked (rank treated as infinite) before all.
	sort.SliceStable(overThreshold, func(i, j int) bool {
		return overThreshold[i].rank > overThreshold[j].rank
	})
	candidates := append(unranked, overThreshold...)

	res := Result{CommittedSellValue: decimal.Zero}
	budget := params.RemainingMonthlyLimit

	var deferred []member
	for _, m := range candidates {
		if m.value.LessThanOrEqual(budget) {
			res.Sells = append(res.Sells, models.RebalancingAction{
				Kind:         models.ActionSell,
				Symbol:       m.symbol,
				CurrentValue: m.value,
				TargetValue:  decimal.Zero,
				Difference:   m.value.Neg(),
				Quantity:     m.quantity,
				Rank:         m.rank,
				Reason:       sellReason(m, params.RankThreshold),
			})
			budget = budget.Sub(m.value)
			res.CommittedSellValue = res.CommittedSellValue.Add(m.value)
			continue
		}
		deferred = append(deferred, m)
	}

	// Deferred positions eat whatever budget remains as partial sales; once
	// it is gone they stay fully held until next month.
	var remainder []member
	for _, m := range deferred {
		res.SalesLimitReached = true
		var soldQty decimal.Decimal
		if budget.Sign() > 0 && m.price.Sign() > 0 {
			soldQty = budget.Div(m.price).Floor()
		}
		if soldQty.Sign() > 0 {
			soldValue := soldQty.Mul(m.price)
			res.Sells = append(res.Sells, models.RebalancingAction{
				Kind:         models.ActionSell,
				Symbol:       m.symbol,
				CurrentValue: m.value,
				TargetValue:  m.value.Sub(soldValue),
				Difference:   soldValue.Neg(),
				Quantity:     soldQty,
				Rank:         m.rank,
				Reason:       fmt.Sprintf("partial sale, monthly sales limit reached (%s)", sellReason(m, params.RankThreshold)),
			})
			budget = budget.Sub(soldValue)
			res.CommittedSellValue = res.CommittedSellValue.Add(soldValue)
			m.quantity = m.quantity.Sub(soldQty)
			m.value = m.value.Sub(soldValue)
		} else {
			m.saleBlocked = true
		}
		if m.quantity.Sign() > 0 {
			remainder = append(remainder, m)
		}
	}

	final := append(keeps, remainder...)

	// Buy candidates: best rank first, never above the threshold, never a
	// symbol already held, and only while holding slots remain.
	var buys []member
	if params.MaxHoldings > 0 {
		slots := params.MaxHoldings - len(final)
		sorted := make([]models.RankedCandidate, len(universe))
		copy(sorted, universe)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Rank < sorted[j].Rank
		})
		for _, c := range sorted {
			if slots <= 0 {
				break
			}
			if held[c.Symbol] || c.Rank > params.RankThreshold {
				continue
			}
			price, ok := priceFor(c.Symbol)
			m := member{symbol: c.Symbol, rank: c.Rank, ranked: true}
			if ok {
				m.price = price
			}
			buys = append(buys, m)
			slots--
		}
	}

	count := int64(len(final) + len(buys))
	if count == 0 {
		return res
	}
	target := params.TargetTotalValue.Div(decimal.NewFromInt(count))

	for _, m := range final {
		diff := target.Sub(m.value)
		action := models.RebalancingAction{
			Kind:         models.ActionRebalance,
			Symbol:       m.symbol,
			CurrentValue: m.value,
			TargetValue:  target,
			Difference:   diff,
			Rank:         m.rank,
		}
		switch {
		case m.sellOnly:
			// These positions only survived because the sales budget ran
			// out. Never top them up, and defer any further selling to next
			// month so the committed sell value stays within the limit.
			action.Quantity = decimal.Zero
			action.Reason = "above rank threshold, remainder held; monthly sales limit reached"
			if m.saleBlocked {
				action.Reason = "above rank threshold, sale deferred; monthly sales limit reached"
			}
		case diff.Sign() < 0 && m.price.Sign() > 0:
			action.Quantity = diff.Neg().Div(m.price).Floor().Neg()
			action.Reason = "above equal-value target, sell down"
		case diff.Sign() > 0 && m.price.Sign() > 0:
			action.Quantity = diff.Div(m.price).Floor()
			action.Reason = "below equal-value target, buy more"
		default:
			action.Quantity = decimal.Zero
			action.Reason = "at equal-value target"
		}
		res.Rebalances = append(res.Rebalances, action)
	}

	for _, m := range buys {
		action := models.RebalancingAction{
			Kind:         models.ActionBuy,
			Symbol:       m.symbol,
			CurrentValue: decimal.Zero,
			TargetValue:  target,
			Difference:   target,
			Rank:         m.rank,
			Reason:       fmt.Sprintf("new position, rank %d within threshold %d", m.rank, params.RankThreshold),
		}
		if m.price.Sign() > 0 {
			action.Quantity = target.Div(m.price).Floor()
		}
		res.Buys = append(res.Buys, action)
	}

	return res
}

func sellReason(m member, threshold int) string {
	if !m.ranked {
		return "absent from ranking universe"
	}
	return fmt.Sprintf("rank %d above threshold %d", m.rank, threshold)
}
