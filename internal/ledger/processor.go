package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/trogers1052/portfolio-advisor/internal/models"
)

var one = decimal.NewFromInt(1)

// ApplyEvent applies a numeric corporate event (grouping, split, bonus) to a
// position summary and returns the adjusted summary. Positions with zero or
// negative quantity are left untouched. Structural events (ticker change,
// fund conversion) operate across positions and are handled by the replay
// engine, not here.
func ApplyEvent(s models.PositionSummary, e *models.CorporateEvent) models.PositionSummary {
	if s.Quantity.LessThanOrEqual(decimal.Zero) {
		return s
	}

	num := decimal.NewFromInt(e.RatioNumerator)
	den := decimal.NewFromInt(e.RatioDenominator)

	switch e.Kind {
	case models.EventKindGrouping:
		// N shares become 1. A fractional remainder below one whole share
		// is cash-settled by the broker, so the position liquidates.
		newQty := s.Quantity.Div(num).Floor()
		if newQty.LessThan(one) {
			s.Quantity = decimal.Zero
			s.AveragePrice = decimal.Zero
			s.InvestedValue = decimal.Zero
			return s
		}
		s.Quantity = newQty
		s.AveragePrice = s.AveragePrice.Mul(num)
		s.InvestedValue = s.Quantity.Mul(s.AveragePrice)

	case models.EventKindSplit:
		// 1 share becomes N. Invested value is unchanged.
		s.Quantity = s.Quantity.Mul(den)
		s.AveragePrice = s.AveragePrice.Div(den)

	case models.EventKindBonus:
		// Multiply before dividing so exact ratios survive decimal division.
		bonus := s.Quantity.Mul(num).Div(den).Floor()
		if bonus.LessThanOrEqual(decimal.Zero) {
			return s
		}
		s.Quantity = s.Quantity.Add(bonus)
		if e.UnitValue.GreaterThan(decimal.Zero) {
			s.InvestedValue = s.InvestedValue.Add(bonus.Mul(e.UnitValue))
		}
		// Without a declared unit value the bonus shares carry zero cost
		// basis and only dilute the average.
		s.AveragePrice = s.InvestedValue.Div(s.Quantity)
	}

	return s
}
