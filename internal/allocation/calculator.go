package allocation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/trogers1052/portfolio-advisor/internal/models"
)

var hundred = decimal.NewFromInt(100)

// PriceSource supplies current quotes. A miss (ok=false) is not an error;
// valuation degrades to the position's stored average cost.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, time.Time, bool)
}

// Calculator fills current values and percentages into an account's
// target-allocation tree.
type Calculator struct {
	prices PriceSource
	log    *logrus.Logger
}

// NewCalculator creates an allocation calculator.
func NewCalculator(prices PriceSource, log *logrus.Logger) *Calculator {
	return &Calculator{prices: prices, log: log}
}

// Valuation is the priced view of one position.
type Valuation struct {
	Symbol   string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Value    decimal.Decimal
}

// Value prices a single summary, falling back to average cost when no quote
// is available.
func (c *Calculator) Value(ctx context.Context, s models.PositionSummary) Valuation {
	price, _, ok := c.prices.CurrentPrice(ctx, s.Symbol)
	if !ok || price.LessThanOrEqual(decimal.Zero) {
		c.log.WithField("symbol", s.Symbol).Debug("no quote available, valuing at average cost")
		price = s.AveragePrice
	}
	return Valuation{
		Symbol:   s.Symbol,
		Quantity: s.Quantity,
		Price:    price,
		Value:    s.Quantity.Mul(price),
	}
}

// ValueAll prices every summary and returns the valuations plus the total
// portfolio value.
func (c *Calculator) ValueAll(ctx context.Context, summaries map[string]models.PositionSummary) (map[string]Valuation, decimal.Decimal) {
	vals := make(map[string]Valuation, len(summaries))
	total := decimal.Zero
	for symbol, s := range summaries {
		v := c.Value(ctx, s)
		vals[symbol] = v
		total = total.Add(v.Value)
	}
	return vals, total
}

// Compute fills CurrentValue and CurrentPercent into the target tree from
// the given summaries. Every percentage is a fraction of total portfolio
// value. It returns the total so callers can derive target values.
func (c *Calculator) Compute(ctx context.Context, summaries map[string]models.PositionSummary, tree []*models.AllocationNode) decimal.Decimal {
	vals, total := c.ValueAll(ctx, summaries)
	for _, node := range tree {
		c.fill(node, vals, total)
	}
	return total
}

func (c *Calculator) fill(node *models.AllocationNode, vals map[string]Valuation, total decimal.Decimal) decimal.Decimal {
	if len(node.Children) == 0 {
		node.CurrentValue = decimal.Zero
		if v, ok := vals[node.Symbol]; ok {
			node.CurrentValue = v.Value
		}
	} else {
		sum := decimal.Zero
		for _, child := range node.Children {
			sum = sum.Add(c.fill(child, vals, total))
		}
		node.CurrentValue = sum
	}
	node.CurrentPercent = Percent(node.CurrentValue, total)
	return node.CurrentValue
}

// Percent returns value/total as a percentage rounded to one decimal place,
// half away from zero. The rounding keeps UI consumers from oscillating on
// float noise.
func Percent(value, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return value.Div(total).Mul(hundred).Round(1)
}
