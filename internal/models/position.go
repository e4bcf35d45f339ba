package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionSummary is the per-ticker state derived by replaying an account's
// operation history. It is recreated from scratch on every replay; nothing
// mutates a summary across rebuilds. Quantity may go negative (short).
type PositionSummary struct {
	Symbol         string          `json:"symbol"`
	Quantity       decimal.Decimal `json:"quantity"`
	AveragePrice   decimal.Decimal `json:"average_price"`
	InvestedValue  decimal.Decimal `json:"invested_value"`
	RealizedProfit decimal.Decimal `json:"realized_profit"`
}

// Position is the persisted form of a PositionSummary for one account,
// enriched with the price used on the last valuation.
type Position struct {
	ID             int             `json:"id"`
	AccountID      string          `json:"account_id"`
	Symbol         string          `json:"symbol"`
	Quantity       decimal.Decimal `json:"quantity"`
	AveragePrice   decimal.Decimal `json:"average_price"`
	InvestedValue  decimal.Decimal `json:"invested_value"`
	RealizedProfit decimal.Decimal `json:"realized_profit"`
	CurrentPrice   decimal.Decimal `json:"current_price,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Summary converts the persisted position back to its replay-derived form.
func (p *Position) Summary() PositionSummary {
	return PositionSummary{
		Symbol:         p.Symbol,
		Quantity:       p.Quantity,
		AveragePrice:   p.AveragePrice,
		InvestedValue:  p.InvestedValue,
		RealizedProfit: p.RealizedProfit,
	}
}
