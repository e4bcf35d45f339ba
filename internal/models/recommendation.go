package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rebalancing action kind constants
const (
	ActionBuy       = "buy"
	ActionSell      = "sell"
	ActionRebalance = "rebalance"
)

// Recommendation status constants
const (
	RecommendationPending   = "pending"
	RecommendationApplied   = "applied"
	RecommendationDismissed = "dismissed"
)

// RebalancingAction is one sell/keep/buy decision inside a recommendation.
// Difference is always TargetValue - CurrentValue.
type RebalancingAction struct {
	Kind         string          `json:"kind"`
	Symbol       string          `json:"symbol,omitempty"`
	Subtype      string          `json:"subtype,omitempty"`
	CurrentValue decimal.Decimal `json:"current_value"`
	TargetValue  decimal.Decimal `json:"target_value"`
	Difference   decimal.Decimal `json:"difference"`
	Quantity     decimal.Decimal `json:"quantity"`
	Rank         int             `json:"rank,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}

// Recommendation is the assembled monthly rebalancing advice for an account.
type Recommendation struct {
	ID                int                 `json:"id"`
	AccountID         string              `json:"account_id"`
	Date              time.Time           `json:"date"`
	Status            string              `json:"status"`
	Actions           []RebalancingAction `json:"actions"`
	TotalSalesValue   decimal.Decimal     `json:"total_sales_value"`
	SalesLimitReached bool                `json:"sales_limit_reached"`
	CreatedAt         time.Time           `json:"created_at"`
}
