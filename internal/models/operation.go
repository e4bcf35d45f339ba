package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Operation side constants
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Operation represents a single buy or sell executed for an account.
// Operations are immutable; replay ordering key is (TradeDate, Sequence).
type Operation struct {
	ID         int             `json:"id"`
	AccountID  string          `json:"account_id"`
	OrderID    string          `json:"order_id"`
	Source     string          `json:"source"`
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	TradeDate  time.Time       `json:"trade_date"`
	Sequence   int             `json:"sequence"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Before reports whether o orders strictly before other in the replay stream.
func (o *Operation) Before(other *Operation) bool {
	if o.TradeDate.Equal(other.TradeDate) {
		return o.Sequence < other.Sequence
	}
	return o.TradeDate.Before(other.TradeDate)
}
