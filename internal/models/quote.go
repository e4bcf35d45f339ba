package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote represents the latest known close price for a symbol.
type Quote struct {
	ID        int             `json:"id"`
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	QuotedAt  time.Time       `json:"quoted_at"`
	CreatedAt time.Time       `json:"created_at"`
}
