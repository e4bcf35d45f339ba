package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Corporate event kind constants
const (
	EventKindGrouping       = "GROUPING"
	EventKindSplit          = "SPLIT"
	EventKindBonus          = "BONUS"
	EventKindTickerChange   = "TICKER_CHANGE"
	EventKindFundConversion = "FUND_CONVERSION"
)

// CorporateEvent represents a corporate action affecting a position.
// Ratio is numerator:denominator (e.g. 20:1 for a 20-into-1 grouping).
// An event is applied at most once per replay; the Applied flag records
// that a committed rebuild has already consumed it.
type CorporateEvent struct {
	ID               int             `json:"id"`
	EventID          string          `json:"event_id"`
	AccountID        string          `json:"account_id"`
	Symbol           string          `json:"symbol"`
	Kind             string          `json:"kind"`
	ExDate           time.Time       `json:"ex_date"`
	RatioNumerator   int64           `json:"ratio_numerator"`
	RatioDenominator int64           `json:"ratio_denominator"`
	PreviousSymbol   string          `json:"previous_symbol,omitempty"`
	UnitValue        decimal.Decimal `json:"unit_value,omitempty"`
	Applied          bool            `json:"applied"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Validate rejects events that cannot be applied. Malformed events are an
// invalid-configuration error at registration time, not at replay time.
func (e *CorporateEvent) Validate() error {
	switch e.Kind {
	case EventKindGrouping, EventKindSplit, EventKindBonus:
	case EventKindTickerChange, EventKindFundConversion:
		if e.PreviousSymbol == "" {
			return fmt.Errorf("%s event for %s requires a previous symbol", e.Kind, e.Symbol)
		}
	default:
		return fmt.Errorf("unknown corporate event kind: %q", e.Kind)
	}
	if e.RatioNumerator <= 0 || e.RatioDenominator <= 0 {
		return fmt.Errorf("invalid ratio %d:%d for %s event on %s",
			e.RatioNumerator, e.RatioDenominator, e.Kind, e.Symbol)
	}
	return nil
}

// ParseRatio parses a "numerator:denominator" ratio string.
func ParseRatio(s string) (int64, int64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid ratio %q: want numerator:denominator", s)
	}
	num, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid ratio numerator %q: %w", parts[0], err)
	}
	den, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid ratio denominator %q: %w", parts[1], err)
	}
	if num <= 0 || den <= 0 {
		return 0, 0, fmt.Errorf("invalid ratio %q: both sides must be positive", s)
	}
	return num, den, nil
}
