package models

import (
	"github.com/shopspring/decimal"
)

// Allocation node level constants
const (
	AllocationLevelType    = "TYPE"
	AllocationLevelSubtype = "SUBTYPE"
	AllocationLevelAsset   = "ASSET"
)

// AllocationNode is one node of an account's target-allocation tree
// (type -> subtype -> asset). TargetPercent and CurrentPercent are both
// fractions of total portfolio value, not of the parent's slice.
type AllocationNode struct {
	ID             int               `json:"id"`
	AccountID      string            `json:"account_id,omitempty"`
	Level          string            `json:"level"`
	Name           string            `json:"name"`
	Symbol         string            `json:"symbol,omitempty"`
	TargetPercent  decimal.Decimal   `json:"target_percent"`
	CurrentValue   decimal.Decimal   `json:"current_value"`
	CurrentPercent decimal.Decimal   `json:"current_percent"`
	Children       []*AllocationNode `json:"children,omitempty"`
}

// TargetValue returns the node's target value against a total portfolio value.
func (n *AllocationNode) TargetValue(total decimal.Decimal) decimal.Decimal {
	return total.Mul(n.TargetPercent).Div(decimal.NewFromInt(100))
}
