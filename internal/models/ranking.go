package models

import "time"

// RankedCandidate is one entry of the externally refreshed ranking universe.
// Lower rank means more desirable.
type RankedCandidate struct {
	ID         int       `json:"id"`
	StrategyID string    `json:"strategy_id"`
	Symbol     string    `json:"symbol"`
	Rank       int       `json:"rank"`
	Name       string    `json:"name,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}
