package models

import "time"

// Kafka event type constants
const (
	EventTypeTradeExecuted         = "TRADE_EXECUTED"
	EventTypeCorporateEvent        = "CORPORATE_EVENT_REGISTERED"
	EventTypeRankingRefreshed      = "RANKING_REFRESHED"
	EventTypeQuoteUpdated          = "QUOTE_UPDATED"
	EventTypeRecommendationCreated = "RECOMMENDATION_CREATED"
)

// TradeMessage is the kafka envelope for an executed trade.
type TradeMessage struct {
	EventType string           `json:"event_type"`
	Source    string           `json:"source"`
	Data      TradeMessageData `json:"data"`
	Timestamp time.Time        `json:"timestamp"`
}

// TradeMessageData carries the trade fields as strings so producers with
// loose numeric formats can still be ingested.
type TradeMessageData struct {
	OrderID    string  `json:"order_id"`
	AccountID  string  `json:"account_id"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Quantity   string  `json:"quantity"`
	Price      string  `json:"price"`
	Sequence   int     `json:"sequence"`
	ExecutedAt *string `json:"executed_at,omitempty"`
}

// CorporateEventMessage is the kafka envelope for a registered corporate action.
type CorporateEventMessage struct {
	EventType string                    `json:"event_type"`
	Data      CorporateEventMessageData `json:"data"`
	Timestamp time.Time                 `json:"timestamp"`
}

// CorporateEventMessageData carries the event with its ratio still encoded
// as "numerator:denominator"; validation happens at registration.
type CorporateEventMessageData struct {
	EventID        string `json:"event_id"`
	AccountID      string `json:"account_id"`
	Symbol         string `json:"symbol"`
	Kind           string `json:"kind"`
	ExDate         string `json:"ex_date"`
	Ratio          string `json:"ratio"`
	PreviousSymbol string `json:"previous_symbol,omitempty"`
	UnitValue      string `json:"unit_value,omitempty"`
}

// RankingMessage is the kafka envelope for a full ranking-universe refresh.
type RankingMessage struct {
	EventType  string             `json:"event_type"`
	StrategyID string             `json:"strategy_id"`
	Candidates []RankingCandidate `json:"candidates"`
	Timestamp  time.Time          `json:"timestamp"`
}

// RankingCandidate is one ranked entry inside a RankingMessage.
type RankingCandidate struct {
	Symbol string `json:"symbol"`
	Rank   int    `json:"rank"`
	Name   string `json:"name,omitempty"`
}

// QuoteMessage is the kafka envelope for a price update.
type QuoteMessage struct {
	EventType string           `json:"event_type"`
	Data      QuoteMessageData `json:"data"`
	Timestamp time.Time        `json:"timestamp"`
}

// QuoteMessageData carries one symbol's latest price.
type QuoteMessageData struct {
	Symbol   string `json:"symbol"`
	Price    string `json:"price"`
	QuotedAt string `json:"quoted_at"`
}

// RecommendationEvent is published after a recommendation is persisted.
type RecommendationEvent struct {
	EventType      string          `json:"event_type"`
	AccountID      string          `json:"account_id"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}
