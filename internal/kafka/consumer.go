package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/trogers1052/portfolio-advisor/internal/models"
)

// Repository defines the database operations the consumer needs
type Repository interface {
	CreateOperation(o *models.Operation) error
	OperationExistsByOrderID(orderID, source string) (bool, error)
	CreateCorporateEvent(e *models.CorporateEvent) error
	ReplaceRankedUniverse(strategyID string, candidates []*models.RankedCandidate) error
	UpsertQuote(q *models.Quote) error
}

// Consumer ingests trade, corporate-event, ranking and quote messages into
// the ledger tables. Trades are idempotent by (order id, source); corporate
// events by event id; ranking refreshes replace the whole universe; quotes
// keep one row per symbol.
type Consumer struct {
	reader *kafka.Reader
	repo   Repository
	log    *logrus.Logger
}

// NewConsumer creates a new Kafka consumer for ledger ingest
func NewConsumer(brokers []string, topic, groupID string, repo Repository, log *logrus.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader: reader,
		repo:   repo,
		log:    log,
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	c.log.WithField("topic", c.reader.Config().Topic).Info("starting kafka consumer")

	for {
		select {
		case <-ctx.Done():
			c.log.Info("kafka consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				c.log.WithError(err).Error("error reading message")
				continue
			}

			if err := c.processMessage(msg); err != nil {
				c.log.WithError(err).Error("error processing message")
				// Continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(msg kafka.Message) error {
	var probe struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(msg.Value, &probe); err != nil {
		return fmt.Errorf("failed to unmarshal message envelope: %w", err)
	}

	switch probe.EventType {
	case models.EventTypeTradeExecuted:
		return c.handleTrade(msg.Value)
	case models.EventTypeCorporateEvent:
		return c.handleCorporateEvent(msg.Value)
	case models.EventTypeRankingRefreshed:
		return c.handleRanking(msg.Value)
	case models.EventTypeQuoteUpdated:
		return c.handleQuote(msg.Value)
	default:
		c.log.WithField("event_type", probe.EventType).Debug("ignoring event type")
		return nil
	}
}

func (c *Consumer) handleTrade(value []byte) error {
	var event models.TradeMessage
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal trade message: %w", err)
	}

	exists, err := c.repo.OperationExistsByOrderID(event.Data.OrderID, event.Source)
	if err != nil {
		return fmt.Errorf("failed to check for duplicate trade: %w", err)
	}
	if exists {
		c.log.WithFields(logrus.Fields{
			"order_id": event.Data.OrderID,
			"source":   event.Source,
		}).Debug("trade already exists, skipping")
		return nil
	}

	op, err := c.convertTrade(event)
	if err != nil {
		return fmt.Errorf("failed to convert trade message: %w", err)
	}

	if err := c.repo.CreateOperation(op); err != nil {
		return fmt.Errorf("failed to save operation: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"side":     op.Side,
		"quantity": op.Quantity,
		"symbol":   op.Symbol,
		"price":    op.Price,
		"order_id": op.OrderID,
	}).Info("saved operation")

	return nil
}

// convertTrade maps a TradeMessage to an Operation
func (c *Consumer) convertTrade(event models.TradeMessage) (*models.Operation, error) {
	data := event.Data

	quantity, err := decimal.NewFromString(data.Quantity)
	if err != nil {
		return nil, fmt.Errorf("invalid quantity %s: %w", data.Quantity, err)
	}
	if quantity.Sign() <= 0 {
		return nil, fmt.Errorf("invalid quantity %s: must be positive", data.Quantity)
	}

	price, err := decimal.NewFromString(data.Price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %s: %w", data.Price, err)
	}
	if price.Sign() < 0 {
		return nil, fmt.Errorf("invalid price %s: must not be negative", data.Price)
	}

	side := strings.ToUpper(data.Side)
	if side != models.SideBuy && side != models.SideSell {
		return nil, fmt.Errorf("invalid trade side: %s", data.Side)
	}

	// A trade date that fails every layout is stored zero and excluded from
	// replay later, with a diagnostic. A guessed date would corrupt the
	// replay ordering silently, which is worse.
	var tradeDate time.Time
	if data.ExecutedAt != nil && *data.ExecutedAt != "" {
		tradeDate = parseDate(*data.ExecutedAt)
		if tradeDate.IsZero() {
			c.log.WithFields(logrus.Fields{
				"order_id":    data.OrderID,
				"executed_at": *data.ExecutedAt,
			}).Warn("unparseable trade date, operation will be excluded from replay")
		}
	}

	return &models.Operation{
		AccountID: data.AccountID,
		OrderID:   data.OrderID,
		Source:    event.Source,
		Symbol:    data.Symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		TradeDate: tradeDate,
		Sequence:  data.Sequence,
	}, nil
}

func (c *Consumer) handleCorporateEvent(value []byte) error {
	var event models.CorporateEventMessage
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal corporate event message: %w", err)
	}
	data := event.Data

	// Ratio validation is fatal at registration time: a malformed ratio is
	// broken configuration, not something replay should work around.
	num, den, err := models.ParseRatio(data.Ratio)
	if err != nil {
		return fmt.Errorf("rejecting corporate event %s: %w", data.EventID, err)
	}

	exDate := parseDate(data.ExDate)
	if exDate.IsZero() {
		return fmt.Errorf("rejecting corporate event %s: invalid ex date %q", data.EventID, data.ExDate)
	}

	unitValue := decimal.Zero
	if data.UnitValue != "" {
		unitValue, err = decimal.NewFromString(data.UnitValue)
		if err != nil {
			return fmt.Errorf("rejecting corporate event %s: invalid unit value %q", data.EventID, data.UnitValue)
		}
	}

	e := &models.CorporateEvent{
		EventID:          data.EventID,
		AccountID:        data.AccountID,
		Symbol:           data.Symbol,
		Kind:             data.Kind,
		ExDate:           exDate,
		RatioNumerator:   num,
		RatioDenominator: den,
		PreviousSymbol:   data.PreviousSymbol,
		UnitValue:        unitValue,
	}

	if err := c.repo.CreateCorporateEvent(e); err != nil {
		return fmt.Errorf("failed to save corporate event: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"event_id": e.EventID,
		"kind":     e.Kind,
		"symbol":   e.Symbol,
	}).Info("saved corporate event")

	return nil
}

func (c *Consumer) handleRanking(value []byte) error {
	var event models.RankingMessage
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal ranking message: %w", err)
	}
	if event.StrategyID == "" {
		return fmt.Errorf("ranking message missing strategy id")
	}

	candidates := make([]*models.RankedCandidate, 0, len(event.Candidates))
	for _, rc := range event.Candidates {
		candidates = append(candidates, &models.RankedCandidate{
			Symbol: rc.Symbol,
			Rank:   rc.Rank,
			Name:   rc.Name,
		})
	}

	if err := c.repo.ReplaceRankedUniverse(event.StrategyID, candidates); err != nil {
		return fmt.Errorf("failed to replace ranked universe: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"strategy_id": event.StrategyID,
		"candidates":  len(candidates),
	}).Info("refreshed ranking universe")

	return nil
}

func (c *Consumer) handleQuote(value []byte) error {
	var event models.QuoteMessage
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal quote message: %w", err)
	}
	data := event.Data

	if data.Symbol == "" {
		return fmt.Errorf("quote message missing symbol")
	}
	price, err := decimal.NewFromString(data.Price)
	if err != nil {
		return fmt.Errorf("invalid quote price %q for %s: %w", data.Price, data.Symbol, err)
	}
	if price.Sign() <= 0 {
		return fmt.Errorf("invalid quote price %q for %s: must be positive", data.Price, data.Symbol)
	}

	quotedAt := parseDate(data.QuotedAt)
	if quotedAt.IsZero() {
		quotedAt = event.Timestamp
	}

	q := &models.Quote{Symbol: data.Symbol, Price: price, QuotedAt: quotedAt}
	if err := c.repo.UpsertQuote(q); err != nil {
		return fmt.Errorf("failed to upsert quote: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"symbol": q.Symbol,
		"price":  q.Price,
	}).Debug("refreshed quote")

	return nil
}

func parseDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
