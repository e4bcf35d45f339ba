package kafka

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	segkafka "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/portfolio-advisor/internal/models"
)

// MockRepository implements the Repository interface for testing
type MockRepository struct {
	operations map[string]*models.Operation     // key: orderID+source
	events     map[string]*models.CorporateEvent // key: eventID
	universes  map[string][]*models.RankedCandidate
	quotes     map[string]*models.Quote

	nextOperationID int
	nextEventID     int

	CreateOperationCalls      int
	CreateCorporateEventCalls int
	ReplaceUniverseCalls      int
	UpsertQuoteCalls          int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		operations:      make(map[string]*models.Operation),
		events:          make(map[string]*models.CorporateEvent),
		universes:       make(map[string][]*models.RankedCandidate),
		quotes:          make(map[string]*models.Quote),
		nextOperationID: 1,
		nextEventID:     1,
	}
}

func (m *MockRepository) CreateOperation(o *models.Operation) error {
	m.CreateOperationCalls++
	o.ID = m.nextOperationID
	m.nextOperationID++
	m.operations[o.OrderID+":"+o.Source] = o
	return nil
}

func (m *MockRepository) OperationExistsByOrderID(orderID, source string) (bool, error) {
	_, exists := m.operations[orderID+":"+source]
	return exists, nil
}

func (m *MockRepository) CreateCorporateEvent(e *models.CorporateEvent) error {
	m.CreateCorporateEventCalls++
	if _, exists := m.events[e.EventID]; exists {
		return nil // idempotent, like the ON CONFLICT DO NOTHING insert
	}
	e.ID = m.nextEventID
	m.nextEventID++
	m.events[e.EventID] = e
	return nil
}

func (m *MockRepository) ReplaceRankedUniverse(strategyID string, candidates []*models.RankedCandidate) error {
	m.ReplaceUniverseCalls++
	m.universes[strategyID] = candidates
	return nil
}

func (m *MockRepository) UpsertQuote(q *models.Quote) error {
	m.UpsertQuoteCalls++
	m.quotes[q.Symbol] = q
	return nil
}

func testConsumer(repo Repository) *Consumer {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Consumer{repo: repo, log: log}
}

func tradeMessage(orderID, symbol, side, quantity, price, executedAt string) []byte {
	msg := models.TradeMessage{
		EventType: models.EventTypeTradeExecuted,
		Source:    "broker-x",
		Data: models.TradeMessageData{
			OrderID:   orderID,
			AccountID: "acct-1",
			Symbol:    symbol,
			Side:      side,
			Quantity:  quantity,
			Price:     price,
		},
		Timestamp: time.Now(),
	}
	if executedAt != "" {
		msg.Data.ExecutedAt = &executedAt
	}
	value, _ := json.Marshal(msg)
	return value
}

// TestProcessTradeMessage verifies a trade message lands as a stored
// operation with parsed decimals and a normalized side.
func TestProcessTradeMessage(t *testing.T) {
	repo := NewMockRepository()
	consumer := testConsumer(repo)

	value := tradeMessage("order-1", "AAPL", "buy", "10.5", "150.25", "2024-01-02T10:30:00Z")
	err := consumer.processMessage(segkafka.Message{Value: value})
	require.NoError(t, err)

	require.Equal(t, 1, repo.CreateOperationCalls)
	op := repo.operations["order-1:broker-x"]
	require.NotNil(t, op)
	assert.Equal(t, "AAPL", op.Symbol)
	assert.Equal(t, models.SideBuy, op.Side)
	assert.True(t, op.Quantity.Equal(decimal.NewFromFloat(10.5)))
	assert.True(t, op.Price.Equal(decimal.NewFromFloat(150.25)))
	assert.Equal(t, 2024, op.TradeDate.Year())
}

// TestDuplicateTradeSkipped verifies the (order id, source) idempotency
// check prevents a second insert.
func TestDuplicateTradeSkipped(t *testing.T) {
	repo := NewMockRepository()
	consumer := testConsumer(repo)

	value := tradeMessage("order-1", "AAPL", "BUY", "10", "150", "2024-01-02")
	require.NoError(t, consumer.processMessage(segkafka.Message{Value: value}))
	require.NoError(t, consumer.processMessage(segkafka.Message{Value: value}))

	assert.Equal(t, 1, repo.CreateOperationCalls)
}

// TestTradeRejectsBadQuantityAndSide verifies malformed trades error without
// touching the repository.
func TestTradeRejectsBadQuantityAndSide(t *testing.T) {
	tests := []struct {
		name  string
		value []byte
	}{
		{"zero quantity", tradeMessage("o1", "AAPL", "BUY", "0", "150", "2024-01-02")},
		{"negative quantity", tradeMessage("o2", "AAPL", "BUY", "-5", "150", "2024-01-02")},
		{"garbage quantity", tradeMessage("o3", "AAPL", "BUY", "ten", "150", "2024-01-02")},
		{"negative price", tradeMessage("o4", "AAPL", "BUY", "10", "-1", "2024-01-02")},
		{"unknown side", tradeMessage("o5", "AAPL", "HOLD", "10", "150", "2024-01-02")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockRepository()
			consumer := testConsumer(repo)

			err := consumer.processMessage(segkafka.Message{Value: tt.value})
			assert.Error(t, err)
			assert.Equal(t, 0, repo.CreateOperationCalls)
		})
	}
}

// TestTradeWithUnparseableDateStoredZero verifies a bad execution date does
// not reject the trade; it is stored with a zero date for later exclusion.
func TestTradeWithUnparseableDateStoredZero(t *testing.T) {
	repo := NewMockRepository()
	consumer := testConsumer(repo)

	value := tradeMessage("order-1", "AAPL", "SELL", "10", "150", "02/01/2024")
	require.NoError(t, consumer.processMessage(segkafka.Message{Value: value}))

	op := repo.operations["order-1:broker-x"]
	require.NotNil(t, op)
	assert.True(t, op.TradeDate.IsZero())
}

func corporateEventMessage(eventID, symbol, kind, ratio, exDate string) []byte {
	msg := models.CorporateEventMessage{
		EventType: models.EventTypeCorporateEvent,
		Data: models.CorporateEventMessageData{
			EventID:   eventID,
			AccountID: "acct-1",
			Symbol:    symbol,
			Kind:      kind,
			ExDate:    exDate,
			Ratio:     ratio,
		},
		Timestamp: time.Now(),
	}
	value, _ := json.Marshal(msg)
	return value
}

// TestProcessCorporateEventMessage verifies ratio parsing and storage.
func TestProcessCorporateEventMessage(t *testing.T) {
	repo := NewMockRepository()
	consumer := testConsumer(repo)

	value := corporateEventMessage("evt-1", "HGLG11", models.EventKindGrouping, "10:1", "2024-03-15")
	require.NoError(t, consumer.processMessage(segkafka.Message{Value: value}))

	e := repo.events["evt-1"]
	require.NotNil(t, e)
	assert.Equal(t, models.EventKindGrouping, e.Kind)
	assert.Equal(t, int64(10), e.RatioNumerator)
	assert.Equal(t, int64(1), e.RatioDenominator)
	assert.False(t, e.Applied)
}

// TestCorporateEventRejectsMalformedRatio verifies registration fails fast
// on a ratio that cannot be parsed.
func TestCorporateEventRejectsMalformedRatio(t *testing.T) {
	tests := []string{"10", "10:0", "-1:2", "a:b", ""}

	for _, ratio := range tests {
		repo := NewMockRepository()
		consumer := testConsumer(repo)

		value := corporateEventMessage("evt-1", "HGLG11", models.EventKindGrouping, ratio, "2024-03-15")
		err := consumer.processMessage(segkafka.Message{Value: value})
		assert.Error(t, err, "ratio %q must be rejected", ratio)
		assert.Equal(t, 0, repo.CreateCorporateEventCalls)
	}
}

// TestCorporateEventRejectsBadExDate verifies an unparseable ex date fails
// registration, unlike trade dates.
func TestCorporateEventRejectsBadExDate(t *testing.T) {
	repo := NewMockRepository()
	consumer := testConsumer(repo)

	value := corporateEventMessage("evt-1", "HGLG11", models.EventKindSplit, "1:2", "15/03/2024")
	err := consumer.processMessage(segkafka.Message{Value: value})
	assert.Error(t, err)
	assert.Equal(t, 0, repo.CreateCorporateEventCalls)
}

// TestProcessRankingMessage verifies a refresh replaces the strategy's
// universe wholesale.
func TestProcessRankingMessage(t *testing.T) {
	repo := NewMockRepository()
	consumer := testConsumer(repo)

	msg := models.RankingMessage{
		EventType:  models.EventTypeRankingRefreshed,
		StrategyID: "magic-formula",
		Candidates: []models.RankingCandidate{
			{Symbol: "AAPL", Rank: 1},
			{Symbol: "MSFT", Rank: 2},
		},
	}
	value, _ := json.Marshal(msg)
	require.NoError(t, consumer.processMessage(segkafka.Message{Value: value}))

	universe := repo.universes["magic-formula"]
	require.Len(t, universe, 2)
	assert.Equal(t, "AAPL", universe[0].Symbol)
	assert.Equal(t, 1, universe[0].Rank)
}

// TestRankingMessageRequiresStrategyID verifies a refresh without a strategy
// id is rejected.
func TestRankingMessageRequiresStrategyID(t *testing.T) {
	repo := NewMockRepository()
	consumer := testConsumer(repo)

	msg := models.RankingMessage{EventType: models.EventTypeRankingRefreshed}
	value, _ := json.Marshal(msg)

	err := consumer.processMessage(segkafka.Message{Value: value})
	assert.Error(t, err)
	assert.Equal(t, 0, repo.ReplaceUniverseCalls)
}

// TestProcessQuoteMessage verifies a price update lands as an upserted
// quote.
func TestProcessQuoteMessage(t *testing.T) {
	repo := NewMockRepository()
	consumer := testConsumer(repo)

	msg := models.QuoteMessage{
		EventType: models.EventTypeQuoteUpdated,
		Data: models.QuoteMessageData{
			Symbol:   "AAPL",
			Price:    "150.25",
			QuotedAt: "2024-06-10T17:00:00Z",
		},
	}
	value, _ := json.Marshal(msg)
	require.NoError(t, consumer.processMessage(segkafka.Message{Value: value}))

	q := repo.quotes["AAPL"]
	require.NotNil(t, q)
	assert.True(t, q.Price.Equal(decimal.NewFromFloat(150.25)))
	assert.Equal(t, 2024, q.QuotedAt.Year())
}

// TestQuoteMessageRejectsBadPrice verifies non-positive or garbage prices
// never reach the store.
func TestQuoteMessageRejectsBadPrice(t *testing.T) {
	for _, price := range []string{"0", "-1", "cheap", ""} {
		repo := NewMockRepository()
		consumer := testConsumer(repo)

		msg := models.QuoteMessage{
			EventType: models.EventTypeQuoteUpdated,
			Data:      models.QuoteMessageData{Symbol: "AAPL", Price: price},
		}
		value, _ := json.Marshal(msg)

		err := consumer.processMessage(segkafka.Message{Value: value})
		assert.Error(t, err, "price %q must be rejected", price)
		assert.Equal(t, 0, repo.UpsertQuoteCalls)
	}
}

// TestUnknownEventTypeIgnored verifies unrecognized event types are skipped
// without error.
func TestUnknownEventTypeIgnored(t *testing.T) {
	repo := NewMockRepository()
	consumer := testConsumer(repo)

	err := consumer.processMessage(segkafka.Message{Value: []byte(`{"event_type":"SOMETHING_ELSE"}`)})
	assert.NoError(t, err)
	assert.Equal(t, 0, repo.CreateOperationCalls)
}
