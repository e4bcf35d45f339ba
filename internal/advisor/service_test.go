package advisor

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/portfolio-advisor/internal/ledger"
	"github.com/trogers1052/portfolio-advisor/internal/models"
)

// MockStore implements the Store interface for testing
type MockStore struct {
	operations []models.Operation
	events     []models.CorporateEvent
	positions  []*models.Position
	universe   []models.RankedCandidate
	tree       []*models.AllocationNode
	monthSales decimal.Decimal

	savedRecommendations []*models.Recommendation
	relabels             [][2]string

	ReplaceAllPositionsCalls int
	lastReplacedPositions    []*models.Position
	lastAppliedEventIDs      []string
}

func NewMockStore() *MockStore {
	return &MockStore{monthSales: decimal.Zero}
}

func (m *MockStore) ListOperations(accountID string) ([]models.Operation, error) {
	return m.operations, nil
}

func (m *MockStore) ListEvents(accountID string) ([]models.CorporateEvent, error) {
	return m.events, nil
}

func (m *MockStore) RelabelOperations(accountID, oldSymbol, newSymbol string) error {
	m.relabels = append(m.relabels, [2]string{oldSymbol, newSymbol})
	return nil
}

func (m *MockStore) ReplaceAllPositions(accountID string, positions []*models.Position, appliedEventIDs []string) error {
	m.ReplaceAllPositionsCalls++
	m.lastReplacedPositions = positions
	m.lastAppliedEventIDs = appliedEventIDs
	m.positions = positions
	return nil
}

func (m *MockStore) GetPositionsByAccount(accountID string) ([]*models.Position, error) {
	return m.positions, nil
}

func (m *MockStore) CurrentUniverse(strategyID string) ([]models.RankedCandidate, error) {
	return m.universe, nil
}

func (m *MockStore) TargetTree(accountID string) ([]*models.AllocationNode, error) {
	return m.tree, nil
}

func (m *MockStore) SaveRecommendation(r *models.Recommendation) error {
	r.ID = len(m.savedRecommendations) + 1
	m.savedRecommendations = append(m.savedRecommendations, r)
	return nil
}

func (m *MockStore) MonthSalesTotal(accountID string, month time.Time) (decimal.Decimal, error) {
	return m.monthSales, nil
}

type stubPrices map[string]float64

func (s stubPrices) CurrentPrice(_ context.Context, symbol string) (decimal.Decimal, time.Time, bool) {
	p, ok := s[symbol]
	if !ok {
		return decimal.Zero, time.Time{}, false
	}
	return decimal.NewFromFloat(p), time.Now(), true
}

type capturePublisher struct {
	published []*models.Recommendation
}

func (c *capturePublisher) PublishRecommendationCreated(_ context.Context, rec *models.Recommendation) error {
	c.published = append(c.published, rec)
	return nil
}

func testService(store *MockStore, prices stubPrices, pub Publisher) *Service {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewService(store, prices, pub, Config{
		StrategyID:        "magic-formula",
		RankThreshold:     30,
		MaxHoldings:       20,
		MonthlySalesLimit: decimal.NewFromInt(20000),
		MaterialityFloor:  decimal.NewFromInt(100),
		CostBasisMethod:   ledger.AverageCost,
	}, log)
}

var tradeDate = time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

func storeOp(orderID, symbol, side string, qty, price float64, day int) models.Operation {
	return models.Operation{
		AccountID: "acct-1",
		OrderID:   orderID,
		Source:    "broker-x",
		Symbol:    symbol,
		Side:      side,
		Quantity:  decimal.NewFromFloat(qty),
		Price:     decimal.NewFromFloat(price),
		TradeDate: tradeDate.AddDate(0, 0, day),
	}
}

// TestRebuildReplacesPositions verifies a rebuild derives positions from the
// operation history and commits them through ReplaceAllPositions.
func TestRebuildReplacesPositions(t *testing.T) {
	store := NewMockStore()
	store.operations = []models.Operation{
		storeOp("o1", "AAPL", models.SideBuy, 10, 100, 0),
		storeOp("o2", "AAPL", models.SideBuy, 10, 120, 1),
		storeOp("o3", "MSFT", models.SideBuy, 5, 200, 2),
	}
	svc := testService(store, stubPrices{"AAPL": 150}, nil)

	positions, err := svc.Rebuild(context.Background(), "acct-1")
	require.NoError(t, err)

	require.Equal(t, 1, store.ReplaceAllPositionsCalls)
	require.Len(t, positions, 2)

	bySymbol := map[string]*models.Position{}
	for _, p := range positions {
		bySymbol[p.Symbol] = p
	}
	aapl := bySymbol["AAPL"]
	require.NotNil(t, aapl)
	assert.True(t, aapl.Quantity.Equal(decimal.NewFromInt(20)))
	assert.True(t, aapl.AveragePrice.Equal(decimal.NewFromInt(110)))
	assert.True(t, aapl.CurrentPrice.Equal(decimal.NewFromInt(150)), "quoted symbol carries its price")
	assert.True(t, bySymbol["MSFT"].CurrentPrice.IsZero(), "unquoted symbol carries no price")
}

// TestRebuildMarksConsumedEvents verifies applied event IDs flow into the
// position replacement.
func TestRebuildMarksConsumedEvents(t *testing.T) {
	store := NewMockStore()
	store.operations = []models.Operation{
		storeOp("o1", "HGLG11", models.SideBuy, 100, 1.50, 0),
	}
	store.events = []models.CorporateEvent{
		{
			EventID:          "evt-1",
			AccountID:        "acct-1",
			Symbol:           "HGLG11",
			Kind:             models.EventKindGrouping,
			ExDate:           tradeDate.AddDate(0, 0, 30),
			RatioNumerator:   10,
			RatioDenominator: 1,
		},
	}
	svc := testService(store, stubPrices{}, nil)

	positions, err := svc.Rebuild(context.Background(), "acct-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"evt-1"}, store.lastAppliedEventIDs)
	require.Len(t, positions, 1)
	assert.True(t, positions[0].Quantity.Equal(decimal.NewFromInt(10)))
}

// TestRebuildRelabelsOnFirstStructuralApply verifies a newly consumed ticker
// change rewrites the stored history, and an already-applied one is skipped
// entirely.
func TestRebuildRelabelsOnFirstStructuralApply(t *testing.T) {
	store := NewMockStore()
	store.operations = []models.Operation{
		storeOp("o1", "OLD4", models.SideBuy, 10, 20, 0),
	}
	store.events = []models.CorporateEvent{
		{
			EventID:          "tc-1",
			AccountID:        "acct-1",
			Symbol:           "NEW4",
			Kind:             models.EventKindTickerChange,
			ExDate:           tradeDate.AddDate(0, 0, 5),
			RatioNumerator:   1,
			RatioDenominator: 1,
			PreviousSymbol:   "OLD4",
		},
	}
	svc := testService(store, stubPrices{}, nil)

	_, err := svc.Rebuild(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, store.relabels, 1)
	assert.Equal(t, [2]string{"OLD4", "NEW4"}, store.relabels[0])

	// Second rebuild with the event now applied and history rewritten.
	store.events[0].Applied = true
	store.operations[0].Symbol = "NEW4"
	store.relabels = nil

	positions, err := svc.Rebuild(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Empty(t, store.relabels, "applied structural event must not relabel again")
	assert.Empty(t, store.lastAppliedEventIDs)
	require.Len(t, positions, 1)
	assert.Equal(t, "NEW4", positions[0].Symbol)
}

// TestAdviseWithoutStrategyReturnsEmpty verifies an account with no target
// tree gets an empty recommendation that is not persisted.
func TestAdviseWithoutStrategyReturnsEmpty(t *testing.T) {
	store := NewMockStore()
	svc := testService(store, stubPrices{}, nil)

	rec, err := svc.Advise(context.Background(), "acct-1", time.Now())
	require.NoError(t, err)

	assert.Empty(t, rec.Actions)
	assert.True(t, rec.TotalSalesValue.IsZero())
	assert.Empty(t, store.savedRecommendations, "empty recommendation must not be saved")
}

// TestAdviseSavesAndPublishes verifies a full cycle persists the
// recommendation and announces it.
func TestAdviseSavesAndPublishes(t *testing.T) {
	store := NewMockStore()
	store.positions = []*models.Position{
		{AccountID: "acct-1", Symbol: "BAD3", Quantity: decimal.NewFromInt(10), AveragePrice: decimal.NewFromInt(100)},
	}
	store.universe = []models.RankedCandidate{
		{Symbol: "BAD3", Rank: 99},
		{Symbol: "GOOD3", Rank: 1},
	}
	store.tree = []*models.AllocationNode{
		{Level: models.AllocationLevelType, Name: "Stocks", TargetPercent: decimal.NewFromInt(100)},
	}
	pub := &capturePublisher{}
	svc := testService(store, stubPrices{"BAD3": 100, "GOOD3": 50}, pub)

	rec, err := svc.Advise(context.Background(), "acct-1", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, store.savedRecommendations, 1)
	require.Len(t, pub.published, 1)
	assert.Equal(t, models.RecommendationPending, rec.Status)

	// BAD3 at rank 99 liquidates; GOOD3 at rank 1 opens.
	var sold, bought bool
	for _, a := range rec.Actions {
		if a.Kind == models.ActionSell && a.Symbol == "BAD3" {
			sold = true
		}
		if a.Kind == models.ActionBuy && a.Symbol == "GOOD3" {
			bought = true
		}
	}
	assert.True(t, sold)
	assert.True(t, bought)
	assert.True(t, rec.TotalSalesValue.Equal(decimal.NewFromInt(1000)))
}

// TestAdviseRemainingBudgetReflectsMonthSales verifies prior sales in the
// month shrink the remaining ceiling.
func TestAdviseRemainingBudgetReflectsMonthSales(t *testing.T) {
	store := NewMockStore()
	store.positions = []*models.Position{
		{AccountID: "acct-1", Symbol: "BAD3", Quantity: decimal.NewFromInt(100), AveragePrice: decimal.NewFromInt(100)},
	}
	store.universe = []models.RankedCandidate{{Symbol: "BAD3", Rank: 99}}
	store.tree = []*models.AllocationNode{
		{Level: models.AllocationLevelType, Name: "Stocks", TargetPercent: decimal.NewFromInt(100)},
	}
	// 19,500 of the 20,000 ceiling already spent this month.
	store.monthSales = decimal.NewFromInt(19500)
	svc := testService(store, stubPrices{"BAD3": 100}, nil)

	rec, err := svc.Advise(context.Background(), "acct-1", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.True(t, rec.SalesLimitReached)
	assert.True(t, rec.TotalSalesValue.LessThanOrEqual(decimal.NewFromInt(500)),
		"sales %s must fit the remaining budget", rec.TotalSalesValue)
}
