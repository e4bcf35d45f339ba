package advisor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/trogers1052/portfolio-advisor/internal/allocation"
	"github.com/trogers1052/portfolio-advisor/internal/ledger"
	"github.com/trogers1052/portfolio-advisor/internal/models"
	"github.com/trogers1052/portfolio-advisor/internal/rebalance"
)

// Store defines the database operations the advisor needs
type Store interface {
	ListOperations(accountID string) ([]models.Operation, error)
	ListEvents(accountID string) ([]models.CorporateEvent, error)
	RelabelOperations(accountID, oldSymbol, newSymbol string) error
	ReplaceAllPositions(accountID string, positions []*models.Position, appliedEventIDs []string) error
	GetPositionsByAccount(accountID string) ([]*models.Position, error)
	CurrentUniverse(strategyID string) ([]models.RankedCandidate, error)
	TargetTree(accountID string) ([]*models.AllocationNode, error)
	SaveRecommendation(r *models.Recommendation) error
	MonthSalesTotal(accountID string, month time.Time) (decimal.Decimal, error)
}

// Publisher announces persisted recommendations. May be nil.
type Publisher interface {
	PublishRecommendationCreated(ctx context.Context, rec *models.Recommendation) error
}

// Config holds the advisor's rebalancing knobs
type Config struct {
	StrategyID        string
	RankThreshold     int
	MaxHoldings       int
	MonthlySalesLimit decimal.Decimal
	MaterialityFloor  decimal.Decimal
	CostBasisMethod   ledger.CostBasisMethod
}

// Service orchestrates ledger rebuilds and recommendation runs. Rebuilds for
// the same account are serialized with a per-account mutex because each one
// fully replaces the derived positions; reads go against the last committed
// snapshot and need no coordination.
type Service struct {
	store     Store
	prices    allocation.PriceSource
	calc      *allocation.Calculator
	publisher Publisher
	cfg       Config
	log       *logrus.Logger

	mu       sync.Mutex
	accounts map[string]*sync.Mutex
}

// NewService creates an advisor service
func NewService(store Store, prices allocation.PriceSource, publisher Publisher, cfg Config, log *logrus.Logger) *Service {
	return &Service{
		store:     store,
		prices:    prices,
		calc:      allocation.NewCalculator(prices, log),
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		accounts:  make(map[string]*sync.Mutex),
	}
}

func (s *Service) accountLock(accountID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.accounts[accountID]
	if !ok {
		lock = &sync.Mutex{}
		s.accounts[accountID] = lock
	}
	return lock
}

// Rebuild replays an account's full operation history and atomically
// replaces its derived positions. Structural events applied by a committed
// rebuild also rewrite the stored operation history, so the applied flag
// keeps them from relabeling twice.
func (s *Service) Rebuild(ctx context.Context, accountID string) ([]*models.Position, error) {
	lock := s.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	ops, err := s.store.ListOperations(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load operations: %w", err)
	}
	events, err := s.store.ListEvents(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load corporate events: %w", err)
	}

	// Numeric events always replay: their effect lives only in the derived
	// state being rebuilt. Structural events whose history rewrite already
	// committed are honored as applied and skipped.
	replayable := make([]models.CorporateEvent, 0, len(events))
	byEventID := make(map[string]*models.CorporateEvent, len(events))
	for i := range events {
		e := events[i]
		if e.Applied && isStructural(e.Kind) {
			continue
		}
		replayable = append(replayable, e)
		byEventID[e.EventID] = &events[i]
	}

	engine := ledger.NewEngine(s.cfg.CostBasisMethod, s.log)
	summaries, appliedIDs := engine.Replay(ops, replayable)

	positions := make([]*models.Position, 0, len(summaries))
	for _, sum := range summaries {
		p := &models.Position{
			Symbol:         sum.Symbol,
			Quantity:       sum.Quantity,
			AveragePrice:   sum.AveragePrice,
			InvestedValue:  sum.InvestedValue,
			RealizedProfit: sum.RealizedProfit,
		}
		if price, _, ok := s.prices.CurrentPrice(ctx, sum.Symbol); ok {
			p.CurrentPrice = price
		}
		positions = append(positions, p)
	}

	if err := s.store.ReplaceAllPositions(accountID, positions, appliedIDs); err != nil {
		return nil, fmt.Errorf("failed to replace positions: %w", err)
	}

	for _, id := range appliedIDs {
		e, ok := byEventID[id]
		if !ok || !isStructural(e.Kind) || e.Applied {
			continue
		}
		if err := s.store.RelabelOperations(accountID, e.PreviousSymbol, e.Symbol); err != nil {
			// The rebuild itself committed; a failed relabel just means the
			// next replay applies the rename in memory again.
			s.log.WithError(err).WithFields(logrus.Fields{
				"event_id": id,
				"from":     e.PreviousSymbol,
				"to":       e.Symbol,
			}).Warn("failed to relabel operation history")
		}
	}

	s.log.WithFields(logrus.Fields{
		"account_id":     accountID,
		"positions":      len(positions),
		"applied_events": len(appliedIDs),
		"cost_basis":     s.cfg.CostBasisMethod.String(),
	}).Info("ledger rebuilt")

	return positions, nil
}

func isStructural(kind string) bool {
	return kind == models.EventKindTickerChange || kind == models.EventKindFundConversion
}

// Allocation returns the account's target tree with current values and
// percentages filled in, plus the total portfolio value.
func (s *Service) Allocation(ctx context.Context, accountID string) ([]*models.AllocationNode, decimal.Decimal, error) {
	positions, err := s.store.GetPositionsByAccount(accountID)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to load positions: %w", err)
	}
	tree, err := s.store.TargetTree(accountID)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to load allocation targets: %w", err)
	}

	summaries := make(map[string]models.PositionSummary, len(positions))
	for _, p := range positions {
		summaries[p.Symbol] = p.Summary()
	}
	total := s.calc.Compute(ctx, summaries, tree)
	return tree, total, nil
}

// Advise runs one recommendation cycle for an account against its last
// committed position snapshot. An account without a configured allocation
// strategy gets an empty recommendation, not an error.
func (s *Service) Advise(ctx context.Context, accountID string, date time.Time) (*models.Recommendation, error) {
	positions, err := s.store.GetPositionsByAccount(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}

	tree, err := s.store.TargetTree(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load allocation targets: %w", err)
	}
	if len(tree) == 0 {
		s.log.WithField("account_id", accountID).Info("no allocation strategy configured, returning empty recommendation")
		return &models.Recommendation{
			AccountID:       accountID,
			Date:            date,
			Status:          models.RecommendationPending,
			TotalSalesValue: decimal.Zero,
		}, nil
	}

	summaries := make(map[string]models.PositionSummary, len(positions))
	for _, p := range positions {
		summaries[p.Symbol] = p.Summary()
	}

	total := s.calc.Compute(ctx, summaries, tree)

	universe, err := s.store.CurrentUniverse(s.cfg.StrategyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ranking universe: %w", err)
	}

	soldThisMonth, err := s.store.MonthSalesTotal(accountID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to compute month sales: %w", err)
	}
	remaining := s.cfg.MonthlySalesLimit.Sub(soldThisMonth)
	if remaining.Sign() < 0 {
		remaining = decimal.Zero
	}

	vals, _ := s.calc.ValueAll(ctx, summaries)
	holdings := make([]rebalance.Holding, 0, len(vals))
	for _, v := range vals {
		holdings = append(holdings, rebalance.Holding{
			Symbol:   v.Symbol,
			Quantity: v.Quantity,
			Price:    v.Price,
			Value:    v.Value,
		})
	}
	// Map iteration order is random; keep runs deterministic.
	sort.Slice(holdings, func(i, j int) bool {
		return holdings[i].Symbol < holdings[j].Symbol
	})

	result := rebalance.Recommend(holdings, universe, rebalance.Params{
		RankThreshold:         s.cfg.RankThreshold,
		MaxHoldings:           s.cfg.MaxHoldings,
		RemainingMonthlyLimit: remaining,
		TargetTotalValue:      total,
	}, func(symbol string) (decimal.Decimal, bool) {
		price, _, ok := s.prices.CurrentPrice(ctx, symbol)
		return price, ok
	})

	if result.UniverseEmpty {
		s.log.WithField("account_id", accountID).Warn("ranking universe is empty, no actions recommended")
	}

	rec := rebalance.Assemble(accountID, date, tree, total, result, s.cfg.MaterialityFloor)

	if err := s.store.SaveRecommendation(&rec); err != nil {
		return nil, fmt.Errorf("failed to save recommendation: %w", err)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishRecommendationCreated(ctx, &rec); err != nil {
			s.log.WithError(err).Warn("failed to publish recommendation event")
		}
	}

	s.log.WithFields(logrus.Fields{
		"account_id":          accountID,
		"actions":             len(rec.Actions),
		"total_sales_value":   rec.TotalSalesValue,
		"sales_limit_reached": rec.SalesLimitReached,
	}).Info("recommendation assembled")

	return &rec, nil
}
