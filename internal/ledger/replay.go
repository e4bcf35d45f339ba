package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/trogers1052/portfolio-advisor/internal/models"
)

// lot is a single purchase, kept for FIFO cost basis.
type lot struct {
	Date     time.Time
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// tickerState accumulates one ticker's position while folding the stream.
type tickerState struct {
	qty      decimal.Decimal
	avg      decimal.Decimal
	invested decimal.Decimal
	realized decimal.Decimal
	lots     []lot
}

func newTickerState() *tickerState {
	return &tickerState{
		qty:      decimal.Zero,
		avg:      decimal.Zero,
		invested: decimal.Zero,
		realized: decimal.Zero,
	}
}

func (s *tickerState) summary(symbol string) models.PositionSummary {
	return models.PositionSummary{
		Symbol:         symbol,
		Quantity:       s.qty,
		AveragePrice:   s.avg,
		InvestedValue:  s.invested,
		RealizedProfit: s.realized,
	}
}

func (s *tickerState) setSummary(sum models.PositionSummary) {
	s.qty = sum.Quantity
	s.avg = sum.AveragePrice
	s.invested = sum.InvestedValue
}

// Engine replays an account's operation history. Replay is a pure fold over
// the sorted stream: it starts from an empty map on every call and shares no
// state between calls.
type Engine struct {
	method CostBasisMethod
	log    *logrus.Logger
}

// NewEngine creates a replay engine with the given cost basis method.
func NewEngine(method CostBasisMethod, log *logrus.Logger) *Engine {
	return &Engine{method: method, log: log}
}

// Replay folds operations and corporate events into per-ticker position
// summaries. It returns the summaries along with the event IDs that were
// consumed, so the caller can mark them applied on commit. Events whose
// ex-date falls after the last trade for a still-held ticker are applied in
// a final pass.
func (e *Engine) Replay(ops []models.Operation, events []models.CorporateEvent) (map[string]models.PositionSummary, []string) {
	stream := BuildStream(ops, events, e.log)
	states := make(map[string]*tickerState)
	consumed := make(map[string]bool)
	var appliedIDs []string

	apply := func(ev *models.CorporateEvent) {
		if consumed[ev.EventID] {
			return
		}
		consumed[ev.EventID] = true
		appliedIDs = append(appliedIDs, ev.EventID)
		e.applyEvent(states, ev)
	}

	for i := range stream.Operations {
		op := &stream.Operations[i]
		for _, ev := range stream.Pending[op.Symbol] {
			if consumed[ev.EventID] || ev.ExDate.After(op.TradeDate) {
				continue
			}
			apply(ev)
		}
		e.applyOperation(states, op)
	}

	// Events discovered after the investor's last recorded trade still apply
	// as long as the ticker is held.
	for symbol, list := range stream.Pending {
		st, ok := states[symbol]
		if !ok || st.qty.LessThanOrEqual(decimal.Zero) {
			continue
		}
		for _, ev := range list {
			apply(ev)
		}
	}

	result := make(map[string]models.PositionSummary, len(states))
	for symbol, st := range states {
		result[symbol] = st.summary(symbol)
	}
	return result, appliedIDs
}

func (e *Engine) applyOperation(states map[string]*tickerState, op *models.Operation) {
	st, ok := states[op.Symbol]
	if !ok {
		st = newTickerState()
		states[op.Symbol] = st
	}

	switch op.Side {
	case models.SideBuy:
		e.applyBuy(st, op)
	case models.SideSell:
		e.applySell(st, op)
	default:
		e.log.WithFields(logrus.Fields{
			"symbol": op.Symbol,
			"side":   op.Side,
		}).Warn("skipping operation with unknown side")
	}
}

func (e *Engine) applyBuy(st *tickerState, op *models.Operation) {
	q, p := op.Quantity, op.Price

	if st.qty.Sign() < 0 {
		// Covering a short. Profit is taken against the prevailing short
		// average; any excess flips the position long at the trade price.
		// This mirrors the weighted-short bookkeeping of the sell side and
		// is an approximation, not a full short-accounting model.
		short := st.qty.Neg()
		cover := decimal.Min(q, short)
		st.realized = st.realized.Add(st.avg.Sub(p).Mul(cover))
		st.qty = st.qty.Add(q)
		switch st.qty.Sign() {
		case 1:
			st.avg = p
			st.invested = st.qty.Mul(p)
			if e.method == FIFO {
				st.lots = []lot{{Date: op.TradeDate, Quantity: st.qty, Price: p}}
			}
		case 0:
			st.avg = decimal.Zero
			st.invested = decimal.Zero
			st.lots = nil
		}
		return
	}

	newQty := st.qty.Add(q)
	st.invested = st.invested.Add(q.Mul(p))
	st.avg = st.invested.Div(newQty)
	st.qty = newQty
	if e.method == FIFO {
		st.lots = append(st.lots, lot{Date: op.TradeDate, Quantity: q, Price: p})
	}
}

func (e *Engine) applySell(st *tickerState, op *models.Operation) {
	switch e.method {
	case FIFO:
		e.sellFIFO(st, op)
	default:
		e.sellAverage(st, op)
	}
}

func (e *Engine) sellAverage(st *tickerState, op *models.Operation) {
	q, p := op.Quantity, op.Price

	if st.qty.Sign() <= 0 {
		e.extendShort(st, q, p)
		return
	}

	sellQty := decimal.Min(q, st.qty)
	st.realized = st.realized.Add(p.Sub(st.avg).Mul(sellQty))
	st.invested = st.invested.Mul(st.qty.Sub(sellQty)).Div(st.qty)
	st.qty = st.qty.Sub(sellQty)
	if st.qty.Sign() == 0 {
		st.avg = decimal.Zero
		st.invested = decimal.Zero
	}

	if excess := q.Sub(sellQty); excess.Sign() > 0 {
		st.qty = excess.Neg()
		st.avg = p
		st.invested = decimal.Zero
	}
}

func (e *Engine) sellFIFO(st *tickerState, op *models.Operation) {
	q, p := op.Quantity, op.Price

	if st.qty.Sign() <= 0 {
		e.extendShort(st, q, p)
		return
	}

	remaining := q
	for len(st.lots) > 0 && remaining.Sign() > 0 {
		l := &st.lots[0]
		take := decimal.Min(l.Quantity, remaining)
		st.realized = st.realized.Add(p.Sub(l.Price).Mul(take))
		st.invested = st.invested.Sub(l.Price.Mul(take))
		l.Quantity = l.Quantity.Sub(take)
		remaining = remaining.Sub(take)
		if l.Quantity.Sign() == 0 {
			st.lots = st.lots[1:]
		}
	}

	st.qty = st.qty.Sub(q.Sub(remaining))
	if st.qty.Sign() > 0 {
		st.avg = st.invested.Div(st.qty)
	} else {
		st.avg = decimal.Zero
		st.invested = decimal.Zero
	}

	if remaining.Sign() > 0 {
		e.extendShort(st, remaining, p)
	}
}

// extendShort grows (or opens) a short position, recomputing the short
// average as the weighted mean of all short fills. Like the cover path this
// is approximate business logic carried over as-is, not a verified
// short-accounting model.
func (e *Engine) extendShort(st *tickerState, q, p decimal.Decimal) {
	short := st.qty.Neg()
	newShort := short.Add(q)
	st.avg = short.Mul(st.avg).Add(q.Mul(p)).Div(newShort)
	st.qty = newShort.Neg()
	st.invested = decimal.Zero
	st.lots = nil
}

// applyEvent routes one corporate event into the running state. Numeric
// events adjust a single ticker; structural events move a whole position
// (and its lots) under a new symbol.
func (e *Engine) applyEvent(states map[string]*tickerState, ev *models.CorporateEvent) {
	switch ev.Kind {
	case models.EventKindTickerChange, models.EventKindFundConversion:
		e.applyStructural(states, ev)
		return
	}

	st, ok := states[ev.Symbol]
	if !ok {
		return
	}
	sum := ApplyEvent(st.summary(ev.Symbol), ev)
	st.setSummary(sum)
	e.adjustLots(st, ev)
}

// adjustLots keeps the FIFO queue consistent with a numeric event. Splits
// rescale every lot exactly; groupings and bonuses reset lot granularity to
// a single lot at the post-event average, since their integer flooring has
// no faithful per-lot distribution.
func (e *Engine) adjustLots(st *tickerState, ev *models.CorporateEvent) {
	if e.method != FIFO || len(st.lots) == 0 {
		return
	}
	if st.qty.Sign() <= 0 {
		st.lots = nil
		return
	}
	if ev.Kind == models.EventKindSplit {
		den := decimal.NewFromInt(ev.RatioDenominator)
		for i := range st.lots {
			st.lots[i].Quantity = st.lots[i].Quantity.Mul(den)
			st.lots[i].Price = st.lots[i].Price.Div(den)
		}
		return
	}
	st.lots = []lot{{Date: ev.ExDate, Quantity: st.qty, Price: st.avg}}
}

func (e *Engine) applyStructural(states map[string]*tickerState, ev *models.CorporateEvent) {
	old, ok := states[ev.PreviousSymbol]
	if !ok || old.qty.LessThanOrEqual(decimal.Zero) {
		return
	}
	delete(states, ev.PreviousSymbol)

	if ev.Kind == models.EventKindFundConversion {
		// Quantity rescales by the stated ratio; total invested value is
		// preserved, so the average moves inversely.
		num := decimal.NewFromInt(ev.RatioNumerator)
		den := decimal.NewFromInt(ev.RatioDenominator)
		old.qty = old.qty.Mul(num).Div(den).Floor()
		if old.qty.Sign() <= 0 {
			old.qty = decimal.Zero
			old.avg = decimal.Zero
			old.invested = decimal.Zero
		} else {
			old.avg = old.invested.Div(old.qty)
		}
		old.lots = nil
		if old.qty.Sign() > 0 && e.method == FIFO {
			old.lots = []lot{{Date: ev.ExDate, Quantity: old.qty, Price: old.avg}}
		}
	}

	dst, ok := states[ev.Symbol]
	if !ok {
		states[ev.Symbol] = old
		return
	}

	dst.qty = dst.qty.Add(old.qty)
	dst.invested = dst.invested.Add(old.invested)
	dst.realized = dst.realized.Add(old.realized)
	if dst.qty.Sign() > 0 {
		dst.avg = dst.invested.Div(dst.qty)
	}
	if e.method == FIFO {
		dst.lots = append(dst.lots, old.lots...)
		sort.SliceStable(dst.lots, func(i, j int) bool {
			return dst.lots[i].Date.Before(dst.lots[j].Date)
		})
	}
}
