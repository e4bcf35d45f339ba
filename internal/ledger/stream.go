package ledger

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/trogers1052/portfolio-advisor/internal/models"
)

// Stream is the chronologically ordered input to a replay: operations sorted
// by (trade date, intraday sequence) plus per-ticker pending corporate
// events sorted by ex-date.
type Stream struct {
	Operations []models.Operation
	Pending    map[string][]*models.CorporateEvent
}

// BuildStream merges operations and corporate events into a replayable
// stream. Operations without a usable trade date are dropped with a warning;
// that is a local-recovery decision and never an error.
func BuildStream(ops []models.Operation, events []models.CorporateEvent, log *logrus.Logger) *Stream {
	sorted := make([]models.Operation, 0, len(ops))
	for _, op := range ops {
		if op.TradeDate.IsZero() {
			log.WithFields(logrus.Fields{
				"symbol":   op.Symbol,
				"order_id": op.OrderID,
			}).Warn("dropping operation with unparseable trade date")
			continue
		}
		sorted = append(sorted, op)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Before(&sorted[j])
	})

	pending := make(map[string][]*models.CorporateEvent)
	for i := range events {
		e := &events[i]
		// Structural events are keyed under the ticker whose position they
		// consume, which is the previous symbol.
		key := e.Symbol
		if e.Kind == models.EventKindTickerChange || e.Kind == models.EventKindFundConversion {
			key = e.PreviousSymbol
		}
		pending[key] = append(pending[key], e)
	}
	for _, list := range pending {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].ExDate.Before(list[j].ExDate)
		})
	}

	return &Stream{Operations: sorted, Pending: pending}
}
