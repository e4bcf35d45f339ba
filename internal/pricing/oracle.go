package pricing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/trogers1052/portfolio-advisor/internal/models"
)

// DefaultTTL is how long a cached quote stays fresh.
const DefaultTTL = time.Hour

// QuoteStore is the backing source of quotes, typically the quotes table.
type QuoteStore interface {
	GetQuote(symbol string) (*models.Quote, error)
}

// cachedQuote is the redis payload.
type cachedQuote struct {
	Price    decimal.Decimal `json:"price"`
	QuotedAt time.Time       `json:"quoted_at"`
}

// Oracle serves current prices with a short-TTL redis cache in front of the
// quote store. Lookups never fail hard: any miss or error is reported as
// ok=false and callers degrade to stored average cost.
type Oracle struct {
	store QuoteStore
	cache *redis.Client
	ttl   time.Duration
	log   *logrus.Logger
}

// NewOracle creates a price oracle. cache may be nil, which disables caching.
func NewOracle(store QuoteStore, cache *redis.Client, ttl time.Duration, log *logrus.Logger) *Oracle {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Oracle{store: store, cache: cache, ttl: ttl, log: log}
}

// CurrentPrice returns the best-available price for a symbol.
func (o *Oracle) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, time.Time, bool) {
	if q, ok := o.fromCache(ctx, symbol); ok {
		return q.Price, q.QuotedAt, true
	}

	quote, err := o.store.GetQuote(symbol)
	if err != nil {
		o.log.WithField("symbol", symbol).WithError(err).Debug("quote lookup missed")
		return decimal.Zero, time.Time{}, false
	}

	o.toCache(ctx, symbol, cachedQuote{Price: quote.Price, QuotedAt: quote.QuotedAt})
	return quote.Price, quote.QuotedAt, true
}

func (o *Oracle) fromCache(ctx context.Context, symbol string) (cachedQuote, bool) {
	if o.cache == nil {
		return cachedQuote{}, false
	}
	data, err := o.cache.Get(ctx, cacheKey(symbol)).Bytes()
	if err != nil {
		if err != redis.Nil {
			o.log.WithField("symbol", symbol).WithError(err).Warn("quote cache read failed")
		}
		return cachedQuote{}, false
	}
	var q cachedQuote
	if err := json.Unmarshal(data, &q); err != nil {
		return cachedQuote{}, false
	}
	return q, true
}

func (o *Oracle) toCache(ctx context.Context, symbol string, q cachedQuote) {
	if o.cache == nil {
		return
	}
	data, err := json.Marshal(q)
	if err != nil {
		return
	}
	if err := o.cache.Set(ctx, cacheKey(symbol), data, o.ttl).Err(); err != nil {
		o.log.WithField("symbol", symbol).WithError(err).Warn("quote cache write failed")
	}
}

func cacheKey(symbol string) string {
	return "quote:" + symbol
}
