package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dkalman/futuresbot/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each symbol's
// latest quote is a hash at key "quote:{symbol}" with fields "price", "bid",
// "ask" and "ts" (Unix nanosecond timestamp). Writes overwrite; readers
// always see the newest complete quote.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

var _ domain.PriceCache = (*PriceCache)(nil)

func quoteKey(symbol string) string {
	return "quote:" + symbol
}

// SetQuote stores the latest quote for a symbol.
func (pc *PriceCache) SetQuote(ctx context.Context, quote domain.Quote) error {
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(quote.Price, 'f', -1, 64),
		"bid":   strconv.FormatFloat(quote.Bid, 'f', -1, 64),
		"ask":   strconv.FormatFloat(quote.Ask, 'f', -1, 64),
		"ts":    strconv.FormatInt(quote.Timestamp.UnixNano(), 10),
	}
	if err := pc.rdb.HSet(ctx, quoteKey(quote.Symbol), fields).Err(); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", quote.Symbol, err)
	}
	return nil
}

// GetQuote retrieves the latest quote for a symbol. It returns
// domain.ErrNotFound when no quote has been cached yet.
func (pc *PriceCache) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	vals, err := pc.rdb.HGetAll(ctx, quoteKey(symbol)).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", symbol, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	quote := domain.Quote{Symbol: symbol}
	quote.Price, err = strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse price for %s: %w", symbol, err)
	}
	// Bid/ask are optional; REST quotes carry price only.
	if v, ok := vals["bid"]; ok {
		quote.Bid, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := vals["ask"]; ok {
		quote.Ask, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := vals["ts"]; ok {
		if nanos, err := strconv.ParseInt(v, 10, 64); err == nil {
			quote.Timestamp = time.Unix(0, nanos).UTC()
		}
	}
	return quote, nil
}
