// Package feed moves market data from the exchange into the caches the rest
// of the system reads: live quotes into the price cache, closed candles into
// the bar store.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dkalman/futuresbot/internal/domain"
)

// ChannelQuotes is the bus channel quote updates are published on.
const ChannelQuotes = "quotes"

// QuoteFeed writes incoming quotes to the price cache and mirrors them onto
// the signal bus. It is the single producer for the cache.
type QuoteFeed struct {
	cache  domain.PriceCache
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewQuoteFeed creates a QuoteFeed. bus may be nil to skip publishing.
func NewQuoteFeed(cache domain.PriceCache, bus domain.SignalBus, logger *slog.Logger) *QuoteFeed {
	return &QuoteFeed{
		cache:  cache,
		bus:    bus,
		logger: logger.With(slog.String("component", "quote_feed")),
	}
}

// HandleQuote stores one quote. Stream callbacks land here; failures are
// logged and the stream keeps running, the cache simply stays one tick stale.
func (f *QuoteFeed) HandleQuote(quote domain.Quote) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := f.cache.SetQuote(ctx, quote); err != nil {
		f.logger.Warn("quote cache write failed",
			slog.String("symbol", quote.Symbol),
			slog.String("error", err.Error()))
		return
	}

	if f.bus != nil {
		payload, err := json.Marshal(map[string]any{
			"symbol": quote.Symbol,
			"price":  quote.Price,
			"bid":    quote.Bid,
			"ask":    quote.Ask,
			"ts":     quote.Timestamp.Format(time.RFC3339Nano),
		})
		if err == nil {
			if err := f.bus.Publish(ctx, ChannelQuotes, payload); err != nil {
				f.logger.Debug("quote publish failed",
					slog.String("symbol", quote.Symbol),
					slog.String("error", err.Error()))
			}
		}
	}
}
