// Package paper simulates order execution against live cached quotes. It lets
// the whole pipeline run unmodified without exchange credentials.
package paper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dkalman/futuresbot/internal/domain"
)

// Executor fills every order instantly: market orders at the cached quote
// shaded by SlippageBps against the taker, limit orders at the limit price.
type Executor struct {
	prices      domain.PriceCache
	slippageBps float64
	logger      *slog.Logger
}

func New(prices domain.PriceCache, slippageBps float64, logger *slog.Logger) *Executor {
	return &Executor{
		prices:      prices,
		slippageBps: slippageBps,
		logger:      logger.With(slog.String("component", "paper_executor")),
	}
}

var _ domain.Execution = (*Executor)(nil)

func (e *Executor) Submit(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResult, error) {
	price := req.Price
	if req.Type == domain.OrderTypeMarket {
		quote, err := e.prices.GetQuote(ctx, req.Symbol)
		if err != nil || quote.Price <= 0 {
			return domain.SubmitResult{}, fmt.Errorf("paper: no quote for %s: %w", req.Symbol, domain.ErrPriceUnavailable)
		}
		price = e.fillPrice(quote, req.Side)
	}
	if price <= 0 {
		return domain.SubmitResult{}, fmt.Errorf("paper: no price for %s %s order", req.Symbol, req.Type)
	}

	id := "sim_" + uuid.NewString()
	e.logger.DebugContext(ctx, "simulated fill",
		slog.String("symbol", req.Symbol),
		slog.String("side", string(req.Side)),
		slog.Float64("quantity", req.Quantity),
		slog.Float64("price", price),
		slog.String("external_id", id))

	return domain.SubmitResult{
		ExternalID: id,
		FillPrice:  price,
		Status:     domain.OrderStatusFilled,
	}, nil
}

// Cancel is a no-op: simulated orders never rest.
func (e *Executor) Cancel(context.Context, string) error { return nil }

// fillPrice starts from the book side when the quote carries one and shades
// it by the configured slippage, always against the taker.
func (e *Executor) fillPrice(quote domain.Quote, side domain.OrderSide) float64 {
	price := quote.Price
	if side == domain.OrderSideBuy && quote.Ask > 0 {
		price = quote.Ask
	}
	if side == domain.OrderSideSell && quote.Bid > 0 {
		price = quote.Bid
	}

	slip := price * e.slippageBps / 10000
	if side == domain.OrderSideBuy {
		return price + slip
	}
	return price - slip
}
