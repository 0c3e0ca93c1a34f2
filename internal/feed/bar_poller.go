package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dkalman/futuresbot/internal/domain"
)

// BarPoller periodically fetches recent candles for each symbol and upserts
// them into the bar store so signal sources can read history without hitting
// the exchange on every evaluation.
type BarPoller struct {
	market    domain.MarketData
	bars      domain.BarStore
	symbols   []string
	timeframe string
	batch     int
	interval  time.Duration
	logger    *slog.Logger
}

func NewBarPoller(market domain.MarketData, bars domain.BarStore, symbols []string, timeframe string, batch int, interval time.Duration, logger *slog.Logger) *BarPoller {
	if batch <= 0 {
		batch = 100
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &BarPoller{
		market:    market,
		bars:      bars,
		symbols:   symbols,
		timeframe: timeframe,
		batch:     batch,
		interval:  interval,
		logger:    logger.With(slog.String("component", "bar_poller")),
	}
}

// Run polls once immediately, then on every tick until ctx is cancelled.
func (p *BarPoller) Run(ctx context.Context) error {
	if len(p.symbols) == 0 {
		p.logger.Info("no symbols to poll, exiting")
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.pollAll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

func (p *BarPoller) pollAll(ctx context.Context) {
	for _, symbol := range p.symbols {
		if ctx.Err() != nil {
			return
		}
		if err := p.poll(ctx, symbol); err != nil {
			p.logger.Warn("bar poll failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()))
		}
	}
}

func (p *BarPoller) poll(ctx context.Context, symbol string) error {
	bars, err := p.market.GetBars(ctx, symbol, p.timeframe, p.batch)
	if err != nil {
		return fmt.Errorf("feed: get bars: %w", err)
	}
	for _, bar := range bars {
		if err := p.bars.Upsert(ctx, symbol, bar); err != nil {
			return fmt.Errorf("feed: upsert bar: %w", err)
		}
	}
	p.logger.Debug("bars updated",
		slog.String("symbol", symbol),
		slog.Int("count", len(bars)))
	return nil
}
