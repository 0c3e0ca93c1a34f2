package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dkalman/futuresbot/internal/domain"
	"github.com/dkalman/futuresbot/internal/engine"
	"github.com/dkalman/futuresbot/internal/exchange/binance"
	"github.com/dkalman/futuresbot/internal/exchange/paper"
	"github.com/dkalman/futuresbot/internal/feed"
	"github.com/dkalman/futuresbot/internal/ledger"
	"github.com/dkalman/futuresbot/internal/risk"
	"github.com/dkalman/futuresbot/internal/signal"
)

// TradeMode runs the full trading stack against the live exchange: quote
// stream, bar poller, signal loop, trigger scanner, daily reset, and a
// periodic account snapshot recorder.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode")

	exch, err := binance.New(a.cfg.Exchange.ApiKey, a.cfg.Exchange.SecretKey, a.logger)
	if err != nil {
		return fmt.Errorf("trade mode: exchange client: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if err := a.startTrading(ctx, g, deps, exch, exch); err != nil {
		return fmt.Errorf("trade mode: %w", err)
	}

	// Account snapshot recorder. Free margin checks read the latest stored
	// snapshot, so keep it fresh while trading.
	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Engine.PollInterval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				snap, err := exch.AccountSnapshot(ctx)
				if err != nil {
					a.logger.WarnContext(ctx, "account snapshot failed",
						slog.String("error", err.Error()))
					continue
				}
				if err := deps.AccountStore.SaveSnapshot(ctx, snap); err != nil {
					a.logger.WarnContext(ctx, "account snapshot save failed",
						slog.String("error", err.Error()))
				}
			}
		}
	})

	return g.Wait()
}

// PaperMode runs the same stack with simulated execution. Market data comes
// from the public exchange endpoints; fills are simulated against cached
// quotes with configured slippage.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting paper mode")

	market := binance.NewPublic(a.logger)
	exec := paper.New(deps.PriceCache, a.cfg.Engine.SlippageBps, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	if err := a.startTrading(ctx, g, deps, market, exec); err != nil {
		return fmt.Errorf("paper mode: %w", err)
	}

	return g.Wait()
}

// MonitorMode streams quotes into the cache, polls bars into the history
// table, and logs order events, without placing any orders.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	market := binance.NewPublic(a.logger)

	g, ctx := errgroup.WithContext(ctx)

	a.startFeeds(ctx, g, deps, market)

	g.Go(func() error {
		ch, err := deps.SignalBus.Subscribe(ctx, engine.ChannelOrders)
		if err != nil {
			return fmt.Errorf("monitor mode: subscribe %s: %w", engine.ChannelOrders, err)
		}
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				a.logger.InfoContext(ctx, "order event", slog.String("payload", string(msg)))
			}
		}
	})

	return g.Wait()
}

// startTrading builds the trading stack around the given market data source
// and executor and registers its goroutines with g.
func (a *App) startTrading(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	market domain.MarketData,
	exec domain.Execution,
) error {
	led := ledger.New(ledger.OvershootPolicy(a.cfg.Risk.Overshoot))
	gate := risk.NewGate(risk.Limits{
		MaxDailyLoss:    a.cfg.Risk.MaxDailyLoss,
		MaxPositionSize: a.cfg.Risk.MaxPositionSize,
		MarginRate:      a.cfg.Risk.MarginRate,
		StopLossPct:     a.cfg.Risk.StopLossPct,
		TakeProfitPct:   a.cfg.Risk.TakeProfitPct,
		Volatility:      a.cfg.Risk.Volatility,
		VaRConfidence:   risk.DefaultVaRConfidence,
	})

	daily := risk.NewDailyAccumulator(deps.PnLStore, a.logger)
	if err := daily.Load(ctx); err != nil {
		return fmt.Errorf("load daily pnl: %w", err)
	}

	coord := engine.NewCoordinator(
		led, gate, daily,
		exec, market,
		deps.PriceCache, deps.TradeStore, deps.AccountStore,
		deps.SignalBus, deps.Notifier,
		a.logger,
	)
	scanner := engine.NewTriggerScanner(led, deps.PriceCache, coord, deps.Notifier, a.logger)

	signals, err := signal.NewSMACross(
		market,
		a.cfg.Engine.Timeframe,
		a.cfg.Engine.FastWindow,
		a.cfg.Engine.SlowWindow,
		a.cfg.Engine.OrderQuantity,
		a.logger,
	)
	if err != nil {
		return fmt.Errorf("signal source: %w", err)
	}

	loop := engine.NewLoop(coord, scanner, signals, engine.LoopConfig{
		Symbols:       a.cfg.Engine.Symbols,
		OrderQuantity: a.cfg.Engine.OrderQuantity,
		ScanInterval:  a.cfg.Engine.ScanInterval.Duration,
		EvalInterval:  a.cfg.Engine.EvalInterval.Duration,
		MaxBackoff:    a.cfg.Engine.MaxBackoff.Duration,
	}, a.logger)

	resetSched, err := engine.NewResetScheduler(
		daily,
		a.cfg.Scheduler.ResetTime,
		a.cfg.Scheduler.Timezone,
		deps.Notifier,
		a.logger,
	)
	if err != nil {
		return fmt.Errorf("reset scheduler: %w", err)
	}

	a.startFeeds(ctx, g, deps, market)

	g.Go(func() error {
		return loop.Run(ctx)
	})
	g.Go(func() error {
		return resetSched.Run(ctx)
	})
	if deps.Archiver != nil {
		g.Go(func() error {
			return deps.Archiver.Run(ctx, a.cfg.Archive.Interval.Duration)
		})
	}

	return nil
}

// startFeeds registers the websocket quote stream and the bar poller with g.
func (a *App) startFeeds(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	market domain.MarketData,
) {
	quoteFeed := feed.NewQuoteFeed(deps.PriceCache, deps.SignalBus, a.logger)
	stream := binance.NewBookTickerStream(
		a.cfg.Exchange.StreamURL,
		a.cfg.Engine.Symbols,
		quoteFeed.HandleQuote,
		a.logger,
	)
	poller := feed.NewBarPoller(
		market,
		deps.BarStore,
		a.cfg.Engine.Symbols,
		a.cfg.Engine.Timeframe,
		100,
		a.cfg.Engine.PollInterval.Duration,
		a.logger,
	)

	g.Go(func() error {
		return stream.Run(ctx)
	})
	g.Go(func() error {
		return poller.Run(ctx)
	})
}
