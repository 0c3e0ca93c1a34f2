package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dkalman/futuresbot/internal/domain"
	"github.com/dkalman/futuresbot/internal/ledger"
)

// PositionCloser is the slice of the coordinator the scanner needs.
type PositionCloser interface {
	ClosePosition(ctx context.Context, symbol string, quantity float64) (domain.OrderResult, error)
}

// TriggerScanner sweeps the open positions and closes any whose protective
// levels the latest price has crossed. When both levels are crossed in one
// sweep the stop loss wins.
type TriggerScanner struct {
	ledger   *ledger.Ledger
	prices   domain.PriceCache
	closer   PositionCloser
	notifier Notifier
	logger   *slog.Logger
}

func NewTriggerScanner(led *ledger.Ledger, prices domain.PriceCache, closer PositionCloser, notifier Notifier, logger *slog.Logger) *TriggerScanner {
	return &TriggerScanner{
		ledger:   led,
		prices:   prices,
		closer:   closer,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "trigger_scanner")),
	}
}

// Scan performs one sweep. Positions without a cached quote are skipped and
// re-checked on the next sweep; a close failure on one symbol does not stop
// the others. The first error encountered is returned after the sweep.
func (s *TriggerScanner) Scan(ctx context.Context) error {
	var firstErr error
	for pos := range s.ledger.All() {
		if err := ctx.Err(); err != nil {
			return domain.ErrContextDone
		}

		quote, err := s.prices.GetQuote(ctx, pos.Symbol)
		if err != nil || quote.Price <= 0 {
			s.logger.DebugContext(ctx, "no quote, skipping",
				slog.String("symbol", pos.Symbol))
			continue
		}

		event := triggered(pos, quote.Price)
		if event == "" {
			continue
		}

		s.logger.InfoContext(ctx, "protective trigger hit",
			slog.String("symbol", pos.Symbol),
			slog.String("trigger", event),
			slog.Float64("price", quote.Price),
			slog.Float64("entry", pos.EntryPrice))

		if _, err := s.closer.ClosePosition(ctx, pos.Symbol, 0); err != nil {
			// ErrNoPosition means something else closed it between the
			// snapshot and now; not a failure.
			if errors.Is(err, domain.ErrNoPosition) {
				continue
			}
			s.logger.ErrorContext(ctx, "trigger close failed",
				slog.String("symbol", pos.Symbol),
				slog.String("error", err.Error()))
			if firstErr == nil {
				firstErr = fmt.Errorf("engine: close %s on %s: %w", pos.Symbol, event, err)
			}
			continue
		}

		if s.notifier != nil {
			title := "Stop loss triggered"
			if event == EventTakeProfit {
				title = "Take profit triggered"
			}
			_ = s.notifier.Notify(ctx, event, title,
				fmt.Sprintf("%s closed at %.4f (entry %.4f)", pos.Symbol, quote.Price, pos.EntryPrice))
		}
	}
	return firstErr
}

// triggered reports which protective level the price has crossed, stop loss
// taking priority when both are crossed.
func triggered(pos domain.Position, price float64) string {
	if pos.StopLoss != nil {
		if pos.Side == domain.SideLong && price <= *pos.StopLoss {
			return EventStopLoss
		}
		if pos.Side == domain.SideShort && price >= *pos.StopLoss {
			return EventStopLoss
		}
	}
	if pos.TakeProfit != nil {
		if pos.Side == domain.SideLong && price >= *pos.TakeProfit {
			return EventTakeProfit
		}
		if pos.Side == domain.SideShort && price <= *pos.TakeProfit {
			return EventTakeProfit
		}
	}
	return ""
}
