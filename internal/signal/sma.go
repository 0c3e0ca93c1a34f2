// Package signal contains the built-in signal sources. The control loop only
// sees the SignalSource interface, so strategies can be swapped without
// touching the order pipeline.
package signal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dkalman/futuresbot/internal/domain"
)

// SMACross is a simple moving-average crossover source: the fast average
// crossing above the slow average emits a buy, crossing below emits a sell,
// anything else is a hold.
type SMACross struct {
	market    domain.MarketData
	timeframe string
	fast      int
	slow      int
	quantity  float64
	logger    *slog.Logger
	now       func() time.Time
}

func NewSMACross(market domain.MarketData, timeframe string, fast, slow int, quantity float64, logger *slog.Logger) (*SMACross, error) {
	if fast <= 0 || slow <= 0 || fast >= slow {
		return nil, fmt.Errorf("signal: fast window must be positive and below slow, got %d/%d", fast, slow)
	}
	return &SMACross{
		market:    market,
		timeframe: timeframe,
		fast:      fast,
		slow:      slow,
		quantity:  quantity,
		logger:    logger.With(slog.String("component", "sma_cross")),
		now:       time.Now,
	}, nil
}

var _ domain.SignalSource = (*SMACross)(nil)

// Evaluate fetches recent candles and compares the fast and slow averages on
// the last two bars. Not enough history is a hold, not an error.
func (s *SMACross) Evaluate(ctx context.Context, symbol string) (domain.Signal, error) {
	bars, err := s.market.GetBars(ctx, symbol, s.timeframe, s.slow+1)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("signal: get bars for %s: %w", symbol, err)
	}

	hold := domain.Signal{
		Symbol:    symbol,
		Action:    domain.SignalHold,
		Timestamp: s.now().UTC(),
	}
	if len(bars) < s.slow+1 {
		s.logger.DebugContext(ctx, "not enough history",
			slog.String("symbol", symbol),
			slog.Int("bars", len(bars)))
		return hold, nil
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	prevFast := sma(closes[:len(closes)-1], s.fast)
	prevSlow := sma(closes[:len(closes)-1], s.slow)
	curFast := sma(closes, s.fast)
	curSlow := sma(closes, s.slow)

	sig := hold
	sig.Quantity = s.quantity
	switch {
	case prevFast <= prevSlow && curFast > curSlow:
		sig.Action = domain.SignalBuy
		sig.Reason = fmt.Sprintf("sma%d crossed above sma%d", s.fast, s.slow)
	case prevFast >= prevSlow && curFast < curSlow:
		sig.Action = domain.SignalSell
		sig.Reason = fmt.Sprintf("sma%d crossed below sma%d", s.fast, s.slow)
	default:
		return hold, nil
	}

	s.logger.InfoContext(ctx, "crossover detected",
		slog.String("symbol", symbol),
		slog.String("action", string(sig.Action)),
		slog.Float64("fast", curFast),
		slog.Float64("slow", curSlow))
	return sig, nil
}

// sma averages the last n values.
func sma(values []float64, n int) float64 {
	var sum float64
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n)
}
