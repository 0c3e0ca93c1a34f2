package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dkalman/futuresbot/internal/domain"
)

// LoopConfig tunes the control loop cadence.
type LoopConfig struct {
	Symbols       []string
	OrderQuantity float64
	ScanInterval  time.Duration
	EvalInterval  time.Duration
	MaxBackoff    time.Duration
}

// Loop drives the trading cycle: evaluate the signal source for each symbol
// on one cadence and sweep protective triggers on another. Consecutive
// failures back the loop off exponentially up to MaxBackoff; one success
// resets the delay.
type Loop struct {
	coord    *Coordinator
	scanner  *TriggerScanner
	signals  domain.SignalSource
	cfg      LoopConfig
	logger   *slog.Logger
	failures int
}

func NewLoop(coord *Coordinator, scanner *TriggerScanner, signals domain.SignalSource, cfg LoopConfig, logger *slog.Logger) *Loop {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 5 * time.Second
	}
	if cfg.EvalInterval <= 0 {
		cfg.EvalInterval = time.Minute
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 2 * time.Minute
	}
	return &Loop{
		coord:   coord,
		scanner: scanner,
		signals: signals,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "control_loop")),
	}
}

// Run blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	scan := time.NewTicker(l.cfg.ScanInterval)
	defer scan.Stop()
	eval := time.NewTicker(l.cfg.EvalInterval)
	defer eval.Stop()

	l.logger.InfoContext(ctx, "control loop started",
		slog.Any("symbols", l.cfg.Symbols),
		slog.Duration("scan_interval", l.cfg.ScanInterval),
		slog.Duration("eval_interval", l.cfg.EvalInterval))

	for {
		select {
		case <-ctx.Done():
			l.logger.InfoContext(ctx, "control loop stopped")
			return ctx.Err()
		case <-scan.C:
			l.step(ctx, "scan", func() error { return l.scanner.Scan(ctx) })
		case <-eval.C:
			l.step(ctx, "evaluate", func() error { return l.evaluateAll(ctx) })
		}
	}
}

// step runs one cycle and applies the failure backoff: after n consecutive
// failures the loop pauses for ScanInterval << n, capped at MaxBackoff.
func (l *Loop) step(ctx context.Context, name string, fn func() error) {
	err := fn()
	if err == nil || errors.Is(err, domain.ErrContextDone) || errors.Is(err, context.Canceled) {
		l.failures = 0
		return
	}

	l.failures++
	delay := l.cfg.ScanInterval << uint(l.failures-1)
	if delay > l.cfg.MaxBackoff {
		delay = l.cfg.MaxBackoff
	}
	l.logger.ErrorContext(ctx, "cycle failed",
		slog.String("cycle", name),
		slog.Int("consecutive_failures", l.failures),
		slog.Duration("backoff", delay),
		slog.String("error", err.Error()))

	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

func (l *Loop) evaluateAll(ctx context.Context) error {
	var firstErr error
	for _, symbol := range l.cfg.Symbols {
		if err := ctx.Err(); err != nil {
			return domain.ErrContextDone
		}
		if err := l.evaluate(ctx, symbol); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *Loop) evaluate(ctx context.Context, symbol string) error {
	sig, err := l.signals.Evaluate(ctx, symbol)
	if err != nil {
		return err
	}

	qty := sig.Quantity
	if qty <= 0 {
		qty = l.cfg.OrderQuantity
	}

	switch sig.Action {
	case domain.SignalHold, "":
		return nil
	case domain.SignalBuy:
		_, err = l.coord.PlaceOrder(ctx, symbol, domain.OrderSideBuy, qty, domain.OrderTypeMarket, 0)
	case domain.SignalSell:
		_, err = l.coord.PlaceOrder(ctx, symbol, domain.OrderSideSell, qty, domain.OrderTypeMarket, 0)
	case domain.SignalClose:
		_, err = l.coord.ClosePosition(ctx, symbol, 0)
		if errors.Is(err, domain.ErrNoPosition) {
			return nil
		}
	default:
		l.logger.WarnContext(ctx, "unknown signal action",
			slog.String("symbol", symbol),
			slog.String("action", string(sig.Action)))
		return nil
	}
	if err != nil {
		return err
	}

	l.logger.DebugContext(ctx, "signal handled",
		slog.String("symbol", symbol),
		slog.String("action", string(sig.Action)),
		slog.String("reason", sig.Reason))
	return nil
}
