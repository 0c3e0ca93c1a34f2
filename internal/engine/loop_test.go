package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dkalman/futuresbot/internal/domain"
)

type scriptedSignals struct {
	signals map[string]domain.Signal
}

func (s *scriptedSignals) Evaluate(_ context.Context, symbol string) (domain.Signal, error) {
	sig, ok := s.signals[symbol]
	if !ok {
		return domain.Signal{Symbol: symbol, Action: domain.SignalHold}, nil
	}
	return sig, nil
}

func newLoopFixture(t *testing.T, signals map[string]domain.Signal) (*coordFixture, *Loop) {
	t.Helper()
	f := newFixture(t, defaultLimits())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	scanner := NewTriggerScanner(f.ledger, f.prices, f.coord, f.notifier, logger)
	loop := NewLoop(f.coord, scanner, &scriptedSignals{signals: signals},
		LoopConfig{Symbols: []string{"BTCUSDT", "ETHUSDT"}, OrderQuantity: 2}, logger)
	return f, loop
}

func TestEvaluateBuySignalPlacesOrder(t *testing.T) {
	f, loop := newLoopFixture(t, map[string]domain.Signal{
		"BTCUSDT": {Symbol: "BTCUSDT", Action: domain.SignalBuy, Quantity: 1},
	})
	f.setPrice("BTCUSDT", 100)
	f.setPrice("ETHUSDT", 200)

	if err := loop.evaluateAll(context.Background()); err != nil {
		t.Fatalf("evaluateAll: %v", err)
	}
	pos, ok := f.ledger.Get("BTCUSDT")
	if !ok || pos.Side != domain.SideLong || pos.Quantity != 1 {
		t.Errorf("position = %+v ok=%v", pos, ok)
	}
	if _, ok := f.ledger.Get("ETHUSDT"); ok {
		t.Error("hold symbol must not trade")
	}
}

func TestEvaluateUsesDefaultQuantity(t *testing.T) {
	f, loop := newLoopFixture(t, map[string]domain.Signal{
		"BTCUSDT": {Symbol: "BTCUSDT", Action: domain.SignalSell},
	})
	f.setPrice("BTCUSDT", 100)
	f.setPrice("ETHUSDT", 200)

	if err := loop.evaluateAll(context.Background()); err != nil {
		t.Fatalf("evaluateAll: %v", err)
	}
	pos, _ := f.ledger.Get("BTCUSDT")
	if pos.Quantity != 2 {
		t.Errorf("quantity = %v, want loop default 2", pos.Quantity)
	}
}

func TestEvaluateCloseSignalWhenFlatIsNotAnError(t *testing.T) {
	f, loop := newLoopFixture(t, map[string]domain.Signal{
		"BTCUSDT": {Symbol: "BTCUSDT", Action: domain.SignalClose},
	})
	f.setPrice("BTCUSDT", 100)
	f.setPrice("ETHUSDT", 200)

	if err := loop.evaluateAll(context.Background()); err != nil {
		t.Errorf("evaluateAll: %v", err)
	}
}

func TestStepBackoffGrowsAndResets(t *testing.T) {
	_, loop := newLoopFixture(t, nil)
	loop.cfg.ScanInterval = time.Millisecond
	loop.cfg.MaxBackoff = 4 * time.Millisecond

	fail := func() error { return context.DeadlineExceeded }
	ok := func() error { return nil }

	loop.step(context.Background(), "scan", fail)
	if loop.failures != 1 {
		t.Errorf("failures = %d, want 1", loop.failures)
	}
	loop.step(context.Background(), "scan", fail)
	if loop.failures != 2 {
		t.Errorf("failures = %d, want 2", loop.failures)
	}
	loop.step(context.Background(), "scan", ok)
	if loop.failures != 0 {
		t.Errorf("failures = %d, want 0 after success", loop.failures)
	}
}
