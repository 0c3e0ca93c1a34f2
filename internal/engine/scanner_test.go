package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dkalman/futuresbot/internal/domain"
	"github.com/dkalman/futuresbot/internal/ledger"
)

type spyCloser struct {
	attempts []string
	closed   []string
	err      error
}

func (s *spyCloser) ClosePosition(_ context.Context, symbol string, _ float64) (domain.OrderResult, error) {
	s.attempts = append(s.attempts, symbol)
	if s.err != nil {
		return domain.OrderResult{}, s.err
	}
	s.closed = append(s.closed, symbol)
	return domain.OrderResult{Placed: true}, nil
}

func newScannerFixture() (*ledger.Ledger, *fakePrices, *spyCloser, *fakeNotifier, *TriggerScanner) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	led := ledger.New(ledger.OvershootFlip)
	prices := &fakePrices{quotes: make(map[string]domain.Quote)}
	closer := &spyCloser{}
	notifier := &fakeNotifier{}
	return led, prices, closer, notifier, NewTriggerScanner(led, prices, closer, notifier, logger)
}

func protect(t *testing.T, led *ledger.Ledger, symbol string, sl, tp float64) {
	t.Helper()
	if err := led.SetProtection(symbol, &sl, &tp); err != nil {
		t.Fatalf("SetProtection: %v", err)
	}
}

func TestScanTriggersLongStopLoss(t *testing.T) {
	led, prices, closer, notifier, scanner := newScannerFixture()
	led.ApplyFill("BTCUSDT", domain.OrderSideBuy, 5, 100)
	protect(t, led, "BTCUSDT", 98, 104)
	prices.quotes["BTCUSDT"] = domain.Quote{Symbol: "BTCUSDT", Price: 97.5, Timestamp: time.Now()}

	if err := scanner.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(closer.closed) != 1 || closer.closed[0] != "BTCUSDT" {
		t.Errorf("closed = %v", closer.closed)
	}
	if len(notifier.events) != 1 || notifier.events[0] != EventStopLoss {
		t.Errorf("events = %v, want stop_loss", notifier.events)
	}
}

func TestScanTriggersShortTakeProfit(t *testing.T) {
	led, prices, closer, notifier, scanner := newScannerFixture()
	led.ApplyFill("ETHUSDT", domain.OrderSideSell, 2, 100)
	protect(t, led, "ETHUSDT", 102, 96)
	prices.quotes["ETHUSDT"] = domain.Quote{Symbol: "ETHUSDT", Price: 95, Timestamp: time.Now()}

	if err := scanner.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(closer.closed) != 1 {
		t.Fatalf("closed = %v", closer.closed)
	}
	if notifier.events[0] != EventTakeProfit {
		t.Errorf("event = %v, want take_profit", notifier.events[0])
	}
}

func TestScanStopLossWinsOverTakeProfit(t *testing.T) {
	led, prices, _, notifier, scanner := newScannerFixture()
	led.ApplyFill("BTCUSDT", domain.OrderSideBuy, 1, 100)
	// Inverted levels so one price crosses both.
	protect(t, led, "BTCUSDT", 100, 90)
	prices.quotes["BTCUSDT"] = domain.Quote{Symbol: "BTCUSDT", Price: 95, Timestamp: time.Now()}

	if err := scanner.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(notifier.events) != 1 || notifier.events[0] != EventStopLoss {
		t.Errorf("events = %v, want stop_loss only", notifier.events)
	}
}

func TestScanSkipsSymbolsWithoutQuotes(t *testing.T) {
	led, _, closer, _, scanner := newScannerFixture()
	led.ApplyFill("BTCUSDT", domain.OrderSideBuy, 1, 100)
	protect(t, led, "BTCUSDT", 98, 104)

	if err := scanner.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(closer.closed) != 0 {
		t.Errorf("closed = %v, want none", closer.closed)
	}
}

func TestScanLeavesUntriggeredPositionsOpen(t *testing.T) {
	led, prices, closer, _, scanner := newScannerFixture()
	led.ApplyFill("BTCUSDT", domain.OrderSideBuy, 1, 100)
	protect(t, led, "BTCUSDT", 98, 104)
	prices.quotes["BTCUSDT"] = domain.Quote{Symbol: "BTCUSDT", Price: 101, Timestamp: time.Now()}

	if err := scanner.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(closer.closed) != 0 {
		t.Errorf("closed = %v, want none", closer.closed)
	}
}

func TestScanContinuesPastCloseFailure(t *testing.T) {
	led, prices, closer, _, scanner := newScannerFixture()
	led.ApplyFill("AAAUSDT", domain.OrderSideBuy, 1, 100)
	protect(t, led, "AAAUSDT", 98, 104)
	led.ApplyFill("BBBUSDT", domain.OrderSideBuy, 1, 100)
	protect(t, led, "BBBUSDT", 98, 104)
	prices.quotes["AAAUSDT"] = domain.Quote{Symbol: "AAAUSDT", Price: 97, Timestamp: time.Now()}
	prices.quotes["BBBUSDT"] = domain.Quote{Symbol: "BBBUSDT", Price: 97, Timestamp: time.Now()}
	closer.err = context.DeadlineExceeded

	err := scanner.Scan(context.Background())
	if err == nil {
		t.Fatal("expected error from failed closes")
	}
	// Both symbols were attempted despite the first failure.
	if len(closer.attempts) != 2 {
		t.Errorf("attempts = %v, want both symbols", closer.attempts)
	}
}
