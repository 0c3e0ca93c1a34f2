package signal

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dkalman/futuresbot/internal/domain"
)

type fakeMarket struct {
	closes []float64
}

func (f *fakeMarket) GetQuote(context.Context, string) (domain.Quote, error) {
	return domain.Quote{}, domain.ErrNotFound
}

func (f *fakeMarket) GetBars(_ context.Context, _ string, _ string, limit int) ([]domain.Bar, error) {
	closes := f.closes
	if len(closes) > limit {
		closes = closes[len(closes)-limit:]
	}
	bars := make([]domain.Bar, len(closes))
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = domain.Bar{Timestamp: base.Add(time.Duration(i) * time.Minute), Close: c}
	}
	return bars, nil
}

func newSMA(t *testing.T, market domain.MarketData) *SMACross {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewSMACross(market, "1m", 2, 4, 1.5, logger)
	if err != nil {
		t.Fatalf("NewSMACross: %v", err)
	}
	return s
}

func TestEvaluateBuyOnCrossUp(t *testing.T) {
	// Flat then a sharp rise: fast average overtakes the slow one on the
	// final bar.
	market := &fakeMarket{closes: []float64{100, 100, 100, 100, 100, 120}}
	s := newSMA(t, market)

	sig, err := s.Evaluate(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sig.Action != domain.SignalBuy {
		t.Errorf("action = %s, want buy", sig.Action)
	}
	if sig.Quantity != 1.5 {
		t.Errorf("quantity = %v, want 1.5", sig.Quantity)
	}
	if sig.Reason == "" {
		t.Error("reason not set")
	}
}

func TestEvaluateSellOnCrossDown(t *testing.T) {
	market := &fakeMarket{closes: []float64{100, 100, 100, 100, 100, 80}}
	s := newSMA(t, market)

	sig, err := s.Evaluate(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sig.Action != domain.SignalSell {
		t.Errorf("action = %s, want sell", sig.Action)
	}
}

func TestEvaluateHoldWithoutCross(t *testing.T) {
	market := &fakeMarket{closes: []float64{100, 101, 102, 103, 104, 105}}
	s := newSMA(t, market)

	sig, err := s.Evaluate(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sig.Action != domain.SignalHold {
		t.Errorf("action = %s, want hold", sig.Action)
	}
}

func TestEvaluateHoldOnShortHistory(t *testing.T) {
	market := &fakeMarket{closes: []float64{100, 101}}
	s := newSMA(t, market)

	sig, err := s.Evaluate(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if sig.Action != domain.SignalHold {
		t.Errorf("action = %s, want hold", sig.Action)
	}
}

func TestNewSMACrossValidatesWindows(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := NewSMACross(&fakeMarket{}, "1m", 4, 2, 1, logger); err == nil {
		t.Error("expected error for fast >= slow")
	}
	if _, err := NewSMACross(&fakeMarket{}, "1m", 0, 2, 1, logger); err == nil {
		t.Error("expected error for zero window")
	}
}
