package ledger

import (
	"math"
	"testing"

	"github.com/dkalman/futuresbot/internal/domain"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestApplyFillOpensPosition(t *testing.T) {
	l := New(OvershootFlip)

	pnl, pos, open, err := l.ApplyFill("BTCUSDT", domain.OrderSideBuy, 5, 100)
	if err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}
	if pnl != 0 {
		t.Errorf("pnl = %v, want 0", pnl)
	}
	if !open {
		t.Fatal("expected position to remain open")
	}
	if pos.Side != domain.SideLong || pos.Quantity != 5 || pos.EntryPrice != 100 {
		t.Errorf("unexpected position: %+v", pos)
	}
	if pos.OpenedAt.IsZero() {
		t.Error("OpenedAt not set")
	}
}

func TestApplyFillWeightedAverageEntry(t *testing.T) {
	l := New(OvershootFlip)

	l.ApplyFill("BTCUSDT", domain.OrderSideBuy, 5, 100)
	_, pos, _, err := l.ApplyFill("BTCUSDT", domain.OrderSideBuy, 5, 110)
	if err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}
	if pos.Quantity != 10 {
		t.Errorf("quantity = %v, want 10", pos.Quantity)
	}
	if !approx(pos.EntryPrice, 105) {
		t.Errorf("entry = %v, want 105", pos.EntryPrice)
	}
}

func TestApplyFillPartialReduceKeepsEntry(t *testing.T) {
	l := New(OvershootFlip)

	l.ApplyFill("ETHUSDT", domain.OrderSideBuy, 10, 100)
	pnl, pos, open, err := l.ApplyFill("ETHUSDT", domain.OrderSideSell, 4, 110)
	if err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}
	if !approx(pnl, 40) {
		t.Errorf("pnl = %v, want 40", pnl)
	}
	if !open || pos.Quantity != 6 || pos.EntryPrice != 100 {
		t.Errorf("unexpected position after reduce: %+v open=%v", pos, open)
	}
}

func TestApplyFillExactCloseRemovesPosition(t *testing.T) {
	l := New(OvershootFlip)

	l.ApplyFill("BTCUSDT", domain.OrderSideBuy, 10, 100)
	pnl, _, open, err := l.ApplyFill("BTCUSDT", domain.OrderSideSell, 10, 90)
	if err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}
	if !approx(pnl, -100) {
		t.Errorf("pnl = %v, want -100", pnl)
	}
	if open {
		t.Error("expected flat after exact close")
	}
	if _, ok := l.Get("BTCUSDT"); ok {
		t.Error("position still present after close")
	}
}

func TestApplyFillShortRealizedPnL(t *testing.T) {
	l := New(OvershootFlip)

	l.ApplyFill("SOLUSDT", domain.OrderSideSell, 8, 50)
	pnl, _, open, err := l.ApplyFill("SOLUSDT", domain.OrderSideBuy, 8, 45)
	if err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}
	if !approx(pnl, 40) {
		t.Errorf("pnl = %v, want 40", pnl)
	}
	if open {
		t.Error("expected flat")
	}
}

func TestApplyFillOvershootFlips(t *testing.T) {
	l := New(OvershootFlip)

	l.ApplyFill("BTCUSDT", domain.OrderSideBuy, 5, 100)
	pnl, pos, open, err := l.ApplyFill("BTCUSDT", domain.OrderSideSell, 8, 110)
	if err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}
	// Only the 5 units that existed realize P&L.
	if !approx(pnl, 50) {
		t.Errorf("pnl = %v, want 50", pnl)
	}
	if !open {
		t.Fatal("expected flipped position")
	}
	if pos.Side != domain.SideShort || pos.Quantity != 3 || pos.EntryPrice != 110 {
		t.Errorf("unexpected flipped position: %+v", pos)
	}
	if pos.StopLoss != nil || pos.TakeProfit != nil {
		t.Error("flipped position must not inherit protective levels")
	}
}

func TestApplyFillOvershootClosePolicy(t *testing.T) {
	l := New(OvershootClose)

	l.ApplyFill("BTCUSDT", domain.OrderSideBuy, 5, 100)
	pnl, _, open, err := l.ApplyFill("BTCUSDT", domain.OrderSideSell, 8, 110)
	if err != nil {
		t.Fatalf("ApplyFill: %v", err)
	}
	if !approx(pnl, 50) {
		t.Errorf("pnl = %v, want 50", pnl)
	}
	if open {
		t.Error("close policy must leave the instrument flat")
	}
	if l.Len() != 0 {
		t.Errorf("Len = %d, want 0", l.Len())
	}
}

func TestApplyFillRejectsInvalidInput(t *testing.T) {
	l := New(OvershootFlip)
	l.ApplyFill("BTCUSDT", domain.OrderSideBuy, 5, 100)

	if _, _, _, err := l.ApplyFill("BTCUSDT", domain.OrderSideSell, 0, 100); err == nil {
		t.Error("expected error for zero quantity")
	}
	if _, _, _, err := l.ApplyFill("BTCUSDT", domain.OrderSideSell, 5, -1); err == nil {
		t.Error("expected error for negative price")
	}
	if pos, ok := l.Get("BTCUSDT"); !ok || pos.Quantity != 5 {
		t.Errorf("state changed by rejected fill: %+v ok=%v", pos, ok)
	}
}

func TestSetProtection(t *testing.T) {
	l := New(OvershootFlip)
	l.ApplyFill("BTCUSDT", domain.OrderSideBuy, 1, 100)

	sl, tp := 98.0, 104.0
	if err := l.SetProtection("BTCUSDT", &sl, &tp); err != nil {
		t.Fatalf("SetProtection: %v", err)
	}
	pos, _ := l.Get("BTCUSDT")
	if pos.StopLoss == nil || *pos.StopLoss != 98 {
		t.Errorf("stop loss = %v", pos.StopLoss)
	}
	if pos.TakeProfit == nil || *pos.TakeProfit != 104 {
		t.Errorf("take profit = %v", pos.TakeProfit)
	}

	if err := l.SetProtection("NOPE", &sl, nil); err != domain.ErrNoPosition {
		t.Errorf("err = %v, want ErrNoPosition", err)
	}
}

func TestAllSnapshotIsStableAndOrdered(t *testing.T) {
	l := New(OvershootFlip)
	l.ApplyFill("ETHUSDT", domain.OrderSideBuy, 1, 100)
	l.ApplyFill("BTCUSDT", domain.OrderSideBuy, 1, 100)

	seq := l.All()

	// Mutations after the snapshot must not show up.
	l.ApplyFill("SOLUSDT", domain.OrderSideBuy, 1, 100)

	var symbols []string
	for pos := range seq {
		symbols = append(symbols, pos.Symbol)
	}
	if len(symbols) != 2 || symbols[0] != "BTCUSDT" || symbols[1] != "ETHUSDT" {
		t.Errorf("symbols = %v", symbols)
	}
}
