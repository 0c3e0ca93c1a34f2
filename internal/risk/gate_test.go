package risk

import (
	"math"
	"testing"

	"github.com/dkalman/futuresbot/internal/domain"
)

func testLimits() Limits {
	return Limits{
		MaxDailyLoss:    500,
		MaxPositionSize: 10,
		MarginRate:      0.10,
		StopLossPct:     2,
		TakeProfitPct:   4,
		Volatility:      0.02,
	}
}

func TestAuthorizeOrderOfChecks(t *testing.T) {
	g := NewGate(testLimits())

	tests := []struct {
		name       string
		qty, price float64
		dailyPnL   float64
		freeMargin float64
		want       domain.RejectReason
	}{
		{"all clear", 5, 100, 0, 10000, ""},
		{"daily loss at limit", 5, 100, -500, 10000, domain.RejectDailyLossLimit},
		{"daily loss past limit", 5, 100, -600, 10000, domain.RejectDailyLossLimit},
		{"size over cap", 11, 100, 0, 10000, domain.RejectPositionTooLarge},
		{"margin short", 5, 100, 0, 49, domain.RejectInsufficientMargin},
		{"margin exactly sufficient", 5, 100, 0, 50, ""},
		// Daily loss wins even when size and margin would also fail.
		{"daily loss reported first", 20, 100, -500, 0, domain.RejectDailyLossLimit},
		// Size wins over margin.
		{"size reported before margin", 20, 100, 0, 0, domain.RejectPositionTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Authorize(tt.qty, tt.price, tt.dailyPnL, tt.freeMargin)
			if got != tt.want {
				t.Errorf("Authorize(%v, %v, %v, %v) = %q, want %q",
					tt.qty, tt.price, tt.dailyPnL, tt.freeMargin, got, tt.want)
			}
		})
	}
}

func TestProtectiveLevels(t *testing.T) {
	g := NewGate(testLimits())

	if got := g.StopLossPrice(domain.SideLong, 100); math.Abs(got-98) > 1e-9 {
		t.Errorf("long stop = %v, want 98", got)
	}
	if got := g.StopLossPrice(domain.SideShort, 100); math.Abs(got-102) > 1e-9 {
		t.Errorf("short stop = %v, want 102", got)
	}
	if got := g.TakeProfitPrice(domain.SideLong, 100); math.Abs(got-104) > 1e-9 {
		t.Errorf("long target = %v, want 104", got)
	}
	if got := g.TakeProfitPrice(domain.SideShort, 100); math.Abs(got-96) > 1e-9 {
		t.Errorf("short target = %v, want 96", got)
	}
}

func TestPositionVaR(t *testing.T) {
	g := NewGate(testLimits())

	// 5 * 100 * 0.02 * 1.645
	want := 16.45
	if got := g.PositionVaR(5, 100); math.Abs(got-want) > 1e-9 {
		t.Errorf("PositionVaR = %v, want %v", got, want)
	}
}
