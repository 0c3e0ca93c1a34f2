// Package risk holds the pre-trade authorization checks and the running
// daily P&L accumulator that feeds them.
package risk

import "github.com/dkalman/futuresbot/internal/domain"

// Limits are the static risk parameters. MarginRate is the fraction of
// notional that must be available as free margin; VaRConfidence is the
// one-tailed z-score used for value-at-risk estimates.
type Limits struct {
	MaxDailyLoss    float64
	MaxPositionSize float64
	MarginRate      float64
	StopLossPct     float64
	TakeProfitPct   float64
	Volatility      float64
	VaRConfidence   float64
}

// DefaultVaRConfidence is the z-score for a 95% one-tailed interval.
const DefaultVaRConfidence = 1.645

// Gate evaluates orders against the configured limits. It holds no mutable
// state; every input it judges is passed in by the caller.
type Gate struct {
	limits Limits
}

func NewGate(limits Limits) *Gate {
	if limits.VaRConfidence == 0 {
		limits.VaRConfidence = DefaultVaRConfidence
	}
	return &Gate{limits: limits}
}

// Authorize runs the pre-trade checks in a fixed order and returns the first
// failing reason, or empty when the order may proceed:
//
//  1. the day's realized loss has reached the daily limit
//  2. the order quantity exceeds the per-order size cap
//  3. the required margin exceeds the free margin
func (g *Gate) Authorize(quantity, price, dailyPnL, freeMargin float64) domain.RejectReason {
	if dailyPnL <= -g.limits.MaxDailyLoss {
		return domain.RejectDailyLossLimit
	}
	if quantity > g.limits.MaxPositionSize {
		return domain.RejectPositionTooLarge
	}
	if quantity*price*g.limits.MarginRate > freeMargin {
		return domain.RejectInsufficientMargin
	}
	return ""
}

// StopLossPrice returns the protective stop for an entry: below entry for
// longs, above for shorts.
func (g *Gate) StopLossPrice(side domain.Side, entry float64) float64 {
	if side == domain.SideLong {
		return entry * (1 - g.limits.StopLossPct/100)
	}
	return entry * (1 + g.limits.StopLossPct/100)
}

// TakeProfitPrice returns the profit target for an entry, mirrored around
// the side the same way as StopLossPrice.
func (g *Gate) TakeProfitPrice(side domain.Side, entry float64) float64 {
	if side == domain.SideLong {
		return entry * (1 + g.limits.TakeProfitPct/100)
	}
	return entry * (1 - g.limits.TakeProfitPct/100)
}

// PositionVaR estimates the position's value at risk as
// notional * volatility * confidence z-score.
func (g *Gate) PositionVaR(quantity, price float64) float64 {
	return quantity * price * g.limits.Volatility * g.limits.VaRConfidence
}

// Limits returns the configured limits.
func (g *Gate) Limits() Limits { return g.limits }
