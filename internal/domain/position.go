package domain

import "time"

// Side is the direction of a position's exposure.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the order direction a closing order must take.
func (s Side) Opposite() OrderSide {
	if s == SideLong {
		return OrderSideSell
	}
	return OrderSideBuy
}

// SideForOrder maps an order direction onto the position side it opens.
func SideForOrder(side OrderSide) Side {
	if side == OrderSideBuy {
		return SideLong
	}
	return SideShort
}

// Position is the current net exposure to one instrument. Quantity is always
// positive; Side carries direction. EntryPrice is the quantity-weighted
// average of all same-direction fills since the instrument was last flat.
type Position struct {
	Symbol     string
	Side       Side
	Quantity   float64
	EntryPrice float64
	StopLoss   *float64
	TakeProfit *float64
	OpenedAt   time.Time
}

// UnrealizedPnL marks the position to the given price.
func (p Position) UnrealizedPnL(price float64) float64 {
	if p.Side == SideLong {
		return (price - p.EntryPrice) * p.Quantity
	}
	return (p.EntryPrice - price) * p.Quantity
}
