// Package ledger maintains the live position set: one net position per
// instrument with a quantity-weighted average entry price. It is the single
// owner of that state; the order coordinator is the only writer.
package ledger

import (
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/dkalman/futuresbot/internal/domain"
)

// OvershootPolicy selects what happens when a reducing fill exceeds the open
// quantity. Flip opens a new position on the opposite side with the excess at
// the fill price; Close discards the excess and just flattens.
type OvershootPolicy string

const (
	OvershootFlip  OvershootPolicy = "flip"
	OvershootClose OvershootPolicy = "close"
)

// Ledger tracks open positions keyed by symbol.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]domain.Position
	policy    OvershootPolicy
	now       func() time.Time
}

// New creates an empty Ledger with the given overshoot policy.
func New(policy OvershootPolicy) *Ledger {
	if policy == "" {
		policy = OvershootFlip
	}
	return &Ledger{
		positions: make(map[string]domain.Position),
		policy:    policy,
		now:       time.Now,
	}
}

// ApplyFill applies one executed fill and returns the realized P&L of any
// closed quantity (zero for pure additions) together with the resulting
// position. open is false when the fill left the instrument flat.
//
// The previous position value is only replaced once the new value has been
// fully computed, so a validation failure never corrupts state.
func (l *Ledger) ApplyFill(symbol string, side domain.OrderSide, quantity, price float64) (pnl float64, pos domain.Position, open bool, err error) {
	if quantity <= 0 {
		return 0, domain.Position{}, false, fmt.Errorf("ledger: quantity must be positive, got %v", quantity)
	}
	if price <= 0 {
		return 0, domain.Position{}, false, fmt.Errorf("ledger: price must be positive, got %v", price)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cur, exists := l.positions[symbol]
	if !exists {
		next := domain.Position{
			Symbol:     symbol,
			Side:       domain.SideForOrder(side),
			Quantity:   quantity,
			EntryPrice: price,
			OpenedAt:   l.now().UTC(),
		}
		l.positions[symbol] = next
		return 0, next, true, nil
	}

	if domain.SideForOrder(side) == cur.Side {
		// Same direction: merge into a weighted-average entry.
		next := cur
		total := cur.Quantity + quantity
		next.EntryPrice = (cur.Quantity*cur.EntryPrice + quantity*price) / total
		next.Quantity = total
		l.positions[symbol] = next
		return 0, next, true, nil
	}

	// Opposite direction: reduce, close, or overshoot.
	closed := quantity
	if closed > cur.Quantity {
		closed = cur.Quantity
	}
	pnl = realized(cur.Side, cur.EntryPrice, price, closed)

	remaining := cur.Quantity - quantity
	switch {
	case remaining > 0:
		next := cur
		next.Quantity = remaining
		l.positions[symbol] = next
		return pnl, next, true, nil
	case remaining == 0:
		delete(l.positions, symbol)
		return pnl, domain.Position{}, false, nil
	default:
		delete(l.positions, symbol)
		if l.policy == OvershootClose {
			return pnl, domain.Position{}, false, nil
		}
		flipped := domain.Position{
			Symbol:     symbol,
			Side:       domain.SideForOrder(side),
			Quantity:   -remaining,
			EntryPrice: price,
			OpenedAt:   l.now().UTC(),
		}
		l.positions[symbol] = flipped
		return pnl, flipped, true, nil
	}
}

// SetProtection attaches protective levels to an open position. A nil level
// leaves the corresponding field untouched.
func (l *Ledger) SetProtection(symbol string, stopLoss, takeProfit *float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, ok := l.positions[symbol]
	if !ok {
		return domain.ErrNoPosition
	}
	if stopLoss != nil {
		v := *stopLoss
		cur.StopLoss = &v
	}
	if takeProfit != nil {
		v := *takeProfit
		cur.TakeProfit = &v
	}
	l.positions[symbol] = cur
	return nil
}

// Get returns the open position for symbol, if any.
func (l *Ledger) Get(symbol string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[symbol]
	return pos, ok
}

// Len returns the number of open positions.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

// All returns a restartable sequence over a snapshot of the open positions,
// ordered by symbol. The snapshot is taken once, when All is called; later
// mutations are not reflected.
func (l *Ledger) All() iter.Seq[domain.Position] {
	l.mu.RLock()
	snapshot := make([]domain.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		snapshot = append(snapshot, pos)
	}
	l.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Symbol < snapshot[j].Symbol })

	return func(yield func(domain.Position) bool) {
		for _, pos := range snapshot {
			if !yield(pos) {
				return
			}
		}
	}
}

func realized(side domain.Side, entry, exit, quantity float64) float64 {
	if side == domain.SideLong {
		return (exit - entry) * quantity
	}
	return (entry - exit) * quantity
}
