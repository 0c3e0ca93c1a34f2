// Package engine wires the risk gate, the position ledger, and the execution
// collaborator into the order pipeline, and runs the protective-trigger
// scanner and the control loop on top of it.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkalman/futuresbot/internal/domain"
	"github.com/dkalman/futuresbot/internal/ledger"
	"github.com/dkalman/futuresbot/internal/risk"
)

// Bus channel and notification event names used by the coordinator.
const (
	ChannelOrders = "orders"

	EventOrderFilled      = "order_filled"
	EventOrderRejected    = "order_rejected"
	EventPositionClosed   = "position_closed"
	EventStopLoss         = "stop_loss"
	EventTakeProfit       = "take_profit"
	EventPersistenceError = "persistence_error"
)

// DefaultPaperBalance is assumed as free margin when no account snapshot has
// ever been recorded (fresh paper-trading database).
const DefaultPaperBalance = 10000

// Notifier delivers operator alerts. Satisfied by *notify.Notifier.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Coordinator sequences every order through resolve price, authorize,
// execute, apply, record. A single mutex covers the whole sequence so the
// risk check and the ledger update are atomic with respect to each other.
type Coordinator struct {
	mu sync.Mutex

	ledger   *ledger.Ledger
	gate     *risk.Gate
	daily    *risk.DailyAccumulator
	exec     domain.Execution
	market   domain.MarketData
	prices   domain.PriceCache
	trades   domain.TradeStore
	accounts domain.AccountStore
	bus      domain.SignalBus
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewCoordinator creates a Coordinator with all required collaborators.
// bus and notifier may be nil; events are then dropped.
func NewCoordinator(
	led *ledger.Ledger,
	gate *risk.Gate,
	daily *risk.DailyAccumulator,
	exec domain.Execution,
	market domain.MarketData,
	prices domain.PriceCache,
	trades domain.TradeStore,
	accounts domain.AccountStore,
	bus domain.SignalBus,
	notifier Notifier,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		ledger:   led,
		gate:     gate,
		daily:    daily,
		exec:     exec,
		market:   market,
		prices:   prices,
		trades:   trades,
		accounts: accounts,
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "coordinator")),
		now:      time.Now,
	}
}

// PlaceOrder runs one order through the full pipeline. A risk rejection is a
// normal outcome: the result carries the reason and err is nil. An execution
// failure returns *domain.ExecutionError with no state mutated. A persistence
// failure after a real fill returns the populated result together with
// *domain.PersistenceError; the fill is never rolled back.
func (c *Coordinator) PlaceOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64, typ domain.OrderType, limitPrice float64) (domain.OrderResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.placeLocked(ctx, symbol, side, quantity, typ, limitPrice)
}

// ClosePosition closes quantity units of the open position on symbol with a
// market order on the opposite side. Zero (or anything not in (0, open qty])
// means close the whole position. Returns domain.ErrNoPosition when flat.
func (c *Coordinator) ClosePosition(ctx context.Context, symbol string, quantity float64) (domain.OrderResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, ok := c.ledger.Get(symbol)
	if !ok {
		return domain.OrderResult{}, domain.ErrNoPosition
	}
	if quantity <= 0 || quantity > pos.Quantity {
		quantity = pos.Quantity
	}
	return c.placeLocked(ctx, symbol, pos.Side.Opposite(), quantity, domain.OrderTypeMarket, 0)
}

func (c *Coordinator) placeLocked(ctx context.Context, symbol string, side domain.OrderSide, quantity float64, typ domain.OrderType, limitPrice float64) (domain.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.OrderResult{}, domain.ErrContextDone
	}

	price, err := c.resolvePrice(ctx, symbol)
	if err != nil {
		return domain.OrderResult{}, err
	}
	refPrice := price
	if typ == domain.OrderTypeLimit && limitPrice > 0 {
		refPrice = limitPrice
	}

	if reason := c.gate.Authorize(quantity, refPrice, c.daily.Current(), c.freeMargin(ctx)); reason != "" {
		c.logger.WarnContext(ctx, "order rejected",
			slog.String("symbol", symbol),
			slog.String("side", string(side)),
			slog.Float64("quantity", quantity),
			slog.String("reason", string(reason)))
		c.publish(ctx, EventOrderRejected, map[string]any{
			"symbol":   symbol,
			"side":     side,
			"quantity": quantity,
			"reason":   reason,
		})
		c.notify(ctx, EventOrderRejected, "Order rejected",
			fmt.Sprintf("%s %s %.4f rejected: %s", symbol, side, quantity, reason))
		return domain.OrderResult{Placed: false, Reason: reason}, nil
	}

	res, err := c.exec.Submit(ctx, domain.SubmitRequest{
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		Type:     typ,
		Price:    refPrice,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "order submission failed",
			slog.String("symbol", symbol),
			slog.String("side", string(side)),
			slog.String("error", err.Error()))
		return domain.OrderResult{}, &domain.ExecutionError{Cause: err}
	}

	order := domain.Order{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		Type:       typ,
		Price:      refPrice,
		FillPrice:  res.FillPrice,
		Status:     res.Status,
		ExternalID: res.ExternalID,
		CreatedAt:  c.now().UTC(),
	}
	if res.Status != domain.OrderStatusFilled {
		c.logger.WarnContext(ctx, "order not filled",
			slog.String("symbol", symbol),
			slog.String("status", string(res.Status)))
		return domain.OrderResult{Placed: false, Order: order}, nil
	}

	pnl, pos, open, err := c.ledger.ApplyFill(symbol, side, quantity, res.FillPrice)
	if err != nil {
		// The exchange filled an order the ledger cannot account for.
		return domain.OrderResult{Order: order}, &domain.PersistenceError{Op: "apply fill", Cause: err}
	}

	// Fresh exposure in the order's direction gets protective levels.
	if open && pos.Side == domain.SideForOrder(side) && pos.StopLoss == nil {
		sl := c.gate.StopLossPrice(pos.Side, pos.EntryPrice)
		tp := c.gate.TakeProfitPrice(pos.Side, pos.EntryPrice)
		if err := c.ledger.SetProtection(symbol, &sl, &tp); err != nil {
			c.logger.ErrorContext(ctx, "failed to set protective levels",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()))
		}
	}

	result := domain.OrderResult{Placed: true, Order: order, RealizedPnL: pnl}

	if perr := c.recordFill(ctx, order, pnl); perr != nil {
		c.logger.ErrorContext(ctx, "fill applied but not durably recorded",
			slog.String("symbol", symbol),
			slog.String("order_id", order.ID),
			slog.String("error", perr.Error()))
		c.notify(ctx, EventPersistenceError, "Persistence failure",
			fmt.Sprintf("fill %s on %s applied but not recorded: %v", order.ID, symbol, perr))
		return result, perr
	}

	c.logger.InfoContext(ctx, "order filled",
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.Float64("quantity", quantity),
		slog.Float64("fill_price", res.FillPrice),
		slog.Float64("realized_pnl", pnl))

	event := EventOrderFilled
	if !open {
		event = EventPositionClosed
	}
	c.publish(ctx, event, map[string]any{
		"order_id":     order.ID,
		"symbol":       symbol,
		"side":         side,
		"quantity":     quantity,
		"fill_price":   res.FillPrice,
		"realized_pnl": pnl,
	})
	c.notify(ctx, event, "Order filled",
		fmt.Sprintf("%s %s %.4f @ %.4f (realized %.2f)", symbol, side, quantity, res.FillPrice, pnl))

	return result, nil
}

// recordFill persists the daily P&L update and the trade row. Both failures
// map to *domain.PersistenceError; state has already advanced.
func (c *Coordinator) recordFill(ctx context.Context, order domain.Order, pnl float64) error {
	if pnl != 0 {
		if err := c.daily.Record(ctx, pnl); err != nil {
			return err
		}
	}

	trade := domain.Trade{
		ID:         order.ID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Price:      order.FillPrice,
		Timestamp:  order.CreatedAt,
		ExternalID: order.ExternalID,
	}
	if pnl != 0 {
		trade.RealizedPnL = &pnl
	}
	if err := c.trades.Insert(ctx, trade); err != nil {
		return &domain.PersistenceError{Op: "insert trade", Cause: err}
	}
	return nil
}

// resolvePrice prefers the feed's cached quote and falls back to a direct
// market-data lookup. Both missing means the order cannot be priced.
func (c *Coordinator) resolvePrice(ctx context.Context, symbol string) (float64, error) {
	if q, err := c.prices.GetQuote(ctx, symbol); err == nil && q.Price > 0 {
		return q.Price, nil
	}
	if c.market != nil {
		q, err := c.market.GetQuote(ctx, symbol)
		if err == nil && q.Price > 0 {
			return q.Price, nil
		}
	}
	return 0, domain.ErrPriceUnavailable
}

// freeMargin reads the latest account snapshot. Mark-to-market margin from a
// stale snapshot is acceptable; the paper default applies when there has
// never been one.
func (c *Coordinator) freeMargin(ctx context.Context) float64 {
	snap, err := c.accounts.Latest(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.WarnContext(ctx, "account snapshot unavailable, using default balance",
				slog.String("error", err.Error()))
		}
		return DefaultPaperBalance
	}
	return snap.FreeMargin
}

func (c *Coordinator) publish(ctx context.Context, event string, fields map[string]any) {
	if c.bus == nil {
		return
	}
	fields["type"] = event
	fields["ts"] = c.now().UTC().Format(time.RFC3339Nano)
	payload, err := json.Marshal(fields)
	if err != nil {
		return
	}
	if err := c.bus.Publish(ctx, ChannelOrders, payload); err != nil {
		c.logger.DebugContext(ctx, "event publish failed",
			slog.String("event", event),
			slog.String("error", err.Error()))
	}
}

func (c *Coordinator) notify(ctx context.Context, event, title, message string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, event, title, message); err != nil {
		c.logger.DebugContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()))
	}
}
