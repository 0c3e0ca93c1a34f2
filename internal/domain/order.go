package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType selects the execution style.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus tracks the order lifecycle. Orders are resolved synchronously
// in this design: an order comes back filled, rejected, or cancelled. Live
// execution collaborators bridge any pending state internally.
type OrderStatus string

const (
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is an ephemeral intent/result record produced by the coordinator.
type Order struct {
	ID         string
	Symbol     string
	Side       OrderSide
	Quantity   float64
	Type       OrderType
	Price      float64 // requested price; advisory for market orders
	FillPrice  float64
	Status     OrderStatus
	ExternalID string
	CreatedAt  time.Time
}

// RejectReason identifies which risk check blocked an order.
type RejectReason string

const (
	RejectDailyLossLimit     RejectReason = "daily_loss_limit"
	RejectPositionTooLarge   RejectReason = "position_too_large"
	RejectInsufficientMargin RejectReason = "insufficient_margin"
)

// OrderResult is the typed outcome of a place/close request.
type OrderResult struct {
	Placed      bool
	Reason      RejectReason // set when the risk gate rejected the order
	Order       Order        // resolved fill details when Placed
	RealizedPnL float64      // non-zero when the fill reduced or closed a position
}
