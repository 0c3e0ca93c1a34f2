package domain

import (
	"context"
	"time"
)

// Quote is the latest observed price for a symbol.
type Quote struct {
	Symbol    string
	Price     float64
	Bid       float64
	Ask       float64
	Timestamp time.Time
}

// Bar is one OHLCV candle.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// MarketData provides price and candle lookups from the brokerage/exchange.
type MarketData interface {
	GetQuote(ctx context.Context, symbol string) (Quote, error)
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error)
}

// SubmitRequest carries one order to the execution collaborator.
type SubmitRequest struct {
	Symbol   string
	Side     OrderSide
	Quantity float64
	Type     OrderType
	Price    float64 // required for limit orders, advisory for market
}

// SubmitResult reports the resolved outcome of a submission.
type SubmitResult struct {
	ExternalID string
	FillPrice  float64
	Status     OrderStatus
}

// Execution submits orders to the brokerage/exchange (or a paper simulator).
// Submit resolves synchronously; a non-nil error means nothing was executed.
type Execution interface {
	Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error)
	Cancel(ctx context.Context, externalID string) error
}
