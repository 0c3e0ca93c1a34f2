package domain

import (
	"context"
	"time"
)

// SignalAction is the trading action a signal source recommends.
type SignalAction string

const (
	SignalBuy   SignalAction = "buy"
	SignalSell  SignalAction = "sell"
	SignalClose SignalAction = "close"
	SignalHold  SignalAction = "hold"
)

// Signal is an opaque trading recommendation for one symbol. The core does
// not care how it was computed.
type Signal struct {
	Symbol    string
	Action    SignalAction
	Quantity  float64
	Reason    string
	Timestamp time.Time
}

// SignalSource produces signals for the control loop. Evaluate returns
// SignalHold when there is nothing to do.
type SignalSource interface {
	Evaluate(ctx context.Context, symbol string) (Signal, error)
}
