package domain

import "time"

// Trade is the append-only persisted record of one fill. RealizedPnL is set
// only on fills that reduced or closed a position.
type Trade struct {
	ID          string
	Symbol      string
	Side        OrderSide
	Quantity    float64
	Price       float64
	Timestamp   time.Time
	ExternalID  string
	RealizedPnL *float64
}

// AccountSnapshot is the latest known account state, used for margin checks.
type AccountSnapshot struct {
	Timestamp  time.Time
	Balance    float64
	Equity     float64
	MarginUsed float64
	FreeMargin float64
}
