package domain

import "context"

// PriceCache is a latest-value register for quotes. The feed is the single
// producer; the control loop reads snapshots and never blocks the producer.
type PriceCache interface {
	SetQuote(ctx context.Context, quote Quote) error
	GetQuote(ctx context.Context, symbol string) (Quote, error)
}

// SignalBus is a fire-and-forget event channel for order and position events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
