package domain

import (
	"context"
	"time"
)

// TradeStore persists the append-only trade log.
type TradeStore interface {
	Insert(ctx context.Context, trade Trade) error
	ListBySymbol(ctx context.Context, symbol string, limit int) ([]Trade, error)
	ListBefore(ctx context.Context, before time.Time) ([]Trade, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// PnLStore persists the daily realized P&L total, keyed by trading day.
type PnLStore interface {
	RecordDailyPnL(ctx context.Context, day time.Time, pnl float64) error
	GetDailyPnL(ctx context.Context, day time.Time) (float64, error)
}

// AccountStore persists account balance snapshots.
type AccountStore interface {
	SaveSnapshot(ctx context.Context, snap AccountSnapshot) error
	Latest(ctx context.Context) (AccountSnapshot, error)
}

// BarStore persists OHLCV price history.
type BarStore interface {
	Upsert(ctx context.Context, symbol string, bar Bar) error
	ListRecent(ctx context.Context, symbol string, limit int) ([]Bar, error)
}
