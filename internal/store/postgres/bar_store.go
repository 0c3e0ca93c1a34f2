package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkalman/futuresbot/internal/domain"
)

// BarStore implements domain.BarStore using PostgreSQL.
type BarStore struct {
	pool *pgxpool.Pool
}

// NewBarStore creates a new BarStore backed by the given connection pool.
func NewBarStore(pool *pgxpool.Pool) *BarStore {
	return &BarStore{pool: pool}
}

var _ domain.BarStore = (*BarStore)(nil)

// Upsert stores one candle, overwriting a previous version of the same
// (symbol, timestamp). The poller re-fetches the open candle until it closes.
func (s *BarStore) Upsert(ctx context.Context, symbol string, bar domain.Bar) error {
	const query = `
		INSERT INTO price_history (symbol, timestamp, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, timestamp) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume`
	_, err := s.pool.Exec(ctx, query,
		symbol, bar.Timestamp, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert bar: %w", err)
	}
	return nil
}

// ListRecent returns the latest candles for a symbol, oldest first, so
// callers can feed them straight into indicator windows.
func (s *BarStore) ListRecent(ctx context.Context, symbol string, limit int) ([]domain.Bar, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT timestamp, open, high, low, close, volume FROM (
			SELECT timestamp, open, high, low, close, volume
			FROM price_history WHERE symbol = $1
			ORDER BY timestamp DESC LIMIT $2
		 ) recent ORDER BY timestamp ASC`,
		symbol, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent bars: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
