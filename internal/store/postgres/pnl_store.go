package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkalman/futuresbot/internal/domain"
)

// PnLStore implements domain.PnLStore using PostgreSQL.
type PnLStore struct {
	pool *pgxpool.Pool
}

// NewPnLStore creates a new PnLStore backed by the given connection pool.
func NewPnLStore(pool *pgxpool.Pool) *PnLStore {
	return &PnLStore{pool: pool}
}

var _ domain.PnLStore = (*PnLStore)(nil)

// RecordDailyPnL upserts the running total for one trading day.
func (s *PnLStore) RecordDailyPnL(ctx context.Context, day time.Time, pnl float64) error {
	const query = `
		INSERT INTO daily_pnl (day, pnl, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (day) DO UPDATE SET pnl = EXCLUDED.pnl, updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, day, pnl); err != nil {
		return fmt.Errorf("postgres: record daily pnl: %w", err)
	}
	return nil
}

// GetDailyPnL returns the persisted total for a trading day, or
// domain.ErrNotFound when the day has no row yet.
func (s *PnLStore) GetDailyPnL(ctx context.Context, day time.Time) (float64, error) {
	var pnl float64
	err := s.pool.QueryRow(ctx,
		`SELECT pnl FROM daily_pnl WHERE day = $1`, day,
	).Scan(&pnl)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("postgres: get daily pnl: %w", err)
	}
	return pnl, nil
}
