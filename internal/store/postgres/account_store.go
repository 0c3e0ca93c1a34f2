package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkalman/futuresbot/internal/domain"
)

// AccountStore implements domain.AccountStore using PostgreSQL.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates a new AccountStore backed by the given connection pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

var _ domain.AccountStore = (*AccountStore)(nil)

// SaveSnapshot appends one account snapshot.
func (s *AccountStore) SaveSnapshot(ctx context.Context, snap domain.AccountSnapshot) error {
	const query = `
		INSERT INTO account_balance (timestamp, balance, equity, margin_used, free_margin)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := s.pool.Exec(ctx, query,
		snap.Timestamp, snap.Balance, snap.Equity, snap.MarginUsed, snap.FreeMargin,
	)
	if err != nil {
		return fmt.Errorf("postgres: save account snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot, or domain.ErrNotFound when none
// has ever been recorded.
func (s *AccountStore) Latest(ctx context.Context) (domain.AccountSnapshot, error) {
	var snap domain.AccountSnapshot
	err := s.pool.QueryRow(ctx,
		`SELECT timestamp, balance, equity, margin_used, free_margin
		 FROM account_balance ORDER BY timestamp DESC LIMIT 1`,
	).Scan(&snap.Timestamp, &snap.Balance, &snap.Equity, &snap.MarginUsed, &snap.FreeMargin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AccountSnapshot{}, domain.ErrNotFound
		}
		return domain.AccountSnapshot{}, fmt.Errorf("postgres: latest account snapshot: %w", err)
	}
	return snap, nil
}
