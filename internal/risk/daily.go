package risk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dkalman/futuresbot/internal/domain"
)

// DailyAccumulator tracks realized P&L for the current trading day and
// mirrors every update into the P&L store, so a restart resumes with the
// correct total.
type DailyAccumulator struct {
	mu     sync.Mutex
	pnl    float64
	day    time.Time
	store  domain.PnLStore
	logger *slog.Logger
	now    func() time.Time
}

func NewDailyAccumulator(store domain.PnLStore, logger *slog.Logger) *DailyAccumulator {
	a := &DailyAccumulator{
		store:  store,
		logger: logger.With(slog.String("component", "daily_accumulator")),
		now:    time.Now,
	}
	a.day = tradingDay(a.now())
	return a
}

// Load fetches the persisted total for the current day. Call once at startup.
func (a *DailyAccumulator) Load(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	pnl, err := a.store.GetDailyPnL(ctx, a.day)
	if err != nil {
		if err == domain.ErrNotFound {
			a.pnl = 0
			return nil
		}
		return fmt.Errorf("risk: load daily pnl: %w", err)
	}
	a.pnl = pnl
	a.logger.Info("resumed daily pnl",
		slog.String("day", a.day.Format(time.DateOnly)),
		slog.Float64("pnl", pnl))
	return nil
}

// Record adds a realized amount to the day's total and persists the new
// total. The in-memory total is updated even if persistence fails, so the
// risk checks stay conservative.
func (a *DailyAccumulator) Record(ctx context.Context, realized float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pnl += realized
	if err := a.store.RecordDailyPnL(ctx, a.day, a.pnl); err != nil {
		return &domain.PersistenceError{Op: "record daily pnl", Cause: err}
	}
	return nil
}

// Reset zeroes the accumulator and advances to the current trading day.
// Called by the scheduler at the start of each session.
func (a *DailyAccumulator) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	prev := a.pnl
	a.pnl = 0
	a.day = tradingDay(a.now())
	a.logger.Info("daily pnl reset",
		slog.String("day", a.day.Format(time.DateOnly)),
		slog.Float64("previous_pnl", prev))
	if err := a.store.RecordDailyPnL(ctx, a.day, 0); err != nil {
		return &domain.PersistenceError{Op: "reset daily pnl", Cause: err}
	}
	return nil
}

// Current returns the running total for the current day.
func (a *DailyAccumulator) Current() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pnl
}

func tradingDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
