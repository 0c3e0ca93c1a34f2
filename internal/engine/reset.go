package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dkalman/futuresbot/internal/risk"
)

// EventDailyReset is the notification event emitted on each session reset.
const EventDailyReset = "daily_reset"

// ResetScheduler zeroes the daily P&L accumulator at a fixed wall-clock time
// in the configured timezone, once per day.
type ResetScheduler struct {
	daily    *risk.DailyAccumulator
	hour     int
	minute   int
	loc      *time.Location
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewResetScheduler creates a scheduler firing daily at resetTime ("HH:MM")
// in the given timezone.
func NewResetScheduler(daily *risk.DailyAccumulator, resetTime, timezone string, notifier Notifier, logger *slog.Logger) (*ResetScheduler, error) {
	t, err := time.Parse("15:04", resetTime)
	if err != nil {
		return nil, fmt.Errorf("engine: parse reset time %q: %w", resetTime, err)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("engine: load timezone %q: %w", timezone, err)
	}
	return &ResetScheduler{
		daily:    daily,
		hour:     t.Hour(),
		minute:   t.Minute(),
		loc:      loc,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "reset_scheduler")),
		now:      time.Now,
	}, nil
}

// Run blocks until ctx is cancelled, firing the reset at each scheduled
// time. A failed reset (store down) is logged; the in-memory accumulator is
// still zeroed, so the gate starts the session fresh either way.
func (s *ResetScheduler) Run(ctx context.Context) error {
	for {
		wait := time.Until(s.nextReset())
		s.logger.Info("next daily reset scheduled",
			slog.Duration("in", wait))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if err := s.daily.Reset(ctx); err != nil {
			s.logger.ErrorContext(ctx, "daily reset persistence failed",
				slog.String("error", err.Error()))
		}
		if s.notifier != nil {
			_ = s.notifier.Notify(ctx, EventDailyReset, "Daily reset",
				"daily loss accumulator reset for new session")
		}
	}
}

// nextReset returns the next scheduled fire time strictly after now.
func (s *ResetScheduler) nextReset() time.Time {
	now := s.now().In(s.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
