package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dkalman/futuresbot/internal/risk"
)

func newResetScheduler(t *testing.T, resetTime, tz string) *ResetScheduler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	daily := risk.NewDailyAccumulator(&fakePnL{totals: map[string]float64{}}, logger)
	s, err := NewResetScheduler(daily, resetTime, tz, nil, logger)
	if err != nil {
		t.Fatalf("NewResetScheduler: %v", err)
	}
	return s
}

func TestNextResetLaterToday(t *testing.T) {
	s := newResetScheduler(t, "09:30", "UTC")
	s.now = func() time.Time {
		return time.Date(2026, 8, 29, 7, 0, 0, 0, time.UTC)
	}

	next := s.nextReset()
	want := time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNextResetRollsToTomorrow(t *testing.T) {
	s := newResetScheduler(t, "09:30", "UTC")
	s.now = func() time.Time {
		return time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC)
	}

	next := s.nextReset()
	want := time.Date(2026, 8, 30, 9, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}
}

func TestNewResetSchedulerRejectsBadInput(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	daily := risk.NewDailyAccumulator(&fakePnL{totals: map[string]float64{}}, logger)

	if _, err := NewResetScheduler(daily, "25:00", "UTC", nil, logger); err == nil {
		t.Error("expected error for invalid time")
	}
	if _, err := NewResetScheduler(daily, "09:30", "Mars/Olympus", nil, logger); err == nil {
		t.Error("expected error for unknown timezone")
	}
}
