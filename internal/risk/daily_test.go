package risk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dkalman/futuresbot/internal/domain"
)

type fakePnLStore struct {
	totals  map[string]float64
	loadErr error
	saveErr error
}

func newFakePnLStore() *fakePnLStore {
	return &fakePnLStore{totals: make(map[string]float64)}
}

func (f *fakePnLStore) RecordDailyPnL(_ context.Context, day time.Time, pnl float64) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.totals[day.Format(time.DateOnly)] = pnl
	return nil
}

func (f *fakePnLStore) GetDailyPnL(_ context.Context, day time.Time) (float64, error) {
	if f.loadErr != nil {
		return 0, f.loadErr
	}
	pnl, ok := f.totals[day.Format(time.DateOnly)]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return pnl, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDailyAccumulatorRecordPersists(t *testing.T) {
	store := newFakePnLStore()
	a := NewDailyAccumulator(store, discardLogger())

	if err := a.Record(context.Background(), -120); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := a.Record(context.Background(), 30); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got := a.Current(); got != -90 {
		t.Errorf("Current = %v, want -90", got)
	}

	key := tradingDay(time.Now()).Format(time.DateOnly)
	if store.totals[key] != -90 {
		t.Errorf("persisted total = %v, want -90", store.totals[key])
	}
}

func TestDailyAccumulatorLoadResumes(t *testing.T) {
	store := newFakePnLStore()
	store.totals[tradingDay(time.Now()).Format(time.DateOnly)] = -250

	a := NewDailyAccumulator(store, discardLogger())
	if err := a.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := a.Current(); got != -250 {
		t.Errorf("Current = %v, want -250", got)
	}
}

func TestDailyAccumulatorLoadFreshDay(t *testing.T) {
	a := NewDailyAccumulator(newFakePnLStore(), discardLogger())
	if err := a.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := a.Current(); got != 0 {
		t.Errorf("Current = %v, want 0", got)
	}
}

func TestDailyAccumulatorReset(t *testing.T) {
	store := newFakePnLStore()
	a := NewDailyAccumulator(store, discardLogger())

	a.Record(context.Background(), -300)
	if err := a.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := a.Current(); got != 0 {
		t.Errorf("Current = %v, want 0 after reset", got)
	}
}

func TestDailyAccumulatorRecordKeepsTotalOnStoreError(t *testing.T) {
	store := newFakePnLStore()
	store.saveErr = errors.New("db down")
	a := NewDailyAccumulator(store, discardLogger())

	err := a.Record(context.Background(), -75)
	var perr *domain.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	// The in-memory total still counts the loss.
	if got := a.Current(); got != -75 {
		t.Errorf("Current = %v, want -75", got)
	}
}
