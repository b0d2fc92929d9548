package statestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dommurphy155/Very-last-try/internal/types"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "state.json"), nil)
}

func sampleTrade(id string) *types.OpenTrade {
	return &types.OpenTrade{
		ID:           id,
		Instrument:   "EUR_USD",
		Side:         types.SideLong,
		Units:        5000,
		EntryPrice:   d("1.1000"),
		StopLoss:     d("1.0985"),
		TakeProfit:   d("1.1018"),
		TrailingMark: d("1.1000"),
		OpenedAt:     time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		State:        types.TradeStateOpen,
	}
}

func TestLoadMissingFileStartsFresh(t *testing.T) {
	store := tempStore(t)

	state, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(state.OpenTrades) != 0 || state.Version != CurrentVersion {
		t.Errorf("fresh state = %+v", state)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := tempStore(t)
	ctx := context.Background()

	state := NewBotState()
	state.Day = "2026-01-05"
	state.StartOfDayEquity = d("10000")
	state.DailyRealizedPL = d("-35.20")
	state.PeakEquity = d("10350.55")
	state.ConsecutiveLosses = 2
	state.SkippedExecutions = 7
	state.AddTrade(sampleTrade("t-1"))
	state.PerformanceFor("EUR_USD").Weight = d("1.15")

	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Day != "2026-01-05" {
		t.Errorf("day = %s", loaded.Day)
	}
	if !loaded.DailyRealizedPL.Equal(d("-35.20")) {
		t.Errorf("daily pl = %s", loaded.DailyRealizedPL)
	}
	if !loaded.PeakEquity.Equal(d("10350.55")) {
		t.Errorf("peak = %s", loaded.PeakEquity)
	}
	if loaded.ConsecutiveLosses != 2 || loaded.SkippedExecutions != 7 {
		t.Errorf("counters = %d, %d", loaded.ConsecutiveLosses, loaded.SkippedExecutions)
	}

	trade, ok := loaded.OpenTrades["t-1"]
	if !ok {
		t.Fatal("trade t-1 missing after round trip")
	}
	if !trade.EntryPrice.Equal(d("1.1000")) || trade.Side != types.SideLong {
		t.Errorf("trade = %+v", trade)
	}
	if !loaded.PerformanceFor("EUR_USD").Weight.Equal(d("1.15")) {
		t.Errorf("weight = %s", loaded.PerformanceFor("EUR_USD").Weight)
	}
}

func TestSaveReplacesAtomically(t *testing.T) {
	store := tempStore(t)
	ctx := context.Background()

	state := NewBotState()
	state.Day = "2026-01-05"
	if err := store.Save(ctx, state); err != nil {
		t.Fatal(err)
	}

	state.Day = "2026-01-06"
	if err := store.Save(ctx, state); err != nil {
		t.Fatal(err)
	}

	// No temp files may survive a successful save.
	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d files, want just the state file", len(entries))
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Day != "2026-01-06" {
		t.Errorf("day = %s, want the second save", loaded.Day)
	}
}

func TestLoadCorruptedFile(t *testing.T) {
	store := tempStore(t)

	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := store.Load(context.Background())
	var corrupt *types.StateCorruptionError
	if !errors.As(err, &corrupt) {
		t.Fatalf("err = %v, want StateCorruptionError", err)
	}
}

func TestLoadRejectsInvariantViolations(t *testing.T) {
	store := tempStore(t)
	ctx := context.Background()

	// Trade keyed under the wrong ID.
	state := NewBotState()
	state.OpenTrades["wrong-key"] = sampleTrade("t-1")
	if err := store.Save(ctx, state); err != nil {
		t.Fatal(err)
	}

	_, err := store.Load(ctx)
	var corrupt *types.StateCorruptionError
	if !errors.As(err, &corrupt) {
		t.Fatalf("err = %v, want StateCorruptionError for key mismatch", err)
	}

	// Finalized trade retained in the active set.
	closed := sampleTrade("t-2")
	closed.State = types.TradeStateClosed
	state = NewBotState()
	state.OpenTrades["t-2"] = closed
	if err := store.Save(ctx, state); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(ctx); !errors.As(err, &corrupt) {
		t.Fatalf("err = %v, want StateCorruptionError for finalized trade", err)
	}
}

func TestRollDay(t *testing.T) {
	state := NewBotState()
	state.Day = "2026-01-05"
	state.DailyRealizedPL = d("-120")
	state.WinsToday = 3
	state.LossesToday = 4
	state.ConsecutiveLosses = 2

	// Same day: nothing changes.
	sameDay := time.Date(2026, 1, 5, 23, 0, 0, 0, time.UTC)
	if state.RollDay(sameDay, d("9900")) {
		t.Fatal("same day must not roll")
	}

	nextDay := time.Date(2026, 1, 6, 0, 5, 0, 0, time.UTC)
	if !state.RollDay(nextDay, d("9880")) {
		t.Fatal("new day must roll")
	}
	if state.Day != "2026-01-06" {
		t.Errorf("day = %s", state.Day)
	}
	if !state.StartOfDayEquity.Equal(d("9880")) {
		t.Errorf("start of day equity = %s", state.StartOfDayEquity)
	}
	if !state.DailyRealizedPL.IsZero() || state.WinsToday != 0 || state.LossesToday != 0 {
		t.Error("daily counters must reset on rollover")
	}
	// The loss streak survives rollover; it is not a daily figure.
	if state.ConsecutiveLosses != 2 {
		t.Errorf("consecutive losses = %d, want 2", state.ConsecutiveLosses)
	}
}

func closedTrade(instrument string, pips, pl string) *types.ClosedTrade {
	return &types.ClosedTrade{
		ID:           "t-1",
		Instrument:   instrument,
		Side:         types.SideLong,
		RealizedPips: d(pips),
		RealizedPL:   d(pl),
	}
}

func TestApplyCloseOnWin(t *testing.T) {
	state := NewBotState()
	state.ConsecutiveLosses = 3
	state.AddTrade(sampleTrade("t-1"))

	state.ApplyClose(closedTrade("EUR_USD", "12", "18.00"))

	if len(state.OpenTrades) != 0 {
		t.Error("closed trade must leave the active set")
	}
	if state.WinsToday != 1 || state.ConsecutiveLosses != 0 {
		t.Errorf("wins=%d streak=%d", state.WinsToday, state.ConsecutiveLosses)
	}
	if !state.DailyRealizedPL.Equal(d("18.00")) {
		t.Errorf("daily pl = %s", state.DailyRealizedPL)
	}
	if !state.PerformanceFor("EUR_USD").Weight.Equal(d("1.05")) {
		t.Errorf("weight after win = %s, want 1.05", state.PerformanceFor("EUR_USD").Weight)
	}
}

func TestApplyCloseOnLoss(t *testing.T) {
	state := NewBotState()
	state.AddTrade(sampleTrade("t-1"))

	state.ApplyClose(closedTrade("EUR_USD", "-15", "-22.50"))

	if state.LossesToday != 1 || state.ConsecutiveLosses != 1 {
		t.Errorf("losses=%d streak=%d", state.LossesToday, state.ConsecutiveLosses)
	}
	if !state.PerformanceFor("EUR_USD").Weight.Equal(d("0.9")) {
		t.Errorf("weight after loss = %s, want 0.9", state.PerformanceFor("EUR_USD").Weight)
	}
}

func TestPerformanceWeightBounds(t *testing.T) {
	state := NewBotState()

	// Wins cap the weight at 1.5.
	for i := 0; i < 20; i++ {
		state.ApplyClose(closedTrade("EUR_USD", "10", "15"))
	}
	if !state.PerformanceFor("EUR_USD").Weight.Equal(d("1.5")) {
		t.Errorf("weight ceiling = %s, want 1.5", state.PerformanceFor("EUR_USD").Weight)
	}

	// Losses floor it at 0.5.
	for i := 0; i < 20; i++ {
		state.ApplyClose(closedTrade("EUR_USD", "-10", "-15"))
	}
	if !state.PerformanceFor("EUR_USD").Weight.Equal(d("0.5")) {
		t.Errorf("weight floor = %s, want 0.5", state.PerformanceFor("EUR_USD").Weight)
	}
}
