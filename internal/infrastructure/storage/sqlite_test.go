package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/wyuan/futures_settle_arb/internal/domain"
	"github.com/wyuan/futures_settle_arb/internal/infrastructure/storage"
)

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPositionRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	pos := &domain.Position{
		ID:         "pos-IC0-1",
		Symbol:     "IC0",
		Direction:  domain.DirLong,
		Level:      1,
		Quantity:   1,
		EntryPrice: 5439,
		EntryTime:  time.Date(2024, 6, 3, 14, 56, 0, 0, time.UTC),
		MarginHeld: 130536,
		Status:     domain.PositionOpen,
	}
	if err := store.SavePosition(ctx, pos); err != nil {
		t.Fatalf("SavePosition: %v", err)
	}

	open, err := store.ListPositions(ctx, "IC0", domain.PositionOpen, 10)
	if err != nil {
		t.Fatalf("ListPositions: %v", err)
	}
	if len(open) != 1 || open[0].EntryPrice != 5439 || open[0].Level != 1 {
		t.Fatalf("Open position wrong: %+v", open)
	}

	// Closing is an upsert on the same id, the row moves between filters.
	pos.Status = domain.PositionClosed
	pos.ClosePrice = 5520
	pos.CloseTime = time.Date(2024, 6, 4, 9, 31, 0, 0, time.UTC)
	pos.RealizedPnl = 16149.59
	if err := store.SavePosition(ctx, pos); err != nil {
		t.Fatalf("SavePosition update: %v", err)
	}

	open, err = store.ListPositions(ctx, "IC0", domain.PositionOpen, 10)
	if err != nil {
		t.Fatalf("ListPositions: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("Closed position still listed as open: %+v", open)
	}
	closed, err := store.ListPositions(ctx, "IC0", domain.PositionClosed, 10)
	if err != nil {
		t.Fatalf("ListPositions closed: %v", err)
	}
	if len(closed) != 1 || closed[0].ClosePrice != 5520 || closed[0].CloseTime.IsZero() {
		t.Fatalf("Closed position wrong: %+v", closed)
	}
}

func TestTradeSaveIsIdempotent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	tr := &domain.Trade{
		ID:        "trade-IC0-1",
		Symbol:    "IC0",
		Direction: domain.DirLong,
		Action:    "open",
		Level:     1,
		Quantity:  1,
		Price:     5439,
		Fee:       25.02,
		Time:      time.Date(2024, 6, 3, 14, 56, 0, 0, time.UTC),
	}
	// At-least-once delivery retries the same record.
	for i := 0; i < 3; i++ {
		if err := store.SaveTrade(ctx, tr); err != nil {
			t.Fatalf("SaveTrade attempt %d: %v", i, err)
		}
	}

	trades, err := store.ListTrades(ctx, "IC0", 10)
	if err != nil {
		t.Fatalf("ListTrades: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("Redelivery duplicated the trade, got %d rows", len(trades))
	}
	if trades[0].Price != 5439 || trades[0].Fee != 25.02 {
		t.Errorf("Trade fields wrong: %+v", trades[0])
	}
}

func TestListTradesSymbolFilter(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 3, 14, 56, 0, 0, time.UTC)
	for i, sym := range []string{"IC0", "IM0", "IC0"} {
		tr := &domain.Trade{
			ID:     sym + "-" + string(rune('a'+i)),
			Symbol: sym,
			Action: "open",
			Time:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.SaveTrade(ctx, tr); err != nil {
			t.Fatalf("SaveTrade: %v", err)
		}
	}

	all, err := store.ListTrades(ctx, "", 10)
	if err != nil {
		t.Fatalf("ListTrades all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 trades unfiltered, got %d", len(all))
	}
	if all[0].Time.Before(all[1].Time) {
		t.Error("Trades should list newest first")
	}

	ic, err := store.ListTrades(ctx, "IC0", 10)
	if err != nil {
		t.Fatalf("ListTrades IC0: %v", err)
	}
	if len(ic) != 2 {
		t.Errorf("Expected 2 IC0 trades, got %d", len(ic))
	}
}

func TestSignalAndRiskEventRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	sig := &domain.Signal{
		ID:           "sig-IC0-1",
		Symbol:       "IC0",
		Type:         domain.SignalBuyLevel1,
		TriggerPrice: 5439,
		BasePrice:    5500,
		DropPct:      -0.0111,
		Quantity:     1,
		Executed:     true,
		Time:         time.Date(2024, 6, 3, 14, 56, 0, 0, time.UTC),
	}
	if err := store.SaveSignal(ctx, sig); err != nil {
		t.Fatalf("SaveSignal: %v", err)
	}
	signals, err := store.ListSignals(ctx, "IC0", 10)
	if err != nil {
		t.Fatalf("ListSignals: %v", err)
	}
	if len(signals) != 1 || signals[0].Type != domain.SignalBuyLevel1 || !signals[0].Executed {
		t.Fatalf("Signal wrong: %+v", signals)
	}

	ev := &domain.RiskEvent{
		ID:       "risk-1",
		Reason:   "daily loss limit",
		DailyPnl: -10500,
		Drawdown: 0.021,
		Time:     time.Date(2024, 6, 3, 14, 40, 0, 0, time.UTC),
	}
	if err := store.SaveRiskEvent(ctx, ev); err != nil {
		t.Fatalf("SaveRiskEvent: %v", err)
	}
	events, err := store.ListRiskEvents(ctx, 10)
	if err != nil {
		t.Fatalf("ListRiskEvents: %v", err)
	}
	if len(events) != 1 || events[0].DailyPnl != -10500 {
		t.Fatalf("Risk event wrong: %+v", events)
	}
}
