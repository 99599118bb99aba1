package main

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestReconcileDetectsExternalFill(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()

	// The ledger thinks a long is open; the venue never saw it (its bracket
	// filled and flattened the book on the exchange side).
	e.ledger.MarkOpen("BTCUSDT", SideLong, dec("0.5"), dec("100"), clock.now())
	e.reconcile(ctx, "BTCUSDT", Snapshot{Close: 101})

	if e.ledger.Get("BTCUSDT", SideLong).Open() {
		t.Fatalf("externally filled book should be flat after reconcile")
	}
	if e.trades != 1 {
		t.Fatalf("trades = %d, want 1 recorded exit", e.trades)
	}
	// The winning exit leaves the streak at zero.
	if e.governor.Streak() != 0 {
		t.Fatalf("streak = %d, want 0", e.governor.Streak())
	}
	if _, err := os.Stat(e.cfg.TradeLogFile); err != nil {
		t.Fatalf("trade log not written: %v", err)
	}
}

func TestReconcileAdoptsVenuePosition(t *testing.T) {
	e, paper, _ := newTestEngine(t)
	ctx := context.Background()

	// The venue holds a short the ledger knows nothing about (restart case).
	paper.SetMarkPrice("BTCUSDT", 200)
	if _, err := paper.PlaceMarketEntry(ctx, "BTCUSDT", SideSell, dec("0.3")); err != nil {
		t.Fatalf("seed venue position: %v", err)
	}
	e.reconcile(ctx, "BTCUSDT", Snapshot{Close: 200})

	pos := e.ledger.Get("BTCUSDT", SideShort)
	if !pos.Open() || !pos.Qty.Equal(dec("0.3")) {
		t.Fatalf("adopted book qty = %s open=%v, want 0.3 open", pos.Qty, pos.Open())
	}
	if !pos.EntryPrice.Equal(dec("200")) {
		t.Fatalf("adopted entry = %s, want 200", pos.EntryPrice)
	}
}

func TestCanOpenGates(t *testing.T) {
	e, _, clock := newTestEngine(t)

	// Side already busy.
	e.ledger.MarkOpen("BTCUSDT", SideLong, dec("1"), dec("100"), clock.now())
	if e.canOpen("BTCUSDT", SideLong) {
		t.Fatalf("canOpen should refuse a busy side")
	}
	// The opposite side of the same symbol is independent.
	if !e.canOpen("BTCUSDT", SideShort) {
		t.Fatalf("canOpen should allow the free side")
	}

	// Aggregate capacity.
	e.ledger.MarkOpen("ETHUSDT", SideShort, dec("1"), dec("50"), clock.now())
	if e.canOpen("SOLUSDT", SideLong) {
		t.Fatalf("canOpen should refuse past MaxOpenPositions=%d", e.cfg.MaxOpenPositions)
	}
}

func TestGovernorPauseBlocksEntries(t *testing.T) {
	paper := NewPaperBroker()
	cfg := testConfig(t.TempDir())
	cfg.LossStreakAction = LossActionPause
	e := NewEngine(cfg, paper, NewTelemetry(cfg))
	if err := e.Prepare(context.Background()); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	clock := newFakeClock()
	e.now = clock.now

	for i := 0; i < cfg.LossStreakLimit; i++ {
		e.governor.RecordTrade(TradeRecord{PnlPct: -1}, clock.now())
	}
	if e.canOpen("BTCUSDT", SideLong) {
		t.Fatalf("canOpen should refuse during a governor pause")
	}
	clock.advance(cfg.LossPauseFor + time.Second)
	if !e.canOpen("BTCUSDT", SideLong) {
		t.Fatalf("canOpen should allow entries after the pause expires")
	}
}

func TestTrySignalEntryOpensAndArms(t *testing.T) {
	e, paper, _ := newTestEngine(t)
	ctx := context.Background()

	paper.SetMarkPrice("BTCUSDT", 50000)
	snap := Snapshot{Close: 50000, ATR: 75} // usable ATR shapes the brackets
	e.trySignalEntry(ctx, "BTCUSDT", Buy, snap, testFilters())

	pos := e.ledger.Get("BTCUSDT", SideLong)
	if !pos.Open() || !pos.Qty.Equal(dec("0.028")) {
		t.Fatalf("position qty = %s open=%v, want 0.028 open", pos.Qty, pos.Open())
	}
	if qty, _, _ := paper.GetPositionState(ctx, "BTCUSDT", SideLong); !qty.Equal(dec("0.028")) {
		t.Fatalf("venue qty = %s, want 0.028", qty)
	}
	if legs := paper.OpenBrackets("BTCUSDT", SideLong); len(legs) != 2 {
		t.Fatalf("protective legs = %d, want 2", len(legs))
	}
	if e.entries != 1 {
		t.Fatalf("entries = %d, want 1", e.entries)
	}
}

func TestTryEventEntryAndCooldown(t *testing.T) {
	e, paper, clock := newTestEngine(t)
	ctx := context.Background()

	paper.SetMarkPrice("BTCUSDT", 50000)
	ev := PriceEvent{Kind: EventCollapse, Magnitude: 1.4}
	snap := Snapshot{Close: 50000, ATR: 120}

	e.tryEventEntry(ctx, "BTCUSDT", ev, snap, testFilters())
	pos := e.ledger.Get("BTCUSDT", SideLong)
	if !pos.Open() {
		t.Fatalf("collapse event should open a contrarian long")
	}
	// Half the signal-path quantity: 0.028 * 0.5 = 0.014.
	if !pos.Qty.Equal(dec("0.014")) {
		t.Fatalf("event qty = %s, want 0.014", pos.Qty)
	}
	if pos.LastEventAt.IsZero() {
		t.Fatalf("event timestamp not stamped")
	}
	if legs := paper.OpenBrackets("BTCUSDT", SideLong); len(legs) != 2 {
		t.Fatalf("event entry should arm both legs, got %d", len(legs))
	}

	// A refire inside the cooldown is ignored even with the book flat again;
	// MarkClosed keeps the event timestamp on purpose.
	e.ledger.MarkClosed("BTCUSDT", SideLong, dec("50100"), clock.now())
	clock.advance(30 * time.Second)
	e.tryEventEntry(ctx, "BTCUSDT", ev, snap, testFilters())
	if e.ledger.Get("BTCUSDT", SideLong).Open() {
		t.Fatalf("event refired inside the cooldown")
	}

	// Past the cooldown the same event may fire again.
	clock.advance(e.cfg.EventCooldown)
	e.tryEventEntry(ctx, "BTCUSDT", ev, snap, testFilters())
	if !e.ledger.Get("BTCUSDT", SideLong).Open() {
		t.Fatalf("event entry should fire after the cooldown")
	}
}

func TestStepHoldsOnQuietMarket(t *testing.T) {
	e, paper, _ := newTestEngine(t)
	ctx := context.Background()

	// A dead-flat tape: every filter gate rejects, nothing opens.
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	paper.SeedCandles("BTCUSDT", "1m", candlesFromCloses(closes...))

	if err := e.step(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("step: %v", err)
	}
	if e.ledger.OpenCount() != 0 {
		t.Fatalf("quiet market opened %d positions", e.ledger.OpenCount())
	}
	if e.entries != 0 {
		t.Fatalf("entries = %d, want 0", e.entries)
	}
}

func TestStepWithoutCandlesFails(t *testing.T) {
	paper := NewPaperBroker()
	cfg := testConfig(t.TempDir())
	e := NewEngine(cfg, paper, NewTelemetry(cfg))
	if err := e.Prepare(context.Background()); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	// Bound the retries so the test stays fast.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := e.step(ctx, "BTCUSDT"); err == nil {
		t.Fatalf("step without seeded candles should fail")
	}
}
