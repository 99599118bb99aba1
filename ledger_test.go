package main

import (
	"testing"
	"time"
)

func TestLedgerOpenClose(t *testing.T) {
	l := NewLedger()
	now := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

	if l.Get("BTCUSDT", SideLong).Open() {
		t.Fatalf("fresh book must be flat")
	}
	l.MarkOpen("BTCUSDT", SideLong, dec("0.5"), dec("100"), now)
	if !l.Get("BTCUSDT", SideLong).Open() {
		t.Fatalf("book should be open after MarkOpen")
	}
	if l.OpenCount() != 1 {
		t.Fatalf("OpenCount = %d, want 1", l.OpenCount())
	}

	rec := l.MarkClosed("BTCUSDT", SideLong, dec("102"), now.Add(time.Minute))
	if l.Get("BTCUSDT", SideLong).Open() {
		t.Fatalf("book should be flat after MarkClosed")
	}
	if rec.PnlPct < 1.99 || rec.PnlPct > 2.01 {
		t.Fatalf("long 100 -> 102 pnl = %v, want ~2%%", rec.PnlPct)
	}
	if rec.Losing() {
		t.Fatalf("a winning trade reported as losing")
	}
}

func TestLedgerBlendedAdd(t *testing.T) {
	l := NewLedger()
	now := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

	l.MarkOpen("ETHUSDT", SideLong, dec("1"), dec("100"), now)
	l.MarkAdd("ETHUSDT", SideLong, dec("1"), dec("110"))

	p := l.Get("ETHUSDT", SideLong)
	if !p.Qty.Equal(dec("2")) {
		t.Fatalf("qty after add = %s, want 2", p.Qty)
	}
	if !p.EntryPrice.Equal(dec("105")) {
		t.Fatalf("blended entry = %s, want 105", p.EntryPrice)
	}
	if p.PyramidLevel != 1 {
		t.Fatalf("pyramid level = %d, want 1", p.PyramidLevel)
	}

	// Adding to a flat book is a no-op.
	l.MarkAdd("SOLUSDT", SideLong, dec("1"), dec("50"))
	if l.Get("SOLUSDT", SideLong).Open() {
		t.Fatalf("MarkAdd must not open a flat book")
	}
}

func TestRealizedPnlPctShortSide(t *testing.T) {
	// Shorts profit when price falls.
	if got := realizedPnlPct(SideShort, dec("100"), dec("98")); got < 1.99 || got > 2.01 {
		t.Fatalf("short 100 -> 98 pnl = %v, want ~2%%", got)
	}
	if got := realizedPnlPct(SideShort, dec("100"), dec("103")); got > -2.99 {
		t.Fatalf("short 100 -> 103 pnl = %v, want ~-3%%", got)
	}
	// A broken entry price yields zero rather than a division blowup.
	if got := realizedPnlPct(SideLong, decZero, dec("100")); got != 0 {
		t.Fatalf("zero entry pnl = %v, want 0", got)
	}
}
