// FILE: ledger.go
// Package main – Per-(symbol, side) position state.
//
// The ledger is the engine-owned replacement for ambient per-side globals:
// every piece of lifecycle state — open quantity, entry price/time, pyramid
// level, rearm and event-fire timestamps — lives here, keyed by
// (symbol, side). Exactly one PositionState exists per key; the engine never
// holds two concurrent positions on the same side of the same symbol.
//
// The ledger is mutated only inside a tick (single writer); it needs no lock.

package main

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionKey addresses one position book.
type PositionKey struct {
	Symbol string
	Side   PositionSide
}

// PositionState is the lifecycle state of one (symbol, side) book.
// Qty zero means FLAT.
type PositionState struct {
	Qty          decimal.Decimal
	EntryPrice   decimal.Decimal
	EntryTime    time.Time
	PyramidLevel int
	LastRearm    time.Time
	LastEventAt  time.Time // last event-driven entry on this side
}

// Open reports whether the book holds a live position.
func (p *PositionState) Open() bool { return p.Qty.GreaterThan(decZero) }

// TradeRecord is the immutable row written when a position closes.
type TradeRecord struct {
	Time       time.Time
	Symbol     string
	Side       PositionSide
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	Qty        decimal.Decimal
	PnlPct     float64 // realized percentage P&L
}

// Losing reports whether the trade realized a loss.
func (t TradeRecord) Losing() bool { return t.PnlPct < 0 }

// Ledger owns all position state for the engine instance.
type Ledger struct {
	pos map[PositionKey]*PositionState
}

func NewLedger() *Ledger {
	return &Ledger{pos: make(map[PositionKey]*PositionState)}
}

// Get returns the state for key, creating a flat book on first use.
func (l *Ledger) Get(symbol string, side PositionSide) *PositionState {
	k := PositionKey{Symbol: symbol, Side: side}
	if p, ok := l.pos[k]; ok {
		return p
	}
	p := &PositionState{Qty: decZero, EntryPrice: decZero}
	l.pos[k] = p
	return p
}

// OpenCount is the aggregate number of live books across all symbols.
func (l *Ledger) OpenCount() int {
	n := 0
	for _, p := range l.pos {
		if p.Open() {
			n++
		}
	}
	return n
}

// MarkOpen records a fresh entry (FLAT → OPEN).
func (l *Ledger) MarkOpen(symbol string, side PositionSide, qty, entry decimal.Decimal, now time.Time) {
	p := l.Get(symbol, side)
	p.Qty = qty
	p.EntryPrice = entry
	p.EntryTime = now
	p.PyramidLevel = 0
	p.LastRearm = time.Time{}
}

// MarkAdd records a pyramid add: quantity grows, the entry price becomes the
// size-weighted blend, and the pyramid level increments.
func (l *Ledger) MarkAdd(symbol string, side PositionSide, addQty, addPrice decimal.Decimal) {
	p := l.Get(symbol, side)
	if !p.Open() {
		return
	}
	total := p.Qty.Add(addQty)
	if total.GreaterThan(decZero) {
		blended := p.EntryPrice.Mul(p.Qty).Add(addPrice.Mul(addQty)).Div(total)
		p.EntryPrice = blended
	}
	p.Qty = total
	p.PyramidLevel++
}

// MarkClosed flattens the book and returns the trade record for the close.
func (l *Ledger) MarkClosed(symbol string, side PositionSide, exitPrice decimal.Decimal, now time.Time) TradeRecord {
	p := l.Get(symbol, side)
	rec := TradeRecord{
		Time:       now,
		Symbol:     symbol,
		Side:       side,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exitPrice,
		Qty:        p.Qty,
		PnlPct:     realizedPnlPct(side, p.EntryPrice, exitPrice),
	}
	p.Qty = decZero
	p.EntryPrice = decZero
	p.EntryTime = time.Time{}
	p.PyramidLevel = 0
	p.LastRearm = time.Time{}
	return rec
}

// realizedPnlPct is the signed percentage move from entry to exit in the
// position's favor.
func realizedPnlPct(side PositionSide, entry, exit decimal.Decimal) float64 {
	if entry.LessThanOrEqual(decZero) {
		return 0
	}
	diff := exit.Sub(entry)
	if side == SideShort {
		diff = entry.Sub(exit)
	}
	f, _ := diff.Div(entry).Mul(decHundred).Float64()
	return f
}
