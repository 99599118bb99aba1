// FILE: events.go
// Package main – Sudden collapse/spike detection over a short price window.
//
// The EventDetector keeps a rolling time window of (timestamp, price) pairs
// per symbol. On every observation it trims entries older than the lookback
// and compares the current price against the window's extremes:
//   • drop from the window max  ≥ DropPct  → COLLAPSE (contrarian LONG)
//   • rise from the window min  ≥ SpikePct → SPIKE    (contrarian SHORT)
//
// The detector enforces no cooldown itself; refire spacing is the engine's
// job via per-side last-fire timestamps in the ledger. A mutex guards the
// windows because the optional mark-price stream (stream.go) feeds prices
// from its own goroutine.

package main

import (
	"sync"
	"time"
)

// EventKind tags a detected price dislocation.
type EventKind string

const (
	EventCollapse EventKind = "COLLAPSE"
	EventSpike    EventKind = "SPIKE"
)

// PriceEvent is a detected dislocation and its magnitude in percent.
type PriceEvent struct {
	Kind      EventKind
	Magnitude float64
}

// Side is the contrarian position book the event argues for.
func (e PriceEvent) Side() PositionSide {
	if e.Kind == EventCollapse {
		return SideLong
	}
	return SideShort
}

type pricePoint struct {
	ts    time.Time
	price float64
}

// EventDetector holds one sliding window per symbol.
type EventDetector struct {
	mu       sync.Mutex
	window   time.Duration
	dropPct  float64
	spikePct float64
	points   map[string][]pricePoint
}

func NewEventDetector(window time.Duration, dropPct, spikePct float64) *EventDetector {
	return &EventDetector{
		window:   window,
		dropPct:  dropPct,
		spikePct: spikePct,
		points:   make(map[string][]pricePoint),
	}
}

// Observe appends a price without evaluating it (stream path).
func (d *EventDetector) Observe(symbol string, now time.Time, price float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.append(symbol, now, price)
}

// Check appends the price, trims the window, and reports an event if the
// thresholds are crossed. Returns nil when the window is too thin or calm.
func (d *EventDetector) Check(symbol string, now time.Time, price float64) *PriceEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.append(symbol, now, price)
	pts := d.points[symbol]
	if len(pts) < 2 {
		return nil
	}
	mx, mn := pts[0].price, pts[0].price
	for _, p := range pts[1:] {
		if p.price > mx {
			mx = p.price
		}
		if p.price < mn {
			mn = p.price
		}
	}
	if drop := percentChange(mx, price); drop >= d.dropPct {
		return &PriceEvent{Kind: EventCollapse, Magnitude: drop}
	}
	if spike := percentChange(price, mn); spike >= d.spikePct {
		return &PriceEvent{Kind: EventSpike, Magnitude: spike}
	}
	return nil
}

// append adds a point and drops everything older than the lookback.
// Must hold d.mu.
func (d *EventDetector) append(symbol string, now time.Time, price float64) {
	pts := append(d.points[symbol], pricePoint{ts: now, price: price})
	cutoff := now.Add(-d.window)
	i := 0
	for i < len(pts) && pts[i].ts.Before(cutoff) {
		i++
	}
	d.points[symbol] = pts[i:]
}

// percentChange is (from-to)/to * 100 oriented so a positive result means
// "from sits above to".
func percentChange(from, to float64) float64 {
	if to == 0 {
		return 0
	}
	return (from - to) * 100 / to
}
