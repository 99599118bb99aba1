// FILE: engine.go
// Package main – The per-tick decision engine.
//
// Engine owns all trading state (ledger, event detector, governor) and runs
// one synchronous step per symbol per tick:
//
//   fresh bars → indicator snapshot → reconcile venue fills →
//   event branch (collapse/spike contrarian entry) →
//   lifecycle management (micro-TP, adaptive rearm, pyramiding) →
//   filter/signal branch → risk-sized entry + brackets
//
// Concurrency design: a single goroutine drives all symbols sequentially;
// ledger and governor have exactly one writer. The only concurrent touch
// point is the optional mark-price stream, which feeds the event detector's
// own mutex-guarded windows. A failure in one symbol's step is surfaced to
// the loop, logged, and never aborts the remaining symbols (see live.go).
//
// The `now` field is the tiny indirection that lets tests drive the rearm
// cooldown and micro-TP hold timers deterministically.

package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

const timeRound = time.Second

// Engine is one trading instance over a set of symbols.
type Engine struct {
	cfg      Config
	rc       RiskConfig
	th       FilterThresholds
	ic       IndicatorConfig
	broker   Broker
	ledger   *Ledger
	detector *EventDetector
	governor *LossStreakGovernor
	telem    *Telemetry
	filters  map[string]ExchangeFilters
	now      func() time.Time

	// telemetry counters (CSV rows; Prometheus has its own)
	entries int
	trades  int
	skips   int
}

func NewEngine(cfg Config, broker Broker, telem *Telemetry) *Engine {
	return &Engine{
		cfg:      cfg,
		rc:       riskConfigOf(cfg),
		th:       cfg.FilterThresholds(),
		ic:       cfg.IndicatorConfig(),
		broker:   broker,
		ledger:   NewLedger(),
		detector: NewEventDetector(cfg.EventWindow, cfg.EventDropPct, cfg.EventSpikePct),
		governor: NewLossStreakGovernor(cfg),
		telem:    telem,
		filters:  make(map[string]ExchangeFilters),
		now:      time.Now,
	}
}

// Prepare applies venue settings and loads exchange filters for every
// symbol. Leverage/position-mode failures are warnings (the venue may
// reject redundant changes); missing filters are fatal because nothing can
// be sized without them.
func (e *Engine) Prepare(ctx context.Context) error {
	for _, sym := range e.cfg.Symbols {
		_, err := retryCall(ctx, defaultBackoff, func() (struct{}, error) {
			return struct{}{}, e.broker.PrepareSymbol(ctx, sym, e.cfg.Leverage, e.cfg.HedgeMode)
		}, logRetry(sym+" prepare"))
		if err != nil {
			log.Printf("[WARN] %s venue preparation: %v", sym, err)
		}

		f, err := retryCall(ctx, defaultBackoff, func() (ExchangeFilters, error) {
			return e.broker.GetExchangeFilters(ctx, sym)
		}, logRetry(sym+" filters"))
		if err != nil {
			return fmt.Errorf("exchange filters for %s: %w", sym, err)
		}
		e.filters[sym] = f
		log.Printf("[INFO] %s filters: tick=%s step=%s minQty=%s minNotional=%s",
			sym, f.Tick.String(), f.Step.String(), f.MinQty.String(), f.MinNotional.String())
	}
	return nil
}

// ObservePrice feeds an out-of-band price (websocket stream) into the event
// detector's window. No trading decision happens here; events are evaluated
// on the next tick.
func (e *Engine) ObservePrice(symbol string, price float64) {
	e.detector.Observe(symbol, e.now(), price)
}

// scaledRisk is the sizing config with the governor's throttle applied.
func (e *Engine) scaledRisk() RiskConfig {
	rc := e.rc
	factor := e.governor.RiskFactor()
	if factor != 1.0 {
		rc.BaseRiskPct = rc.BaseRiskPct.Mul(decimal.NewFromFloat(factor))
	}
	return rc
}

func (e *Engine) skip(reason string) {
	e.skips++
	IncSkip(reason)
}

// step processes one symbol for one tick. The returned error means this
// symbol's tick was abandoned; state is untouched beyond what completed.
func (e *Engine) step(ctx context.Context, symbol string) error {
	candles, err := retryCall(ctx, defaultBackoff, func() ([]Candle, error) {
		return e.broker.GetRecentCandles(ctx, symbol, e.cfg.Interval, 300)
	}, logRetry(symbol+" candles"))
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}
	if len(candles) == 0 {
		e.skip("no_candles")
		return nil
	}

	snap := computeSnapshot(candles, e.ic)
	now := e.now()
	f, ok := e.filters[symbol]
	if !ok {
		return fmt.Errorf("no exchange filters loaded for %s", symbol)
	}

	log.Printf("[LOOP] %s last close=%.4f", symbol, snap.Close)

	// Venue truth first: external bracket fills close positions without us.
	e.reconcile(ctx, symbol, snap)

	// Opportunistic event branch.
	if e.cfg.EventEnabled {
		if ev := e.detector.Check(symbol, now, snap.Close); ev != nil {
			IncEvent(ev.Kind)
			e.tryEventEntry(ctx, symbol, *ev, snap, f)
		}
	}

	// Manage whatever is open on either side.
	for _, side := range []PositionSide{SideLong, SideShort} {
		if !e.ledger.Get(symbol, side).Open() {
			continue
		}
		if e.maybeMicroTP(ctx, symbol, side) {
			continue
		}
		e.maybeRearmAdaptive(ctx, symbol, side, snap, f)
		e.maybePyramid(ctx, symbol, side, snap, f)
	}

	// Directional signal branch.
	if !marketConditionsOk(snap, e.th, e.htfTrends(ctx, symbol)) {
		IncDecision(Hold)
		log.Printf("[FILTER] %s HOLD (filter not passed)", symbol)
		return nil
	}
	sig := pickSignal(snap)
	IncDecision(sig)
	if sig == Hold {
		return nil
	}
	e.trySignalEntry(ctx, symbol, sig, snap, f)
	return nil
}

// reconcile aligns the ledger with the venue's position state. A book the
// ledger thinks is open but the venue reports flat was closed by a bracket
// fill; a book the venue reports open after a restart is adopted.
func (e *Engine) reconcile(ctx context.Context, symbol string, snap Snapshot) {
	type venuePos struct {
		qty   decimal.Decimal
		entry decimal.Decimal
	}
	for _, side := range []PositionSide{SideLong, SideShort} {
		vp, err := retryCall(ctx, defaultBackoff, func() (venuePos, error) {
			qty, entry, err := e.broker.GetPositionState(ctx, symbol, side)
			return venuePos{qty: qty, entry: entry}, err
		}, logRetry(symbol+" position"))
		if err != nil {
			log.Printf("[WARN] %s %s position query failed, keeping local view: %v", symbol, side, err)
			continue
		}
		pos := e.ledger.Get(symbol, side)
		switch {
		case pos.Open() && vp.qty.LessThanOrEqual(decZero):
			// Exit happened on the venue (TP or SL fill).
			e.handleTradeExit(symbol, side, decimal.NewFromFloat(snap.Close))
		case !pos.Open() && vp.qty.GreaterThan(decZero):
			log.Printf("[INFO] %s %s adopting venue position qty=%s entry=%s", symbol, side, vp.qty.String(), vp.entry.String())
			e.ledger.MarkOpen(symbol, side, vp.qty, vp.entry, e.now())
		}
	}
}

// canOpen applies the entry gates shared by every path: governor pause,
// aggregate capacity, and at-most-one-position-per-side.
func (e *Engine) canOpen(symbol string, side PositionSide) bool {
	if e.governor.EntriesPaused(e.now()) {
		e.skip("governor_pause")
		return false
	}
	if e.ledger.OpenCount() >= e.cfg.MaxOpenPositions {
		e.skip("capacity")
		return false
	}
	if e.ledger.Get(symbol, side).Open() {
		e.skip("side_busy")
		return false
	}
	return true
}

// trySignalEntry sizes and opens a position for a BUY/SELL signal and arms
// ATR-derived brackets around the fill.
func (e *Engine) trySignalEntry(ctx context.Context, symbol string, sig Signal, snap Snapshot, f ExchangeFilters) {
	side := EntrySide(sig.Side())
	if !e.canOpen(symbol, side) {
		return
	}
	mark := decimal.NewFromFloat(snap.Close)
	equity := accountEquity(ctx, e.broker, e.cfg.DefaultEquity)
	if v, _ := equity.Float64(); v > 0 {
		SetEquityMetric(v)
	}
	qty := computeRiskQty(equity, e.scaledRisk(), decimal.NewFromInt(1), decZero, mark, f)
	if qty.LessThanOrEqual(decZero) || qty.Mul(mark).LessThan(f.MinNotional) {
		e.skip("min_notional")
		return
	}

	log.Printf("[SIGNAL] %s %s | mark=%s qty=%s", symbol, sig, mark.String(), qty.String())
	if !e.openMarket(ctx, symbol, side, qty, mark, "signal") {
		return
	}

	atr := decZero
	if Available(snap.ATR) {
		atr = decimal.NewFromFloat(snap.ATR)
	}
	slPct, tpPct, _ := calcATRStopTake(mark, atr,
		decimal.NewFromFloat(e.cfg.BaseStopPct), decimal.NewFromFloat(e.cfg.BaseTakePct))
	e.placeBrackets(ctx, symbol, side, mark, tpPct, slPct, f)
}

// tryEventEntry opens a contrarian position on a collapse/spike event at a
// reduced quantity, with tighter ATR-multiple brackets and a per-side
// refire cooldown.
func (e *Engine) tryEventEntry(ctx context.Context, symbol string, ev PriceEvent, snap Snapshot, f ExchangeFilters) {
	side := ev.Side()
	pos := e.ledger.Get(symbol, side)
	if !pos.LastEventAt.IsZero() && e.now().Sub(pos.LastEventAt) < e.cfg.EventCooldown {
		e.skip("event_cooldown")
		return
	}
	if !e.canOpen(symbol, side) {
		return
	}
	mark := decimal.NewFromFloat(snap.Close)
	equity := accountEquity(ctx, e.broker, e.cfg.DefaultEquity)
	base := computeRiskQty(equity, e.scaledRisk(), decimal.NewFromInt(1), decZero, mark, f)
	qty := adjustQtyForExchange(
		roundToStep(base.Mul(decimal.NewFromFloat(e.cfg.EventQtyFactor)), f.Step, false),
		mark, f)
	if qty.LessThanOrEqual(decZero) {
		e.skip("event_qty")
		return
	}

	log.Printf("[ACE-Z] %s %s %.2f%% -> %s qty=%s", symbol, ev.Kind, ev.Magnitude, side, qty.String())
	if !e.openMarket(ctx, symbol, side, qty, mark, "event") {
		return
	}
	pos.LastEventAt = e.now()

	// Event brackets: tight ATR multiples, baseline fallback without ATR.
	tpPct := decimal.NewFromFloat(e.cfg.BaseTakePct)
	slPct := decimal.NewFromFloat(e.cfg.BaseStopPct)
	if Available(snap.ATR) && snap.ATR > 0 && snap.Close > 0 {
		atrPct := decimal.NewFromFloat(snap.ATR / snap.Close * 100)
		tpPct = atrPct.Mul(decimal.NewFromFloat(e.cfg.EventTPAtrMult))
		slPct = atrPct.Mul(decimal.NewFromFloat(e.cfg.EventSLAtrMult))
	}
	e.placeBrackets(ctx, symbol, side, mark, tpPct, slPct, f)
}

// openMarket places the entry order and records the open. Returns false when
// the entry did not go through.
func (e *Engine) openMarket(ctx context.Context, symbol string, side PositionSide, qty, mark decimal.Decimal, kind string) bool {
	_, err := retryCall(ctx, defaultBackoff, func() (*PlacedOrder, error) {
		return e.broker.PlaceMarketEntry(ctx, symbol, EntryOrderSide(side), qty)
	}, logRetry(symbol+" entry"))
	if err != nil {
		log.Printf("[WARN] %s %s entry failed: %v", symbol, side, err)
		return false
	}
	e.ledger.MarkOpen(symbol, side, qty, mark, e.now())
	e.entries++
	IncEntry(kind, side)
	SetOpenPositionsMetric(e.ledger.OpenCount())
	log.Printf("[ENTRY] %s %s qty=%s", symbol, side, qty.String())
	return true
}

// htfTrends fetches each higher timeframe and derives its trend vote input.
// A failing timeframe is skipped (degrade-and-continue), leaving fewer
// voters rather than aborting the tick.
func (e *Engine) htfTrends(ctx context.Context, symbol string) []HTFTrend {
	out := make([]HTFTrend, 0, len(e.cfg.HTFIntervals))
	for _, interval := range e.cfg.HTFIntervals {
		candles, err := retryCall(ctx, defaultBackoff, func() ([]Candle, error) {
			return e.broker.GetRecentCandles(ctx, symbol, interval, 120)
		}, logRetry(symbol+" htf "+interval))
		if err != nil || len(candles) == 0 {
			if err != nil {
				log.Printf("[WARN] %s htf %s unavailable: %v", symbol, interval, err)
			}
			continue
		}
		out = append(out, computeHTFTrend(candles, e.ic))
	}
	return out
}
