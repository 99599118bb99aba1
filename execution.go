// FILE: execution.go
// Package main – Bracket math and the position lifecycle operations.
//
// What's here:
//   • calcATRStopTake – ATR-scaled stop/take percentages with baseline floors
//   • bracketPrices   – side-aware, tick-quantized TP/SL price derivation
//   • placeBrackets / cancelBrackets – protective legs with per-leg retry and
//     partial-failure tolerance
//   • maybeRearmAdaptive – expand TP and trail SL after favorable movement
//   • maybeMicroTP       – close small winners held past the minimum duration
//   • maybePyramid       – bounded same-side adds on continued momentum
//   • handleTradeExit    – trade record, governor and telemetry updates
//
// Lifecycle per (symbol, side): FLAT → OPEN → (OPEN-ADAPTED)* → FLAT.
// Partial bracket failures are logged and left for the next rearm/poll to
// correct; they never abort the tick.

package main

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
)

var (
	decTen      = decimal.NewFromInt(10)
	atrStopMult = decimal.NewFromInt(1)      // stop distance = ATR * 1.0
	atrTakeMult = decimal.NewFromFloat(1.2)  // TP extra = ATR% * 1.2
	trailFloor  = decimal.NewFromFloat(0.05) // trailing SL never below 0.05%
)

// calcATRStopTake derives stop/take percentages from the ATR. With no usable
// ATR it falls back to the baseline pair and a zero stop distance.
func calcATRStopTake(entry, atr, baseStopPct, baseTakePct decimal.Decimal) (slPct, tpPct, slDistance decimal.Decimal) {
	if atr.LessThanOrEqual(decZero) || entry.LessThanOrEqual(decZero) {
		return baseStopPct, baseTakePct, decZero
	}
	slDistance = atr.Mul(atrStopMult)
	slPct = slDistance.Div(entry).Mul(decHundred)
	if slPct.LessThan(baseStopPct) {
		slPct = baseStopPct
		slDistance = entry.Mul(slPct).Div(decHundred)
	}
	tpExtra := atr.Div(entry).Mul(decHundred).Mul(atrTakeMult)
	tpPct = baseTakePct.Add(tpExtra)
	if tpPct.GreaterThan(decTen) {
		tpPct = decTen
	}
	return slPct, tpPct, slDistance
}

// quantizeTick snaps a price onto the venue tick grid.
func quantizeTick(price, tick decimal.Decimal) decimal.Decimal {
	if tick.LessThanOrEqual(decZero) {
		return price
	}
	return price.Div(tick).Round(0).Mul(tick)
}

// bracketPrices derives the tick-quantized TP/SL prices for a position.
// Side determines which sits above/below entry.
func bracketPrices(side PositionSide, entry, tpPct, slPct, tick decimal.Decimal) (tp, sl decimal.Decimal) {
	tpFrac := tpPct.Div(decHundred)
	slFrac := slPct.Div(decHundred)
	one := decimal.NewFromInt(1)
	if side == SideLong {
		tp = entry.Mul(one.Add(tpFrac))
		sl = entry.Mul(one.Sub(slFrac))
	} else {
		tp = entry.Mul(one.Sub(tpFrac))
		sl = entry.Mul(one.Add(slFrac))
	}
	return quantizeTick(tp, tick), quantizeTick(sl, tick)
}

// placeBrackets places both protective legs, each with its own retry.
// One leg failing is surfaced as a warning, never an abort: the surviving
// leg still protects, and the next rearm heals the pair.
func (e *Engine) placeBrackets(ctx context.Context, symbol string, side PositionSide, entry, tpPct, slPct decimal.Decimal, f ExchangeFilters) BracketPair {
	tp, sl := bracketPrices(side, entry, tpPct, slPct, f.Tick)
	var pair BracketPair

	tpID, err := retryCall(ctx, defaultBackoff, func() (string, error) {
		return e.broker.PlaceTakeProfit(ctx, symbol, side, tp)
	}, logRetry(symbol+" tp"))
	if err != nil {
		log.Printf("[WARN] %s %s take-profit leg failed: %v", symbol, side, err)
	} else {
		pair.TakeProfitID = tpID
	}

	slID, err := retryCall(ctx, defaultBackoff, func() (string, error) {
		return e.broker.PlaceStopLoss(ctx, symbol, side, sl)
	}, logRetry(symbol+" sl"))
	if err != nil {
		log.Printf("[WARN] %s %s stop-loss leg failed: %v", symbol, side, err)
	} else {
		pair.StopLossID = slID
	}

	log.Printf("[TP/SL] %s %s TP=%s SL=%s", symbol, side, tp.String(), sl.String())
	return pair
}

// cancelBrackets cancels this side's protective orders. Partial failure is a
// warning; a stale leg is corrected on the next rearm/poll.
func (e *Engine) cancelBrackets(ctx context.Context, symbol string, side PositionSide) {
	_, err := retryCall(ctx, defaultBackoff, func() (struct{}, error) {
		return struct{}{}, e.broker.CancelBrackets(ctx, symbol, side)
	}, logRetry(symbol+" cancel"))
	if err != nil {
		log.Printf("[WARN] %s %s cancel brackets: %v", symbol, side, err)
	}
}

// maybeRearmAdaptive checks whether favorable movement justifies replacing
// the brackets with an expanded TP and a tightened trailing SL. The rearm
// cooldown guarantees at most one rearm per window per side.
func (e *Engine) maybeRearmAdaptive(ctx context.Context, symbol string, side PositionSide, snap Snapshot, f ExchangeFilters) {
	now := e.now()
	pos := e.ledger.Get(symbol, side)
	if !pos.Open() {
		return
	}
	if now.Sub(pos.LastRearm) < e.cfg.RearmCooldown {
		return
	}
	if !Available(snap.ATR) || snap.ATR == 0 {
		return
	}
	mark := decimal.NewFromFloat(snap.Close)
	moved := mark.Sub(pos.EntryPrice)
	if side == SideShort {
		moved = pos.EntryPrice.Sub(mark)
	}
	if moved.LessThanOrEqual(decZero) {
		return
	}
	trigger := decimal.NewFromFloat(e.cfg.AdaptTriggerATR * snap.ATR)
	if moved.LessThan(trigger) {
		return
	}

	e.cancelBrackets(ctx, symbol, side)
	newTP := decimal.NewFromFloat(e.cfg.BaseTakePct * e.cfg.TPExpandFactor)
	newSL := decimal.NewFromFloat(e.cfg.TrailLockPct)
	if newSL.LessThan(trailFloor) {
		newSL = trailFloor
	}
	e.placeBrackets(ctx, symbol, side, pos.EntryPrice, newTP, newSL, f)
	pos.LastRearm = now
	IncRearm(side)
	log.Printf("[ADAPT] %s %s expanded TP to %s%% & trailed SL to %s%%", symbol, side, newTP.String(), newSL.String())
}

// maybeMicroTP closes the full position at market once it has been held past
// the minimum duration and shows the configured small unrealized gain.
// Returns true when the position was closed.
func (e *Engine) maybeMicroTP(ctx context.Context, symbol string, side PositionSide) bool {
	now := e.now()
	pos := e.ledger.Get(symbol, side)
	if !pos.Open() || pos.EntryTime.IsZero() {
		return false
	}
	if now.Sub(pos.EntryTime) < e.cfg.MicroTPAfter {
		return false
	}
	mark, err := retryCall(ctx, defaultBackoff, func() (float64, error) {
		return e.broker.GetMarkPrice(ctx, symbol)
	}, logRetry(symbol+" mark"))
	if err != nil || mark <= 0 {
		return false
	}
	unrealized := realizedPnlPct(side, pos.EntryPrice, decimal.NewFromFloat(mark))
	if unrealized < e.cfg.MicroTPPct {
		return false
	}

	log.Printf("[MICRO-TP] closing %s %s small profit %.3f%% after %s", symbol, side, unrealized, now.Sub(pos.EntryTime).Round(timeRound))
	exitPx, err := retryCall(ctx, defaultBackoff, func() (float64, error) {
		return e.broker.ClosePosition(ctx, symbol, side)
	}, logRetry(symbol+" micro-tp"))
	if err != nil {
		log.Printf("[WARN] micro-tp failed: %v", err)
		return false
	}
	e.cancelBrackets(ctx, symbol, side)
	IncMicroTP(side)
	e.handleTradeExit(symbol, side, decimal.NewFromFloat(exitPx))
	return true
}

// maybePyramid adds to a winning position when ATR-relative momentum keeps
// running in its favor, bounded by the pyramid level cap. Each add re-sizes
// via the risk sizer and re-arms the brackets on the blended entry.
func (e *Engine) maybePyramid(ctx context.Context, symbol string, side PositionSide, snap Snapshot, f ExchangeFilters) {
	if !e.cfg.AllowPyramid {
		return
	}
	pos := e.ledger.Get(symbol, side)
	if !pos.Open() || pos.PyramidLevel >= e.cfg.MaxPyramidLevels {
		return
	}
	if e.governor.EntriesPaused(e.now()) {
		return
	}
	if !Available(snap.ATR) || snap.ATR == 0 {
		return
	}
	mark := decimal.NewFromFloat(snap.Close)
	moved := mark.Sub(pos.EntryPrice)
	if side == SideShort {
		moved = pos.EntryPrice.Sub(mark)
	}
	need := decimal.NewFromFloat(e.cfg.PyramidMinMomentumATR * snap.ATR)
	if moved.LessThan(need) {
		return
	}

	equity := accountEquity(ctx, e.broker, e.cfg.DefaultEquity)
	confidence := decimal.NewFromInt(1)
	qty := computeRiskQty(equity, e.scaledRisk(), confidence, decZero, mark, f)
	if qty.LessThanOrEqual(decZero) {
		IncSkip("pyramid_qty")
		return
	}
	_, err := retryCall(ctx, defaultBackoff, func() (*PlacedOrder, error) {
		return e.broker.PlaceMarketEntry(ctx, symbol, EntryOrderSide(side), qty)
	}, logRetry(symbol+" pyramid"))
	if err != nil {
		log.Printf("[WARN] %s %s pyramid add failed: %v", symbol, side, err)
		return
	}
	e.ledger.MarkAdd(symbol, side, qty, mark)
	IncEntry("pyramid", side)
	log.Printf("[PYRAMID] %s %s add qty=%s level=%d", symbol, side, qty.String(), pos.PyramidLevel)

	// Re-protect the enlarged position around the blended entry.
	slPct, tpPct, _ := calcATRStopTake(pos.EntryPrice, decimal.NewFromFloat(snap.ATR),
		decimal.NewFromFloat(e.cfg.BaseStopPct), decimal.NewFromFloat(e.cfg.BaseTakePct))
	e.cancelBrackets(ctx, symbol, side)
	e.placeBrackets(ctx, symbol, side, pos.EntryPrice, tpPct, slPct, f)
}

// handleTradeExit flattens the book, records the trade, and updates the
// governor, metrics, and telemetry.
func (e *Engine) handleTradeExit(symbol string, side PositionSide, exitPrice decimal.Decimal) {
	rec := e.ledger.MarkClosed(symbol, side, exitPrice, e.now())
	e.governor.RecordTrade(rec, e.now())
	e.trades++
	IncTrade(rec)
	SetOpenPositionsMetric(e.ledger.OpenCount())
	e.telem.AppendTrade(rec)
	log.Printf("[EXIT] %s %s entry=%s exit=%s pnl=%.3f%% streak=%d",
		symbol, side, rec.EntryPrice.String(), rec.ExitPrice.String(), rec.PnlPct, e.governor.Streak())
}

// EntryOrderSide is the order side that grows a position book.
func EntryOrderSide(side PositionSide) OrderSide {
	if side == SideLong {
		return SideBuy
	}
	return SideSell
}
