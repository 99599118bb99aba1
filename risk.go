// FILE: risk.go
// Package main – Equity-risk position sizing.
//
// computeRiskQty converts account equity, a confidence scalar, and an
// optional stop distance into an exchange-compliant quantity:
//   1) clamp confidence, scale the base risk %, clamp to [min,max] risk
//   2) risk capital = equity * riskPct/100
//   3) notional = risk capital / stopPct (stop distance or baseline)
//   4) hard-cap notional at equity * maxRiskPct
//   5) quantity = notional/price, rounded DOWN to the step size, raised to
//      the venue minimum quantity, then raised (rounded UP to the next step)
//      until the minimum notional holds
//
// All order-facing arithmetic is decimal to keep step/tick/notional exact;
// float64 never touches a quantity that reaches the venue.

package main

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
)

var (
	decZero    = decimal.Zero
	decHundred = decimal.NewFromInt(100)
)

// RiskConfig is the sizing slice of the engine configuration.
type RiskConfig struct {
	BaseRiskPct   decimal.Decimal
	MinRiskPct    decimal.Decimal
	MaxRiskPct    decimal.Decimal
	BaseStopPct   decimal.Decimal
	ConfidenceMin decimal.Decimal
	ConfidenceMax decimal.Decimal
}

// riskConfigOf lifts the float knobs into decimals once per engine.
func riskConfigOf(c Config) RiskConfig {
	return RiskConfig{
		BaseRiskPct:   decimal.NewFromFloat(c.BaseRiskPct),
		MinRiskPct:    decimal.NewFromFloat(c.MinRiskPct),
		MaxRiskPct:    decimal.NewFromFloat(c.MaxRiskPct),
		BaseStopPct:   decimal.NewFromFloat(c.BaseStopPct),
		ConfidenceMin: decimal.NewFromFloat(c.ConfidenceMin),
		ConfidenceMax: decimal.NewFromFloat(c.ConfidenceMax),
	}
}

// clampDecimal bounds v to [lo, hi].
func clampDecimal(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// roundToStep snaps q onto the step grid. up=false floors (truncation),
// up=true ceils (minimum-notional compliance).
func roundToStep(q, step decimal.Decimal, up bool) decimal.Decimal {
	if step.LessThanOrEqual(decZero) {
		return q
	}
	units := q.Div(step)
	if up {
		units = units.Ceil()
	} else {
		units = units.Floor()
	}
	return units.Mul(step)
}

// effectiveRiskPct applies confidence scaling and the absolute risk clamps.
// Result is always inside [MinRiskPct, MaxRiskPct] no matter how extreme the
// confidence input is.
func effectiveRiskPct(rc RiskConfig, confidence decimal.Decimal) decimal.Decimal {
	conf := clampDecimal(confidence, rc.ConfidenceMin, rc.ConfidenceMax)
	return clampDecimal(rc.BaseRiskPct.Mul(conf), rc.MinRiskPct, rc.MaxRiskPct)
}

// computeRiskQty sizes one entry. stopDistance may be zero, in which case the
// baseline stop percentage prices the risk.
func computeRiskQty(equity decimal.Decimal, rc RiskConfig, confidence, stopDistance, mark decimal.Decimal, f ExchangeFilters) decimal.Decimal {
	if mark.LessThanOrEqual(decZero) {
		return decZero
	}
	riskPct := effectiveRiskPct(rc, confidence)
	riskCapital := equity.Mul(riskPct).Div(decHundred)

	stopPct := rc.BaseStopPct
	if stopDistance.GreaterThan(decZero) {
		if p := stopDistance.Div(mark).Mul(decHundred); p.GreaterThan(decZero) {
			stopPct = p
		}
	}
	notional := riskCapital.Div(stopPct.Div(decHundred))

	// Hard ceiling regardless of how tight the stop is.
	if ceiling := equity.Mul(rc.MaxRiskPct); notional.GreaterThan(ceiling) {
		notional = ceiling
	}

	qty := roundToStep(notional.Div(mark), f.Step, false)
	return adjustQtyForExchange(qty, mark, f)
}

// adjustQtyForExchange raises qty to the venue minimums: the minimum
// quantity first, then the minimum notional by rounding UP to the next step.
func adjustQtyForExchange(qty, mark decimal.Decimal, f ExchangeFilters) decimal.Decimal {
	if qty.LessThan(f.MinQty) {
		qty = f.MinQty
	}
	if f.MinNotional.GreaterThan(decZero) && mark.GreaterThan(decZero) &&
		qty.Mul(mark).LessThan(f.MinNotional) {
		qty = roundToStep(f.MinNotional.Div(mark), f.Step, true)
	}
	return qty
}

// accountEquity fetches equity with retries and falls back to the configured
// default. An equity failure mid-run must never kill the loop.
func accountEquity(ctx context.Context, b Broker, fallback float64) decimal.Decimal {
	eq, err := retryCall(ctx, defaultBackoff, func() (float64, error) {
		return b.GetAccountEquity(ctx)
	}, logRetry("equity"))
	if err != nil || eq <= 0 {
		if err != nil {
			log.Printf("[WARN] equity fetch failed, using default %.2f: %v", fallback, err)
		}
		return decimal.NewFromFloat(fallback)
	}
	return decimal.NewFromFloat(eq)
}
