// FILE: filters.go
// Package main – Entry gating and signal extraction.
//
// Two pure functions decide whether the market is tradeable and in which
// direction:
//   • marketConditionsOk – rejects dead/indecisive/thin markets and demands
//     higher-timeframe agreement plus trend strength (or a volume surge).
//   • pickSignal – turns the latest snapshot into BUY/SELL/HOLD.
//
// Both are deterministic functions of their inputs with no memory of prior
// bars; HOLD is a value, not an error.

package main

// signalMargin is how far the close must clear the slow average, as a
// fraction of price (0.10%).
const signalMargin = 0.0010

// Signal is the high-level intent.
type Signal int

const (
	Hold Signal = iota
	Buy
	Sell
)

// String implements fmt.Stringer for pretty logging.
func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Side maps a directional signal onto the order side that opens it.
func (s Signal) Side() OrderSide {
	if s == Sell {
		return SideSell
	}
	return SideBuy
}

// FilterThresholds is the immutable gate configuration.
type FilterThresholds struct {
	MinVolPct        float64 // reject below this return volatility %
	BBWidthMin       float64 // reject when bands are squeezed below this
	DojiATRRatio     float64 // bar range must exceed ATR * ratio
	VolBoostFactor   float64 // volume must exceed rolling mean * factor
	MinADX           float64 // trend strength below this needs volume backup
	HTFVoteThreshold int     // required |vote sum| when >= 2 HTFs exist
}

// marketConditionsOk reports whether the current bar is worth trading.
// htf carries one trend snapshot per available higher timeframe.
func marketConditionsOk(snap Snapshot, th FilterThresholds, htf []HTFTrend) bool {
	// Basic liveness: both measures must exist and be non-trivial.
	if !Available(snap.ATR) || snap.ATR == 0 {
		return false
	}
	if !Available(snap.VolPct) || snap.VolPct == 0 {
		return false
	}
	if snap.VolPct < th.MinVolPct {
		return false
	}
	// Indecisive bar: range smaller than a sliver of ATR.
	if snap.High-snap.Low < snap.ATR*th.DojiATRRatio {
		return false
	}
	volumeBoosted := Available(snap.VolMean) && snap.Volume >= snap.VolMean*th.VolBoostFactor
	if !volumeBoosted {
		return false
	}
	if !Available(snap.BBWidth) || snap.BBWidth < th.BBWidthMin {
		return false
	}

	// Higher-timeframe votes: +1 trend up, -1 trend down, 0 undecided.
	votes, total := 0, 0
	for _, h := range htf {
		if !Available(h.EMAFast) || !Available(h.EMASlow) {
			continue
		}
		total++
		switch {
		case h.EMAFast > h.EMASlow:
			votes++
		case h.EMAFast < h.EMASlow:
			votes--
		}
	}
	if total >= 2 && abs(votes) < th.HTFVoteThreshold {
		return false
	}

	// Weak trend needs volume confirmation to pass.
	if !Available(snap.ADX) {
		return false
	}
	if snap.ADX < th.MinADX && !volumeBoosted {
		return false
	}
	return true
}

// pickSignal extracts the directional intent from the latest snapshot.
// BUY and SELL conditions are mutually exclusive by construction.
func pickSignal(snap Snapshot) Signal {
	if !Available(snap.EMAFast) || !Available(snap.EMASlow) ||
		!Available(snap.EMASlope) || !Available(snap.RSI) {
		return Hold
	}
	biasUp := snap.EMAFast > snap.EMASlow
	biasDown := snap.EMAFast < snap.EMASlow

	if biasUp && snap.EMASlope > 0 && snap.RSI > 51 &&
		snap.Close > snap.EMASlow*(1+signalMargin) {
		return Buy
	}
	if biasDown && snap.EMASlope < 0 && snap.RSI < 49 &&
		snap.Close < snap.EMASlow*(1-signalMargin) {
		return Sell
	}
	return Hold
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
