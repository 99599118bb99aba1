// FILE: indicators.go
// Package main – Technical indicators for the trading bot.
//
// This file implements the TA pipeline used by the entry filters:
//   • RSI (rolling-mean gains/losses, 0–100)
//   • EMA fast/slow with fixed smoothing spans + two-bar slope
//   • ATR (true range, rolling mean)
//   • ADX-style trend strength (directional movement, rolling smoothing)
//   • Rolling return volatility (%), rolling mean volume
//   • Bollinger bands at 2σ with width normalized by the midline
//
// Notes
//   - All series are aligned to input length; unavailable lookbacks emit NaN,
//     never zero, so a cold start cannot fake a signal.
//   - Division guards substitute a small epsilon instead of panicking.
//   - Keep these fast and allocation-light; they run for every symbol and
//     higher timeframe on every tick.
package main

import "math"

const indicatorEps = 1e-9

// IndicatorConfig carries the rolling-window lengths of the pipeline.
type IndicatorConfig struct {
	RSIWindow     int
	ATRWindow     int
	ADXPeriod     int
	BBWindow      int
	VolWindow     int
	VolMeanWindow int
	EMAFastSpan   int
	EMASlowSpan   int
}

// Snapshot holds the derived scalars attached to the latest bar.
// Any field may be NaN while its window is still warming up.
type Snapshot struct {
	Close  float64
	High   float64
	Low    float64
	Volume float64

	RSI      float64
	EMAFast  float64
	EMASlow  float64
	EMASlope float64
	ATR      float64
	ADX      float64
	VolPct   float64 // return stdev over VolWindow, in percent
	VolMean  float64 // rolling mean volume
	BBMid    float64
	BBUpper  float64
	BBLower  float64
	BBWidth  float64 // (upper-lower)/mid
}

// Available reports whether v carries a usable value.
func Available(v float64) bool { return !math.IsNaN(v) }

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// rollingMean emits NaN until a full window of defined values is present.
func rollingMean(v []float64, n int) []float64 {
	out := nanSlice(len(v))
	if n <= 0 {
		return out
	}
	for i := n - 1; i < len(v); i++ {
		sum, ok := 0.0, true
		for j := i - n + 1; j <= i; j++ {
			if math.IsNaN(v[j]) {
				ok = false
				break
			}
			sum += v[j]
		}
		if ok {
			out[i] = sum / float64(n)
		}
	}
	return out
}

func rollingSum(v []float64, n int) []float64 {
	out := nanSlice(len(v))
	if n <= 0 {
		return out
	}
	for i := n - 1; i < len(v); i++ {
		sum, ok := 0.0, true
		for j := i - n + 1; j <= i; j++ {
			if math.IsNaN(v[j]) {
				ok = false
				break
			}
			sum += v[j]
		}
		if ok {
			out[i] = sum
		}
	}
	return out
}

// rollingStd is the sample standard deviation over window n.
func rollingStd(v []float64, n int) []float64 {
	out := nanSlice(len(v))
	if n <= 1 {
		return out
	}
	for i := n - 1; i < len(v); i++ {
		sum, ok := 0.0, true
		for j := i - n + 1; j <= i; j++ {
			if math.IsNaN(v[j]) {
				ok = false
				break
			}
			sum += v[j]
		}
		if !ok {
			continue
		}
		mean := sum / float64(n)
		var varsum float64
		for j := i - n + 1; j <= i; j++ {
			d := v[j] - mean
			varsum += d * d
		}
		out[i] = math.Sqrt(varsum / float64(n-1))
	}
	return out
}

// EMA returns the exponential average with smoothing 2/(span+1), seeded from
// the first value. Defined from index 0.
func EMA(v []float64, span int) []float64 {
	out := make([]float64, len(v))
	if len(v) == 0 || span <= 0 {
		return nanSlice(len(v))
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out[0] = v[0]
	for i := 1; i < len(v); i++ {
		out[i] = alpha*v[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI returns the n-period momentum oscillator from rolling-mean gains and
// losses, aligned to closes. NaN until the first full window.
func RSI(closes []float64, n int) []float64 {
	out := nanSlice(len(closes))
	if n <= 0 || len(closes) < 2 {
		return out
	}
	gains := nanSlice(len(closes))
	losses := nanSlice(len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i], losses[i] = d, 0
		} else {
			gains[i], losses[i] = 0, -d
		}
	}
	avgGain := rollingMean(gains, n)
	avgLoss := rollingMean(losses, n)
	for i := range out {
		if math.IsNaN(avgGain[i]) || math.IsNaN(avgLoss[i]) {
			continue
		}
		loss := avgLoss[i]
		if loss == 0 {
			loss = indicatorEps
		}
		rs := avgGain[i] / loss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// trueRange computes the ATR input series. The first bar has no previous
// close, so its true range is just high-low.
func trueRange(c []Candle) []float64 {
	out := make([]float64, len(c))
	for i := range c {
		hl := c[i].High - c[i].Low
		if i == 0 {
			out[i] = hl
			continue
		}
		hc := math.Abs(c[i].High - c[i-1].Close)
		lc := math.Abs(c[i].Low - c[i-1].Close)
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATR is the rolling mean of the true range over n bars.
func ATR(c []Candle, n int) []float64 {
	return rollingMean(trueRange(c), n)
}

// ADX derives a 0–100 trend-strength oscillator from directional movement.
func ADX(c []Candle, period int) []float64 {
	if period <= 0 {
		period = 14
	}
	n := len(c)
	plusDM := nanSlice(n)
	minusDM := nanSlice(n)
	for i := 1; i < n; i++ {
		up := c[i].High - c[i-1].High
		down := c[i-1].Low - c[i].Low
		plusDM[i], minusDM[i] = 0, 0
		if up > down && up > 0 {
			plusDM[i] = up
		}
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}
	atr := rollingMean(trueRange(c), period)
	plusSum := rollingSum(plusDM, period)
	minusSum := rollingSum(minusDM, period)
	dx := nanSlice(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(atr[i]) || math.IsNaN(plusSum[i]) || math.IsNaN(minusSum[i]) {
			continue
		}
		tr := atr[i]
		if tr == 0 {
			tr = indicatorEps
		}
		plusDI := 100 * plusSum[i] / tr
		minusDI := 100 * minusSum[i] / tr
		den := plusDI + minusDI
		if den == 0 {
			den = indicatorEps
		}
		dx[i] = 100 * math.Abs(plusDI-minusDI) / den
	}
	return rollingMean(dx, period)
}

// pctReturns is the bar-over-bar percentage change series (NaN at index 0).
func pctReturns(closes []float64) []float64 {
	out := nanSlice(len(closes))
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev == 0 {
			prev = indicatorEps
		}
		out[i] = (closes[i] - prev) / prev
	}
	return out
}

// computeSnapshot runs the full pipeline and returns the derived scalars for
// the latest bar. Deterministic; no side effects.
func computeSnapshot(c []Candle, ic IndicatorConfig) Snapshot {
	nan := math.NaN()
	snap := Snapshot{
		RSI: nan, EMAFast: nan, EMASlow: nan, EMASlope: nan,
		ATR: nan, ADX: nan, VolPct: nan, VolMean: nan,
		BBMid: nan, BBUpper: nan, BBLower: nan, BBWidth: nan,
	}
	if len(c) == 0 {
		return snap
	}
	i := len(c) - 1
	snap.Close, snap.High, snap.Low, snap.Volume = c[i].Close, c[i].High, c[i].Low, c[i].Volume

	closes := make([]float64, len(c))
	volumes := make([]float64, len(c))
	for k := range c {
		closes[k] = c[k].Close
		volumes[k] = c[k].Volume
	}

	snap.RSI = RSI(closes, ic.RSIWindow)[i]

	fast := EMA(closes, ic.EMAFastSpan)
	slow := EMA(closes, ic.EMASlowSpan)
	snap.EMAFast, snap.EMASlow = fast[i], slow[i]
	if i >= 2 {
		snap.EMASlope = fast[i] - fast[i-2]
	}

	snap.ATR = ATR(c, ic.ATRWindow)[i]
	snap.ADX = ADX(c, ic.ADXPeriod)[i]

	if v := rollingStd(pctReturns(closes), ic.VolWindow)[i]; Available(v) {
		snap.VolPct = v * 100
	}
	snap.VolMean = rollingMean(volumes, ic.VolMeanWindow)[i]

	mid := rollingMean(closes, ic.BBWindow)[i]
	std := rollingStd(closes, ic.BBWindow)[i]
	if Available(mid) && Available(std) {
		snap.BBMid = mid
		snap.BBUpper = mid + 2*std
		snap.BBLower = mid - 2*std
		den := mid
		if den == 0 {
			den = indicatorEps
		}
		snap.BBWidth = (snap.BBUpper - snap.BBLower) / den
	}
	return snap
}

// HTFTrend is the higher-timeframe vote input: just the two trend averages.
type HTFTrend struct {
	EMAFast float64
	EMASlow float64
}

// computeHTFTrend derives the vote input for one higher timeframe.
func computeHTFTrend(c []Candle, ic IndicatorConfig) HTFTrend {
	if len(c) == 0 {
		return HTFTrend{EMAFast: math.NaN(), EMASlow: math.NaN()}
	}
	closes := make([]float64, len(c))
	for k := range c {
		closes[k] = c[k].Close
	}
	i := len(c) - 1
	return HTFTrend{
		EMAFast: EMA(closes, ic.EMAFastSpan)[i],
		EMASlow: EMA(closes, ic.EMASlowSpan)[i],
	}
}
