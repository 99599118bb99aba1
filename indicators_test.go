package main

import (
	"math"
	"testing"
	"time"
)

func testIndicatorConfig() IndicatorConfig {
	return IndicatorConfig{
		RSIWindow:     14,
		ATRWindow:     10,
		ADXPeriod:     14,
		BBWindow:      20,
		VolWindow:     12,
		VolMeanWindow: 30,
		EMAFastSpan:   5,
		EMASlowSpan:   13,
	}
}

// candlesFromCloses builds one-minute candles with a 1.0 band around each
// close and constant volume.
func candlesFromCloses(closes ...float64) []Candle {
	base := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
	out := make([]Candle, len(closes))
	for i, c := range closes {
		out[i] = Candle{
			Time:   base.Add(time.Duration(i) * time.Minute),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 10,
		}
	}
	return out
}

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Fatalf("%s = %v, want %v (tol %v)", name, got, want, tol)
	}
}

func TestSnapshotWarmupEmitsNaN(t *testing.T) {
	snap := computeSnapshot(candlesFromCloses(100, 101, 102, 101, 103), testIndicatorConfig())

	if Available(snap.RSI) {
		t.Fatalf("RSI should be NaN with 5 bars, got %v", snap.RSI)
	}
	if Available(snap.ATR) {
		t.Fatalf("ATR should be NaN with 5 bars, got %v", snap.ATR)
	}
	if Available(snap.BBMid) || Available(snap.BBWidth) {
		t.Fatalf("Bollinger should be NaN with 5 bars, got mid=%v width=%v", snap.BBMid, snap.BBWidth)
	}
	if Available(snap.VolPct) || Available(snap.VolMean) {
		t.Fatalf("volatility fields should be NaN with 5 bars")
	}
	// EMAs are defined from the first bar; slope from the third.
	if !Available(snap.EMAFast) || !Available(snap.EMASlow) || !Available(snap.EMASlope) {
		t.Fatalf("EMAs should be available with 5 bars")
	}
	if snap.Close != 103 {
		t.Fatalf("Close = %v, want 103", snap.Close)
	}
}

func TestSnapshotEmpty(t *testing.T) {
	snap := computeSnapshot(nil, testIndicatorConfig())
	if Available(snap.RSI) || Available(snap.EMAFast) || Available(snap.ATR) {
		t.Fatalf("empty input must produce an all-NaN snapshot")
	}
}

func TestRSIBoundsAndDirection(t *testing.T) {
	rising := make([]float64, 30)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	up := RSI(rising, 14)
	last := up[len(up)-1]
	if last < 99 || last > 100 {
		t.Fatalf("RSI of a pure uptrend = %v, want ~100", last)
	}

	falling := make([]float64, 30)
	for i := range falling {
		falling[i] = 200 - float64(i)
	}
	down := RSI(falling, 14)
	if last := down[len(down)-1]; last > 1 {
		t.Fatalf("RSI of a pure downtrend = %v, want ~0", last)
	}

	// Warmup region stays NaN.
	if Available(up[5]) {
		t.Fatalf("RSI[5] should be NaN before the first full window")
	}
}

func TestATRFlatBand(t *testing.T) {
	// Constant 2.0-wide bars with no gaps: true range is 2 everywhere.
	c := candlesFromCloses(100, 100, 100, 100, 100, 100)
	atr := ATR(c, 3)
	if Available(atr[1]) {
		t.Fatalf("ATR[1] should be NaN with window 3")
	}
	approx(t, "ATR[5]", atr[5], 2.0, 1e-12)
}

func TestEMASeededFromFirstValue(t *testing.T) {
	v := []float64{50, 50, 50, 50}
	ema := EMA(v, 5)
	for _, got := range ema {
		approx(t, "EMA of a constant series", got, 50, 1e-12)
	}
	if got := EMA([]float64{7, 9}, 3)[0]; got != 7 {
		t.Fatalf("EMA[0] = %v, want the first value", got)
	}
}

func TestRollingStdSample(t *testing.T) {
	out := rollingStd([]float64{1, 2, 3, 4}, 4)
	approx(t, "sample std of 1..4", out[3], math.Sqrt(5.0/3.0), 1e-12)
	if Available(out[2]) {
		t.Fatalf("rollingStd before a full window should be NaN")
	}
}

func TestBollingerConstantSeries(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	snap := computeSnapshot(candlesFromCloses(closes...), testIndicatorConfig())
	approx(t, "BBMid", snap.BBMid, 100, 1e-9)
	approx(t, "BBUpper", snap.BBUpper, 100, 1e-9)
	approx(t, "BBWidth", snap.BBWidth, 0, 1e-9)
}

func TestEMASlopeUsesTwoBarLag(t *testing.T) {
	closes := []float64{100, 101, 102, 103, 104}
	snap := computeSnapshot(candlesFromCloses(closes...), testIndicatorConfig())
	fast := EMA(closes, 5)
	approx(t, "EMASlope", snap.EMASlope, fast[4]-fast[2], 1e-12)
	if snap.EMASlope <= 0 {
		t.Fatalf("uptrend slope = %v, want > 0", snap.EMASlope)
	}
}

func TestHTFTrendDirection(t *testing.T) {
	rising := make([]float64, 40)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	tr := computeHTFTrend(candlesFromCloses(rising...), testIndicatorConfig())
	if !(tr.EMAFast > tr.EMASlow) {
		t.Fatalf("uptrend HTF vote: fast=%v slow=%v, want fast > slow", tr.EMAFast, tr.EMASlow)
	}
	empty := computeHTFTrend(nil, testIndicatorConfig())
	if Available(empty.EMAFast) {
		t.Fatalf("empty HTF input must be NaN")
	}
}
