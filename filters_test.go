package main

import (
	"math"
	"testing"
)

func testThresholds() FilterThresholds {
	return FilterThresholds{
		MinVolPct:        0.045,
		BBWidthMin:       0.006,
		DojiATRRatio:     0.12,
		VolBoostFactor:   1.10,
		MinADX:           18,
		HTFVoteThreshold: 1,
	}
}

// tradeableSnapshot passes every gate in marketConditionsOk.
func tradeableSnapshot() Snapshot {
	return Snapshot{
		Close:    100,
		High:     101,
		Low:      99,
		Volume:   50,
		RSI:      60,
		EMAFast:  100.5,
		EMASlow:  99.5,
		EMASlope: 0.3,
		ATR:      1.0,
		ADX:      25,
		VolPct:   0.10,
		VolMean:  40, // 50 >= 40*1.10
		BBMid:    100,
		BBUpper:  101,
		BBLower:  99,
		BBWidth:  0.02,
	}
}

func upTrend() HTFTrend   { return HTFTrend{EMAFast: 101, EMASlow: 100} }
func downTrend() HTFTrend { return HTFTrend{EMAFast: 100, EMASlow: 101} }

func TestMarketConditionsOkPasses(t *testing.T) {
	if !marketConditionsOk(tradeableSnapshot(), testThresholds(), []HTFTrend{upTrend(), upTrend()}) {
		t.Fatalf("healthy snapshot should pass the gates")
	}
}

func TestMarketConditionsRejections(t *testing.T) {
	nan := math.NaN()
	cases := []struct {
		name   string
		mutate func(*Snapshot)
		htf    []HTFTrend
	}{
		{"atr missing", func(s *Snapshot) { s.ATR = nan }, nil},
		{"atr zero", func(s *Snapshot) { s.ATR = 0 }, nil},
		{"volatility missing", func(s *Snapshot) { s.VolPct = nan }, nil},
		{"volatility too low", func(s *Snapshot) { s.VolPct = 0.01 }, nil},
		{"doji bar", func(s *Snapshot) { s.High, s.Low = 100.05, 100.0 }, nil},
		{"volume not boosted", func(s *Snapshot) { s.Volume = 30 }, nil},
		{"bands squeezed", func(s *Snapshot) { s.BBWidth = 0.001 }, nil},
		{"adx missing", func(s *Snapshot) { s.ADX = nan }, nil},
		{"htf deadlock", func(*Snapshot) {}, []HTFTrend{upTrend(), downTrend()}},
	}
	for _, tc := range cases {
		snap := tradeableSnapshot()
		tc.mutate(&snap)
		if marketConditionsOk(snap, testThresholds(), tc.htf) {
			t.Fatalf("%s: gate should reject", tc.name)
		}
	}
}

func TestMarketConditionsSingleHTFDoesNotVeto(t *testing.T) {
	// With fewer than two usable timeframes the vote gate is skipped.
	if !marketConditionsOk(tradeableSnapshot(), testThresholds(), []HTFTrend{downTrend()}) {
		t.Fatalf("a single HTF voter must not veto")
	}
}

func TestPickSignalBuy(t *testing.T) {
	snap := tradeableSnapshot()
	snap.Close = 101 // clears 99.5 * 1.001
	if got := pickSignal(snap); got != Buy {
		t.Fatalf("pickSignal = %v, want BUY", got)
	}
}

func TestPickSignalSell(t *testing.T) {
	snap := tradeableSnapshot()
	snap.EMAFast, snap.EMASlow = 99.5, 100.5
	snap.EMASlope = -0.3
	snap.RSI = 40
	snap.Close = 99 // below 100.5 * 0.999
	if got := pickSignal(snap); got != Sell {
		t.Fatalf("pickSignal = %v, want SELL", got)
	}
}

func TestPickSignalHold(t *testing.T) {
	neutralRSI := tradeableSnapshot()
	neutralRSI.RSI = 50
	closeTooNear := tradeableSnapshot()
	closeTooNear.Close = 99.5 // inside the margin band around the slow EMA
	flatSlope := tradeableSnapshot()
	flatSlope.EMASlope = 0
	warming := tradeableSnapshot()
	warming.RSI = math.NaN()

	for name, snap := range map[string]Snapshot{
		"neutral rsi":       neutralRSI,
		"close inside band": closeTooNear,
		"flat slope":        flatSlope,
		"rsi warming up":    warming,
	} {
		if got := pickSignal(snap); got != Hold {
			t.Fatalf("%s: pickSignal = %v, want HOLD", name, got)
		}
	}
}

func TestSignalSideMapping(t *testing.T) {
	if Buy.Side() != SideBuy || Sell.Side() != SideSell {
		t.Fatalf("signal side mapping broken")
	}
	if Buy.String() != "BUY" || Sell.String() != "SELL" || Hold.String() != "HOLD" {
		t.Fatalf("signal string mapping broken")
	}
}
