package main

import (
	"testing"

	"github.com/shopspring/decimal"
)

func testRiskConfig() RiskConfig {
	return RiskConfig{
		BaseRiskPct:   decimal.NewFromFloat(0.5),
		MinRiskPct:    decimal.NewFromFloat(0.1),
		MaxRiskPct:    decimal.NewFromFloat(3.0),
		BaseStopPct:   decimal.NewFromFloat(0.35),
		ConfidenceMin: decimal.NewFromFloat(0.6),
		ConfidenceMax: decimal.NewFromFloat(1.6),
	}
}

func testFilters() ExchangeFilters {
	return ExchangeFilters{
		Tick:        decimal.NewFromFloat(0.1),
		Step:        decimal.NewFromFloat(0.001),
		MinQty:      decimal.NewFromFloat(0.001),
		MinNotional: decimal.NewFromInt(5),
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeRiskQtyBaseline(t *testing.T) {
	// equity 1000, risk 0.5%, baseline stop 0.35%, mark 50000:
	// capital 5, notional 1428.57, qty 0.02857 floored to 0.028.
	qty := computeRiskQty(dec("1000"), testRiskConfig(), dec("1"), decZero, dec("50000"), testFilters())
	if !qty.Equal(dec("0.028")) {
		t.Fatalf("qty = %s, want 0.028", qty)
	}
}

func TestComputeRiskQtyStopDistance(t *testing.T) {
	// stop distance 500 on mark 50000 is a 1% stop: notional 500, qty 0.01.
	qty := computeRiskQty(dec("1000"), testRiskConfig(), dec("1"), dec("500"), dec("50000"), testFilters())
	if !qty.Equal(dec("0.01")) {
		t.Fatalf("qty = %s, want 0.01", qty)
	}
}

func TestComputeRiskQtyNotionalCeiling(t *testing.T) {
	// A razor-thin stop would imply a huge notional; the equity*MaxRiskPct
	// ceiling must clamp it: 1000*3.0 = 3000 notional, qty 0.06.
	qty := computeRiskQty(dec("1000"), testRiskConfig(), dec("1"), dec("5"), dec("50000"), testFilters())
	if !qty.Equal(dec("0.06")) {
		t.Fatalf("qty = %s, want 0.06 (capped)", qty)
	}
}

func TestComputeRiskQtyStepMultiple(t *testing.T) {
	f := testFilters()
	for _, equity := range []string{"137.5", "999", "12345.67"} {
		qty := computeRiskQty(dec(equity), testRiskConfig(), dec("1"), decZero, dec("43217.3"), f)
		if !qty.Mod(f.Step).IsZero() {
			t.Fatalf("equity %s: qty %s is not a step multiple", equity, qty)
		}
		if qty.LessThan(f.MinQty) {
			t.Fatalf("equity %s: qty %s below venue minimum", equity, qty)
		}
	}
}

func TestComputeRiskQtyBadMark(t *testing.T) {
	if qty := computeRiskQty(dec("1000"), testRiskConfig(), dec("1"), decZero, decZero, testFilters()); !qty.IsZero() {
		t.Fatalf("zero mark must size to zero, got %s", qty)
	}
}

func TestEffectiveRiskPctClamps(t *testing.T) {
	rc := testRiskConfig()
	cases := []struct {
		confidence string
		want       string
	}{
		{"1", "0.5"},     // neutral
		{"10", "0.8"},    // confidence clamped to 1.6
		{"0", "0.3"},     // confidence clamped to 0.6
		{"-5", "0.3"},    // negative confidence treated as the floor
	}
	for _, tc := range cases {
		got := effectiveRiskPct(rc, dec(tc.confidence))
		if !got.Equal(dec(tc.want)) {
			t.Fatalf("confidence %s: risk %%= %s, want %s", tc.confidence, got, tc.want)
		}
	}

	// The absolute risk ceiling binds even when base*confidence exceeds it.
	rc.BaseRiskPct = decimal.NewFromFloat(5)
	if got := effectiveRiskPct(rc, dec("1.6")); !got.Equal(dec("3")) {
		t.Fatalf("risk %% = %s, want absolute max 3", got)
	}
}

func TestAdjustQtyForExchange(t *testing.T) {
	f := testFilters()

	// Below minimum quantity: raised to it, and the raised quantity already
	// clears the notional floor at this price.
	if got := adjustQtyForExchange(decZero, dec("50000"), f); !got.Equal(dec("0.001")) {
		t.Fatalf("qty = %s, want 0.001", got)
	}

	// minQty alone is not enough notional at a cheap price: round UP to the
	// step that clears MinNotional (5 / 1000 = 0.005).
	if got := adjustQtyForExchange(decZero, dec("1000"), f); !got.Equal(dec("0.005")) {
		t.Fatalf("qty = %s, want 0.005", got)
	}

	// Already compliant quantities pass through untouched.
	if got := adjustQtyForExchange(dec("0.25"), dec("50000"), f); !got.Equal(dec("0.25")) {
		t.Fatalf("qty = %s, want 0.25 unchanged", got)
	}
}

func TestRoundToStep(t *testing.T) {
	step := dec("0.001")
	if got := roundToStep(dec("0.0285714"), step, false); !got.Equal(dec("0.028")) {
		t.Fatalf("floor: got %s", got)
	}
	if got := roundToStep(dec("0.0280001"), step, true); !got.Equal(dec("0.029")) {
		t.Fatalf("ceil: got %s", got)
	}
	// Exact multiples stay exact in both directions.
	if got := roundToStep(dec("0.028"), step, true); !got.Equal(dec("0.028")) {
		t.Fatalf("ceil of an exact multiple: got %s", got)
	}
	// A non-positive step is a pass-through.
	if got := roundToStep(dec("1.2345"), decZero, false); !got.Equal(dec("1.2345")) {
		t.Fatalf("zero step: got %s", got)
	}
}
