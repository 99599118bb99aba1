package main

import (
	"testing"
	"time"
)

func governorConfig(action string) Config {
	return Config{
		LossStreakLimit:  3,
		LossStreakAction: action,
		LossReduceFactor: 0.5,
		LossPauseFor:     600 * time.Second,
	}
}

func losingTrade() TradeRecord  { return TradeRecord{PnlPct: -0.4} }
func winningTrade() TradeRecord { return TradeRecord{PnlPct: 0.7} }

func TestGovernorReduceAfterStreak(t *testing.T) {
	g := NewLossStreakGovernor(governorConfig(LossActionReduce))
	now := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		g.RecordTrade(losingTrade(), now)
		if g.RiskFactor() != 1.0 {
			t.Fatalf("after %d losses factor = %v, want 1.0", i+1, g.RiskFactor())
		}
	}
	g.RecordTrade(losingTrade(), now)
	if g.Streak() != 3 {
		t.Fatalf("streak = %d, want 3", g.Streak())
	}
	if g.RiskFactor() != 0.5 {
		t.Fatalf("factor at the limit = %v, want 0.5", g.RiskFactor())
	}
	// Reduce mode never pauses entries.
	if g.EntriesPaused(now) {
		t.Fatalf("reduce action must not pause entries")
	}
}

func TestGovernorWinResetsStreak(t *testing.T) {
	g := NewLossStreakGovernor(governorConfig(LossActionReduce))
	now := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		g.RecordTrade(losingTrade(), now)
	}
	g.RecordTrade(winningTrade(), now)
	if g.Streak() != 0 {
		t.Fatalf("streak after a win = %d, want 0", g.Streak())
	}
	if g.RiskFactor() != 1.0 {
		t.Fatalf("factor after a win = %v, want 1.0", g.RiskFactor())
	}
}

func TestGovernorPauseWindow(t *testing.T) {
	g := NewLossStreakGovernor(governorConfig(LossActionPause))
	now := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		g.RecordTrade(losingTrade(), now)
	}
	if !g.EntriesPaused(now.Add(time.Second)) {
		t.Fatalf("entries should be paused right after the streak")
	}
	if !g.EntriesPaused(now.Add(599 * time.Second)) {
		t.Fatalf("entries should still be paused inside the window")
	}
	if g.EntriesPaused(now.Add(601 * time.Second)) {
		t.Fatalf("the pause must expire after LossPauseFor")
	}
	// Pause mode keeps sizing untouched.
	if g.RiskFactor() != 1.0 {
		t.Fatalf("pause action must not scale risk, factor = %v", g.RiskFactor())
	}
}

func TestGovernorFlatTradeIsNotALoss(t *testing.T) {
	g := NewLossStreakGovernor(governorConfig(LossActionReduce))
	now := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

	g.RecordTrade(losingTrade(), now)
	g.RecordTrade(TradeRecord{PnlPct: 0}, now)
	if g.Streak() != 0 {
		t.Fatalf("a break-even trade must reset the streak, got %d", g.Streak())
	}
}
