// FILE: governor.go
// Package main – Loss-streak risk governor.
//
// The governor counts consecutive losing trades. At the configured limit it
// either reduces future risk (a multiplier fed into sizing) or pauses new
// entries for a fixed duration. It is advisory state consulted by the engine
// before sizing an entry; it never blocks calls itself, and open positions
// keep being managed during a pause.

package main

import "time"

// LossStreakGovernor tracks consecutive losing trades for one engine.
type LossStreakGovernor struct {
	limit        int
	action       string // LossActionReduce | LossActionPause
	reduceFactor float64
	pauseFor     time.Duration

	streak      int
	pausedUntil time.Time
}

func NewLossStreakGovernor(cfg Config) *LossStreakGovernor {
	return &LossStreakGovernor{
		limit:        cfg.LossStreakLimit,
		action:       cfg.LossStreakAction,
		reduceFactor: cfg.LossReduceFactor,
		pauseFor:     cfg.LossPauseFor,
	}
}

// RecordTrade updates the streak from a closed trade. A losing trade
// increments the counter; anything else resets it to zero.
func (g *LossStreakGovernor) RecordTrade(rec TradeRecord, now time.Time) {
	if rec.Losing() {
		g.streak++
		if g.action == LossActionPause && g.streak >= g.limit {
			g.pausedUntil = now.Add(g.pauseFor)
		}
	} else {
		g.streak = 0
	}
	SetLossStreakMetric(g.streak)
}

// Streak is the current consecutive-loss count.
func (g *LossStreakGovernor) Streak() int { return g.streak }

// RiskFactor is the multiplier the engine applies to its base risk
// percentage. 1.0 until the streak limit is reached under "reduce".
func (g *LossStreakGovernor) RiskFactor() float64 {
	if g.action == LossActionReduce && g.streak >= g.limit {
		return g.reduceFactor
	}
	return 1.0
}

// EntriesPaused reports whether new entries are suspended engine-wide.
// Only meaningful under the "pause" action.
func (g *LossStreakGovernor) EntriesPaused(now time.Time) bool {
	return g.action == LossActionPause && now.Before(g.pausedUntil)
}
