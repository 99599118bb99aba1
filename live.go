// FILE: live.go
// Package main – The real-time tick loop.
//
// runLive drives the engine: every LoopSeconds it walks the configured
// symbols and runs one engine step per symbol. One symbol failing its step
// (venue hiccup, bad payload) is logged and the loop moves on; the remaining
// symbols still trade. A periodic telemetry snapshot row is appended so
// operators can chart equity/entry/skip counters without Prometheus.

package main

import (
	"context"
	"log"
	"strings"
	"time"
)

func runLive(ctx context.Context, e *Engine, cfg Config) {
	log.Printf("[BOOT] %s | symbols=%s interval=%s loop=%ds", e.broker.Name(),
		strings.Join(cfg.Symbols, ","), cfg.Interval, cfg.LoopSeconds)

	// Safety banner for operators.
	log.Printf("[SAFETY] RISK_PCT=%.2f [%.2f..%.2f] | STOP/TAKE=%.2f%%/%.2f%% | MAX_OPEN=%d | LOSS_STREAK=%d(%s) | EVENTS=%v | PYRAMID=%v",
		cfg.BaseRiskPct, cfg.MinRiskPct, cfg.MaxRiskPct,
		cfg.BaseStopPct, cfg.BaseTakePct, cfg.MaxOpenPositions,
		cfg.LossStreakLimit, cfg.LossStreakAction, cfg.EventEnabled, cfg.AllowPyramid)

	ticker := time.NewTicker(time.Duration(cfg.LoopSeconds) * time.Second)
	defer ticker.Stop()
	lastTelemetry := time.Now().UTC()

	for {
		select {
		case <-ctx.Done():
			log.Println("[BOOT] shutdown")
			return
		case <-ticker.C:
			for _, sym := range cfg.Symbols {
				if ctx.Err() != nil {
					return
				}
				if err := e.step(ctx, sym); err != nil {
					log.Printf("[WARN] %s step: %v", sym, err)
				}
			}
			if time.Since(lastTelemetry) >= cfg.TelemetryEvery {
				e.snapshotTelemetry(ctx)
				lastTelemetry = time.Now().UTC()
			}
		}
	}
}

// snapshotTelemetry appends one periodic state row to the telemetry CSV.
func (e *Engine) snapshotTelemetry(ctx context.Context) {
	equity, _ := accountEquity(ctx, e.broker, e.cfg.DefaultEquity).Float64()
	e.telem.AppendSnapshot(e.now().UTC(), equity,
		e.entries, e.trades, e.skips, e.ledger.OpenCount(), e.governor.Streak())
}
