// FILE: metrics.go
// Package main – Prometheus metrics for observability.
//
// Exposes the primary metrics the bot updates during operation:
//   • bot_decisions_total{signal}        – decisions per tick (buy|sell|hold)
//   • bot_entries_total{kind,side}       – entries by kind (signal|event|pyramid)
//   • bot_skips_total{reason}            – candidate actions skipped
//   • bot_trades_total{result}           – closed trades by result (win|loss)
//   • bot_events_total{kind}             – collapse/spike detections
//   • bot_rearms_total{side}             – adaptive bracket rearms
//   • bot_micro_tp_total{side}           – micro take-profit closes
//   • bot_retry_exhausted_total          – broker calls that failed after retries
//   • bot_equity_usdt                    – last known equity (gauge)
//   • bot_open_positions                 – live (symbol, side) books (gauge)
//   • bot_loss_streak                    – consecutive losing trades (gauge)
//
// These are registered in init() and served by the HTTP handler started in
// main.go at /metrics (Prometheus text exposition format).

package main

import "github.com/prometheus/client_golang/prometheus"

var (
	mtxDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_decisions_total",
			Help: "Decisions taken",
		},
		[]string{"signal"},
	)

	mtxEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_entries_total",
			Help: "Entries placed, by kind and position side",
		},
		[]string{"kind", "side"}, // kind: signal|event|pyramid
	)

	mtxSkips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_skips_total",
			Help: "Candidate actions skipped, by reason",
		},
		[]string{"reason"},
	)

	mtxTrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_trades_total",
			Help: "Closed trades by result (win|loss)",
		},
		[]string{"result"},
	)

	mtxEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_events_total",
			Help: "Collapse/spike events detected",
		},
		[]string{"kind"},
	)

	mtxRearms = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_rearms_total",
			Help: "Adaptive bracket rearms",
		},
		[]string{"side"},
	)

	mtxMicroTP = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_micro_tp_total",
			Help: "Micro take-profit closes",
		},
		[]string{"side"},
	)

	mtxRetryExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_retry_exhausted_total",
			Help: "Broker calls that failed after all retry attempts",
		},
	)

	mtxEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_equity_usdt",
			Help: "Last known account equity",
		},
	)

	mtxOpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_open_positions",
			Help: "Live (symbol, side) position books",
		},
	)

	mtxLossStreak = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_loss_streak",
			Help: "Consecutive losing trades",
		},
	)
)

func init() {
	prometheus.MustRegister(
		mtxDecisions, mtxEntries, mtxSkips, mtxTrades,
		mtxEvents, mtxRearms, mtxMicroTP, mtxRetryExhausted,
		mtxEquity, mtxOpenPositions, mtxLossStreak,
	)
}

// Helper setters used across files.

func SetEquityMetric(v float64)        { mtxEquity.Set(v) }
func SetOpenPositionsMetric(n int)     { mtxOpenPositions.Set(float64(n)) }
func SetLossStreakMetric(n int)        { mtxLossStreak.Set(float64(n)) }
func IncSkip(reason string)            { mtxSkips.WithLabelValues(reason).Inc() }
func IncEvent(kind EventKind)          { mtxEvents.WithLabelValues(string(kind)).Inc() }
func IncDecision(s Signal)             { mtxDecisions.WithLabelValues(s.String()).Inc() }
func IncRearm(side PositionSide)       { mtxRearms.WithLabelValues(string(side)).Inc() }
func IncMicroTP(side PositionSide)     { mtxMicroTP.WithLabelValues(string(side)).Inc() }
func IncEntry(kind string, side PositionSide) {
	mtxEntries.WithLabelValues(kind, string(side)).Inc()
}

// IncTrade counts a closed trade as win or loss.
func IncTrade(rec TradeRecord) {
	result := "win"
	if rec.Losing() {
		result = "loss"
	}
	mtxTrades.WithLabelValues(result).Inc()
}
