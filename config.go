// FILE: config.go
// Package main – Runtime configuration model and loader.
//
// This file defines the Config struct (all the knobs the bot uses) and a
// helper to populate it from environment variables. The .env file is read by
// loadBotEnv() (see env.go), so you can tune behavior without exports.
//
// Every option is enumerated here with its default; the struct is built once
// at startup, validated, and never mutated afterwards. Nothing else in the
// codebase reads the env for trading knobs.
//
// Typical flow (see main.go):
//   loadBotEnv()
//   cfg := loadConfigFromEnv()
//   if err := cfg.Validate(); err != nil { log.Fatalf(...) }

package main

import (
	"fmt"
	"strings"
	"time"
)

// Governor actions after a loss streak.
const (
	LossActionReduce = "reduce"
	LossActionPause  = "pause"
)

// Config holds all runtime knobs for trading and operations.
type Config struct {
	// Trading target
	Symbols      []string // e.g. BTCUSDT,ETHUSDT
	Interval     string   // kline interval for the decision timeframe
	HTFIntervals []string // higher timeframes voting on trend direction
	Leverage     int
	HedgeMode    bool
	LoopSeconds  int // polling cadence of the tick loop

	// Capital & risk
	DefaultEquity float64 // fallback when the equity call fails
	BaseRiskPct   float64 // base % of equity risked per trade
	MinRiskPct    float64 // floor after confidence scaling
	MaxRiskPct    float64 // ceiling after confidence scaling; also caps notional/equity
	ConfidenceMin float64
	ConfidenceMax float64

	// Baseline SL/TP (percent of price; fallback when ATR unavailable)
	BaseStopPct float64
	BaseTakePct float64

	// Indicator windows
	RSIWindow     int
	ATRWindow     int
	ADXPeriod     int
	BBWindow      int
	VolWindow     int
	VolMeanWindow int
	EMAFastSpan   int
	EMASlowSpan   int

	// Entry filters
	MinVolPct        float64
	VolBoostFactor   float64
	DojiATRRatio     float64
	BBWidthMin       float64
	MinADX           float64
	HTFVoteThreshold int

	// Adaptive rearm
	AdaptTriggerATR float64       // favorable move (in ATRs) that triggers a rearm
	TPExpandFactor  float64       // expanded TP = BaseTakePct * factor
	TrailLockPct    float64       // tightened trailing SL percent
	RearmCooldown   time.Duration // minimum spacing between rearms per side

	// Micro take-profit
	MicroTPAfter time.Duration // minimum holding time before a micro close
	MicroTPPct   float64       // unrealized % gain that triggers it

	// Pyramiding
	AllowPyramid          bool
	MaxPyramidLevels      int
	PyramidMinMomentumATR float64 // favorable move (in ATRs) required per add

	// Event detector (collapse/spike hunter)
	EventEnabled   bool
	EventWindow    time.Duration // price-window lookback
	EventDropPct   float64       // COLLAPSE threshold (% drop from window max)
	EventSpikePct  float64       // SPIKE threshold (% rise from window min)
	EventCooldown  time.Duration // per (symbol, side) refire spacing
	EventQtyFactor float64       // scales the base risk quantity
	EventTPAtrMult float64       // event bracket TP distance in ATRs
	EventSLAtrMult float64       // event bracket SL distance in ATRs

	// Portfolio caps
	MaxOpenPositions int // aggregate (symbol, side) books open at once

	// Loss-streak governor
	LossStreakLimit  int
	LossStreakAction string // "reduce" or "pause"
	LossReduceFactor float64
	LossPauseFor     time.Duration

	// Telemetry / ops
	TelemetryEvery time.Duration
	TelemetryFile  string
	TradeLogFile   string
	Port           int

	// Mark-price stream (optional; feeds the event detector between polls)
	StreamEnabled bool
	StreamURL     string
}

// loadConfigFromEnv reads the process env (already hydrated by loadBotEnv())
// and returns a Config with the same defaults the strategy was tuned with.
func loadConfigFromEnv() Config {
	return Config{
		Symbols:      getEnvList("SYMBOLS", []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "BNBUSDT"}),
		Interval:     getEnv("INTERVAL", "1m"),
		HTFIntervals: getEnvList("HTF_INTERVALS", []string{"3m", "5m", "15m"}),
		Leverage:     getEnvInt("LEVERAGE", 10),
		HedgeMode:    getEnvBool("HEDGE_MODE", true),
		LoopSeconds:  getEnvInt("LOOP_SECONDS", 7),

		DefaultEquity: getEnvFloat("TARGET_MIN_EQUITY", 1000.0),
		BaseRiskPct:   getEnvFloat("RISK_PER_TRADE_PCT", 0.5),
		MinRiskPct:    getEnvFloat("MIN_RISK_PCT", 0.1),
		MaxRiskPct:    getEnvFloat("MAX_RISK_PCT", 3.0),
		ConfidenceMin: getEnvFloat("CONFIDENCE_MIN", 0.6),
		ConfidenceMax: getEnvFloat("CONFIDENCE_MAX", 1.6),

		BaseStopPct: getEnvFloat("BASE_SL_PCT", 0.35),
		BaseTakePct: getEnvFloat("BASE_TP_PCT", 0.60),

		RSIWindow:     getEnvInt("RSI_WINDOW", 14),
		ATRWindow:     getEnvInt("ATR_WINDOW", 10),
		ADXPeriod:     getEnvInt("ADX_PERIOD", 14),
		BBWindow:      getEnvInt("BB_WINDOW", 20),
		VolWindow:     getEnvInt("VOL_WINDOW", 12),
		VolMeanWindow: getEnvInt("VOL_MEAN_WINDOW", 30),
		EMAFastSpan:   getEnvInt("EMA_FAST_SPAN", 5),
		EMASlowSpan:   getEnvInt("EMA_SLOW_SPAN", 13),

		MinVolPct:        getEnvFloat("MIN_VOL_PCT", 0.045),
		VolBoostFactor:   getEnvFloat("VOL_BOOST_FACTOR", 1.10),
		DojiATRRatio:     getEnvFloat("DOJI_ATR_RATIO", 0.12),
		BBWidthMin:       getEnvFloat("BB_WIDTH_MIN", 0.006),
		MinADX:           getEnvFloat("MIN_ADX", 18),
		HTFVoteThreshold: getEnvInt("HTF_VOTE_THRESHOLD", 1),

		AdaptTriggerATR: getEnvFloat("ADAPT_TRIGGER_ATR", 0.45),
		TPExpandFactor:  getEnvFloat("TP_EXPAND_FACTOR", 1.6),
		TrailLockPct:    getEnvFloat("TRAIL_SL_LOCK_PCT", 0.2),
		RearmCooldown:   getEnvSeconds("REARM_COOLDOWN_SEC", 8*time.Second),

		MicroTPAfter: time.Duration(getEnvInt("MICRO_TP_TRIGGER_MINUTES", 12)) * time.Minute,
		MicroTPPct:   getEnvFloat("MICRO_TP_PCT", 0.12),

		AllowPyramid:          getEnvBool("ALLOW_PYRAMID", true),
		MaxPyramidLevels:      getEnvInt("MAX_PYRAMID_LEVELS", 2),
		PyramidMinMomentumATR: getEnvFloat("PYRAMID_MIN_MOMENTUM_ATR", 0.4),

		EventEnabled:   getEnvBool("EVENT_ENABLED", true),
		EventWindow:    getEnvSeconds("EVENT_WINDOW_SEC", 45*time.Second),
		EventDropPct:   getEnvFloat("EVENT_DROP_PCT", 1.0),
		EventSpikePct:  getEnvFloat("EVENT_SPIKE_PCT", 1.0),
		EventCooldown:  getEnvSeconds("EVENT_COOLDOWN_SEC", 120*time.Second),
		EventQtyFactor: getEnvFloat("EVENT_QTY_FACTOR", 0.5),
		EventTPAtrMult: getEnvFloat("EVENT_TP_ATR_MULT", 0.6),
		EventSLAtrMult: getEnvFloat("EVENT_SL_ATR_MULT", 0.8),

		MaxOpenPositions: getEnvInt("MAX_OPEN_POSITIONS", 2),

		LossStreakLimit:  getEnvInt("LOSS_STREAK_LIMIT", 3),
		LossStreakAction: strings.ToLower(getEnv("LOSS_STREAK_ACTION", LossActionReduce)),
		LossReduceFactor: getEnvFloat("LOSS_STREAK_REDUCE_PCT", 0.5),
		LossPauseFor:     getEnvSeconds("LOSS_STREAK_PAUSE_SEC", 600*time.Second),

		TelemetryEvery: getEnvSeconds("TELEMETRY_INTERVAL_SEC", 1800*time.Second),
		TelemetryFile:  getEnv("TELEMETRY_FILE", "telemetry.csv"),
		TradeLogFile:   getEnv("TRADE_LOG_FILE", "trade_log.csv"),
		Port:           getEnvInt("PORT", 8080),

		StreamEnabled: getEnvBool("STREAM_ENABLED", false),
		StreamURL:     getEnv("STREAM_URL", "wss://fstream.binance.com/stream"),
	}
}

// Validate rejects impossible knob combinations once, at startup.
func (c Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: SYMBOLS must not be empty")
	}
	if c.LoopSeconds <= 0 {
		return fmt.Errorf("config: LOOP_SECONDS must be positive")
	}
	if c.BaseRiskPct <= 0 || c.MinRiskPct <= 0 || c.MaxRiskPct <= 0 {
		return fmt.Errorf("config: risk percentages must be positive")
	}
	if c.MinRiskPct > c.MaxRiskPct {
		return fmt.Errorf("config: MIN_RISK_PCT %.3f > MAX_RISK_PCT %.3f", c.MinRiskPct, c.MaxRiskPct)
	}
	if c.ConfidenceMin > c.ConfidenceMax {
		return fmt.Errorf("config: CONFIDENCE_MIN %.2f > CONFIDENCE_MAX %.2f", c.ConfidenceMin, c.ConfidenceMax)
	}
	if c.BaseStopPct <= 0 || c.BaseTakePct <= 0 {
		return fmt.Errorf("config: BASE_SL_PCT and BASE_TP_PCT must be positive")
	}
	if c.LossStreakAction != LossActionReduce && c.LossStreakAction != LossActionPause {
		return fmt.Errorf("config: LOSS_STREAK_ACTION must be %q or %q", LossActionReduce, LossActionPause)
	}
	if c.MaxOpenPositions <= 0 {
		return fmt.Errorf("config: MAX_OPEN_POSITIONS must be positive")
	}
	if c.MaxPyramidLevels < 0 {
		return fmt.Errorf("config: MAX_PYRAMID_LEVELS must not be negative")
	}
	for _, w := range []int{c.RSIWindow, c.ATRWindow, c.ADXPeriod, c.BBWindow, c.VolWindow, c.VolMeanWindow, c.EMAFastSpan, c.EMASlowSpan} {
		if w < 2 {
			return fmt.Errorf("config: indicator windows must be >= 2")
		}
	}
	return nil
}

// FilterThresholds extracts the immutable gate settings consumed by
// marketConditionsOk (see filters.go).
func (c Config) FilterThresholds() FilterThresholds {
	return FilterThresholds{
		MinVolPct:        c.MinVolPct,
		BBWidthMin:       c.BBWidthMin,
		DojiATRRatio:     c.DojiATRRatio,
		VolBoostFactor:   c.VolBoostFactor,
		MinADX:           c.MinADX,
		HTFVoteThreshold: c.HTFVoteThreshold,
	}
}

// IndicatorConfig extracts the rolling-window lengths for the pipeline.
func (c Config) IndicatorConfig() IndicatorConfig {
	return IndicatorConfig{
		RSIWindow:     c.RSIWindow,
		ATRWindow:     c.ATRWindow,
		ADXPeriod:     c.ADXPeriod,
		BBWindow:      c.BBWindow,
		VolWindow:     c.VolWindow,
		VolMeanWindow: c.VolMeanWindow,
		EMAFastSpan:   c.EMAFastSpan,
		EMASlowSpan:   c.EMASlowSpan,
	}
}
