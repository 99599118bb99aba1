// FILE: telemetry.go
// Package main – Best-effort CSV telemetry and trade logging.
//
// Two append-only files:
//   • trade log  – one row per closed trade (ts, symbol, side, entry, exit,
//     qty, pnl_pct)
//   • telemetry  – periodic engine snapshot (ts, equity, entries, trades,
//     skips, open_positions, loss_streak)
//
// Both writers are best-effort: failures are logged and swallowed; a broken
// disk must never stop the trading loop.

package main

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// Telemetry owns the two CSV sinks.
type Telemetry struct {
	tradeLogPath  string
	telemetryPath string
}

func NewTelemetry(cfg Config) *Telemetry {
	return &Telemetry{
		tradeLogPath:  cfg.TradeLogFile,
		telemetryPath: cfg.TelemetryFile,
	}
}

// AppendTrade writes one closed-trade row, creating the file with a header
// on first use.
func (t *Telemetry) AppendTrade(rec TradeRecord) {
	header := []string{"ts", "symbol", "side", "entry_price", "exit_price", "qty", "pnl_pct"}
	row := []string{
		strconv.FormatInt(rec.Time.Unix(), 10),
		rec.Symbol,
		string(rec.Side),
		rec.EntryPrice.String(),
		rec.ExitPrice.String(),
		rec.Qty.String(),
		fmt.Sprintf("%.6f", rec.PnlPct),
	}
	if err := appendCSV(t.tradeLogPath, header, row); err != nil {
		log.Printf("[WARN] trade log failed: %v", err)
	}
}

// AppendSnapshot writes one periodic engine-state row.
func (t *Telemetry) AppendSnapshot(now time.Time, equity float64, entries, trades, skips, open, streak int) {
	header := []string{"ts", "equity", "entries", "trades", "skips", "open_positions", "loss_streak"}
	row := []string{
		strconv.FormatInt(now.Unix(), 10),
		fmt.Sprintf("%.2f", equity),
		strconv.Itoa(entries),
		strconv.Itoa(trades),
		strconv.Itoa(skips),
		strconv.Itoa(open),
		strconv.Itoa(streak),
	}
	if err := appendCSV(t.telemetryPath, header, row); err != nil {
		log.Printf("[WARN] telemetry write failed: %v", err)
	}
}

// appendCSV appends one row, writing the header first when the file is new.
func appendCSV(path string, header, row []string) error {
	writeHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		writeHeader = true
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
