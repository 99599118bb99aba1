// FILE: broker.go
// Package main – Broker abstractions shared by all execution backends.
//
// This file defines the minimal interface the trading loop needs to talk to a
// futures-execution backend (paper or real):
//   • Broker interface: candles, mark price, equity, per-side position state,
//     market entries, bracket placement/cancellation, full-position close
//   • Common types: OrderSide, PositionSide, Candle, PlacedOrder, BracketPair,
//     ExchangeFilters
//
// Two concrete implementations live in separate files:
//   • broker_paper.go   – in-memory paper venue (no external calls)
//   • broker_binance.go – signed REST client for Binance USD-M futures
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the side of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// PositionSide distinguishes the two hedge-mode books on one symbol.
type PositionSide string

const (
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
)

// EntrySide maps a directional order to the position book it opens.
func EntrySide(dir OrderSide) PositionSide {
	if dir == SideBuy {
		return SideLong
	}
	return SideShort
}

// ExitSide is the order side that closes a position book.
func ExitSide(side PositionSide) OrderSide {
	if side == SideLong {
		return SideSell
	}
	return SideBuy
}

// Candle is the normalized OHLCV row the bot uses everywhere.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// ExchangeFilters are the per-symbol trading constraints every order is
// rounded against. All four are venue-authoritative decimals.
type ExchangeFilters struct {
	Tick        decimal.Decimal // minimum price increment
	Step        decimal.Decimal // minimum quantity increment
	MinQty      decimal.Decimal // smallest accepted quantity
	MinNotional decimal.Decimal // smallest accepted qty*price value
}

// PlacedOrder is a normalized view of an accepted order.
type PlacedOrder struct {
	ID         string
	Symbol     string
	Side       OrderSide
	Position   PositionSide
	Qty        decimal.Decimal
	Price      float64 // average/assumed execution price
	CreateTime time.Time
}

// BracketPair holds the two protective order ids for one position.
// Either id may be empty after a partial placement failure.
type BracketPair struct {
	TakeProfitID string
	StopLossID   string
}

// Broker is the minimal surface the engine needs to operate.
// All methods may block and may fail transiently; callers wrap them in
// retryCall (see retry.go).
type Broker interface {
	Name() string

	GetRecentCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	GetMarkPrice(ctx context.Context, symbol string) (float64, error)
	GetAccountEquity(ctx context.Context) (float64, error)

	// GetPositionState returns the open quantity (zero when flat) and entry
	// price for one (symbol, side) book.
	GetPositionState(ctx context.Context, symbol string, side PositionSide) (qty, entry decimal.Decimal, err error)

	PlaceMarketEntry(ctx context.Context, symbol string, dir OrderSide, qty decimal.Decimal) (*PlacedOrder, error)

	// PlaceTakeProfit / PlaceStopLoss place one tick-quantized protective
	// leg each (close-position style) and return its order id. The engine
	// retries each leg independently and tolerates one leg failing.
	PlaceTakeProfit(ctx context.Context, symbol string, side PositionSide, stopPrice decimal.Decimal) (string, error)
	PlaceStopLoss(ctx context.Context, symbol string, side PositionSide, stopPrice decimal.Decimal) (string, error)

	// CancelBrackets cancels only protective orders tagged for this symbol
	// and position side.
	CancelBrackets(ctx context.Context, symbol string, side PositionSide) error

	// ClosePosition market-closes the full (symbol, side) book and returns
	// the assumed exit price.
	ClosePosition(ctx context.Context, symbol string, side PositionSide) (float64, error)

	GetExchangeFilters(ctx context.Context, symbol string) (ExchangeFilters, error)

	// PrepareSymbol applies leverage and position-mode settings before the
	// first tick. Best-effort on venues that reject redundant changes.
	PrepareSymbol(ctx context.Context, symbol string, leverage int, hedgeMode bool) error
}

// venueError is a non-retryable rejection from the venue (bad request,
// filter violation, auth). Transport-level failures stay plain errors and
// remain retryable.
type venueError struct {
	Code int
	Msg  string
}

func (e *venueError) Error() string { return fmt.Sprintf("venue %d: %s", e.Code, e.Msg) }
