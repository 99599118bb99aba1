// FILE: broker_paper.go
// Package main – In-memory paper venue (no external calls).
//
// This broker simulates a hedge-mode futures venue using the latest seeded
// price. It's used for dry runs and for the engine tests:
//   • per (symbol, side) position books filled at the current mark
//   • a bracket book of protective order ids (never auto-filled; tests
//     flatten books explicitly to simulate venue-side fills)
//   • seedable candles and mark prices
//
// Orders here never touch an exchange.

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type paperPosition struct {
	qty   decimal.Decimal
	entry decimal.Decimal
}

// PaperBroker keeps all venue state in memory.
type PaperBroker struct {
	mu        sync.Mutex
	equity    float64
	prices    map[string]float64
	candles   map[string][]Candle // keyed symbol+"@"+interval
	positions map[PositionKey]paperPosition
	brackets  map[PositionKey][]string
	filters   ExchangeFilters
}

func NewPaperBroker() *PaperBroker {
	return &PaperBroker{
		equity:    1000,
		prices:    make(map[string]float64),
		candles:   make(map[string][]Candle),
		positions: make(map[PositionKey]paperPosition),
		brackets:  make(map[PositionKey][]string),
		filters: ExchangeFilters{
			Tick:        decimal.NewFromFloat(0.1),
			Step:        decimal.NewFromFloat(0.001),
			MinQty:      decimal.NewFromFloat(0.001),
			MinNotional: decimal.NewFromInt(5),
		},
	}
}

func (p *PaperBroker) Name() string { return "paper" }

// --- Seeding helpers (tests and dry runs) ---

func (p *PaperBroker) SetEquity(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.equity = v
}

func (p *PaperBroker) SetMarkPrice(symbol string, px float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = px
}

func (p *PaperBroker) SeedCandles(symbol, interval string, cs []Candle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.candles[symbol+"@"+interval] = cs
	if len(cs) > 0 {
		p.prices[symbol] = cs[len(cs)-1].Close
	}
}

// FlattenBook simulates a venue-side bracket fill: the book goes flat and
// its protective orders disappear.
func (p *PaperBroker) FlattenBook(symbol string, side PositionSide) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := PositionKey{Symbol: symbol, Side: side}
	delete(p.positions, k)
	delete(p.brackets, k)
}

// OpenBrackets reports the live protective order ids for one book.
func (p *PaperBroker) OpenBrackets(symbol string, side PositionSide) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.brackets[PositionKey{Symbol: symbol, Side: side}]...)
}

// --- Broker implementation ---

func (p *PaperBroker) GetRecentCandles(_ context.Context, symbol, interval string, limit int) ([]Candle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cs, ok := p.candles[symbol+"@"+interval]
	if !ok {
		return nil, fmt.Errorf("paper: no candles seeded for %s@%s", symbol, interval)
	}
	if limit > 0 && len(cs) > limit {
		cs = cs[len(cs)-limit:]
	}
	return append([]Candle(nil), cs...), nil
}

func (p *PaperBroker) GetMarkPrice(_ context.Context, symbol string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	px, ok := p.prices[symbol]
	if !ok || px <= 0 {
		return 0, fmt.Errorf("paper: no price seeded for %s", symbol)
	}
	return px, nil
}

func (p *PaperBroker) GetAccountEquity(context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.equity, nil
}

func (p *PaperBroker) GetPositionState(_ context.Context, symbol string, side PositionSide) (decimal.Decimal, decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos := p.positions[PositionKey{Symbol: symbol, Side: side}]
	return pos.qty, pos.entry, nil
}

func (p *PaperBroker) PlaceMarketEntry(_ context.Context, symbol string, dir OrderSide, qty decimal.Decimal) (*PlacedOrder, error) {
	if qty.LessThanOrEqual(decZero) {
		return nil, errors.New("paper: qty must be > 0")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	px, ok := p.prices[symbol]
	if !ok || px <= 0 {
		return nil, fmt.Errorf("paper: no price seeded for %s", symbol)
	}
	side := EntrySide(dir)
	k := PositionKey{Symbol: symbol, Side: side}
	pos := p.positions[k]
	mark := decimal.NewFromFloat(px)
	total := pos.qty.Add(qty)
	if pos.qty.GreaterThan(decZero) {
		pos.entry = pos.entry.Mul(pos.qty).Add(mark.Mul(qty)).Div(total)
	} else {
		pos.entry = mark
	}
	pos.qty = total
	p.positions[k] = pos
	return &PlacedOrder{
		ID:         uuid.New().String(),
		Symbol:     symbol,
		Side:       dir,
		Position:   side,
		Qty:        qty,
		Price:      px,
		CreateTime: time.Now().UTC(),
	}, nil
}

func (p *PaperBroker) PlaceTakeProfit(_ context.Context, symbol string, side PositionSide, _ decimal.Decimal) (string, error) {
	return p.placeLeg(symbol, side)
}

func (p *PaperBroker) PlaceStopLoss(_ context.Context, symbol string, side PositionSide, _ decimal.Decimal) (string, error) {
	return p.placeLeg(symbol, side)
}

func (p *PaperBroker) placeLeg(symbol string, side PositionSide) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := PositionKey{Symbol: symbol, Side: side}
	id := uuid.New().String()
	p.brackets[k] = append(p.brackets[k], id)
	return id, nil
}

func (p *PaperBroker) CancelBrackets(_ context.Context, symbol string, side PositionSide) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.brackets, PositionKey{Symbol: symbol, Side: side})
	return nil
}

func (p *PaperBroker) ClosePosition(_ context.Context, symbol string, side PositionSide) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := PositionKey{Symbol: symbol, Side: side}
	pos, ok := p.positions[k]
	if !ok || pos.qty.LessThanOrEqual(decZero) {
		return 0, fmt.Errorf("paper: %s %s is flat", symbol, side)
	}
	px := p.prices[symbol]
	delete(p.positions, k)
	delete(p.brackets, k)
	return px, nil
}

func (p *PaperBroker) GetExchangeFilters(context.Context, string) (ExchangeFilters, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filters, nil
}

func (p *PaperBroker) PrepareSymbol(context.Context, string, int, bool) error { return nil }
