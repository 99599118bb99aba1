// FILE: broker_binance.go
// Package main – Signed REST client for Binance USD-M futures.
//
// Auth: HMAC-SHA256 over the query string, API key in the X-MBX-APIKEY
// header. Credentials come from API_KEY/API_SECRET; TESTNET=true flips the
// base URL to the futures testnet.
//
// Error taxonomy: HTTP 4xx (except 418/429) is a venueError — the venue
// refused the request and resending it unchanged cannot succeed, so the
// retry layer gives up immediately. Rate limits, 5xx, and transport errors
// stay plain errors and are retried with backoff.

package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BinanceBroker talks to the USD-M futures REST API directly.
type BinanceBroker struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	apiSecret string
	hedgeMode bool

	// lightweight cache, populated on first GetExchangeFilters call
	filterCache map[string]ExchangeFilters
}

// NewBinanceBrokerFromEnv builds the live broker. Missing credentials are a
// hard error: live mode cannot run unauthenticated.
func NewBinanceBrokerFromEnv(hedgeMode bool) (*BinanceBroker, error) {
	apiKey := strings.TrimSpace(os.Getenv("API_KEY"))
	apiSecret := strings.TrimSpace(os.Getenv("API_SECRET"))
	if apiKey == "" || apiSecret == "" {
		return nil, errors.New("API_KEY and API_SECRET must be set (fill them in .env)")
	}
	base := "https://fapi.binance.com"
	if getEnvBool("TESTNET", true) {
		base = "https://testnet.binancefuture.com"
	}
	if v := strings.TrimSpace(os.Getenv("API_BASE")); v != "" {
		base = v
	}
	return &BinanceBroker{
		client:      &http.Client{Timeout: 15 * time.Second},
		baseURL:     strings.TrimRight(base, "/"),
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		hedgeMode:   hedgeMode,
		filterCache: make(map[string]ExchangeFilters),
	}, nil
}

func (b *BinanceBroker) Name() string { return "binance-futures" }

// ---- request plumbing ----

func (b *BinanceBroker) sign(q url.Values) string {
	mac := hmac.New(sha256.New, []byte(b.apiSecret))
	mac.Write([]byte(q.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

// doReq issues one request. signed=true appends timestamp/recvWindow and the
// HMAC signature.
func (b *BinanceBroker) doReq(ctx context.Context, method, path string, q url.Values, signed bool) ([]byte, error) {
	if q == nil {
		q = url.Values{}
	}
	if signed {
		q.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		q.Set("recvWindow", "5000")
		q.Set("signature", b.sign(q))
	}
	u := b.baseURL + path
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", b.apiKey)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		// 418/429 are bans/rate limits — transient, keep retryable.
		if resp.StatusCode == 418 || resp.StatusCode == 429 || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("binance %s %s: %d %s", method, path, resp.StatusCode, string(data))
		}
		return nil, &venueError{Code: resp.StatusCode, Msg: string(data)}
	}
	return data, nil
}

// ---- market data ----

func (b *BinanceBroker) GetRecentCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	if limit <= 0 {
		limit = 300
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	data, err := b.doReq(ctx, http.MethodGet, "/fapi/v1/klines", q, false)
	if err != nil {
		return nil, err
	}
	var rows [][]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	out := make([]Candle, 0, len(rows))
	for _, r := range rows {
		if len(r) < 6 {
			continue
		}
		out = append(out, Candle{
			Time:   time.UnixMilli(int64(asFloat(r[0]))).UTC(),
			Open:   asFloat(r[1]),
			High:   asFloat(r[2]),
			Low:    asFloat(r[3]),
			Close:  asFloat(r[4]),
			Volume: asFloat(r[5]),
		})
	}
	return out, nil
}

func (b *BinanceBroker) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	data, err := b.doReq(ctx, http.MethodGet, "/fapi/v1/premiumIndex", q, false)
	if err != nil {
		return 0, err
	}
	var payload struct {
		MarkPrice string `json:"markPrice"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("decode mark price: %w", err)
	}
	return strconv.ParseFloat(payload.MarkPrice, 64)
}

// ---- account ----

// GetAccountEquity returns the first stablecoin balance, matching how the
// strategy was tuned (USDT first, FDUSD/BUSD accepted).
func (b *BinanceBroker) GetAccountEquity(ctx context.Context) (float64, error) {
	data, err := b.doReq(ctx, http.MethodGet, "/fapi/v2/balance", nil, true)
	if err != nil {
		return 0, err
	}
	var rows []struct {
		Asset   string `json:"asset"`
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("decode balance: %w", err)
	}
	for _, r := range rows {
		switch r.Asset {
		case "USDT", "FDUSD", "BUSD":
			return strconv.ParseFloat(r.Balance, 64)
		}
	}
	return 0, errors.New("no stablecoin balance found")
}

func (b *BinanceBroker) GetPositionState(ctx context.Context, symbol string, side PositionSide) (decimal.Decimal, decimal.Decimal, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	data, err := b.doReq(ctx, http.MethodGet, "/fapi/v2/positionRisk", q, true)
	if err != nil {
		return decZero, decZero, err
	}
	var rows []struct {
		PositionAmt  string `json:"positionAmt"`
		EntryPrice   string `json:"entryPrice"`
		PositionSide string `json:"positionSide"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return decZero, decZero, fmt.Errorf("decode positions: %w", err)
	}
	for _, r := range rows {
		amt, err := decimal.NewFromString(r.PositionAmt)
		if err != nil {
			continue
		}
		entry, _ := decimal.NewFromString(r.EntryPrice)
		ps := PositionSide(r.PositionSide)
		if ps == "" || ps == "BOTH" {
			if amt.GreaterThan(decZero) {
				ps = SideLong
			} else {
				ps = SideShort
			}
		}
		if ps != side {
			continue
		}
		if side == SideLong && amt.GreaterThan(decZero) {
			return amt, entry, nil
		}
		if side == SideShort && amt.LessThan(decZero) {
			return amt.Neg(), entry, nil
		}
	}
	return decZero, decZero, nil
}

// ---- orders ----

func (b *BinanceBroker) PlaceMarketEntry(ctx context.Context, symbol string, dir OrderSide, qty decimal.Decimal) (*PlacedOrder, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("side", string(dir))
	q.Set("type", "MARKET")
	q.Set("quantity", qty.String())
	q.Set("newClientOrderId", uuid.New().String()) // dedupe-safe across retries
	side := EntrySide(dir)
	if b.hedgeMode {
		q.Set("positionSide", string(side))
	}
	data, err := b.doReq(ctx, http.MethodPost, "/fapi/v1/order", q, true)
	if err != nil {
		return nil, err
	}
	var res struct {
		OrderID  int64  `json:"orderId"`
		AvgPrice string `json:"avgPrice"`
	}
	_ = json.Unmarshal(data, &res)
	px, _ := strconv.ParseFloat(res.AvgPrice, 64)
	return &PlacedOrder{
		ID:         strconv.FormatInt(res.OrderID, 10),
		Symbol:     symbol,
		Side:       dir,
		Position:   side,
		Qty:        qty,
		Price:      px,
		CreateTime: time.Now().UTC(),
	}, nil
}

func (b *BinanceBroker) PlaceTakeProfit(ctx context.Context, symbol string, side PositionSide, stopPrice decimal.Decimal) (string, error) {
	return b.placeProtective(ctx, symbol, side, "TAKE_PROFIT_MARKET", stopPrice)
}

func (b *BinanceBroker) PlaceStopLoss(ctx context.Context, symbol string, side PositionSide, stopPrice decimal.Decimal) (string, error) {
	return b.placeProtective(ctx, symbol, side, "STOP_MARKET", stopPrice)
}

func (b *BinanceBroker) placeProtective(ctx context.Context, symbol string, side PositionSide, orderType string, stopPrice decimal.Decimal) (string, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("side", string(ExitSide(side)))
	q.Set("type", orderType)
	q.Set("stopPrice", stopPrice.String())
	q.Set("closePosition", "true")
	q.Set("workingType", "CONTRACT_PRICE")
	if b.hedgeMode {
		q.Set("positionSide", string(side))
	}
	data, err := b.doReq(ctx, http.MethodPost, "/fapi/v1/order", q, true)
	if err != nil {
		return "", err
	}
	var res struct {
		OrderID int64 `json:"orderId"`
	}
	_ = json.Unmarshal(data, &res)
	return strconv.FormatInt(res.OrderID, 10), nil
}

// protectiveTypes are the order types CancelBrackets targets.
var protectiveTypes = map[string]bool{
	"TAKE_PROFIT_MARKET": true,
	"STOP_MARKET":        true,
	"TAKE_PROFIT":        true,
	"STOP":               true,
}

// CancelBrackets cancels only this side's protective orders. One leg failing
// to cancel does not stop the other; the first error is reported after both
// attempts.
func (b *BinanceBroker) CancelBrackets(ctx context.Context, symbol string, side PositionSide) error {
	q := url.Values{}
	q.Set("symbol", symbol)
	data, err := b.doReq(ctx, http.MethodGet, "/fapi/v1/openOrders", q, true)
	if err != nil {
		return err
	}
	var rows []struct {
		OrderID      int64  `json:"orderId"`
		Type         string `json:"type"`
		PositionSide string `json:"positionSide"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("decode open orders: %w", err)
	}
	var firstErr error
	for _, o := range rows {
		if !protectiveTypes[o.Type] {
			continue
		}
		if o.PositionSide != "" && o.PositionSide != string(side) {
			continue
		}
		cq := url.Values{}
		cq.Set("symbol", symbol)
		cq.Set("orderId", strconv.FormatInt(o.OrderID, 10))
		if _, err := b.doReq(ctx, http.MethodDelete, "/fapi/v1/order", cq, true); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ClosePosition market-closes the full (symbol, side) book.
func (b *BinanceBroker) ClosePosition(ctx context.Context, symbol string, side PositionSide) (float64, error) {
	qty, _, err := b.GetPositionState(ctx, symbol, side)
	if err != nil {
		return 0, err
	}
	if qty.LessThanOrEqual(decZero) {
		return 0, fmt.Errorf("%s %s is flat", symbol, side)
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("side", string(ExitSide(side)))
	q.Set("type", "MARKET")
	q.Set("quantity", qty.String())
	q.Set("newClientOrderId", uuid.New().String())
	if b.hedgeMode {
		q.Set("positionSide", string(side))
	} else {
		q.Set("reduceOnly", "true")
	}
	if _, err := b.doReq(ctx, http.MethodPost, "/fapi/v1/order", q, true); err != nil {
		return 0, err
	}
	return b.GetMarkPrice(ctx, symbol)
}

// ---- symbol meta & venue prep ----

func (b *BinanceBroker) GetExchangeFilters(ctx context.Context, symbol string) (ExchangeFilters, error) {
	if f, ok := b.filterCache[symbol]; ok {
		return f, nil
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	data, err := b.doReq(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", q, false)
	if err != nil {
		return ExchangeFilters{}, err
	}
	var payload struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType  string `json:"filterType"`
				TickSize    string `json:"tickSize"`
				StepSize    string `json:"stepSize"`
				MinQty      string `json:"minQty"`
				Notional    string `json:"notional"`
				MinNotional string `json:"minNotional"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ExchangeFilters{}, fmt.Errorf("decode exchangeInfo: %w", err)
	}
	// Conservative defaults when a filter row is absent.
	out := ExchangeFilters{
		Tick:        decimal.NewFromFloat(0.1),
		Step:        decimal.NewFromFloat(0.001),
		MinQty:      decimal.NewFromFloat(0.001),
		MinNotional: decimal.NewFromInt(5),
	}
	found := false
	for _, s := range payload.Symbols {
		if s.Symbol != symbol {
			continue
		}
		found = true
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				setDec(&out.Tick, f.TickSize)
			case "LOT_SIZE":
				setDec(&out.Step, f.StepSize)
				setDec(&out.MinQty, f.MinQty)
			case "MIN_NOTIONAL":
				if f.Notional != "" {
					setDec(&out.MinNotional, f.Notional)
				} else {
					setDec(&out.MinNotional, f.MinNotional)
				}
			}
		}
	}
	if !found {
		return ExchangeFilters{}, &venueError{Code: 400, Msg: "symbol not found: " + symbol}
	}
	b.filterCache[symbol] = out
	return out, nil
}

func (b *BinanceBroker) PrepareSymbol(ctx context.Context, symbol string, leverage int, hedgeMode bool) error {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("leverage", strconv.Itoa(leverage))
	if _, err := b.doReq(ctx, http.MethodPost, "/fapi/v1/leverage", q, true); err != nil {
		return err
	}
	mq := url.Values{}
	mq.Set("dualSidePosition", strconv.FormatBool(hedgeMode))
	if _, err := b.doReq(ctx, http.MethodPost, "/fapi/v1/positionSide/dual", mq, true); err != nil {
		// The venue rejects a no-op mode change; that is fine.
		var ve *venueError
		if errors.As(err, &ve) && strings.Contains(ve.Msg, "-4059") {
			return nil
		}
		return err
	}
	return nil
}

// ---- small utils (file-local names to avoid collisions) ----

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	default:
		return 0
	}
}

func setDec(dst *decimal.Decimal, s string) {
	if s == "" {
		return
	}
	if d, err := decimal.NewFromString(s); err == nil && d.GreaterThan(decZero) {
		*dst = d
	}
}
