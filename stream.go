// FILE: stream.go
// Package main – Optional mark-price websocket feed.
//
// Subscribes to the combined stream (<sym>@markPrice@1s per symbol) and
// pushes every tick into the engine's event detector, so collapse/spike
// detection sees 1s granularity between decision loops. The REST poll path
// is authoritative; losing the stream only coarsens event detection, so the
// reader reconnects forever with capped backoff and never takes the bot
// down.

package main

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// PriceStream owns one websocket connection and its reconnect loop.
type PriceStream struct {
	url     string
	symbols []string
	onTick  func(symbol string, price float64)
}

func NewPriceStream(baseURL string, symbols []string, onTick func(string, float64)) *PriceStream {
	return &PriceStream{url: baseURL, symbols: symbols, onTick: onTick}
}

// streamURL builds the combined-stream URL for all configured symbols.
func (s *PriceStream) streamURL() string {
	parts := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		parts = append(parts, strings.ToLower(sym)+"@markPrice@1s")
	}
	return strings.TrimRight(s.url, "/") + "?streams=" + strings.Join(parts, "/")
}

// Run blocks until ctx is done, reconnecting on any read or dial failure.
func (s *PriceStream) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := s.readLoop(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("[STREAM] disconnected: %v (retry in %s)", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *PriceStream) readLoop(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.streamURL(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("[STREAM] connected: %d symbols", len(s.symbols))

	// The venue pings periodically; answering pongs keeps the session alive.
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var frame struct {
			Data struct {
				Symbol string `json:"s"`
				Mark   string `json:"p"`
			} `json:"data"`
		}
		if err := json.Unmarshal(msg, &frame); err != nil || frame.Data.Symbol == "" {
			continue
		}
		price, err := strconv.ParseFloat(frame.Data.Mark, 64)
		if err != nil || price <= 0 {
			continue
		}
		s.onTick(frame.Data.Symbol, price)
	}
}
