// FILE: main.go
// Package main – Program entrypoint and HTTP/metrics server.
//
// Boot sequence:
//   1) loadBotEnv()               – read .env (no shell exports required)
//   2) cfg := loadConfigFromEnv() – build and validate the runtime Config
//   3) wire broker (binance live or paper) + telemetry + engine
//   4) verify venue auth, apply leverage/position mode, load filters
//   5) start Prometheus /healthz server on cfg.Port
//   6) optionally start the mark-price stream, then runLive
//
// Flags:
//   -paper            Force the in-memory paper broker regardless of BROKER
//   -interval <s>     Override LOOP_SECONDS for this run
//
// Example:
//   go run . -paper -interval 5

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// ---- Flags ----
	var paper bool
	var intervalSec int
	flag.BoolVar(&paper, "paper", false, "Use the in-memory paper broker")
	flag.IntVar(&intervalSec, "interval", 0, "Override LOOP_SECONDS for this run")
	flag.Parse()

	// ---- Environment & Config ----
	loadBotEnv()
	cfg := loadConfigFromEnv()
	if intervalSec > 0 {
		cfg.LoopSeconds = intervalSec
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Broker wiring ----
	var broker Broker
	switch {
	case paper, strings.ToLower(getEnv("BROKER", "binance")) == "paper":
		pb := NewPaperBroker()
		pb.SetEquity(cfg.DefaultEquity)
		broker = pb
	default:
		bb, err := NewBinanceBrokerFromEnv(cfg.HedgeMode)
		if err != nil {
			log.Fatalf("binance broker init: %v", err)
		}
		broker = bb
	}

	engine := NewEngine(cfg, broker, NewTelemetry(cfg))

	// ---- Venue checks before the first order ----
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	bootCtx, bootCancel := context.WithTimeout(ctx, 30*time.Second)
	if eq, err := broker.GetAccountEquity(bootCtx); err != nil {
		bootCancel()
		log.Fatalf("venue auth check failed: %v", err)
	} else {
		log.Printf("[BOOT] %s equity=%.2f", broker.Name(), eq)
		SetEquityMetric(eq)
	}
	if err := engine.Prepare(bootCtx); err != nil {
		bootCancel()
		log.Fatalf("venue preparation: %v", err)
	}
	bootCancel()

	// ---- HTTP metrics/health ----
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		log.Printf("serving metrics on :%d/metrics", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	// ---- Optional mark-price stream ----
	if cfg.StreamEnabled {
		stream := NewPriceStream(cfg.StreamURL, cfg.Symbols, engine.ObservePrice)
		go stream.Run(ctx)
	}

	runLive(ctx, engine, cfg)

	// ---- Graceful shutdown for HTTP server ----
	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
}
