// FILE: env.go
// Package main – Environment helpers for the trading bot.
//
// This file provides:
//   1) Small helpers to read environment variables with sane defaults
//      (strings, ints, floats, bools, durations, comma lists).
//   2) loadBotEnv: hydrates the process env from .env via godotenv without
//      overriding variables already exported.
//
// Notes:
//   • The bot never requires `export $(cat .env ...)`; keep editing .env
//     and restart.
//   • API credentials (API_KEY/API_SECRET) are consumed by the Binance
//     broker only, not by Config.

package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// --------- Env helpers (used across files) ---------

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "y", "yes", "on":
		return true
	case "0", "false", "n", "no", "off":
		return false
	default:
		return def
	}
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// getEnvSeconds reads an integer number of seconds into a Duration.
func getEnvSeconds(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return def
	}
	return time.Duration(i) * time.Second
}

// getEnvList reads a comma-separated list, trimming blanks.
func getEnvList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// --------- .env loader ---------

// loadBotEnv reads .env from the working directory. Variables already in the
// process env win; a missing file is fine.
func loadBotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		log.Printf("env: .env not found, relying on process env")
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("env: cannot load .env: %v", err)
		return
	}
	log.Printf("env: loaded .env")
}
