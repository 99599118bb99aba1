// FILE: retry.go
// Package main – Bounded retry with exponential backoff and jitter.
//
// Every broker call the engine makes goes through retryCall. The policy is
// fixed-attempt exponential backoff with a small random jitter; the final
// attempt's error is returned to the caller. Venue rejections (venueError)
// are not retried — resending a request the venue already refused only burns
// rate limit.

package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"
)

// backoffPolicy parameterizes retryCall.
type backoffPolicy struct {
	Attempts int
	Base     time.Duration
	Jitter   time.Duration
}

var defaultBackoff = backoffPolicy{
	Attempts: 5,
	Base:     800 * time.Millisecond,
	Jitter:   200 * time.Millisecond,
}

// retryCall runs op up to pol.Attempts times. onErr observes every failed
// attempt (1-based) before the backoff sleep; pass nil to skip observation.
func retryCall[T any](ctx context.Context, pol backoffPolicy, op func() (T, error), onErr func(err error, attempt int)) (T, error) {
	var zero T
	if pol.Attempts <= 0 {
		pol.Attempts = 1
	}
	var err error
	for i := 0; i < pol.Attempts; i++ {
		var out T
		out, err = op()
		if err == nil {
			return out, nil
		}
		if onErr != nil {
			onErr(err, i+1)
		}
		var ve *venueError
		if errors.As(err, &ve) {
			return zero, err
		}
		if i == pol.Attempts-1 {
			break
		}
		delay := pol.Base << uint(i)
		if pol.Jitter > 0 {
			delay += time.Duration(rand.Int63n(int64(pol.Jitter)))
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	mtxRetryExhausted.Inc()
	return zero, err
}

// logRetry is the standard attempt observer: one warn line per failure.
func logRetry(what string) func(error, int) {
	return func(err error, attempt int) {
		log.Printf("[WARN] %s attempt %d: %v", what, attempt, err)
	}
}
