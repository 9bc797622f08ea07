package services

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"time"
)

// retryConfig controls the backoff loop shared by the HTTP clients
type retryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// retryableStatus reports whether a response status is worth another attempt
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return true
	}
	return code >= 500 && code <= 599
}

// retryableNetErr classifies transport errors. Context cancellation is never
// retried; timeouts and transient connection errors are.
func retryableNetErr(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return nerr.Timeout()
	}
	return true
}

// sleepBackoff waits base*2^(attempt-1) capped at max, plus up to 300ms of
// jitter, or returns early when the context ends.
func sleepBackoff(ctx context.Context, attempt int, cfg retryConfig) error {
	delay := cfg.BaseDelay * time.Duration(1<<(attempt-1))
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	delay += time.Duration(rand.Intn(300)) * time.Millisecond

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
