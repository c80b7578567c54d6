// Package ratelimit paces outbound operations against exchange-imposed
// message and request limits. It wraps Uber's token bucket limiter behind a
// small interface so components can share one pacing abstraction.
//
// Two places consume it: the streaming connection uses a limiter to space
// control frames on one socket (the exchange allows a fixed number of
// messages per second per connection), and the REST listen-key client uses
// one to pace HTTP requests.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/ratelimit"
)

// Rate describes how many operations are permitted per interval.
type Rate struct {
	// Limit is the number of operations allowed within Interval.
	Limit int

	// Interval is the window the limit applies to, e.g. time.Second.
	Interval time.Duration
}

// PerSecond is a convenience constructor for n operations per second.
func PerSecond(n int) Rate {
	return Rate{Limit: n, Interval: time.Second}
}

// RateLimiter blocks callers until the next operation is permitted.
type RateLimiter interface {
	// Wait blocks until a token is available or the context is cancelled.
	Wait(ctx context.Context) error

	// SetLimit replaces the rate configuration at runtime.
	SetLimit(rate Rate) error
}

type uberLimiter struct {
	limiter ratelimit.Limiter
	rate    Rate
}

// NewTokenBucketLimiter creates a RateLimiter backed by Uber's token bucket
// implementation. The rate is converted to operations per second, so
// Rate{Limit: 120, Interval: time.Minute} yields 2 ops/sec.
func NewTokenBucketLimiter(rate Rate) RateLimiter {
	rps := float64(rate.Limit) / rate.Interval.Seconds()
	return &uberLimiter{
		limiter: ratelimit.New(int(rps)),
		rate:    rate,
	}
}

func (l *uberLimiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limit wait cancelled: %w", ctx.Err())
	default:
		l.limiter.Take()
		return nil
	}
}

func (l *uberLimiter) SetLimit(rate Rate) error {
	if rate.Limit <= 0 || rate.Interval <= 0 {
		return fmt.Errorf("invalid rate limit: %+v", rate)
	}
	l.limiter = ratelimit.New(int(float64(rate.Limit) / rate.Interval.Seconds()))
	l.rate = rate
	return nil
}
