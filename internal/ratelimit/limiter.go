// Package ratelimit implements fixed-window request budgets keyed by
// policy and caller identity. It depends on no other internal package.
package ratelimit

import (
	"context"
	"time"
)

// Policy names a budget of Limit requests per Window.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts requests for key inside fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

func decide(count, limit int, resetIn time.Duration) Decision {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{Allowed: count <= limit, Limit: limit, Remaining: remaining}
	if !d.Allowed {
		d.RetryAfter = resetIn
	}
	return d
}
