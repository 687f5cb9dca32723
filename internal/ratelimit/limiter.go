package ratelimit

import (
	"context"
	"time"
)

// RateLimiter decides whether one more request from key fits in the current window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Decision is the limiter verdict together with what is left of the window.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetIn   time.Duration
}
