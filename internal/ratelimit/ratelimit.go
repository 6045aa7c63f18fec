// Package ratelimit provides fixed-window rate limiting for billing endpoints.
// Production uses Redis so limits hold across instances; a single instance
// without Redis falls back to MemoryStore. A nil store disables limiting.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Store is the minimal interface required for rate limiting.
// In production this is implemented by go-redis; otherwise by MemoryStore.
type Store interface {
	// Incr atomically increments a counter key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets the TTL on a key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// TTL returns the remaining time-to-live on a key. Returns 0 or negative if expired/missing.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// Limits for the billing endpoints.
const (
	CheckoutMax    = 10
	CheckoutWindow = time.Minute
	PayoutMax      = 5
	PayoutWindow   = time.Hour
)

// Limiter performs rate limit checks against a Store.
type Limiter struct {
	store Store
}

// New creates a Limiter backed by the given Store.
// If store is nil, the Limiter is a no-op that always allows requests.
func New(store Store) *Limiter {
	return &Limiter{store: store}
}

// CheckCheckout enforces: max 10 checkout sessions per user per minute.
// Returns (allowed bool, retryAfterSecs int).
func (l *Limiter) CheckCheckout(ctx context.Context, userID string) (bool, int) {
	return l.check(ctx, fmt.Sprintf("rate:checkout:%s", userID), CheckoutMax, CheckoutWindow)
}

// CheckPayout enforces: max 5 payout requests per user per hour.
func (l *Limiter) CheckPayout(ctx context.Context, userID string) (bool, int) {
	return l.check(ctx, fmt.Sprintf("rate:payout:%s", userID), PayoutMax, PayoutWindow)
}

// check is the generic increment-and-check against a counter key.
// Returns (allowed, retryAfterSecs). If store is nil, always returns (true, 0).
func (l *Limiter) check(ctx context.Context, key string, max int, window time.Duration) (bool, int) {
	if l == nil || l.store == nil {
		return true, 0
	}

	count, err := l.store.Incr(ctx, key)
	if err != nil {
		// Store error: fail open rather than block on infra issues.
		return true, 0
	}

	if count == 1 {
		_ = l.store.Expire(ctx, key, window)
	}

	if count > int64(max) {
		ttl, _ := l.store.TTL(ctx, key)
		retry := int(ttl.Seconds())
		if retry < 1 {
			retry = int(window.Seconds())
		}
		return false, retry
	}

	return true, 0
}
