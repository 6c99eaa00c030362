package safety

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket. Tokens refill continuously at refillRate
// per second up to capacity, so a short burst is absorbed without ever
// exceeding the sustained rate.
type RateLimiter struct {
	name       string
	capacity   float64
	refillRate float64

	mu       sync.Mutex
	tokens   float64
	lastFill time.Time
}

// NewRateLimiter creates a full bucket named for log attribution.
func NewRateLimiter(name string, capacity, refillRate int) *RateLimiter {
	return &RateLimiter{
		name:       name,
		capacity:   float64(capacity),
		refillRate: float64(refillRate),
		tokens:     float64(capacity),
		lastFill:   time.Now(),
	}
}

// Allow consumes one token if available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(time.Now())
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or the context is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		if rl.Allow() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rl.waitHint()):
		}
	}
}

// refill credits tokens for the time elapsed since the last credit.
// Callers must hold the mutex.
func (rl *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(rl.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
	rl.lastFill = now
}

// waitHint estimates the time until the next whole token.
func (rl *RateLimiter) waitHint() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(time.Now())
	if rl.tokens >= 1 {
		return time.Millisecond
	}
	deficit := 1 - rl.tokens
	return time.Duration(deficit / rl.refillRate * float64(time.Second))
}

// Stats is a point-in-time view of the bucket, exposed for diagnostics.
type Stats struct {
	Name       string
	Capacity   float64
	Tokens     float64
	RefillRate float64
}

// Stats returns the current bucket state.
func (rl *RateLimiter) Stats() Stats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(time.Now())
	return Stats{
		Name:       rl.name,
		Capacity:   rl.capacity,
		Tokens:     rl.tokens,
		RefillRate: rl.refillRate,
	}
}
