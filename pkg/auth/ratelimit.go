package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyRequests is returned by a RateLimiter that refuses a request.
var ErrTooManyRequests = errors.New("rate limit exceeded")

// RateLimiter decides whether another attempt for key is allowed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) error
}

// InProcessLimiter is a fixed-window limiter that counts attempts per key
// in memory. The login endpoint keys it by email to slow down password
// guessing.
type InProcessLimiter struct {
	perMinute int
	now       func() time.Time

	mu        sync.Mutex
	counters  map[string]*counter
	lastSweep time.Time
}

type counter struct {
	count    int
	windowAt time.Time
}

// NewInProcessLimiter allows perMinute attempts per key. A non-positive
// value disables limiting.
func NewInProcessLimiter(perMinute int) *InProcessLimiter {
	return &InProcessLimiter{
		perMinute: perMinute,
		now:       time.Now,
		counters:  make(map[string]*counter),
	}
}

// Allow records an attempt for key and reports ErrTooManyRequests once the
// current window is exhausted.
func (l *InProcessLimiter) Allow(_ context.Context, key string) error {
	if l.perMinute <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowAt) >= time.Minute {
		l.counters[key] = &counter{count: 1, windowAt: now}
		l.sweep(now)
		return nil
	}

	c.count++
	if c.count > l.perMinute {
		return ErrTooManyRequests
	}
	return nil
}

// sweep drops expired windows, at most once per minute. Must be called
// with mu held.
func (l *InProcessLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	for k, c := range l.counters {
		if now.Sub(c.windowAt) >= time.Minute {
			delete(l.counters, k)
		}
	}
}
