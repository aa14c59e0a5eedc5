package service

import (
	"sync"
	"time"
)

// RateLimiter is the capability the chat endpoint consumes instead of
// global state, so it can be swapped for a distributed store later.
type RateLimiter interface {
	// Allow reports whether key may proceed. When denied, retryAfter is
	// how long until the key's window resets.
	Allow(key string) (allowed bool, retryAfter time.Duration)
}

// WindowLimiter is a fixed-window in-memory rate limiter keyed by client.
// Each key has an independent counter that resets after the window.
// Safe for concurrent use.
type WindowLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*windowBucket
}

type windowBucket struct {
	count   int
	resetAt time.Time
}

// NewWindowLimiter creates a WindowLimiter allowing limit calls per window.
func NewWindowLimiter(limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*windowBucket),
	}
}

// Allow implements RateLimiter.
func (l *WindowLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	b, ok := l.buckets[key]
	if !ok || now.After(b.resetAt) {
		l.buckets[key] = &windowBucket{count: 1, resetAt: now.Add(l.window)}
		return true, 0
	}
	if b.count >= l.limit {
		return false, b.resetAt.Sub(now)
	}
	b.count++
	return true, 0
}
