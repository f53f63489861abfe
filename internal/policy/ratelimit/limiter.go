// Package ratelimit throttles report submissions per client with token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration. A non-positive RPS disables limiting.
type Config struct {
	RPS   float64
	Burst int
	// OnLimited, when set, is called with the client key of each rejected request.
	OnLimited func(key string)
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter manages one token bucket per client key.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	rate      rate.Limit
	burst     int
	onLimited func(string)
	now       func() time.Time
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		buckets:   make(map[string]*bucket),
		rate:      r,
		burst:     burst,
		onLimited: cfg.OnLimited,
		now:       time.Now,
	}
}

func (l *Limiter) bucketFor(key string) *rate.Limiter {
	if key == "" {
		key = "unknown"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = l.now()
	return b.limiter
}

// Allow consumes a token for key without blocking and reports whether one was available.
func (l *Limiter) Allow(key string) bool {
	if l.bucketFor(key).Allow() {
		return true
	}
	if l.onLimited != nil {
		l.onLimited(key)
	}
	return false
}

// Wait blocks until key has a token or ctx ends.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if err := l.bucketFor(key).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Prune drops buckets idle for longer than idle and returns how many were removed.
func (l *Limiter) Prune(idle time.Duration) int {
	cutoff := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len reports how many client buckets are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
