// Package ratelimit provides keyed limiters used to throttle recovery
// initiation. InMemLimiter keeps a token bucket per key in process;
// RedisLimiter counts a fixed window per key in Redis so limits hold
// across instances.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/tendant/simple-recovery/pkg/clock"
)

// Limiter decides whether one more event for key is allowed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// TokenBucket implements the token bucket algorithm for rate limiting
type TokenBucket struct {
	capacity   int
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func NewTokenBucket(capacity int, refillRate float64, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now,
	}
}

// Allow takes one token if available
func (tb *TokenBucket) Allow(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if elapsed := now.Sub(tb.lastRefill).Seconds(); elapsed > 0 {
		tb.tokens = min(float64(tb.capacity), tb.tokens+elapsed*tb.refillRate)
		tb.lastRefill = now
	}

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.tokens
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// InMemLimiter manages one token bucket per key
type InMemLimiter struct {
	buckets    map[string]*TokenBucket
	capacity   int
	refillRate float64
	ttl        time.Duration // inactive buckets older than this are pruned
	clock      clock.Clock
	mu         sync.Mutex
}

type InMemOption func(*InMemLimiter)

func WithClock(c clock.Clock) InMemOption {
	return func(l *InMemLimiter) {
		l.clock = c
	}
}

// WithBucketTTL prunes buckets that have been idle for ttl
func WithBucketTTL(ttl time.Duration) InMemOption {
	return func(l *InMemLimiter) {
		l.ttl = ttl
	}
}

// NewInMemLimiter allows capacity events per key in a burst, refilled at
// capacity per window.
func NewInMemLimiter(capacity int, window time.Duration, opts ...InMemOption) *InMemLimiter {
	l := &InMemLimiter{
		buckets:    make(map[string]*TokenBucket),
		capacity:   capacity,
		refillRate: float64(capacity) / window.Seconds(),
		ttl:        time.Hour,
		clock:      clock.New(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *InMemLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := l.clock.Now()

	l.mu.Lock()
	l.prune(now)
	bucket, exists := l.buckets[key]
	if !exists {
		bucket = NewTokenBucket(l.capacity, l.refillRate, now)
		l.buckets[key] = bucket
	}
	l.mu.Unlock()

	return bucket.Allow(now), nil
}

// Reset forgets the bucket for key
func (l *InMemLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// ActiveBuckets returns the number of keys currently tracked
func (l *InMemLimiter) ActiveBuckets() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// prune must be called with l.mu held
func (l *InMemLimiter) prune(now time.Time) {
	if l.ttl <= 0 {
		return
	}
	for key, bucket := range l.buckets {
		if now.Sub(bucket.idleSince()) > l.ttl {
			delete(l.buckets, key)
		}
	}
}

// NoopLimiter allows everything
type NoopLimiter struct{}

func (NoopLimiter) Allow(context.Context, string) (bool, error) {
	return true, nil
}
