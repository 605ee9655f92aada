// Package limiter provides per-key token-bucket admission control.
package limiter

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// Default admission parameters.
const (
	DefaultPerMinute = 20
	DefaultBurst     = 5
	DefaultMaxKeys   = 100_000
	DefaultIdleTTL   = time.Hour
)

// Limiter admits or denies actions per key without blocking.
// Buckets are created on first use and evicted after sitting idle for the idle TTL,
// or when the key count exceeds the configured maximum (least recently used first).
type Limiter[K comparable] struct {
	limit   rate.Limit
	burst   int
	now     func() time.Time
	maxKeys int
	idleTTL time.Duration

	mu      sync.Mutex
	buckets *expirable.LRU[K, *rate.Limiter]
}

// Option configures a Limiter.
type Option func(*options)

type options struct {
	now     func() time.Time
	maxKeys int
	idleTTL time.Duration
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMaxKeys bounds the number of tracked keys.
func WithMaxKeys(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxKeys = n
		}
	}
}

// WithIdleTTL sets how long an unused bucket is kept.
func WithIdleTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.idleTTL = ttl
		}
	}
}

// New creates a limiter refilling perMinute tokens per minute up to burst.
// Non-positive arguments fall back to the defaults.
func New[K comparable](perMinute, burst int, opts ...Option) *Limiter[K] {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	o := options{
		now:     time.Now,
		maxKeys: DefaultMaxKeys,
		idleTTL: DefaultIdleTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Limiter[K]{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		now:     o.now,
		maxKeys: o.maxKeys,
		idleTTL: o.idleTTL,
		buckets: expirable.NewLRU[K, *rate.Limiter](o.maxKeys, nil, o.idleTTL),
	}
}

// Admit consumes one token for key and reports whether one was available.
func (l *Limiter[K]) Admit(key K) bool {
	l.mu.Lock()
	bucket, ok := l.buckets.Get(key)
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
	}
	// Re-adding refreshes the entry's expiry, so eviction tracks last use.
	l.buckets.Add(key, bucket)
	l.mu.Unlock()

	return bucket.AllowN(l.now(), 1)
}

// Len returns the number of tracked keys.
func (l *Limiter[K]) Len() int {
	return l.buckets.Len()
}
