package ratelimit

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/orgball2608/media-extractor-bot/pkg/config"
	"golang.org/x/time/rate"
)

const (
	defaultCapacity      = 5
	defaultWindow        = time.Minute
	defaultMaxIdentities = 10000
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	Allow(identity int64) bool
}

type Options struct {
	// Capacity is the bucket size, which is also the number of requests refilled per Window.
	Capacity int
	Window   time.Duration

	// MaxIdentities bounds how many buckets are kept. The least recently used one is dropped first.
	MaxIdentities int
	// Retention is how long an idle bucket is kept. Never shorter than Window.
	Retention time.Duration

	// Now overrides the clock used for refill.
	Now func() time.Time
}

// InMemoryLimiter keeps one token bucket per identity.
// Each rate.Limiter guards its own state, so identities only share the short cache lookup.
type InMemoryLimiter struct {
	buckets *expirable.LRU[int64, *rate.Limiter]
	mu      sync.Mutex
	r       rate.Limit
	b       int
	now     func() time.Time
}

// NewInMemoryLimiter creates a new rate limiter
// Example: Capacity 5, Window 1m -> a burst of 5 requests, then one more every 12 seconds
func NewInMemoryLimiter(opts Options) *InMemoryLimiter {
	if opts.Capacity <= 0 {
		opts.Capacity = defaultCapacity
	}
	if opts.Window <= 0 {
		opts.Window = defaultWindow
	}
	if opts.MaxIdentities <= 0 {
		opts.MaxIdentities = defaultMaxIdentities
	}
	if opts.Retention < opts.Window {
		opts.Retention = opts.Window
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &InMemoryLimiter{
		buckets: expirable.NewLRU[int64, *rate.Limiter](opts.MaxIdentities, nil, opts.Retention),
		r:       rate.Limit(float64(opts.Capacity) / opts.Window.Seconds()),
		b:       opts.Capacity,
		now:     opts.Now,
	}
}

func NewFromConfig(cfg *config.Config) *InMemoryLimiter {
	return NewInMemoryLimiter(Options{
		Capacity:      cfg.RateLimit.Capacity,
		Window:        cfg.RateLimit.Window,
		MaxIdentities: cfg.RateLimit.MaxIdentities,
		Retention:     cfg.RateLimit.Retention,
	})
}

var _ Limiter = (*InMemoryLimiter)(nil)

// Allow consumes one token for identity if one is available.
func (l *InMemoryLimiter) Allow(identity int64) bool {
	return l.bucket(identity).AllowN(l.now(), 1)
}

// bucket returns the limiter for identity, creating it on first use. l.mu only
// covers the map lookup so that Get and Add stay atomic; token accounting
// happens afterwards on the identity's own rate.Limiter, so identities never
// wait on each other's buckets.
func (l *InMemoryLimiter) bucket(identity int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.buckets.Get(identity)
	if !ok {
		limiter = rate.NewLimiter(l.r, l.b)
	}
	// Add also pushes the expiry forward.
	l.buckets.Add(identity, limiter)
	return limiter
}

// Len returns the number of tracked identities.
func (l *InMemoryLimiter) Len() int {
	return l.buckets.Len()
}
