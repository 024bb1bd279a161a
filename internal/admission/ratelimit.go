package admission

import (
	"sync"
	"time"
)

// LimiterConfig configures the fixed-window rate limiter.
type LimiterConfig struct {
	Window time.Duration // window length W
	Limit  int           // ceiling N per window
}

// DefaultLimiterConfig returns the deployment defaults.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		Window: 15 * time.Minute,
		Limit:  100,
	}
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Remaining  int           // requests left in the current window
	RetryAfter time.Duration // positive only when rejected
}

type bucket struct {
	windowStart time.Time
	count       int
}

// Limiter is a fixed-window counter keyed by client identity. It is an
// owned object injected where needed, never package state. Expired
// buckets are swept once the map grows past sweepThreshold, so the store
// stays bounded under many distinct clients.
//
// Fixed windows admit brief bursts at window boundaries; replace with a
// sliding window if smoother admission is ever needed. The surrounding
// contract (Allow + Decision) would not change.
type Limiter struct {
	mu      sync.Mutex
	cfg     LimiterConfig
	buckets map[string]*bucket

	now func() time.Time // injectable clock for tests

	sweepThreshold int
}

// NewLimiter creates a limiter; zero config fields fall back to defaults.
func NewLimiter(cfg LimiterConfig) *Limiter {
	def := DefaultLimiterConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	return &Limiter{
		cfg:            cfg,
		buckets:        make(map[string]*bucket),
		now:            time.Now,
		sweepThreshold: 10_000,
	}
}

// Allow records one request for clientID and decides admission. A fresh
// or rolled-over window resets the count to 1 and admits; within a live
// window the request is admitted while the count stays at or under the
// ceiling, otherwise rejected with the time left until the window ends.
func (l *Limiter) Allow(clientID string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.buckets) > l.sweepThreshold {
		l.sweepLocked(now)
	}

	b, ok := l.buckets[clientID]
	if !ok || now.Sub(b.windowStart) >= l.cfg.Window {
		l.buckets[clientID] = &bucket{windowStart: now, count: 1}
		return Decision{Allowed: true, Remaining: l.cfg.Limit - 1}
	}

	b.count++
	if b.count > l.cfg.Limit {
		windowEnd := b.windowStart.Add(l.cfg.Window)
		return Decision{Allowed: false, RetryAfter: windowEnd.Sub(now)}
	}
	return Decision{Allowed: true, Remaining: l.cfg.Limit - b.count}
}

// sweepLocked drops buckets whose window already ended. Caller holds mu.
func (l *Limiter) sweepLocked(now time.Time) {
	for id, b := range l.buckets {
		if now.Sub(b.windowStart) >= l.cfg.Window {
			delete(l.buckets, id)
		}
	}
}

// Size returns the number of tracked buckets.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
