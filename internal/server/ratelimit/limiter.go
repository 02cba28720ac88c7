// Package ratelimit throttles the public auth endpoints per client address.
// Memory is a token bucket per key built on golang.org/x/time/rate; Redis is
// a fixed window shared by every instance.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Memory gives every key a bucket of limit tokens refilled at limit per
// window, so a client may burst limit requests and then averages
// limit/window.
type Memory struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	per       time.Duration
	now       func() time.Time
	buckets   map[string]*rate.Limiter
	lastSweep time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &Memory{
		limit:   limit,
		window:  window,
		per:     window / time.Duration(limit),
		now:     time.Now,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	b, ok := m.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Every(m.per), m.limit)
		m.buckets[key] = b
	}

	allowed := b.AllowN(now, 1)
	tokens := b.TokensAt(now)

	d := Decision{Allowed: allowed, Remaining: int(tokens)}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if allowed {
		// full again
		d.ResetAt = now.Add(m.refill(float64(m.limit) - tokens))
	} else {
		// next token
		d.ResetAt = now.Add(m.refill(1 - tokens))
	}
	return d, nil
}

// refill is how long the bucket needs to gain n tokens.
func (m *Memory) refill(n float64) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n * float64(m.per))
}

// sweep drops buckets that have refilled completely, at most once per
// window; called with mu held. A full bucket is indistinguishable from a
// new one.
func (m *Memory) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < m.window {
		return
	}
	m.lastSweep = now
	for k, b := range m.buckets {
		if b.TokensAt(now) >= float64(m.limit) {
			delete(m.buckets, k)
		}
	}
}

func decide(count, limit int, resetAt time.Time) Decision {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: count <= limit, Remaining: remaining, ResetAt: resetAt}
}
