package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterTTL             = 30 * time.Minute
)

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// KeyedLimiter holds one token bucket per key (usually a client IP). Idle
// buckets are dropped by Sweep.
type KeyedLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*limiterEntry
	now     func() time.Time
}

func NewKeyedLimiter(limit rate.Limit, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		limit:   limit,
		burst:   burst,
		entries: make(map[string]*limiterEntry),
		now:     time.Now,
	}
}

// Burst is the bucket size, reported in X-RateLimit-Limit.
func (l *KeyedLimiter) Burst() int { return l.burst }

// Allow consumes a token for key.
func (l *KeyedLimiter) Allow(key string) bool {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastUse = l.now()
	l.mu.Unlock()
	return e.limiter.Allow()
}

// Sweep removes buckets unused for longer than the limiter TTL.
func (l *KeyedLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for k, e := range l.entries {
		if now.Sub(e.lastUse) > limiterTTL {
			delete(l.entries, k)
		}
	}
}

func (l *KeyedLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Limits groups the per-IP limiters used by the HTTP stack.
type Limits struct {
	TrustProxy bool

	Global  *KeyedLimiter // every request, 1/s burst 10
	Auth    *KeyedLimiter // sign-in and sign-up, 1/5s burst 2
	History *KeyedLimiter // signed-in chat history, 30/min burst 20
	Anon    *KeyedLimiter // anonymous chat history, ~10/min burst 5
}

func NewLimits(trustProxy bool) *Limits {
	return &Limits{
		TrustProxy: trustProxy,
		Global:     NewKeyedLimiter(rate.Limit(1), 10),
		Auth:       NewKeyedLimiter(rate.Every(5*time.Second), 2),
		History:    NewKeyedLimiter(rate.Limit(0.5), 20),
		Anon:       NewKeyedLimiter(rate.Limit(0.17), 5),
	}
}

// Run sweeps idle buckets until ctx is done.
func (l *Limits) Run(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, kl := range []*KeyedLimiter{l.Global, l.Auth, l.History, l.Anon} {
				kl.Sweep()
			}
		}
	}
}
