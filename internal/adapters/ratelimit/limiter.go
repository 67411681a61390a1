package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// BucketConfig defines one named sliding-window bucket.
type BucketConfig struct {
	MaxCalls   int
	TimeWindow time.Duration
}

// Limiter is a process-wide sliding-window rate limiter keyed by provider
// name. All goroutines that may hit an external provider share one instance.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	configs map[string]BucketConfig
	now     func() time.Time
}

type bucket struct {
	timestamps []time.Time
}

// DefaultBuckets returns the provider buckets used in production.
func DefaultBuckets() map[string]BucketConfig {
	return map[string]BucketConfig{
		"google_maps": {MaxCalls: 50, TimeWindow: 60 * time.Second},
		"serpapi":     {MaxCalls: 100, TimeWindow: 60 * time.Second},
		"openai":      {MaxCalls: 60, TimeWindow: 60 * time.Second},
		"anthropic":   {MaxCalls: 60, TimeWindow: 60 * time.Second},
		"gemini":      {MaxCalls: 60, TimeWindow: 60 * time.Second},
		"estat":       {MaxCalls: 120, TimeWindow: 60 * time.Second},
	}
}

// New creates a limiter with the given named buckets.
func New(configs map[string]BucketConfig) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		configs: configs,
		now:     time.Now,
	}
}

// Acquire takes a slot if fewer than MaxCalls acquisitions occurred within
// the bucket's window. Unknown bucket names always succeed.
func (l *Limiter) Acquire(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	ok, _ := l.tryAcquireLocked(name)
	return ok
}

// AcquireOrWait blocks until a slot is available or ctx is done. The wait is
// computed from the oldest in-window timestamp plus a small jitter, so
// callers wake close to when a slot actually frees up.
func (l *Limiter) AcquireOrWait(ctx context.Context, name string) error {
	for {
		l.mu.Lock()
		ok, wait := l.tryAcquireLocked(name)
		l.mu.Unlock()
		if ok {
			return nil
		}

		wait += time.Duration(rand.Int63n(int64(100 * time.Millisecond)))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Limiter) tryAcquireLocked(name string) (bool, time.Duration) {
	cfg, known := l.configs[name]
	if !known {
		return true, 0
	}

	b, ok := l.buckets[name]
	if !ok {
		b = &bucket{}
		l.buckets[name] = b
	}

	now := l.now()
	cutoff := now.Add(-cfg.TimeWindow)
	kept := b.timestamps[:0]
	for _, ts := range b.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	b.timestamps = kept

	if len(b.timestamps) < cfg.MaxCalls {
		b.timestamps = append(b.timestamps, now)
		return true, 0
	}

	wait := cfg.TimeWindow - now.Sub(b.timestamps[0])
	if wait < 0 {
		wait = 0
	}
	return false, wait
}
