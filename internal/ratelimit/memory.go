package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	count       int
	windowStart time.Time
	window      time.Duration
}

// MemoryLimiter keeps counters in process memory. Counts are per instance,
// so a multi-instance deployment under-counts; use RedisLimiter there.
type MemoryLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	now         func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewMemoryLimiter starts a limiter whose background loop drops elapsed
// buckets every cleanupInterval. A non-positive interval disables the loop.
func NewMemoryLimiter(cleanupInterval time.Duration, now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	l := &MemoryLimiter{
		buckets:     make(map[string]*bucket),
		now:         now,
		stopCleanup: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go l.cleanupLoop(cleanupInterval)
	}
	return l
}

// Allow increments the counter for key and reports whether it is within limit.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.buckets[key]
	if !exists || now.Sub(b.windowStart) >= b.window {
		b = &bucket{windowStart: now, window: window}
		l.buckets[key] = b
	}
	b.count++

	return decide(b.count, limit, b.windowStart.Add(b.window).Sub(now)), nil
}

// Reset forgets the counter for key.
func (l *MemoryLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Stop ends the cleanup loop.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}

func (l *MemoryLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *MemoryLimiter) cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, b := range l.buckets {
		if now.Sub(b.windowStart) >= b.window {
			delete(l.buckets, key)
		}
	}
}

func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
