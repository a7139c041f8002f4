// Package resilience provides the retry, throttling, and anti-bot detection
// primitives used by the HTTP transport.
package resilience

import (
	"sync"
	"time"
)

// RateLimiter paces outbound requests so that consecutive acquisitions are at
// least 1/RequestsPerSecond apart. A zero rate disables pacing entirely.
type RateLimiter struct {
	requestsPerSecond float64

	mu   sync.Mutex
	last time.Time
}

// NewRateLimiter creates a limiter for the given rate. Pass 0 to disable.
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	return &RateLimiter{requestsPerSecond: requestsPerSecond}
}

// Acquire blocks the calling goroutine until enough time has elapsed since the
// previous acquisition. Safe for concurrent use; callers are serialized on the
// internal lock so the minimum interval holds across goroutines.
func (r *RateLimiter) Acquire() {
	if r == nil || r.requestsPerSecond <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	minInterval := time.Duration(float64(time.Second) / r.requestsPerSecond)

	if !r.last.IsZero() {
		if wait := minInterval - time.Since(r.last); wait > 0 {
			time.Sleep(wait)
		}
	}

	r.last = time.Now()
}
