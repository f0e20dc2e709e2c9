package service

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimiter caps how many mutating requests one worker device may send per window
type RateLimiter struct {
	mu sync.Mutex

	maxRequests int
	window      time.Duration
	windows     map[string]*requestWindow
	nextSweep   time.Time
}

type requestWindow struct {
	count     int
	windowEnd time.Time
}

// NewRateLimiter creates a limiter allowing maxRequestsPerMinute per key
func NewRateLimiter(maxRequestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequestsPerMinute,
		window:      time.Minute,
		windows:     make(map[string]*requestWindow),
	}
}

// Allow records one request for key and fails once the window is exhausted.
// A non-positive limit disables limiting.
func (rl *RateLimiter) Allow(ctx context.Context, key string) error {
	if rl.maxRequests <= 0 {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.After(rl.nextSweep) {
		rl.sweep(now)
	}
	window, exists := rl.windows[key]

	if !exists || now.After(window.windowEnd) {
		rl.windows[key] = &requestWindow{
			count:     1,
			windowEnd: now.Add(rl.window),
		}
		return nil
	}

	if window.count >= rl.maxRequests {
		return ErrRateLimitExceeded
	}

	window.count++
	return nil
}

// sweep drops every window that has already ended. Runs at most once per window length.
func (rl *RateLimiter) sweep(now time.Time) {
	for key, window := range rl.windows {
		if now.After(window.windowEnd) {
			delete(rl.windows, key)
		}
	}
	rl.nextSweep = now.Add(rl.window)
}
