// Package ratelimit implements a token bucket limiter shared across all
// in-flight work for the same source config.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dangvonguyen/research-agent/internal/metrics"
)

// Limiter manages one token bucket per config name. All fetches for a config,
// across concurrent jobs, draw from the same bucket.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Limiter.
func New() *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a token is available for the named config, respecting the
// context. rps <= 0 means unlimited.
func (l *Limiter) Wait(ctx context.Context, configName string, rps float64, burst int) error {
	limiter := l.limiterFor(configName, rps, burst)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if delay := time.Since(start); delay > time.Millisecond {
		metrics.ObserveRateLimitDelay(configName, delay)
	}
	return nil
}

func (l *Limiter) limiterFor(configName string, rps float64, burst int) *rate.Limiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[configName]
	if !ok {
		limiter = rate.NewLimiter(limit, burst)
		l.limiters[configName] = limiter
		return limiter
	}
	// Config updates take effect on the shared bucket.
	if limiter.Limit() != limit {
		limiter.SetLimit(limit)
	}
	if limiter.Burst() != burst {
		limiter.SetBurst(burst)
	}
	return limiter
}
