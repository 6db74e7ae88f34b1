package crawler

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"
)

// Defaults applied when a SourceConfig leaves retry knobs unset.
const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = time.Second
	DefaultBackoffMax  = 60 * time.Second
)

// RetryPolicy implements jittered exponential backoff driven by a
// SourceConfig's retry knobs.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewRetryPolicy builds a policy from the config, filling unset knobs with
// defaults.
func NewRetryPolicy(cfg SourceConfig) *RetryPolicy {
	p := &RetryPolicy{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BackoffBase,
		maxDelay:    cfg.BackoffMax,
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = DefaultMaxAttempts
	}
	if p.baseDelay <= 0 {
		p.baseDelay = DefaultBackoffBase
	}
	if p.maxDelay <= 0 {
		p.maxDelay = DefaultBackoffMax
	}
	return p
}

// MaxAttempts returns the attempt ceiling.
func (p *RetryPolicy) MaxAttempts() int { return p.maxAttempts }

// Retryable decides whether the failure is transient. Timeouts, connection
// resets, 5xx, and 429 retry; other 4xx and context cancellation do not.
func (p *RetryPolicy) Retryable(statusCode int, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if statusCode > 0 {
		if statusCode == http.StatusTooManyRequests {
			return true
		}
		if statusCode >= 500 {
			return true
		}
		if statusCode >= 400 {
			return false
		}
	}
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return true
}

// Backoff returns the wait duration before the next attempt. A server-provided
// Retry-After hint takes precedence, capped at the configured max.
func (p *RetryPolicy) Backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		if retryAfter > p.maxDelay {
			return p.maxDelay
		}
		return retryAfter
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// ParseRetryAfter reads a Retry-After header value in seconds form. Zero means
// no usable hint.
func ParseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := time.ParseDuration(v + "s")
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}
