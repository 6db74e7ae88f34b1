// Package fetcher wraps the page fetcher with rate limiting and retry/backoff.
package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dangvonguyen/research-agent/internal/crawler"
	"github.com/dangvonguyen/research-agent/internal/metrics"
	"github.com/dangvonguyen/research-agent/internal/ratelimit"
)

// PageFetcher performs one fetch attempt without retries.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) (crawler.FetchResponse, error)
}

// Client implements crawler.Fetcher. Every attempt draws a token from the
// shared per-config rate limiter, so concurrency never outruns the configured
// request spacing.
type Client struct {
	pages   PageFetcher
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// NewClient constructs a Client.
func NewClient(pages PageFetcher, limiter *ratelimit.Limiter, logger *zap.Logger) *Client {
	return &Client{
		pages:   pages,
		limiter: limiter,
		logger:  logger,
	}
}

// Fetch retrieves url under the config's retry policy. Transient failures
// (timeouts, 5xx, 429) are retried with jittered exponential backoff; other
// 4xx fail immediately. Exhausted retries yield a *crawler.FetchError.
func (c *Client) Fetch(ctx context.Context, cfg crawler.SourceConfig, url string) (crawler.FetchResponse, error) {
	policy := crawler.NewRetryPolicy(cfg)

	var (
		lastStatus int
		lastErr    error
		attempts   int
	)
	for attempt := 0; attempt < policy.MaxAttempts(); attempt++ {
		if err := c.limiter.Wait(ctx, cfg.Name, cfg.RateLimit, cfg.Burst); err != nil {
			return crawler.FetchResponse{}, err
		}

		attempts++
		resp, err := c.fetchOnce(ctx, cfg, url)
		if err == nil && resp.StatusCode < 400 {
			metrics.ObserveFetchAttempt(cfg.Name, "ok")
			return resp, nil
		}

		lastStatus = resp.StatusCode
		lastErr = err
		if !policy.Retryable(resp.StatusCode, err) {
			metrics.ObserveFetchAttempt(cfg.Name, "error")
			break
		}
		if attempt == policy.MaxAttempts()-1 {
			metrics.ObserveFetchAttempt(cfg.Name, "error")
			break
		}

		metrics.ObserveFetchAttempt(cfg.Name, "retry")
		var retryAfter time.Duration
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter = crawler.ParseRetryAfter(resp.Headers)
		}
		delay := policy.Backoff(attempt, retryAfter)
		c.logger.Warn("fetch attempt failed, backing off",
			zap.String("config", cfg.Name),
			zap.String("url", url),
			zap.Int("attempt", attempts),
			zap.Int("status", resp.StatusCode),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := pause(ctx, delay); err != nil {
			return crawler.FetchResponse{}, err
		}
	}

	return crawler.FetchResponse{}, &crawler.FetchError{
		URL:        url,
		LastStatus: lastStatus,
		Attempts:   attempts,
		Err:        lastErr,
	}
}

func (c *Client) fetchOnce(ctx context.Context, cfg crawler.SourceConfig, url string) (crawler.FetchResponse, error) {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := c.pages.Fetch(attemptCtx, url, timeout)
	if err != nil && attemptCtx.Err() != nil && ctx.Err() == nil {
		// The attempt deadline fired, not the caller's context: report it as a
		// retryable network timeout.
		err = &attemptTimeoutError{url: url, timeout: timeout}
	}
	return resp, err
}

type attemptTimeoutError struct {
	url     string
	timeout time.Duration
}

func (e *attemptTimeoutError) Error() string {
	return fmt.Sprintf("fetch %s: attempt timed out after %s", e.url, e.timeout)
}

func (e *attemptTimeoutError) Timeout() bool   { return true }
func (e *attemptTimeoutError) Temporary() bool { return true }

func pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

var _ crawler.Fetcher = (*Client)(nil)
