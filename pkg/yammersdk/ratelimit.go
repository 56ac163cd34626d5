package yammersdk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Rate limit buckets. The provider counts message traffic separately from the
// rest of the API.
const (
	BucketDefault  = "default"
	BucketMessages = "messages"
)

// RateLimitConfig defines client-side throttling for one bucket.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows for temporary bursts above the rate limit
	Burst int
}

// Published provider limits, per user per application.
var (
	// DefaultLimit covers every endpoint outside the messages bucket.
	DefaultLimit = RateLimitConfig{
		RequestsPerWindow: 10,
		Window:            10 * time.Second,
		Burst:             10,
	}

	// MessagesLimit covers message listing and posting.
	MessagesLimit = RateLimitConfig{
		RequestsPerWindow: 10,
		Window:            30 * time.Second,
		Burst:             10,
	}
)

// Validate rejects configs that would never let a request through.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("yammer: RequestsPerWindow must be positive, got %d", c.RequestsPerWindow)
	}
	if c.Window <= 0 {
		return fmt.Errorf("yammer: Window must be positive, got %v", c.Window)
	}
	if c.Burst <= 0 {
		return fmt.Errorf("yammer: Burst must be positive, got %d", c.Burst)
	}
	return nil
}

func (c RateLimitConfig) newLimiter() *rate.Limiter {
	ratePerSecond := float64(c.RequestsPerWindow) / c.Window.Seconds()
	return rate.NewLimiter(rate.Limit(ratePerSecond), c.Burst)
}

// limiter holds one token bucket per configured bucket name. Buckets without a
// config are not throttled. The map is built once and only read afterwards.
type limiter struct {
	buckets map[string]*rate.Limiter
}

func newLimiter(configs map[string]RateLimitConfig) *limiter {
	l := &limiter{buckets: make(map[string]*rate.Limiter, len(configs))}
	for name, cfg := range configs {
		if cfg.Validate() != nil {
			continue
		}
		l.buckets[name] = cfg.newLimiter()
	}
	return l
}

// wait blocks until the bucket for resource admits one request or ctx is done.
func (l *limiter) wait(ctx context.Context, resource string) error {
	if l == nil {
		return nil
	}
	rl, ok := l.buckets[bucketFor(resource)]
	if !ok {
		return nil
	}
	if err := rl.Wait(ctx); err != nil {
		return fmt.Errorf("yammer: rate limit wait: %w", err)
	}
	return nil
}

func bucketFor(resource string) string {
	if strings.HasPrefix(strings.TrimPrefix(resource, "/"), "api/v1/messages") {
		return BucketMessages
	}
	return BucketDefault
}
