// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

const (
	// DefaultRPS paces navigations to the auction site
	DefaultRPS   = 0.5
	DefaultBurst = 2
)

// Limiter paces renderer navigations.
type Limiter interface {
	// Wait blocks until a navigation to urlStr may start or ctx is done.
	Wait(ctx context.Context, urlStr string) error

	// Allow reports whether a navigation may start right now.
	Allow(urlStr string) bool
}

// DomainLimiter keeps one token bucket per host so the search host and
// the image CDN are paced independently
type DomainLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	perHost  rate.Limit
	burst    int
}

// NewDomainLimiter creates a limiter with the given per-host rate
func NewDomainLimiter(requestsPerSecond float64, burst int) *DomainLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultRPS
	}
	if burst <= 0 {
		burst = DefaultBurst
	}

	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		perHost:  rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Wait blocks until the navigation may proceed. URLs without a host pass
// through; they fail in the renderer instead.
func (dl *DomainLimiter) Wait(ctx context.Context, urlStr string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	host := hostOf(urlStr)
	if host == "" {
		return nil
	}
	return dl.getLimiter(host).Wait(ctx)
}

// Allow checks if a navigation can proceed immediately without blocking
func (dl *DomainLimiter) Allow(urlStr string) bool {
	host := hostOf(urlStr)
	if host == "" {
		return true
	}
	return dl.getLimiter(host).Allow()
}

// SetLimit overrides the rate for one host
func (dl *DomainLimiter) SetLimit(host string, requestsPerSecond float64, burst int) {
	host = strings.ToLower(host)

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if limiter, exists := dl.limiters[host]; exists {
		limiter.SetLimit(rate.Limit(requestsPerSecond))
		limiter.SetBurst(burst)
		return
	}
	dl.limiters[host] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

func (dl *DomainLimiter) getLimiter(host string) *rate.Limiter {
	dl.mu.RLock()
	limiter, exists := dl.limiters[host]
	dl.mu.RUnlock()

	if exists {
		return limiter
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if limiter, exists := dl.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(dl.perHost, dl.burst)
	dl.limiters[host] = limiter
	return limiter
}

// Unlimited never blocks. Tests and single-page commands use it.
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context, _ string) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

func (Unlimited) Allow(string) bool { return true }

func hostOf(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
