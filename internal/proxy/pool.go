package proxy

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultCooldown is how long a failed proxy is skipped
const DefaultCooldown = 5 * time.Minute

// Pool rotates the proxies handed to each new renderer. A proxy that failed
// to launch a browser or load a page sits out for the cooldown.
type Pool struct {
	proxies  []string
	index    int
	mu       sync.Mutex
	failed   map[string]time.Time
	cooldown time.Duration
}

// NewPool validates and deduplicates proxies. Accepted schemes are http,
// https, socks5 and socks5h.
func NewPool(proxies []string, cooldown time.Duration) (*Pool, error) {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	seen := make(map[string]bool)
	var clean []string
	for _, raw := range proxies {
		p := strings.TrimSpace(raw)
		if p == "" || seen[p] {
			continue
		}
		if err := Validate(p); err != nil {
			return nil, err
		}
		seen[p] = true
		clean = append(clean, p)
	}
	return &Pool{
		proxies:  clean,
		failed:   make(map[string]time.Time),
		cooldown: cooldown,
	}, nil
}

// Validate checks a proxy URL
func Validate(p string) error {
	u, err := url.Parse(p)
	if err != nil {
		return fmt.Errorf("invalid proxy %q: %w", p, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return fmt.Errorf("invalid proxy %q: unsupported scheme %q", p, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid proxy %q: missing host", p)
	}
	return nil
}

// Len returns the number of configured proxies
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.proxies)
}

// Next returns the next proxy not cooling down. When every proxy failed
// recently it returns the one after the last handed out. An empty pool
// returns "" and the renderer connects directly.
func (p *Pool) Next() string {
	if p == nil {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	start := p.index
	for {
		proxy := p.proxies[p.index]
		p.index = (p.index + 1) % len(p.proxies)

		if failTime, ok := p.failed[proxy]; ok {
			if time.Since(failTime) < p.cooldown {
				if p.index == start {
					return proxy
				}
				continue
			}
			delete(p.failed, proxy)
		}

		return proxy
	}
}

// MarkFailed puts a proxy in cooldown
func (p *Pool) MarkFailed(proxy string) {
	if p == nil || proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed[proxy] = time.Now()
}

// MarkHealthy clears the failure status of a proxy
func (p *Pool) MarkHealthy(proxy string) {
	if p == nil || proxy == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failed, proxy)
}
