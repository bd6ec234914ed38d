package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL checks that a query or lot URL is absolute http(s)
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: must be http or https, got %s", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("invalid URL: missing host")
	}

	return nil
}

// ResolveURL resolves a possibly-relative href against a base URL and returns a string
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		if b, err := url.Parse(base); err == nil && b.Scheme != "" {
			return b.Scheme + ":" + href
		}
		return "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil || base == "" {
		return href
	}
	return baseURL.ResolveReference(u).String()
}

// WithoutQuery returns u with query and fragment removed
func WithoutQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

// DropParams removes the named query parameters (case-insensitive)
func DropParams(u string, names ...string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.RawQuery == "" {
		return u
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[strings.ToLower(n)] = true
	}
	q := parsed.Query()
	for key := range q {
		if drop[strings.ToLower(key)] {
			q.Del(key)
		}
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}
