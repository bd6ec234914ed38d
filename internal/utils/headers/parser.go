package headers

import (
	"net/http"
	"sort"
	"strings"
)

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// ParseHeaders converts "Key: Value" strings into a map. Entries without a
// colon are ignored.
func ParseHeaders(h []string) map[string]string {
	m := make(map[string]string)
	for _, hdr := range h {
		parts := strings.SplitN(hdr, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			if key == "" {
				continue
			}
			m[http.CanonicalHeaderKey(key)] = strings.TrimSpace(parts[1])
		}
	}
	return m
}

// Browser returns the headers a desktop browser sends with a document
// request, merged with extra. Keys in extra win.
func Browser(userAgent string, extra map[string]string) map[string]string {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	m := map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"Cache-Control":   "no-cache",
	}
	for k, v := range extra {
		m[http.CanonicalHeaderKey(k)] = v
	}
	return m
}

// Apply sets every header on req in a stable order
func Apply(req *http.Request, h map[string]string) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		req.Header.Set(k, h[k])
	}
}
