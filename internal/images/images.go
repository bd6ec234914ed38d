// Package images finds a lot's gallery images on its page and rewrites them
// to the highest quality variant the CDN serves.
package images

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	urlutil "github.com/law-makers/lotscout/internal/utils/url"
	"github.com/law-makers/lotscout/pkg/models"
)

const (
	// DefaultPattern is the canonical per-lot image location. {lot} and {i}
	// are substituted.
	DefaultPattern       = "https://cs.copart.com/v1/AUTH_svc.pdoc00001/lpp/{lot}/{lot}_{i}_ful.jpg"
	DefaultMaxImages     = 20
	DefaultFallbackCount = 3
)

// DefaultKeywords mark an image source as belonging to a listing
var DefaultKeywords = []string{"copart", "lot", "vehicle", "lpp"}

var (
	// attributes in order of preference
	sourceAttrs = []string{"data-full", "data-zoom", "data-original", "data-src"}
	sizeParams  = []string{"w", "h", "width", "height", "size", "q", "quality", "resize", "fit"}
	lowSegments = map[string]bool{"thumbnail": true, "thumb": true, "small": true, "medium": true}
	lowSuffix   = regexp.MustCompile(`_(?:thb|tmb)(\.[A-Za-z]+)$`)
	imageExt    = regexp.MustCompile(`(?i)\.(?:jpe?g|png|webp|gif)(?:$|\?)`)
)

// Resolver discovers image URLs for a lot
type Resolver struct {
	MaxImages     int
	FallbackCount int
	Pattern       string
	Keywords      []string
}

// New returns a Resolver with default limits
func New() *Resolver {
	return &Resolver{
		MaxImages:     DefaultMaxImages,
		FallbackCount: DefaultFallbackCount,
		Pattern:       DefaultPattern,
		Keywords:      DefaultKeywords,
	}
}

// Resolve returns the lot's images from page, or the fallback sequence when
// none can be found. The result is never empty.
func (r *Resolver) Resolve(lotID string, page *models.Page) []string {
	acc := newAccumulator(r.max())
	if page != nil {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
		if err == nil {
			r.fromImgTags(acc, doc, lotID, page.URL)
		}
		r.fromPattern(acc, lotID, page.HTML)
		if err == nil {
			r.fromDataAttrs(acc, doc, lotID, page.URL)
		}
	}
	if len(acc.out) == 0 {
		return r.Fallback(lotID)
	}
	return acc.out
}

// Fallback builds canonical image URLs from the lot id alone
func (r *Resolver) Fallback(lotID string) []string {
	n := r.FallbackCount
	if n <= 0 {
		n = 1
	}
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, r.canonical(lotID, i))
	}
	return out
}

// Normalize rewrites a thumbnail URL to its full-size variant and drops
// size and quality parameters
func Normalize(u string) string {
	u = urlutil.DropParams(u, sizeParams...)
	base, query := u, ""
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		base, query = u[:i], u[i:]
	}
	scheme := ""
	if i := strings.Index(base, "://"); i >= 0 {
		scheme, base = base[:i+3], base[i+3:]
	}
	segments := strings.Split(base, "/")
	for i := 1; i < len(segments); i++ {
		if lowSegments[strings.ToLower(segments[i])] {
			segments[i] = "large"
		}
	}
	last := len(segments) - 1
	segments[last] = lowSuffix.ReplaceAllString(segments[last], "_ful$1")
	return scheme + strings.Join(segments, "/") + query
}

func (r *Resolver) max() int {
	if r.MaxImages <= 0 {
		return DefaultMaxImages
	}
	return r.MaxImages
}

func (r *Resolver) canonical(lotID string, i int) string {
	pattern := r.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	return strings.NewReplacer("{lot}", lotID, "{i}", strconv.Itoa(i)).Replace(pattern)
}

func (r *Resolver) relevant(lotID, u string) bool {
	lower := strings.ToLower(u)
	if lotID != "" && strings.Contains(lower, strings.ToLower(lotID)) {
		return true
	}
	for _, kw := range r.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (r *Resolver) fromImgTags(acc *accumulator, doc *goquery.Document, lotID, base string) {
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := bestSource(img)
		if src == "" || strings.HasPrefix(src, "data:") {
			return true
		}
		abs := urlutil.ResolveURL(base, src)
		if r.relevant(lotID, abs) {
			acc.add(Normalize(abs))
		}
		return !acc.full()
	})
}

// fromPattern accepts canonical URLs whose "{lot}_{i}" token appears
// verbatim in the page
func (r *Resolver) fromPattern(acc *accumulator, lotID, markup string) {
	if lotID == "" {
		return
	}
	for i := 1; i <= acc.max && !acc.full(); i++ {
		if strings.Contains(markup, lotID+"_"+strconv.Itoa(i)) {
			acc.add(r.canonical(lotID, i))
		}
	}
}

func (r *Resolver) fromDataAttrs(acc *accumulator, doc *goquery.Document, lotID, base string) {
	doc.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, attr := range s.Nodes[0].Attr {
			if !strings.HasPrefix(attr.Key, "data-") {
				continue
			}
			for _, u := range urlsIn(attr.Val) {
				abs := urlutil.ResolveURL(base, u)
				if imageExt.MatchString(abs) && r.relevant(lotID, abs) {
					acc.add(Normalize(abs))
				}
			}
		}
		return !acc.full()
	})
}

// urlsIn reads a data attribute holding one URL or a JSON array of URLs
func urlsIn(v string) []string {
	v = strings.TrimSpace(v)
	switch {
	case strings.HasPrefix(v, "["):
		var list []string
		if err := json.Unmarshal([]byte(v), &list); err != nil {
			return nil
		}
		return list
	case strings.HasPrefix(v, "http://"), strings.HasPrefix(v, "https://"), strings.HasPrefix(v, "//"):
		if strings.ContainsAny(v, " \t\n") {
			return nil
		}
		return []string{v}
	}
	return nil
}

// bestSource picks the highest quality source an img element offers
func bestSource(img *goquery.Selection) string {
	for _, attr := range sourceAttrs {
		if v := strings.TrimSpace(img.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	if v := largestSrcset(img.AttrOr("srcset", "")); v != "" {
		return v
	}
	return strings.TrimSpace(img.AttrOr("src", ""))
}

// largestSrcset returns the candidate with the largest width or density
// descriptor
func largestSrcset(srcset string) string {
	type entry struct {
		url  string
		size float64
	}
	var entries []entry
	for _, part := range strings.Split(srcset, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		e := entry{url: fields[0], size: 1}
		if len(fields) > 1 {
			d := fields[1]
			if n, err := strconv.ParseFloat(d[:len(d)-1], 64); err == nil && (strings.HasSuffix(d, "w") || strings.HasSuffix(d, "x")) {
				e.size = n
			}
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return ""
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].size > entries[j].size })
	return entries[0].url
}

// accumulator deduplicates by URL without its query, keeping the first
// full URL seen
type accumulator struct {
	max  int
	seen map[string]struct{}
	out  []string
}

func newAccumulator(max int) *accumulator {
	return &accumulator{max: max, seen: make(map[string]struct{})}
}

func (a *accumulator) add(u string) {
	if a.full() || u == "" {
		return
	}
	key := urlutil.WithoutQuery(u)
	if _, dup := a.seen[key]; dup {
		return
	}
	a.seen[key] = struct{}{}
	a.out = append(a.out, u)
}

func (a *accumulator) full() bool {
	return len(a.out) >= a.max
}
