// Package discovery finds listing elements on a rendered search-results page.
package discovery

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/law-makers/lotscout/internal/strategy"
)

// Strategy names, in cascade order
const (
	StrategyRows       = "rows"
	StrategyContainers = "containers"
	StrategyAnchors    = "anchors"
	StrategyWide       = "anchors-wide"
)

var (
	lotLabelPattern  = regexp.MustCompile(`(?i)Lot\s*#\s*:?\s*\d{8}`)
	lotPrefixPattern = regexp.MustCompile(`1-\d{8}`)
	lotPathPattern   = regexp.MustCompile(`/lot/(\d+)`)
	lotQueryPattern  = regexp.MustCompile(`(?i)[?&]lot(?:id|number)?=(?:1-)?(\d{6,})`)
)

// Candidate is a markup element suspected to represent one listing
type Candidate struct {
	Selection *goquery.Selection
	Strategy  string
	// Href is the lot link attached to the element, if any
	Href string
	// LotID is the id embedded in Href or a lot-number attribute
	LotID string
}

type input struct {
	doc   *goquery.Document
	limit int
}

var cascade = strategy.List[input, []Candidate]{
	{Name: StrategyRows, Run: nonEmpty(findRows)},
	{Name: StrategyContainers, Run: nonEmpty(findContainers)},
	{Name: StrategyAnchors, Run: nonEmpty(findAnchors)},
	{Name: StrategyWide, Run: nonEmpty(findAnchorsWide)},
}

// Find returns up to limit*2 candidates from the first strategy that yields
// any. Later strategies are not run once one succeeds.
func Find(doc *goquery.Document, limit int) []Candidate {
	if doc == nil || limit <= 0 {
		return nil
	}
	found, _, ok := cascade.First(input{doc: doc, limit: limit})
	if !ok {
		return nil
	}
	if max := limit * 2; len(found) > max {
		found = found[:max]
	}
	return found
}

// FindHTML parses markup and runs Find
func FindHTML(markup string, limit int) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	return Find(doc, limit), nil
}

// LotIDFromHref extracts the numeric lot id embedded in a link target.
func LotIDFromHref(href string) (string, bool) {
	if m := lotPathPattern.FindStringSubmatch(href); m != nil {
		return m[1], true
	}
	if m := lotQueryPattern.FindStringSubmatch(href); m != nil {
		return m[1], true
	}
	return "", false
}

func nonEmpty(fn func(input) []Candidate) strategy.Func[input, []Candidate] {
	return func(in input) ([]Candidate, bool) {
		c := fn(in)
		return c, len(c) > 0
	}
}

func matchesLotText(text string) bool {
	return lotLabelPattern.MatchString(text) || lotPrefixPattern.MatchString(text)
}

// findRows keeps the innermost rows and blocks whose text carries a lot number.
func findRows(in input) []Candidate {
	const blocks = "tr, li, article"
	var out []Candidate
	in.doc.Find(blocks).Each(func(_ int, s *goquery.Selection) {
		if !matchesLotText(s.Text()) {
			return
		}
		nested := false
		s.Find(blocks).EachWithBreak(func(_ int, inner *goquery.Selection) bool {
			if matchesLotText(inner.Text()) {
				nested = true
				return false
			}
			return true
		})
		if nested {
			return
		}
		c := Candidate{Selection: s, Strategy: StrategyRows}
		if href, ok := firstLotHref(s); ok {
			c.Href = href
			c.LotID, _ = LotIDFromHref(href)
		}
		out = append(out, c)
	})
	return out
}

func findContainers(in input) []Candidate {
	var out []Candidate
	in.doc.Find("div[data-lot-number], section[data-lot-number]").Each(func(_ int, s *goquery.Selection) {
		c := Candidate{Selection: s, Strategy: StrategyContainers}
		if v, ok := s.Attr("data-lot-number"); ok {
			c.LotID = strings.TrimPrefix(strings.TrimSpace(v), "1-")
		}
		if href, ok := firstLotHref(s); ok {
			c.Href = href
			if c.LotID == "" {
				c.LotID, _ = LotIDFromHref(href)
			}
		}
		out = append(out, c)
	})
	return out
}

func findAnchors(in input) []Candidate {
	return scanAnchors(in.doc.Find("a[href]"), in.limit*2, StrategyAnchors, "href")
}

// findAnchorsWide looks further down the page and also accepts the link
// attributes client-side frameworks render before hydrating href.
func findAnchorsWide(in input) []Candidate {
	return scanAnchors(in.doc.Find("a[href], a[ng-href], a[data-href], [data-url]"), in.limit*4, StrategyWide,
		"href", "ng-href", "data-href", "data-url")
}

// scanAnchors walks up to window lot links, deduplicating by lot id in
// first-seen order.
func scanAnchors(sel *goquery.Selection, window int, name string, attrs ...string) []Candidate {
	seen := make(map[string]struct{})
	var out []Candidate
	scanned := 0
	sel.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, id, ok := lotLink(s, attrs...)
		if !ok {
			return true
		}
		scanned++
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			out = append(out, Candidate{Selection: s, Strategy: name, Href: href, LotID: id})
		}
		return scanned < window
	})
	return out
}

func lotLink(s *goquery.Selection, attrs ...string) (string, string, bool) {
	for _, attr := range attrs {
		v, ok := s.Attr(attr)
		if !ok {
			continue
		}
		if id, ok := LotIDFromHref(v); ok {
			return v, id, true
		}
	}
	return "", "", false
}

func firstLotHref(s *goquery.Selection) (string, bool) {
	if goquery.NodeName(s) == "a" {
		if href, ok := s.Attr("href"); ok && lotPathPattern.MatchString(href) {
			return href, true
		}
	}
	var found string
	s.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if lotPathPattern.MatchString(href) {
			found = href
			return false
		}
		return true
	})
	return found, found != ""
}
