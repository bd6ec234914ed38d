// Package extract turns a listing candidate into a VehicleRecord and fills
// gaps from the lot's detail page.
package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/law-makers/lotscout/internal/discovery"
	"github.com/law-makers/lotscout/internal/jurisdiction"
	"github.com/law-makers/lotscout/internal/strategy"
	"github.com/law-makers/lotscout/internal/utils/text"
	"github.com/law-makers/lotscout/pkg/models"
)

// LotURL is the canonical lot page for an id
func LotURL(lotID string) string {
	return "https://www.copart.com/lot/" + lotID
}

// Options configures an Extractor
type Options struct {
	Make    string
	Model   string
	YearMin int
	YearMax int
	Allowed jurisdiction.Set
}

// Extractor applies per-field heuristic cascades to candidates
type Extractor struct {
	opts Options

	hrefState   *regexp.Regexp
	titleYear   *regexp.Regexp
	lotIDs      strategy.List[source, string]
	years       strategy.List[source, int]
	hints       strategy.List[source, string]
	damages     strategy.List[source, string]
	conditions  strategy.List[string, string]
	saleInfos   strategy.List[string, string]
	supplements []supplement
}

// source is what the field cascades see for one candidate
type source struct {
	href  string
	lotID string
	text  string
}

var (
	lotLabel   = regexp.MustCompile(`(?i)Lot\s*#\s*:?\s*(\d{8})`)
	lotBare    = regexp.MustCompile(`(?:1-)?(\d{8})`)
	hrefYear   = regexp.MustCompile(`-(\d{4})-`)
	textYear   = regexp.MustCompile(`\b(\d{4})\b`)
	hrefDamage = regexp.MustCompile(`(?i)[-/](front|rear|side|all-over|vandalism|hail|water|flood)(?:[-/?]|$)`)
	salvage    = regexp.MustCompile(`(?i)salvage`)
	// a following "Label:" ends a free-text value
	nextLabel = regexp.MustCompile(`\s+[A-Z][a-z]+\s*:.*$`)
)

var damageNames = map[string]string{
	"front": "Front End", "rear": "Rear End", "side": "Side", "all-over": "All Over",
	"vandalism": "Vandalism", "hail": "Hail", "water": "Water/Flood", "flood": "Water/Flood",
}

// text vocabulary in match order
var damageVocabulary = []string{"Front End", "Rear End", "Side", "All Over", "Vandalism", "Hail", "Water/Flood"}

// New builds an Extractor
func New(opts Options) *Extractor {
	e := &Extractor{opts: opts}

	codes := opts.Allowed.Codes()
	lower := make([]string, len(codes))
	for i, c := range codes {
		lower[i] = strings.ToLower(c)
	}
	if len(lower) > 0 {
		e.hrefState = regexp.MustCompile(`(?i)-(` + strings.Join(lower, "|") + `)-`)
	}
	e.titleYear = regexp.MustCompile(fmt.Sprintf(`(?i)(\d{4})\s+%s\s+%s`,
		regexp.QuoteMeta(opts.Make), regexp.QuoteMeta(opts.Model)))

	e.lotIDs = strategy.List[source, string]{
		{Name: "href", Run: func(s source) (string, bool) { return discovery.LotIDFromHref(s.href) }},
		{Name: "attr", Run: func(s source) (string, bool) { return s.lotID, s.lotID != "" }},
		{Name: "label", Run: func(s source) (string, bool) { return firstGroup(lotLabel, s.text) }},
		{Name: "bare", Run: func(s source) (string, bool) { return firstGroup(lotBare, s.text) }},
	}
	e.years = strategy.List[source, int]{
		{Name: "href", Run: func(s source) (int, bool) { return e.yearIn(hrefYear, s.href) }},
		{Name: "text", Run: func(s source) (int, bool) { return e.yearIn(textYear, s.text) }},
	}
	e.hints = strategy.List[source, string]{
		{Name: "href", Run: func(s source) (string, bool) { return e.stateIn(e.hrefState, s.href) }},
		{Name: "text", Run: func(s source) (string, bool) { return e.allowedIn(s.text) }},
	}
	e.damages = strategy.List[source, string]{
		{Name: "href", Run: func(s source) (string, bool) {
			m := hrefDamage.FindStringSubmatch(s.href)
			if m == nil {
				return "", false
			}
			return damageNames[strings.ToLower(m[1])], true
		}},
		{Name: "text", Run: func(s source) (string, bool) { return damageIn(s.text) }},
	}
	e.conditions = strategy.Of(
		labelValue(regexp.MustCompile(`(?i)Condition[:\s]+([A-Za-z][A-Za-z ]*)`), 50),
		labelValue(regexp.MustCompile(`(?i)Status[:\s]+([A-Za-z][A-Za-z ]*)`), 50),
	)
	e.saleInfos = strategy.Of(
		labelValue(regexp.MustCompile(`(?i)Sale\s+(?:Date|Time)[:\s]+([^\n]+)`), 100),
		labelValue(regexp.MustCompile(`(?i)Auction[:\s]+([^\n]+)`), 100),
	)
	e.supplements = e.buildSupplements()
	return e
}

// Extract builds a record from one candidate. It returns nil when no lot id
// can be found.
func (e *Extractor) Extract(c discovery.Candidate) *models.VehicleRecord {
	src := source{href: c.Href, lotID: c.LotID, text: text.Visible(c.Selection)}
	if src.href == "" && c.Selection != nil {
		if href, ok := c.Selection.Attr("href"); ok {
			src.href = href
		}
	}

	lotID, ok := e.lotIDs.Value(src)
	if !ok {
		return nil
	}

	rec := models.NewVehicleRecord(e.opts.Make, e.opts.Model)
	rec.LotID = lotID
	rec.URL = LotURL(lotID)

	if y, ok := e.years.Value(src); ok {
		rec.Year = &y
	}
	if state, ok := e.hints.Value(src); ok {
		rec.SetLocation(state, state, models.SourceHint)
	}
	rec.Damage = e.damages.Or(src, models.Unknown)
	if n, ok := ParseOdometer(src.text); ok {
		rec.Odometer = &n
	}
	rec.Condition = e.conditions.Or(src.text, models.Unknown)
	if n, ok := ParseBid(src.text); ok {
		rec.CurrentBid = &n
	}
	if cd, ok := ParseCountdown(src.text); ok {
		rec.AuctionCountdown = cd
	}
	rec.SaleInfo = e.saleInfos.Or(src.text, models.Unknown)
	if t, ok := ParseTitle(src.text); ok {
		rec.TitleStatus = t
	} else if salvage.MatchString(src.text) {
		rec.TitleStatus = "Salvage"
	}
	return rec
}

func (e *Extractor) yearIn(re *regexp.Regexp, s string) (int, bool) {
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		y, err := strconv.Atoi(m[1])
		if err == nil && e.plausibleYear(y) {
			return y, true
		}
	}
	return 0, false
}

func (e *Extractor) plausibleYear(y int) bool {
	return y >= e.opts.YearMin && y <= e.opts.YearMax
}

func (e *Extractor) stateIn(re *regexp.Regexp, s string) (string, bool) {
	if re == nil {
		return "", false
	}
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	code, ok := jurisdiction.Normalize(m[1])
	if !ok || !e.opts.Allowed.Allows(code) {
		return "", false
	}
	return code, true
}

// allowedIn returns the first allowed jurisdiction mentioned in s
func (e *Extractor) allowedIn(s string) (string, bool) {
	for _, m := range jurisdiction.FindAll(s) {
		if e.opts.Allowed.Allows(m.Code) {
			return m.Code, true
		}
	}
	return "", false
}

func damageIn(s string) (string, bool) {
	lower := strings.ToLower(s)
	for _, d := range damageVocabulary {
		if strings.Contains(lower, strings.ToLower(d)) {
			return d, true
		}
	}
	return "", false
}

func firstGroup(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// labelValue captures the value after a label, cut at the next "Label:" and
// capped at n runes.
func labelValue(re *regexp.Regexp, n int) strategy.Func[string, string] {
	return func(s string) (string, bool) {
		m := re.FindStringSubmatch(s)
		if m == nil {
			return "", false
		}
		v := clip(nextLabel.ReplaceAllString(m[1], ""), n)
		return v, v != ""
	}
}
