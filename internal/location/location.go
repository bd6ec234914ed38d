// Package location decides which jurisdiction a lot is sold from by reading
// its detail page. Signals are ranked: the sale document is authoritative,
// the location/lane line comes next and general location text is a last
// resort.
package location

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/law-makers/lotscout/internal/engine/script"
	"github.com/law-makers/lotscout/internal/jurisdiction"
	"github.com/law-makers/lotscout/internal/strategy"
	"github.com/law-makers/lotscout/internal/utils/text"
	"github.com/law-makers/lotscout/pkg/models"
)

// Rejection reasons
const (
	ReasonNoJurisdiction = "no allowed jurisdiction"
	ReasonSaleDoc        = "sale document outside allowed jurisdictions"
	ReasonLane           = "lane outside allowed jurisdictions"
	ReasonGeneral        = "location outside allowed jurisdictions"
)

const maxTextLen = 80

// Resolution is the outcome of resolving one page.
//
// A rejected resolution with a State names the disallowed jurisdiction the
// page was found to be in; a rejected resolution without one means no signal
// was found.
type Resolution struct {
	State    string
	Text     string
	Source   models.LocationSource
	Via      string
	Rejected bool
	Reason   string
}

// Resolver resolves detail pages against an allowed jurisdiction set
type Resolver struct {
	allowed      jurisdiction.Set
	scriptBudget time.Duration
	signals      []signal
	places       []strategy.Func[*view, finding]
}

type signal struct {
	source  models.LocationSource
	reason  string
	cascade strategy.List[*view, finding]
}

// label is one label vocabulary entry
type label struct {
	re          *regexp.Regexp
	allowedOnly bool
}

type finding struct {
	state string
	text  string
}

// view is a parsed page shared by all strategies
type view struct {
	page     *models.Page
	doc      *goquery.Document
	text     string
	budget   time.Duration
	payloads []script.Payload
	ran      bool
}

func (v *view) scriptPayloads() []script.Payload {
	if !v.ran {
		v.ran = true
		v.payloads = script.Globals(v.doc, v.page.URL, v.budget)
	}
	return v.payloads
}

var (
	// Sale document labels, most specific first. A bare "Document:" is too
	// generic to reject a lot, so it only counts when it names an allowed state.
	saleDocLabels = []label{
		{re: regexp.MustCompile(`(?i)\bsale\s*doc(?:ument)?(?:\s*location)?\b`)},
		{re: regexp.MustCompile(`(?i)\bsale\s+location\b`)},
		{re: regexp.MustCompile(`(?i)\bdoc(?:ument)?\s+location\b`)},
		{re: regexp.MustCompile(`(?i)\bsale\s+(?:yard|site)\b`)},
		{re: regexp.MustCompile(`(?im)\bdocument\s*(?::|$)`), allowedOnly: true},
	}
	laneLabels = []label{
		{re: regexp.MustCompile(`(?i)\blocation\s*/\s*lane\b`)},
		{re: regexp.MustCompile(`(?i)\blocation\s+lane\b`)},
		{re: regexp.MustCompile(`(?i)\blane\b`)},
	}
	generalLabels = []label{
		{re: regexp.MustCompile(`(?i)\b(?:location|yard|facility|site|pickup)\b`)},
	}

	// ownLabel spots an element that starts with its own "Field:" label
	ownLabel = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9 /#&.'-]{0,40}:`)

	saleDocMarkup = []*regexp.Regexp{
		regexp.MustCompile(`(?i)["']saleDoc[A-Za-z]*["']\s*:\s*["']([^"']{1,60})["']`),
		regexp.MustCompile(`(?i)data-sale-doc[^=]*=\s*["']([^"']{1,60})["']`),
		regexp.MustCompile(`(?i)sale\s*doc(?:ument)?[:\s]+([^<\n]{0,50})`),
		regexp.MustCompile(`(?i)sale\s+location[:\s]+([^<\n]{0,50})`),
		regexp.MustCompile(`(?i)document\s+location[:\s]+([^<\n]{0,50})`),
	}
	salePayload = regexp.MustCompile(`(?i)"sale_?doc[A-Za-z_]*"\s*:\s*"([^"]{1,60})"`)

	laneMarkup = []*regexp.Regexp{
		regexp.MustCompile(`(?i)location\s*/\s*lane[:\s]*([^<\n]{0,50})`),
		regexp.MustCompile(`(?i)\blane[:\s]+([^<\n]{0,50})`),
	}

	countrySuffix = regexp.MustCompile(`(?i),\s*(?:USA|United States|US)\b.*$`)
	valueLead     = " \t\r\n:#-"
)

// New builds a Resolver. budget caps inline-script evaluation per page.
func New(allowed jurisdiction.Set, budget time.Duration) *Resolver {
	r := &Resolver{allowed: allowed, scriptBudget: budget}
	cities, cityState := r.gazetteerScan(cityPatterns(allowed)), r.cityStateScan()
	r.places = []strategy.Func[*view, finding]{cities, cityState}
	r.signals = []signal{
		{
			source: models.SourceSaleDoc,
			reason: ReasonSaleDoc,
			cascade: strategy.List[*view, finding]{
				{Name: "labels", Run: r.labelScan(saleDocLabels)},
				{Name: "text", Run: r.textScan(saleDocLabels)},
				{Name: "markup", Run: markupScan(saleDocMarkup)},
				{Name: "payload", Run: payloadScan},
			},
		},
		{
			source: models.SourceLane,
			reason: ReasonLane,
			cascade: strategy.List[*view, finding]{
				{Name: "labels", Run: r.labelScan(laneLabels)},
				{Name: "text", Run: r.textScan(laneLabels)},
				{Name: "markup", Run: markupScan(laneMarkup)},
			},
		},
		{
			source: models.SourceGeneral,
			reason: ReasonGeneral,
			cascade: strategy.List[*view, finding]{
				{Name: "labels", Run: r.labelScan(generalLabels)},
				{Name: "gazetteer", Run: cities},
				{Name: "city", Run: cityState},
				{Name: "bare", Run: r.bareScan()},
			},
		},
	}
	return r
}

// Resolve reads the page's jurisdiction signals in rank order. The first
// signal that names any state decides; a disallowed state rejects the page
// even when a lower-ranked signal would have allowed it.
func (r *Resolver) Resolve(page *models.Page) Resolution {
	if page == nil {
		return Resolution{Rejected: true, Reason: ReasonNoJurisdiction}
	}
	v := newView(page, r.scriptBudget)
	for _, sig := range r.signals {
		f, via, ok := sig.cascade.First(v)
		if !ok {
			continue
		}
		res := Resolution{State: f.state, Text: f.text, Source: sig.source, Via: via}
		if !r.allowed.Allows(f.state) {
			res.Rejected = true
			res.Reason = sig.reason
			return res
		}
		res.Text = r.mostSpecific(v, f)
		return res
	}
	return Resolution{Rejected: true, Reason: ReasonNoJurisdiction}
}

// Apply records a resolution on rec, subject to source priority. It reports
// whether the record changed.
func Apply(rec *models.VehicleRecord, res Resolution) bool {
	if rec == nil || res.State == "" {
		return false
	}
	return rec.SetLocation(res.State, res.Text, res.Source)
}

func newView(page *models.Page, budget time.Duration) *view {
	v := &view{page: page, text: page.Text, budget: budget}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML)); err == nil {
		v.doc = doc
		if v.text == "" {
			v.text = text.Document(doc)
		}
	}
	return v
}

// mostSpecific prefers a place name ("Trenton, NJ") agreeing with the
// chosen state over the bare value the deciding signal found
func (r *Resolver) mostSpecific(v *view, chosen finding) string {
	best := chosen.text
	for _, run := range r.places {
		f, ok := run(v)
		if !ok || f.state != chosen.state {
			continue
		}
		if len(f.text) > len(best) && len(f.text) <= maxTextLen {
			best = f.text
		}
	}
	return best
}

// labelScan tries each label in order over the whole page. Around every text
// node matching it, it reads the rest of its element, then the next element
// when the label's own element holds no value, then the enclosing element.
func (r *Resolver) labelScan(labels []label) strategy.Func[*view, finding] {
	return func(v *view) (finding, bool) {
		for _, l := range labels {
			for _, ctx := range text.Labels(v.doc, l.re) {
				if f, ok := afterLabel(l.re, ctx.Parent); ok && r.admits(l, f) {
					return f, true
				}
				if !hasValue(l.re, ctx.Parent) && !ownLabel.MatchString(ctx.Sibling) {
					if f, ok := inValue(firstLine(ctx.Sibling)); ok && r.admits(l, f) {
						return f, true
					}
				}
				if f, ok := afterLabel(l.re, ctx.Grandparent); ok && r.admits(l, f) {
					return f, true
				}
			}
		}
		return finding{}, false
	}
}

// textScan finds each label in order in the visible text and reads the value
// after it
func (r *Resolver) textScan(labels []label) strategy.Func[*view, finding] {
	return func(v *view) (finding, bool) {
		for _, l := range labels {
			if f, ok := afterLabel(l.re, v.text); ok && r.admits(l, f) {
				return f, true
			}
		}
		return finding{}, false
	}
}

// admits drops findings of generic labels that name a disallowed state
func (r *Resolver) admits(l label, f finding) bool {
	return !l.allowedOnly || r.allowed.Allows(f.state)
}

// hasValue reports whether any occurrence of label in s is followed by text
// on the same line
func hasValue(label *regexp.Regexp, s string) bool {
	for _, loc := range label.FindAllStringIndex(s, -1) {
		if strings.TrimLeft(firstLine(s[loc[1]:]), valueLead) != "" {
			return true
		}
	}
	return false
}

func markupScan(patterns []*regexp.Regexp) strategy.Func[*view, finding] {
	return func(v *view) (finding, bool) {
		for _, re := range patterns {
			for _, m := range re.FindAllStringSubmatch(v.page.HTML, -1) {
				if f, ok := inValue(m[1]); ok {
					return f, true
				}
			}
		}
		return finding{}, false
	}
}

func payloadScan(v *view) (finding, bool) {
	for _, p := range v.scriptPayloads() {
		for _, m := range salePayload.FindAllStringSubmatch(p.JSON, -1) {
			if f, ok := inValue(m[1]); ok {
				return f, true
			}
		}
	}
	return finding{}, false
}

func (r *Resolver) gazetteerScan(patterns []cityPattern) strategy.Func[*view, finding] {
	return func(v *view) (finding, bool) {
		best, found := finding{}, false
		bestAt := -1
		for _, p := range patterns {
			loc := p.re.FindStringIndex(v.text)
			if loc == nil {
				continue
			}
			if !found || loc[0] < bestAt {
				best = finding{state: p.state, text: clean(v.text[loc[0]:loc[1]])}
				bestAt, found = loc[0], true
			}
		}
		return best, found
	}
}

// cityStateScan matches a capitalised place name followed by an allowed
// state, e.g. "Hagerstown, MD"
func (r *Resolver) cityStateScan() strategy.Func[*view, finding] {
	if r.allowed.Len() == 0 {
		return func(*view) (finding, bool) { return finding{}, false }
	}
	re := regexp.MustCompile(`([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)[,\s]+(` + r.allowed.Alternation() + `)\b`)
	return func(v *view) (finding, bool) {
		for _, m := range re.FindAllStringSubmatch(v.text, -1) {
			code, ok := jurisdiction.Normalize(m[2])
			if ok && r.allowed.Allows(code) {
				return finding{state: code, text: clean(m[0])}, true
			}
		}
		return finding{}, false
	}
}

// bareScan finds an allowed state token that is not part of a longer word
func (r *Resolver) bareScan() strategy.Func[*view, finding] {
	type bare struct {
		state string
		re    *regexp.Regexp
	}
	var patterns []bare
	for _, code := range r.allowed.Codes() {
		re := regexp.MustCompile(`[^A-Za-z](` + code + `|(?i:` + regexp.QuoteMeta(jurisdiction.Name(code)) + `))[^A-Za-z]`)
		patterns = append(patterns, bare{state: code, re: re})
	}
	return func(v *view) (finding, bool) {
		padded := " " + v.text + " "
		best, found := finding{}, false
		bestAt := -1
		for _, p := range patterns {
			loc := p.re.FindStringSubmatchIndex(padded)
			if loc == nil {
				continue
			}
			if !found || loc[2] < bestAt {
				best = finding{state: p.state, text: padded[loc[2]:loc[3]]}
				bestAt, found = loc[2], true
			}
		}
		return best, found
	}
}

// afterLabel reads the value after each occurrence of label in s and returns
// the first that names a state. A label alone on its line takes the next
// line as its value unless that line carries a label of its own.
func afterLabel(label *regexp.Regexp, s string) (finding, bool) {
	for _, loc := range label.FindAllStringIndex(s, -1) {
		rest := s[loc[1]:]
		value := strings.TrimLeft(firstLine(rest), valueLead)
		if value == "" {
			if i := strings.IndexByte(rest, '\n'); i >= 0 {
				if next := strings.TrimSpace(firstLine(rest[i+1:])); !ownLabel.MatchString(next) {
					value = next
				}
			}
		}
		if f, ok := inValue(value); ok {
			return f, true
		}
	}
	return finding{}, false
}

// inValue finds the first state named in a label value
func inValue(value string) (finding, bool) {
	value = clean(value)
	if value == "" {
		return finding{}, false
	}
	m, ok := jurisdiction.FindFirst(value)
	if !ok {
		return finding{}, false
	}
	return finding{state: m.Code, text: value}, true
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// clean normalizes a location text for output
func clean(s string) string {
	s = countrySuffix.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, " ,;|/-")
	if r := []rune(s); len(r) > maxTextLen {
		s = strings.TrimSpace(string(r[:maxTextLen]))
	}
	return s
}
