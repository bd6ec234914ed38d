package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/law-makers/lotscout/internal/strategy"
	"github.com/law-makers/lotscout/internal/utils/text"
	"github.com/law-makers/lotscout/pkg/models"
)

// MaxDetailOdometer bounds readings taken from detail pages
const MaxDetailOdometer = 200000

// detail is a parsed lot page
type detail struct {
	page *models.Page
	doc  *goquery.Document
	text string
}

func newDetail(page *models.Page) *detail {
	d := &detail{page: page, text: page.Text}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML)); err == nil {
		d.doc = doc
		if d.text == "" {
			d.text = text.Document(doc)
		}
	}
	return d
}

// supplement fills one field when it is still missing
type supplement struct {
	name string
	run  func(rec *models.VehicleRecord, d *detail)
}

var (
	yearLabel   = regexp.MustCompile(`(?i)\bYear\b`)
	yearValue   = regexp.MustCompile(`(?i)Year[:\s]+(\d{4})`)
	leadingYear = regexp.MustCompile(`^\s*(\d{4})\b`)

	damageKeywords = []string{"primary damage", "damage type", "damage"}
	damageTail     = regexp.MustCompile(`(?i)\s*(estimated retail value|secondary damage).*`)

	odometerKeywords = []string{"Odometer Reading", "Odometer", "Mileage", "Miles"}
	odometerSource   = []*regexp.Regexp{
		regexp.MustCompile(`(?i)odometer[:\s]+(\d{1,3}[,\d]*)\s*(?:miles?|mi)\b`),
		regexp.MustCompile(`(?i)(\d{1,3}[,\d]*)\s*(?:miles?|mi)\s*odometer`),
		regexp.MustCompile(`(?i)mileage[:\s]+(\d{1,3}[,\d]*)\s*(?:miles?|mi)\b`),
		regexp.MustCompile(`(?i)(\d{1,3}[,\d]*)\s*(?:miles?|mi)\s*mileage`),
	}
	odometerBody = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d{1,3}[,\d]*)\s*(?:miles?|mi)\s*(?:on|odometer|mileage)\b`),
		regexp.MustCompile(`(?i)\b(?:on|odometer|mileage)[:\s]+(\d{1,3}[,\d]*)\s*(?:miles?|mi)\b`),
	}

	detailBid = []*regexp.Regexp{
		regexp.MustCompile(`(?i)current bid[:\s]+\$?([\d,]+)`),
		regexp.MustCompile(`(?i)\bbid[:\s]+\$?([\d,]+)`),
	}
)

// Supplement fills fields the search page left unknown from the lot's
// detail page. Fields already known are not touched.
func (e *Extractor) Supplement(rec *models.VehicleRecord, page *models.Page) {
	if rec == nil || page == nil {
		return
	}
	d := newDetail(page)
	for _, s := range e.supplements {
		s.run(rec, d)
	}
}

func (e *Extractor) buildSupplements() []supplement {
	years := strategy.List[*detail, int]{
		{Name: "label", Run: e.yearFromLabels},
		{Name: "title", Run: e.yearFromTitle},
		{Name: "keyword", Run: func(d *detail) (int, bool) {
			for _, kw := range []string{"Model Year", "Vehicle Year", "Lot Year"} {
				re := regexp.MustCompile(`(?i)` + kw + `[:\s]+(\d{4})`)
				if y, ok := e.yearIn(re, d.text); ok {
					return y, true
				}
			}
			return 0, false
		}},
		{Name: "any", Run: func(d *detail) (int, bool) { return e.yearIn(textYear, d.text) }},
	}
	odometers := strategy.List[*detail, int]{
		{Name: "label", Run: odometerFromLabels},
		{Name: "source", Run: func(d *detail) (int, bool) { return firstMileage(odometerSource, d.page.HTML) }},
		{Name: "body", Run: func(d *detail) (int, bool) { return firstMileage(odometerBody, d.text) }},
	}

	return []supplement{
		{name: "year", run: func(rec *models.VehicleRecord, d *detail) {
			if rec.Year != nil {
				return
			}
			if y, ok := years.Value(d); ok {
				rec.Year = &y
			}
		}},
		{name: "damage", run: func(rec *models.VehicleRecord, d *detail) {
			if rec.Damage != models.Unknown {
				return
			}
			if v, ok := damageFromText(d.text); ok {
				rec.Damage = v
			}
		}},
		{name: "odometer", run: func(rec *models.VehicleRecord, d *detail) {
			if rec.Odometer != nil {
				return
			}
			if n, ok := odometers.Value(d); ok {
				rec.Odometer = &n
			}
		}},
		{name: "bid", run: func(rec *models.VehicleRecord, d *detail) {
			if rec.CurrentBid != nil {
				return
			}
			if n, ok := parseBid(d.text, detailBid); ok && n > 0 {
				rec.CurrentBid = &n
			}
		}},
		{name: "countdown", run: func(rec *models.VehicleRecord, d *detail) {
			if rec.AuctionCountdown != models.Unknown {
				return
			}
			if v, ok := ParseCountdown(d.text); ok {
				rec.AuctionCountdown = v
			}
		}},
		{name: "title", run: func(rec *models.VehicleRecord, d *detail) {
			if rec.TitleStatus != models.Unknown {
				return
			}
			if !salvage.MatchString(d.text) && !salvage.MatchString(d.page.HTML) {
				return
			}
			if v, ok := ParseTitle(d.text); ok {
				rec.TitleStatus = v
			} else if v, ok := ParseTitle(d.page.HTML); ok {
				rec.TitleStatus = v
			}
		}},
	}
}

func (e *Extractor) yearFromLabels(d *detail) (int, bool) {
	for _, ctx := range text.Labels(d.doc, yearLabel) {
		if y, ok := e.yearIn(yearValue, ctx.Parent); ok {
			return y, true
		}
		if y, ok := e.yearIn(leadingYear, ctx.Sibling); ok {
			return y, true
		}
	}
	return 0, false
}

func (e *Extractor) yearFromTitle(d *detail) (int, bool) {
	if y, ok := e.yearIn(e.titleYear, d.page.Title); ok {
		return y, true
	}
	if d.doc != nil {
		var found int
		d.doc.Find("h1, h2, h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if y, ok := e.yearIn(e.titleYear, s.Text()); ok {
				found = y
				return false
			}
			return true
		})
		if found != 0 {
			return found, true
		}
	}
	return e.yearIn(e.titleYear, d.text)
}

func damageFromText(s string) (string, bool) {
	for _, kw := range damageKeywords {
		re := regexp.MustCompile(`(?i)\b` + kw + `[: \t]*(?:\n[ \t]*)?([A-Za-z][A-Za-z /]*)`)
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		v := strings.Join(strings.Fields(m[1]), " ")
		v = strings.TrimSpace(damageTail.ReplaceAllString(v, ""))
		if len(v) > 2 {
			return v, true
		}
	}
	return "", false
}

func odometerFromLabels(d *detail) (int, bool) {
	for _, kw := range odometerKeywords {
		label := regexp.MustCompile(`(?i)` + kw)
		value := regexp.MustCompile(`(?i)` + kw + `[:\s]+(\d{1,3}[,\d]*)`)
		for _, ctx := range text.Labels(d.doc, label) {
			for _, s := range []string{ctx.Parent, ctx.Grandparent} {
				if n, ok := mileage(value, s); ok {
					return n, true
				}
			}
		}
	}
	return 0, false
}

func firstMileage(patterns []*regexp.Regexp, s string) (int, bool) {
	for _, re := range patterns {
		if n, ok := mileage(re, s); ok {
			return n, true
		}
	}
	return 0, false
}

// mileage parses the first capture of re and applies the detail-page
// sanity range
func mileage(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || n < 0 || n > MaxDetailOdometer {
		return 0, false
	}
	return n, true
}
