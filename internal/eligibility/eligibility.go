// Package eligibility decides whether an extracted record is kept.
package eligibility

import (
	"regexp"
	"strings"

	"github.com/law-makers/lotscout/internal/jurisdiction"
	"github.com/law-makers/lotscout/pkg/models"
)

// Rejection reasons
const (
	ReasonLocation        = "location"
	ReasonTitle           = "title"
	ReasonOdometerMissing = "odometer_missing"
	ReasonOdometerCeiling = "odometer_ceiling"
	ReasonUpcomingSale    = "upcoming_sale"
)

var upcomingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)upcoming\s+auction`),
	regexp.MustCompile(`(?i)future\s+sale`),
	regexp.MustCompile(`(?i)scheduled\s+for\s+\d{4}`),
}

// Decision is the outcome for one record. Reason is empty when Eligible.
type Decision struct {
	Eligible bool
	Reason   string
}

// Filter holds the acceptance criteria
type Filter struct {
	allowed jurisdiction.Set
	ceiling int
}

// New returns a Filter accepting odometers strictly below ceiling
func New(allowed jurisdiction.Set, ceiling int) *Filter {
	return &Filter{allowed: allowed, ceiling: ceiling}
}

// Evaluate checks every predicate and reports the first that fails.
// visibleText is the text of the page the record was last confirmed on.
func (f *Filter) Evaluate(rec *models.VehicleRecord, visibleText string) Decision {
	switch {
	case rec == nil || !f.allowed.Allows(rec.LocationState):
		return reject(ReasonLocation)
	case !salvageTitle(rec):
		return reject(ReasonTitle)
	case rec.Odometer == nil:
		return reject(ReasonOdometerMissing)
	case *rec.Odometer >= f.ceiling:
		return reject(ReasonOdometerCeiling)
	case upcoming(visibleText) || upcoming(rec.SaleInfo):
		return reject(ReasonUpcomingSale)
	}
	return Decision{Eligible: true}
}

// IsEligible is Evaluate reduced to a bool
func (f *Filter) IsEligible(rec *models.VehicleRecord, visibleText string) bool {
	return f.Evaluate(rec, visibleText).Eligible
}

func reject(reason string) Decision {
	return Decision{Reason: reason}
}

// salvageTitle falls back to the lot URL, whose slug carries the title type
func salvageTitle(rec *models.VehicleRecord) bool {
	if strings.Contains(strings.ToLower(rec.TitleStatus), "salvage") {
		return true
	}
	return strings.Contains(strings.ToLower(rec.URL), "salvage")
}

func upcoming(s string) bool {
	for _, re := range upcomingPatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
