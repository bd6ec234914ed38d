package config

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/law-makers/lotscout/pkg/models"
)

// Default constants for application configuration
const (
	DefaultLogLevel          = "info"
	DefaultJSONLog           = false
	DefaultRenderer          = models.RendererChrome
	DefaultNavigationTimeout = 30 * time.Second
	DefaultSettle            = 1500 * time.Millisecond
	DefaultHeadless          = true
	DefaultRateLimitRPS      = 0.5
	DefaultRateLimitBurst    = 2
	DefaultLimit             = 20
	DefaultMileageCeiling    = 100000
	DefaultYearMin           = 2017
	DefaultYearMax           = 2023
	DefaultMake              = "Toyota"
	DefaultModel             = "Corolla"
	DefaultDetailPolicy      = models.DetailAlways
	DefaultScriptBudget      = 250 * time.Millisecond
	DefaultMaxImages         = 20
	DefaultFallbackCount     = 3
	DefaultPageCacheTTL      = 10 * time.Minute
	DefaultPageCacheBytes    = 64 * 1024 * 1024 // 64MB
	DefaultListenAddr        = ":8080"
	DefaultProxyCooldown     = 5 * time.Minute
)

// DefaultAllowedStates are the jurisdictions a lot may be located in
var DefaultAllowedStates = []string{"MD", "DC", "NJ", "NY"}

var (
	yardsMDDCNJ = []string{
		"DC - WASHINGTON DC",
		"MD - BALTIMORE",
		"MD - BALTIMORE EAST",
		"NJ - GLASSBORO EAST",
		"NJ - SOMERVILLE",
		"NJ - TRENTON",
	}
	yardsNY = []string{
		"NY - ALBANY",
		"NY - BUFFALO",
		"NY - NEW YORK",
		"NY - ROCHESTER",
		"NY - SYRACUSE",
	}
)

// DefaultQueries returns the two stock searches: salvage Corollas with
// front, rear or side damage at the MD/DC/NJ yards and at the NY yards.
func DefaultQueries() []models.Query {
	return []models.Query{
		{Name: "MD/DC/NJ", URL: SearchURL(DefaultMake, DefaultModel, DefaultYearMin, DefaultYearMax, yardsMDDCNJ)},
		{Name: "NY", URL: SearchURL(DefaultMake, DefaultModel, DefaultYearMin, DefaultYearMax, yardsNY)},
	}
}

type searchCriteria struct {
	Query          []string            `json:"query"`
	Filter         map[string][]string `json:"filter"`
	SearchName     string              `json:"searchName"`
	WatchListOnly  bool                `json:"watchListOnly"`
	FreeFormSearch bool                `json:"freeFormSearch"`
}

// SearchURL builds a Copart search-results URL for salvage-title lots of
// the given make, model and year range at the named yards.
func SearchURL(vehicleMake, vehicleModel string, yearMin, yearMax int, yards []string) string {
	filter := map[string][]string{
		"TITL": {"title_group_code:TITLEGROUP_S"},
		"MAKE": {`lot_make_desc:"` + strings.ToUpper(vehicleMake) + `"`},
		"MODL": {`manufacturer_model_desc:"` + strings.ToUpper(vehicleModel) + `"`},
		"PRID": {"damage_type_code:DAMAGECODE_FR", "damage_type_code:DAMAGECODE_RR", "damage_type_code:DAMAGECODE_SD"},
		"YEAR": {"lot_year:[" + strconv.Itoa(yearMin) + " TO " + strconv.Itoa(yearMax) + "]"},
		"FETI": {"lot_condition_code:CERT-D"},
	}
	if len(yards) > 0 {
		loc := make([]string, 0, len(yards))
		for _, y := range yards {
			loc = append(loc, `yard_name:"`+y+`"`)
		}
		filter["LOC"] = loc
	}

	criteria, _ := json.Marshal(searchCriteria{Query: []string{"*"}, Filter: filter})

	q := url.Values{}
	q.Set("free", "true")
	q.Set("query", "")
	q.Set("index", "0")
	q.Set("searchCriteria", string(criteria))
	return "https://www.copart.com/lotSearchResults?" + q.Encode()
}
