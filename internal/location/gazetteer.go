package location

import (
	"regexp"
	"strings"

	"github.com/law-makers/lotscout/internal/jurisdiction"
)

// cities with Copart yards or heavy listing volume, per jurisdiction
var gazetteer = map[string][]string{
	"MD": {"Baltimore", "Annapolis", "Frederick", "Rockville", "Gaithersburg", "Columbia",
		"Germantown", "Waldorf", "Laurel", "Bethesda", "Silver Spring", "Wheaton"},
	"NJ": {"Newark", "Jersey City", "Paterson", "Elizabeth", "Edison", "Woodbridge",
		"Lakewood", "Toms River", "Hamilton", "Trenton", "Clifton", "Camden"},
	"DC": {"Washington", "District"},
	"NY": {"New York", "Albany", "Buffalo", "Rochester", "Syracuse", "Yonkers",
		"Utica", "White Plains", "Hempstead", "Troy", "Binghamton", "Freeport"},
}

type cityPattern struct {
	state string
	re    *regexp.Regexp
}

// cityPatterns builds "City, ST" matchers for the allowed jurisdictions that
// have gazetteer entries, in set order
func cityPatterns(allowed jurisdiction.Set) []cityPattern {
	var out []cityPattern
	for _, code := range allowed.Codes() {
		cities, ok := gazetteer[code]
		if !ok {
			continue
		}
		quoted := make([]string, len(cities))
		for i, c := range cities {
			quoted[i] = regexp.QuoteMeta(c)
		}
		sep := `[,\s]+`
		if code == "DC" {
			sep = `[,\s]*`
		}
		states := code + "|" + regexp.QuoteMeta(jurisdiction.Name(code))
		re := regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)` + sep + `(?:` + states + `)\b`)
		out = append(out, cityPattern{state: code, re: re})
	}
	return out
}
