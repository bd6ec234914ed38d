// Package jurisdiction knows US state codes and names and the allowed set a
// deployment accepts listings from.
package jurisdiction

import (
	"regexp"
	"sort"
	"strings"
)

var states = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"DC": "District of Columbia", "FL": "Florida", "GA": "Georgia", "HI": "Hawaii",
	"ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
	"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine",
	"MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska",
	"NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico",
	"NY": "New York", "NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio",
	"OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island",
	"SC": "South Carolina", "SD": "South Dakota", "TN": "Tennessee", "TX": "Texas",
	"UT": "Utah", "VT": "Vermont", "VA": "Virginia", "WA": "Washington",
	"WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
}

// extra spellings that normalize to a code
var aliases = map[string]string{
	"WASHINGTON DC":  "DC",
	"WASHINGTON, DC": "DC",
}

// dotted abbreviations are folded before matching; lengths are preserved so
// match offsets stay valid against the original text
var dotted = strings.NewReplacer("D.C.", "DC  ", "d.c.", "DC  ")

var (
	nameToCode map[string]string
	// codes are matched case-sensitively so "in", "or", "me" in prose do not count
	codePattern *regexp.Regexp
	// names are matched case-insensitively, longest first
	namePattern *regexp.Regexp
)

func init() {
	nameToCode = make(map[string]string, len(states)+len(aliases))
	codes := make([]string, 0, len(states))
	names := make([]string, 0, len(states)+len(aliases))
	for code, name := range states {
		nameToCode[strings.ToUpper(name)] = code
		codes = append(codes, code)
		names = append(names, regexp.QuoteMeta(name))
	}
	for alias, code := range aliases {
		nameToCode[alias] = code
		names = append(names, regexp.QuoteMeta(alias))
	}
	sort.Strings(codes)
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	codePattern = regexp.MustCompile(`\b(` + strings.Join(codes, "|") + `)\b`)
	namePattern = regexp.MustCompile(`(?i)\b(` + strings.Join(names, "|") + `)\b`)
}

// Normalize returns the canonical 2-letter code for a code, name or alias.
func Normalize(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	up := strings.TrimSpace(dotted.Replace(strings.ToUpper(s)))
	if _, ok := states[up]; ok && len(up) == 2 {
		return up, true
	}
	code, ok := nameToCode[up]
	return code, ok
}

// Name returns the full name for a code
func Name(code string) string {
	return states[strings.ToUpper(code)]
}

// Match is a state token found in text
type Match struct {
	Code  string
	Start int
	Text  string
}

// FindFirst returns the earliest state token in text. Full names win over a
// code starting at the same offset.
func FindFirst(text string) (Match, bool) {
	text = dotted.Replace(text)
	var best Match
	found := false

	if loc := namePattern.FindStringSubmatchIndex(text); loc != nil {
		raw := text[loc[2]:loc[3]]
		if code, ok := Normalize(raw); ok {
			best = Match{Code: code, Start: loc[2], Text: raw}
			found = true
		}
	}
	if loc := codePattern.FindStringSubmatchIndex(text); loc != nil {
		if !found || loc[2] < best.Start {
			raw := text[loc[2]:loc[3]]
			best = Match{Code: raw, Start: loc[2], Text: raw}
			found = true
		}
	}
	return best, found
}

// FindAll returns every state token in text in order of appearance
func FindAll(text string) []Match {
	text = dotted.Replace(text)
	var out []Match
	for _, loc := range namePattern.FindAllStringSubmatchIndex(text, -1) {
		raw := text[loc[2]:loc[3]]
		if code, ok := Normalize(raw); ok {
			out = append(out, Match{Code: code, Start: loc[2], Text: raw})
		}
	}
	for _, loc := range codePattern.FindAllStringSubmatchIndex(text, -1) {
		raw := text[loc[2]:loc[3]]
		out = append(out, Match{Code: raw, Start: loc[2], Text: raw})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Set is an allowed jurisdiction set
type Set struct {
	codes map[string]struct{}
	order []string
}

// NewSet builds a Set from codes or names; unknown entries are ignored.
func NewSet(entries ...string) Set {
	s := Set{codes: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		code, ok := Normalize(e)
		if !ok {
			continue
		}
		if _, dup := s.codes[code]; dup {
			continue
		}
		s.codes[code] = struct{}{}
		s.order = append(s.order, code)
	}
	return s
}

// Allows reports whether code is in the set
func (s Set) Allows(code string) bool {
	_, ok := s.codes[strings.ToUpper(code)]
	return ok
}

// Codes returns the codes in configuration order
func (s Set) Codes() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of codes
func (s Set) Len() int {
	return len(s.order)
}

// Alternation returns a regexp alternation of the set's codes and names,
// longest first, for use inside larger patterns.
func (s Set) Alternation() string {
	var parts []string
	for _, code := range s.order {
		parts = append(parts, code, regexp.QuoteMeta(states[code]))
		for alias, c := range aliases {
			if c == code {
				parts = append(parts, regexp.QuoteMeta(alias))
			}
		}
	}
	sort.Slice(parts, func(i, j int) bool {
		if len(parts[i]) != len(parts[j]) {
			return len(parts[i]) > len(parts[j])
		}
		return parts[i] < parts[j]
	})
	return strings.Join(parts, "|")
}
