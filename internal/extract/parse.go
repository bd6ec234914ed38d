package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/law-makers/lotscout/internal/strategy"
)

type odometerPattern struct {
	re    *regexp.Regexp
	kilos bool
}

// ordered from most to least specific
var odometerPatterns = []odometerPattern{
	{re: regexp.MustCompile(`(?i)Odometer[:\s]*(\d{1,3}[,\d]*)\s*(?:miles?|mi)?\b`)},
	{re: regexp.MustCompile(`(?i)(\d{1,3}[,\d]*)\s*(?:miles?|mi)\s*(?:on|odometer)\b`)},
	{re: regexp.MustCompile(`(?i)(\d{1,3}[,\d]*(?:\.\d+)?)\s*k\s*miles?\b`), kilos: true},
	{re: regexp.MustCompile(`(?i)(\d{1,3}[,\d]*)\s*(?:miles?|mi)\b`)},
	{re: regexp.MustCompile(`(?i)Mileage[:\s]*(\d{1,3}[,\d]*)`)},
}

// ParseOdometer reads a mileage figure out of free text. Commas are ignored
// and a "k" suffix multiplies by 1000.
func ParseOdometer(text string) (int, bool) {
	for _, p := range odometerPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], ",", "")
		if p.kilos {
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			return int(f * 1000), true
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			continue
		}
		return n, true
	}
	return 0, false
}

var bidPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Current\s+Bid[:\s]+\$?([\d,]+)`),
	regexp.MustCompile(`(?i)Bid[:\s]+\$?([\d,]+)`),
	regexp.MustCompile(`\$([\d,]+)`),
}

// ParseBid reads a whole-dollar bid amount
func ParseBid(text string) (int64, bool) {
	return parseBid(text, bidPatterns)
}

func parseBid(text string, patterns []*regexp.Regexp) (int64, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
		if err == nil {
			return n, true
		}
	}
	return 0, false
}

var countdownPatterns = strategy.Of(
	submatch(regexp.MustCompile(`(?i)(\d+\s*(?:d|days?)\s+\d+\s*(?:h|hours?)\s+\d+\s*(?:min|minutes?))`)),
	submatch(regexp.MustCompile(`(?i)(\d+\s*(?:h|hours?)\s+\d+\s*(?:min|minutes?))`)),
	submatch(regexp.MustCompile(`(?i)(\d{1,2}:\d{2}:\d{2})\s*(?:left|remaining)`)),
)

// ParseCountdown finds a time-to-sale expression such as "1d 4h 12min"
func ParseCountdown(text string) (string, bool) {
	return countdownPatterns.Value(text)
}

var titlePatterns = strategy.Of(
	constant(regexp.MustCompile(`(?i)title[:\s]+(?:type[:\s]+)?salvage`), "Salvage"),
	constant(regexp.MustCompile(`(?i)salvage\s+title`), "Salvage"),
)

// ParseTitle recognises salvage title wording
func ParseTitle(text string) (string, bool) {
	return titlePatterns.Value(text)
}

// submatch returns the trimmed first capture group of re
func submatch(re *regexp.Regexp) strategy.Func[string, string] {
	return func(s string) (string, bool) {
		m := re.FindStringSubmatch(s)
		if m == nil {
			return "", false
		}
		v := strings.TrimSpace(m[1])
		return v, v != ""
	}
}

func constant(re *regexp.Regexp, value string) strategy.Func[string, string] {
	return func(s string) (string, bool) {
		return value, re.MatchString(s)
	}
}

// clip trims s and caps it at n runes
func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > n {
		s = strings.TrimSpace(string(r[:n]))
	}
	return s
}
