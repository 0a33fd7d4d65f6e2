// README: Airport recognition and same-airport matching for back-to-back turnarounds.
package eligibility

import (
	"strings"
	"unicode"
)

type airportGroup struct {
	code string
	// codes match as whole words in any case; upperCodes only when typed in capitals
	// because they collide with ordinary words ("San Clemente").
	codes      []string
	upperCodes []string
	phrases    []string
}

var airportGroups = []airportGroup{
	{code: "SNA", codes: []string{"sna"}, phrases: []string{"john wayne", "orange county airport"}},
	{code: "LAX", codes: []string{"lax"}, phrases: []string{"los angeles international", "los angeles airport", "los angeles intl"}},
	{code: "SAN", upperCodes: []string{"SAN"}, phrases: []string{"san diego international", "san diego airport", "san diego intl", "lindbergh field"}},
	{code: "LGB", codes: []string{"lgb"}, phrases: []string{"long beach airport", "long beach municipal", "long beach intl"}},
	{code: "ONT", codes: []string{"ont"}, phrases: []string{"ontario international", "ontario airport", "ontario intl"}},
}

// Places that share vocabulary with airports but are not airports.
var airportExclusions = []string{
	"border", "crossing", "san ysidro", "otay mesa", "tijuana",
	"cruise", "port of", "pier", "terminal island",
}

var genericAirportWords = []string{"airport", "international airport", "intl airport"}

func normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func containsPhrase(norm, phrase string) bool {
	return strings.Contains(" "+norm+" ", " "+phrase+" ")
}

func hasWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) {
		if f == word {
			return true
		}
	}
	return false
}

func excluded(norm string) bool {
	for _, x := range airportExclusions {
		if containsPhrase(norm, x) {
			return true
		}
	}
	return false
}

// AirportCode returns the canonical code of the airport named in location.
func AirportCode(location string) (string, bool) {
	norm := normalize(location)
	if norm == "" || excluded(norm) {
		return "", false
	}
	for _, g := range airportGroups {
		for _, c := range g.codes {
			if containsPhrase(norm, c) {
				return g.code, true
			}
		}
		for _, c := range g.upperCodes {
			if hasWord(location, c) {
				return g.code, true
			}
		}
		for _, p := range g.phrases {
			if containsPhrase(norm, p) {
				return g.code, true
			}
		}
	}
	return "", false
}

// IsAirport reports whether location describes an airport.
func IsAirport(location string) bool {
	if _, ok := AirportCode(location); ok {
		return true
	}
	norm := normalize(location)
	if norm == "" || excluded(norm) {
		return false
	}
	for _, w := range genericAirportWords {
		if containsPhrase(norm, w) {
			return true
		}
	}
	return false
}

// SameAirport reports whether a and b are the same airport, either written identically
// or resolving to the same canonical code ("LAX" and "Los Angeles Airport").
func SameAirport(a, b string) bool {
	if !IsAirport(a) || !IsAirport(b) {
		return false
	}
	if normalize(a) == normalize(b) {
		return true
	}
	ca, okA := AirportCode(a)
	cb, okB := AirportCode(b)
	return okA && okB && ca == cb
}
