// Package geocode holds the address heuristics used to resolve a query:
// normalization, decomposition, query variants, country filtering and
// candidate scoring. Nothing in here performs I/O.
package geocode

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripDiacritics removes combining marks (NFD decomposition) keeping case
func StripDiacritics(s string) string {
	out, _, err := transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		s,
	)
	if err != nil {
		return s
	}
	return out
}

// Normalize lowercases, trims and strips diacritics.
// Every string comparison in the resolver goes through it.
func Normalize(s string) string {
	return StripDiacritics(strings.TrimSpace(strings.ToLower(s)))
}

// matchesEither reports whether a and b are equal or one contains the other.
// Both must already be normalized; empty strings never match.
func matchesEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}
