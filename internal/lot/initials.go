package lot

import (
	"strings"
	"unicode"
)

// FallbackInitials is returned for names that are empty after stripping
// whitespace.
const FallbackInitials = "XX"

// Initials derives the 2-character uppercase initials used in lot codes:
// first and last character of the whitespace-stripped name. Single-character
// names double the character; empty names yield FallbackInitials.
//
// The derivation is lossy on purpose (many names collapse to the same pair),
// which is why reconciliation returns candidate lists instead of a single
// resolved name.
func Initials(name string) string {
	cleaned := stripWhitespace(name)
	runes := []rune(cleaned)
	switch len(runes) {
	case 0:
		return FallbackInitials
	case 1:
		return strings.ToUpper(string([]rune{runes[0], runes[0]}))
	default:
		return strings.ToUpper(string([]rune{runes[0], runes[len(runes)-1]}))
	}
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
