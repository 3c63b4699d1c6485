package services

import (
	"strings"
	"unicode"
)

// NormalizeName canonicalizes a card name for equality comparison.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeNumber canonicalizes a card number for equality comparison.
// Internal whitespace is removed so "12 A" and "12a" compare equal.
func NormalizeNumber(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
