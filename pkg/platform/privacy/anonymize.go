// Package privacy masks personal data before it reaches logs.
package privacy

import (
	"strings"
	"unicode/utf8"
)

// Anonymize keeps the first shown runes of word and masks the rest with '*'.
// Words no longer than shown are returned unchanged.
func Anonymize(word string, shown int) string {
	n := utf8.RuneCountInString(word)
	if n <= shown {
		return word
	}
	runes := []rune(word)
	return string(runes[:shown]) + strings.Repeat("*", n-shown)
}

// AnonymizeEmail masks the local part and the domain label of an address,
// leaving the top-level domain readable ("jane@example.org" -> "ja**@ex*****.org").
func AnonymizeEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return Anonymize(email, 2)
	}
	label, tld, hasTLD := strings.Cut(domain, ".")
	masked := Anonymize(local, 2) + "@" + Anonymize(label, 2)
	if hasTLD {
		masked += "." + tld
	}
	return masked
}
