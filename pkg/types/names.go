package types

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxNameLength bounds player and room display names, in runes.
const MaxNameLength = 32

// CleanName normalises a display name to NFC, drops control characters,
// trims surrounding space and truncates it to MaxNameLength runes. Composed
// and decomposed spellings of the same name (common with Hangul input)
// compare equal afterwards.
func CleanName(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > MaxNameLength {
		s = strings.TrimSpace(string(r[:MaxNameLength]))
	}
	return s
}
