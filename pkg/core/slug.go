package core

import (
	"strings"
	"unicode"
)

// Slugify derives a URL-safe identifier from a title. The result is lowercase
// ASCII: whitespace runs become a single underscore and anything outside
// [a-z0-9._-] is dropped, so "Café Notes" becomes "caf_notes".
func Slugify(title string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsSpace(r):
			pendingSep = b.Len() > 0
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			if pendingSep {
				b.WriteByte('_')
				pendingSep = false
			}
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "_")
}
