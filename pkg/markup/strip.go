// Package markup turns lightly marked-up text into plain display text.
package markup

import (
	"regexp"
	"strings"
)

var (
	boldStars       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	boldUnderscores = regexp.MustCompile(`__(.+?)__`)
	italicStar      = regexp.MustCompile(`\*([^*]+)\*`)
	italicUnder     = regexp.MustCompile(`\b_([^_]+)_\b`)
	inlineCode      = regexp.MustCompile("`([^`]*)`")
	link            = regexp.MustCompile(`(^|[^!])\[([^\]]*)\]\([^)]*\)`)
	image           = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	edgeUnderscores = regexp.MustCompile(`(^|\s)_+|_+(\s|$)|_{2,}`)
	heading         = regexp.MustCompile(`(?m)^[ \t]*(#{1,6}[ \t]+)+`)
	tag             = regexp.MustCompile(`<[^>]*>`)
	residue         = strings.NewReplacer("*", "", "`", "", "[", "", "]", "", "<", "", ">", "")
)

// Strip removes bold, italic, inline-code, link, image, heading and HTML tag
// markup, keeping the visible text, and collapses whitespace.
//
// It is total and idempotent: the rules are re-applied until the text stops
// changing, so Strip(Strip(s)) == Strip(s).
func Strip(s string) string {
	for {
		next := pass(s)
		if next == s {
			return next
		}
		s = next
	}
}

func pass(s string) string {
	s = boldStars.ReplaceAllString(s, "$1")
	s = boldUnderscores.ReplaceAllString(s, "$1")
	s = italicStar.ReplaceAllString(s, "$1")
	s = italicUnder.ReplaceAllString(s, "$1")
	s = inlineCode.ReplaceAllString(s, "$1")
	for {
		next := link.ReplaceAllString(s, "$1$2")
		if next == s {
			break
		}
		s = next
	}
	s = image.ReplaceAllString(s, "$1")
	s = edgeUnderscores.ReplaceAllString(s, "$1$2")
	s = heading.ReplaceAllString(s, "")
	s = tag.ReplaceAllString(s, "")
	s = residue.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
