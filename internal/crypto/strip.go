package crypto

import (
	"strings"

	"golang.org/x/net/html"
)

// StripTags drops tags, comments and doctypes from s and keeps text content
// exactly as typed. Entities are not decoded, with or without markup around them.
func StripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Raw())
		}
	}
}
