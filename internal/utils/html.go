package utils

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CleanHTMLSummary strips markup from an RSS summary and collapses
// whitespace, clipping the result to limit runes.
func CleanHTMLSummary(s string, limit int) string {
	if s == "" {
		return ""
	}

	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))

	if limit > 0 {
		if r := []rune(s); len(r) > limit {
			return string(r[:limit])
		}
	}
	return s
}
