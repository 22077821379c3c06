package transcript

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	ellipsisRun    = regexp.MustCompile(`\.{3,}`)
	sentencePunct  = regexp.MustCompile(`([.!?])\s*`)
	ellipsisMarker = "\x00ellipsis\x00"
)

// NormalizeSpacing collapses whitespace runs and ensures a single space
// after sentence punctuation, preserving ellipses. The result is trimmed.
func NormalizeSpacing(text string) string {
	text = whitespaceRun.ReplaceAllString(text, " ")

	// Protect ellipses so the punctuation rule doesn't split them.
	text = ellipsisRun.ReplaceAllString(text, ellipsisMarker)
	text = sentencePunct.ReplaceAllString(text, "$1 ")
	text = strings.ReplaceAll(text, ellipsisMarker, "...")

	return strings.TrimSpace(text)
}
