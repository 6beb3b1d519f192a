package analyzer

import (
	"regexp"
	"strings"
)

// MinContentLength is the minimum number of non-whitespace-trimmed characters
// a document must contain to be worth analyzing.
const MinContentLength = 10

// InsufficientTextSummary is the canned summary used when a document is too
// short for analysis. Short input degrades, it never fails.
const InsufficientTextSummary = "Document contains insufficient text for analysis."

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	// Keep word characters, whitespace and the punctuation that carries
	// meaning in legal text; everything else is stripped.
	unsafeCharRE = regexp.MustCompile(`[^\w\s.,;:!?\-()\[\]{}]`)
)

// Normalize cleans raw extracted text into the canonical form the rest of the
// pipeline operates on: whitespace runs collapse to a single space, characters
// outside the legal-text-safe set are removed, and the result is trimmed.
// The second return value is false when the input is too short for meaningful
// analysis; callers should short-circuit with a degraded result rather than
// treat that as an error.
func Normalize(raw string) (string, bool) {
	if len(strings.TrimSpace(raw)) < MinContentLength {
		return "", false
	}

	text := whitespaceRE.ReplaceAllString(raw, " ")
	text = unsafeCharRE.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.TrimSpace(text)

	if len(text) < MinContentLength {
		return "", false
	}
	return text, true
}
