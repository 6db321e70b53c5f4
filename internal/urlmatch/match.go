// Package urlmatch extracts and validates URLs from free-form chat text.
//
// Matching is two-stage: a broad scan finds the first http(s) substring
// (cheap, tolerant of the junk that surrounds links in chat), then a
// strict shape check rejects matches with no real host before they ever
// reach the downloader.
package urlmatch

import "regexp"

// Verdict is the result of scanning a message for a URL.
type Verdict int

const (
	Absent  Verdict = iota // no http(s) substring in the text
	Invalid                // substring found but fails the strict check
	Valid
)

func (v Verdict) String() string {
	switch v {
	case Absent:
		return "absent"
	case Invalid:
		return "invalid"
	case Valid:
		return "valid"
	default:
		return "unknown"
	}
}

var (
	// scanPattern finds candidate URLs: scheme plus any run of
	// non-whitespace. Leftmost match wins.
	scanPattern = regexp.MustCompile(`https?://\S+`)

	// strictPattern requires a host of word chars/hyphens/dots with at
	// least one dot and a 2+ letter top-level label, optionally
	// followed by a path.
	strictPattern = regexp.MustCompile(`^https?://[\w\-.]+\.[a-zA-Z]{2,}(/\S*)?$`)
)

// Find returns the first URL-shaped substring of text and its verdict.
// The returned string is empty when the verdict is Absent.
func Find(text string) (string, Verdict) {
	candidate := scanPattern.FindString(text)
	if candidate == "" {
		return "", Absent
	}
	if !strictPattern.MatchString(candidate) {
		return candidate, Invalid
	}
	return candidate, Valid
}

// IsValid applies only the strict shape check. Pure and deterministic:
// re-checking an already valid URL yields the same answer.
func IsValid(url string) bool {
	return strictPattern.MatchString(url)
}
