package domain

import (
	"strings"
)

// NormalizeTitle derives the staging/production dedup key from a meaning
// title:
//   - trims leading/trailing whitespace
//   - converts to lowercase
//   - compresses multiple spaces into one
//
// Diacritics, hyphens, and apostrophes are preserved. Full text cleanup is
// an upstream concern; this only has to be stable for key comparison.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	title = strings.ToLower(title)

	// Compress multiple spaces into one.
	var b strings.Builder
	b.Grow(len(title))
	prevSpace := false
	for _, r := range title {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
