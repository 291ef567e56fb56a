package textutil

import "unicode/utf8"

const ellipsis = "..."

// Shorten truncates value to at most max runes, ending with "..." when cut.
func Shorten(value string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(value) <= max {
		return value
	}
	runes := []rune(value)
	if max <= len(ellipsis) {
		return string(runes[:max])
	}
	return string(runes[:max-len(ellipsis)]) + ellipsis
}

// ShortHash keeps the first and last six characters of a digest.
func ShortHash(digest string) string {
	const keep = 6
	if len(digest) <= 2*keep {
		return digest
	}
	return digest[:keep] + ellipsis + digest[len(digest)-keep:]
}
