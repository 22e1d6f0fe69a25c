package notify

import (
	"strings"
	"unicode/utf8"
)

const (
	maskPrefix   = 6
	maskSuffix   = 4
	maskMinimum  = 10
	maskMarker   = "..."
	truncMarker  = "... (truncated)"
	MaxBodyChars = 1000
)

// Mask hides a credential for logging: the first 6 and last 4 characters
// survive around "...", and values of 10 characters or fewer become all '*'.
// Masking an already masked value returns it unchanged.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	r := []rune(secret)
	if len(r) <= maskMinimum {
		return strings.Repeat("*", len(r))
	}
	return string(r[:maskPrefix]) + maskMarker + string(r[len(r)-maskSuffix:])
}

// Truncate keeps the first n characters of s and marks the cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + truncMarker
		}
		count++
	}
	return s
}
