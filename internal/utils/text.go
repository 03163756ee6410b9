package utils

import "unicode/utf8"

// Truncate keeps at most n runes of s and appends suffix when anything was
// cut. It never splits a multi-byte character.
func Truncate(s string, n int, suffix string) string {
	if n < 0 {
		n = 0
	}
	if len(s) <= n || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := 0
	for i := range s {
		if runes == n {
			return s[:i] + suffix
		}
		runes++
	}
	return s
}
