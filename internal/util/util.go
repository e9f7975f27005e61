// Package util provides string helpers for the host command convention,
// where a double quote inside a quoted string is written twice.
package util

import "strings"

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// EscapeQuotes doubles every double quote. It is the inverse of FixEscapeQuotes.
func EscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

// Unquote trims surrounding whitespace and quotes, then unescapes inner quotes.
// Used for pipe-separated arguments, which may still be quoted by the host.
func Unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return FixEscapeQuotes(s[1 : len(s)-1])
	}
	return s
}
