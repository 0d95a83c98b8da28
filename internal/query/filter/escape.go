package filter

import "strings"

// specialChars are the query-syntax characters that must be backslash-escaped
// inside a term. Whitespace is escaped as well so a value stays one term.
const specialChars = `\+-!():^[]"{}~*?|&/ ` + "\t\n"

// Escape backslash-escapes query-syntax characters in a term value.
func Escape(value string) string {
	if !strings.ContainsAny(value, specialChars) {
		return value
	}
	var sb strings.Builder
	sb.Grow(len(value) + 8)
	for _, r := range value {
		if strings.ContainsRune(specialChars, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Unescape reverses Escape.
func Unescape(value string) string {
	if !strings.Contains(value, `\`) {
		return value
	}
	var sb strings.Builder
	sb.Grow(len(value))
	escaped := false
	for _, r := range value {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		sb.WriteRune(r)
	}
	return sb.String()
}
