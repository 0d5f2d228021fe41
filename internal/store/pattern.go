package store

import "strings"

// globToLike converts a datapoint glob pattern to a SQL LIKE expression.
//
// "*" matches any run of characters and "?" matches a single character.
// LIKE metacharacters in the pattern are escaped with backslash; queries
// using the result must specify ESCAPE '\'.
func globToLike(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern))
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteByte('%')
		case '?':
			b.WriteByte('_')
		case '%', '_', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MatchGlob reports whether id matches a datapoint glob pattern.
// Only "*" is treated as a wildcard; all other characters match literally.
func MatchGlob(pattern, id string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == id
	}

	if !strings.HasPrefix(id, parts[0]) {
		return false
	}
	id = id[len(parts[0]):]

	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(id, part)
		if idx < 0 {
			return false
		}
		id = id[idx+len(part):]
	}

	last := parts[len(parts)-1]
	return last == "" || strings.HasSuffix(id, last)
}
