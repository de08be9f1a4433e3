// Package utils holds tiny cross-layer helpers that carry no domain
// knowledge.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 integer and falls back to def when s is
// empty or malformed. Handlers use it for optional numeric query parameters
// such as ?limit=.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
