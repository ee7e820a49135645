// Package strings provides string-slice normalization helpers.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// NormalizeSuffixes canonicalizes a list of domain suffixes: each entry is
// trimmed, lowercased, and given a leading dot, and duplicates and empties
// are dropped. Order is preserved.
//
// Example:
//
//	NormalizeSuffixes([]string{" .RW ", "co.rw", ".rw", ""})
//	// Returns: []string{".rw", ".co.rw"}
func NormalizeSuffixes(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		s := strings.ToLower(strings.TrimSpace(v))
		if s == "" || s == "." {
			continue
		}
		if !strings.HasPrefix(s, ".") {
			s = "." + s
		}
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			result = append(result, s)
		}
	}

	return result
}
