// Package strings provides small string-slice utilities shared by the
// configuration layer.
package strings

import "strings"

// DedupeAndTrim trims whitespace from each element and drops empty strings
// and repeats. First-occurrence order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
