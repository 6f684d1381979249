// Package tokenize derives the lowercase search tokens for a row of
// spreadsheet fields. Tokens exist only for indexed lookup; they are never
// displayed.
package tokenize

import (
	"sort"
	"strings"
)

// Fields lowercases every field value, splits it on runs of whitespace, and
// returns the union of the resulting fragments with duplicates collapsed.
// The slice is sorted so callers can compare token sets directly.
func Fields(fields map[string]string) []string {
	seen := make(map[string]struct{})
	for _, value := range fields {
		for _, token := range strings.Fields(strings.ToLower(value)) {
			seen[token] = struct{}{}
		}
	}

	tokens := make([]string, 0, len(seen))
	for token := range seen {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}
