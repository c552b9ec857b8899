// Package strings holds string helpers shared by the CLI and the flow
// packages.
package strings

import (
	"strings"
)

// DefaultDescriptionMaxLen bounds provider-supplied text such as an
// error_description before it is logged.
const DefaultDescriptionMaxLen = 120

// MinTruncateLen is the smallest maxLen TruncateDescription honours.
const MinTruncateLen = 4

// TruncateDescription collapses all whitespace in s to single spaces and
// shortens the result to maxLen runes, ending it with "..." when cut.
// maxLen is clamped to MinTruncateLen.
func TruncateDescription(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
