// Package strings holds text helpers for log lines built from MCP server output.
package strings

import (
	"strings"
)

// DefaultDescriptionMaxLen is the length log lines cut server-provided text to.
const DefaultDescriptionMaxLen = 60

// MinTruncateLen is the smallest maxLen honoured by TruncateDescription.
const MinTruncateLen = 4

// TruncateDescription collapses all whitespace in s to single spaces and cuts the
// result to at most maxLen runes, ending in "..." when cut.
func TruncateDescription(s string, maxLen int) string {
	maxLen = max(maxLen, MinTruncateLen)

	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
