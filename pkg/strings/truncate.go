package strings

import (
	"strings"
)

// DefaultMessageMaxLen bounds error excerpts printed next to a test line.
const DefaultMessageMaxLen = 160

// ellipsis marks a shortened string.
const ellipsis = "…"

// Truncate flattens s onto one line and cuts it to at most maxLen runes,
// ending in "…" when shortened. Backend error bodies often carry stack
// traces or HTML, which would otherwise break the console layout.
func Truncate(s string, maxLen int) string {
	if maxLen < 2 {
		maxLen = 2
	}
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return strings.TrimRight(string(runes[:maxLen-1]), " ") + ellipsis
}
