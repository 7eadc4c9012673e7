package domain

import "strings"

// trimCollapse trims surrounding whitespace and collapses internal runs
// of whitespace to single spaces.
func trimCollapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
