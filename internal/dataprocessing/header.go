package dataprocessing

import "strings"

// headerScanLimit bounds how far down a file the header row may sit.
// Exports often carry a title or a "report date" line above it.
const headerScanLimit = 15

// FindHeaderRow returns the index of the line that best matches the keyword
// groups. A line scores one point per group with at least one alias
// contained in at least one of its normalized fields. Only the first
// headerScanLimit lines are considered and ties keep the earliest line.
func FindHeaderRow(lines []string, groups [][]string) int {
	best, bestScore := 0, -1
	limit := min(len(lines), headerScanLimit)
	for i := 0; i < limit; i++ {
		fields := normalizeHeaders(SplitLine(lines[i]))
		score := 0
		for _, group := range groups {
			if matchesAny(fields, group) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func matchesAny(fields, aliases []string) bool {
	for _, alias := range aliases {
		for _, f := range fields {
			if strings.Contains(f, alias) {
				return true
			}
		}
	}
	return false
}

// findColumn returns the first index whose normalized header contains any
// alias, or -1.
func findColumn(headers, aliases []string) int {
	for i, h := range headers {
		for _, alias := range aliases {
			if strings.Contains(h, alias) {
				return i
			}
		}
	}
	return -1
}
