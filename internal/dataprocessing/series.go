package dataprocessing

import (
	"strings"
	"unicode/utf8"

	"cotpulse/pkg/contracts/domain"
)

var (
	seriesHeaderGroups = [][]string{{"commodity", "asset", "market"}}
	seriesNameAliases  = []string{"commodity", "asset", "market", "instrument", "name"}

	// Headers containing any of these describe a summary column rather
	// than a week.
	seriesMetadata = []string{"high", "low", "range", "average", "change", "%", "chg", "volatility", "openinterest"}
)

// ParseSeries reads a historical export (one row per asset, one column per
// week) into series records. Week columns are discovered once from the
// header row; summary columns such as "52W High" or "Change" are skipped.
func ParseSeries(text string) []domain.SeriesRecord {
	lines := splitLines(text)
	if len(lines) < 2 {
		return []domain.SeriesRecord{}
	}

	headerRow := FindHeaderRow(lines, seriesHeaderGroups)
	rawHeaders := SplitLine(lines[headerRow])
	nameCol := max(findColumn(normalizeHeaders(rawHeaders), seriesNameAliases), 0)
	weekCols := weekColumns(rawHeaders, nameCol)

	records := make([]domain.SeriesRecord, 0, len(lines)-headerRow-1)
	for _, line := range lines[headerRow+1:] {
		fields := SplitLine(line)
		name, ok := assetName(fields, nameCol)
		if !ok {
			continue
		}

		weeks := make([]domain.WeekEntry, 0, len(weekCols))
		for _, idx := range weekCols {
			label := strings.ReplaceAll(rawHeaders[idx], `"`, "")
			if strings.TrimSpace(label) == "" {
				continue
			}
			raw := cell(fields, idx)
			weeks = append(weeks, domain.WeekEntry{Label: label, Raw: raw, Value: ParseValue(raw)})
		}
		records = append(records, domain.SeriesRecord{Commodity: name, Weeks: weeks})
	}
	return records
}

// weekColumns returns every column other than nameCol that looks like a
// dated observation.
func weekColumns(rawHeaders []string, nameCol int) []int {
	var cols []int
	for i, h := range rawHeaders {
		if i == nameCol || utf8.RuneCountInString(h) <= 2 || isSeriesMetadata(h) {
			continue
		}
		cols = append(cols, i)
	}
	return cols
}

func isSeriesMetadata(header string) bool {
	lower := strings.ToLower(header)
	for _, k := range seriesMetadata {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
