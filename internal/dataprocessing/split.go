package dataprocessing

import (
	"strings"
	"unicode/utf8"
)

// splitLines breaks raw text into lines on LF or CRLF and drops lines that
// are empty or whitespace only.
func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSuffix(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// SplitLine splits one CSV line into trimmed fields. Commas inside a
// double-quoted span are kept; every quote character toggles the quoted
// state and is dropped. Embedded quotes cannot be escaped. Bytes are copied
// as is, so non-UTF-8 exports keep their original text.
func SplitLine(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)
	for i := 0; i < len(line); i++ {
		switch c := line[i]; {
		case c == '"':
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	return append(fields, strings.TrimSpace(current.String()))
}

var headerNoise = strings.NewReplacer(`"`, "", ".", "", "_", "", "-", "")

// normalizeHeader lower-cases a header cell and removes quotes, whitespace,
// periods, underscores and hyphens so "Net Pos." and "net_pos" compare equal.
func normalizeHeader(h string) string {
	h = headerNoise.Replace(strings.ToLower(h))
	return strings.Join(strings.Fields(h), "")
}

func normalizeHeaders(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = normalizeHeader(f)
	}
	return out
}

// cell returns the raw text at idx, or "0" when idx is unresolved, outside
// the row, or empty.
func cell(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) || fields[idx] == "" {
		return "0"
	}
	return fields[idx]
}

// assetName strips quotes from a commodity cell and reports whether the row
// should be kept. Footer and attribution lines ("Downloaded from
// Barchart.com") and names shorter than two characters are rejected.
func assetName(fields []string, idx int) (string, bool) {
	if idx >= len(fields) {
		return "", false
	}
	name := strings.ReplaceAll(fields[idx], `"`, "")
	lower := strings.ToLower(name)
	if strings.Contains(lower, "downloaded") || strings.Contains(lower, "barchart") {
		return "", false
	}
	// Counted in characters, so a single emoji is one character and rejected.
	if utf8.RuneCountInString(name) < 2 {
		return "", false
	}
	return name, true
}
