package dataprocessing

import (
	"cotpulse/pkg/contracts/domain"
)

// ParseSnapshot reads a current-positions export into snapshot records.
//
// The header row is located by scoring the first lines against the role
// aliases, columns are resolved by ResolveColumns, and every later row whose
// commodity cell passes assetName becomes one record. Roles without a column
// read as "0". Input with fewer than two non-blank lines yields no records.
func ParseSnapshot(text string) []domain.SnapshotRecord {
	lines := splitLines(text)
	if len(lines) < 2 {
		return []domain.SnapshotRecord{}
	}
	headerRow, cols := snapshotHeader(lines)

	records := make([]domain.SnapshotRecord, 0, len(lines)-headerRow-1)
	for _, line := range lines[headerRow+1:] {
		fields := SplitLine(line)
		name, ok := assetName(fields, cols.Commodity)
		if !ok {
			continue
		}

		net := cell(fields, cols.NetPosition)
		netChg := cell(fields, cols.NetChange)
		long := cell(fields, cols.LongPosition)
		longChg := cell(fields, cols.LongChange)
		short := cell(fields, cols.ShortPosition)
		shortChg := cell(fields, cols.ShortChange)

		records = append(records, domain.SnapshotRecord{
			Commodity:      name,
			NetPositions:   net,
			NumNetPos:      ParseValue(net),
			NetChange:      netChg,
			NumNetChange:   ParseValue(netChg),
			LongPositions:  long,
			NumLong:        ParseValue(long),
			LongChange:     longChg,
			NumLongChange:  ParseValue(longChg),
			ShortPositions: short,
			NumShort:       ParseValue(short),
			ShortChange:    shortChg,
			NumShortChange: ParseValue(shortChg),
		})
	}
	return records
}

// Layout describes how ParseSnapshot reads a text: the header row it
// picked, that row's cells and the column of every role. Detected maps each
// role name to the header label it resolved to.
type Layout struct {
	HeaderRow int               `json:"header_row"`
	Headers   []string          `json:"headers"`
	Columns   ColumnRoleMap     `json:"columns"`
	Detected  map[string]string `json:"detected"`
}

// SnapshotLayout reports the layout ParseSnapshot would use for text. ok is
// false when the input is too short to parse.
func SnapshotLayout(text string) (Layout, bool) {
	lines := splitLines(text)
	if len(lines) < 2 {
		return Layout{}, false
	}
	row, cols := snapshotHeader(lines)
	headers := SplitLine(lines[row])

	detected := make(map[string]string, len(roleNames))
	for r := RoleCommodity; r <= RoleShortChange; r++ {
		if idx := cols.Index(r); idx >= 0 && idx < len(headers) {
			detected[r.String()] = headers[idx]
		}
	}
	return Layout{HeaderRow: row, Headers: headers, Columns: cols, Detected: detected}, true
}

func snapshotHeader(lines []string) (int, ColumnRoleMap) {
	row := FindHeaderRow(lines, snapshotGroups())
	return row, ResolveColumns(normalizeHeaders(SplitLine(lines[row])))
}
