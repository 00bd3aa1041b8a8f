package dataprocessing

import (
	"strings"

	"cotpulse/pkg/contracts/domain"
)

// DefaultFocusSymbols are the markets the dashboard follows when no focus
// list is configured.
var DefaultFocusSymbols = []string{
	"Gold",
	"Silver",
	"Crude Oil WTI",
	"Euro FX",
	"British Pound",
	"Japanese Yen",
	"Bitcoin Micro",
	"Ether",
	"Nasdaq 100 E-Mini",
	"S&P 500 E-Mini",
	"Dow Futures Mini",
	"S&P 500 VIX",
	"Dollar Index",
}

var focusNoise = strings.NewReplacer(`"`, "", "_", "", "-", "")

func normalizeSymbol(s string) string {
	return strings.Join(strings.Fields(focusNoise.Replace(strings.ToLower(s))), "")
}

// Focus decides which assets belong to the followed universe. A name is in
// focus when its normalized form contains a symbol or is contained in one,
// so "GOLD (COMEX)" and "Gold" both match the symbol "Gold".
type Focus struct {
	symbols []string
}

// NewFocus builds a Focus over symbols. An empty list admits every asset.
func NewFocus(symbols []string) Focus {
	f := Focus{symbols: make([]string, 0, len(symbols))}
	for _, s := range symbols {
		if n := normalizeSymbol(s); n != "" {
			f.symbols = append(f.symbols, n)
		}
	}
	return f
}

// Match reports whether commodity is in focus.
func (f Focus) Match(commodity string) bool {
	if len(f.symbols) == 0 {
		return true
	}
	name := normalizeSymbol(commodity)
	if name == "" {
		return false
	}
	for _, s := range f.symbols {
		if strings.Contains(name, s) || strings.Contains(s, name) {
			return true
		}
	}
	return false
}

// Snapshot keeps the records in focus, preserving order.
func (f Focus) Snapshot(records []domain.SnapshotRecord) []domain.SnapshotRecord {
	out := make([]domain.SnapshotRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r.Commodity) {
			out = append(out, r)
		}
	}
	return out
}

// Series keeps the series in focus, preserving order.
func (f Focus) Series(records []domain.SeriesRecord) []domain.SeriesRecord {
	out := make([]domain.SeriesRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r.Commodity) {
			out = append(out, r)
		}
	}
	return out
}

// Search keeps snapshot records whose name contains q, ignoring case. An
// empty query returns records unchanged.
func Search(records []domain.SnapshotRecord, q string) []domain.SnapshotRecord {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return records
	}
	out := make([]domain.SnapshotRecord, 0, len(records))
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Commodity), q) {
			out = append(out, r)
		}
	}
	return out
}

// SearchSeries is Search for series records.
func SearchSeries(records []domain.SeriesRecord, q string) []domain.SeriesRecord {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return records
	}
	out := make([]domain.SeriesRecord, 0, len(records))
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Commodity), q) {
			out = append(out, r)
		}
	}
	return out
}
