package domain

import "time"

// SnapshotRecord is one asset row of a current-positioning COT export.
// Every numeric field is carried twice: the text exactly as it appeared in
// the source cell and its normalized value.
type SnapshotRecord struct {
	Commodity string `json:"commodity" csv:"Commodity"`

	NetPositions string  `json:"net_positions" csv:"NetPositions"`
	NumNetPos    float64 `json:"num_net_pos" csv:"-"`

	NetChange    string  `json:"net_change" csv:"NetChange"`
	NumNetChange float64 `json:"num_net_change" csv:"-"`

	LongPositions string  `json:"long_positions" csv:"LongPositions"`
	NumLong       float64 `json:"num_long" csv:"-"`

	LongChange    string  `json:"long_change" csv:"LongChange"`
	NumLongChange float64 `json:"num_long_change" csv:"-"`

	ShortPositions string  `json:"short_positions" csv:"ShortPositions"`
	NumShort       float64 `json:"num_short" csv:"-"`

	ShortChange    string  `json:"short_change" csv:"ShortChange"`
	NumShortChange float64 `json:"num_short_change" csv:"-"`
}

// WeekEntry is a single dated observation of a SeriesRecord.
type WeekEntry struct {
	// Label is the column header the value came from, usually a report date.
	Label string  `json:"date"`
	Raw   string  `json:"value"`
	Value float64 `json:"num_value"`
}

// SeriesRecord is one asset row of a historical COT export. Weeks keep the
// left-to-right column order of the source file.
type SeriesRecord struct {
	Commodity string      `json:"commodity"`
	Weeks     []WeekEntry `json:"weeks"`
}

// Values returns the normalized week values in source order.
func (s SeriesRecord) Values() []float64 {
	out := make([]float64, len(s.Weeks))
	for i, w := range s.Weeks {
		out[i] = w.Value
	}
	return out
}

// DatasetKind names one of the two tabular shapes the service ingests.
type DatasetKind string

const (
	DatasetPositions DatasetKind = "positions"
	DatasetHistory   DatasetKind = "history"
)

// DatasetKinds lists every dataset kind in a stable order.
var DatasetKinds = []DatasetKind{DatasetPositions, DatasetHistory}

// Valid reports whether k is a known dataset kind.
func (k DatasetKind) Valid() bool {
	return k == DatasetPositions || k == DatasetHistory
}

// ImportEntry is one row of the import log.
type ImportEntry struct {
	ID         string      `json:"id" db:"id"`
	Dataset    DatasetKind `json:"dataset" db:"dataset"`
	Source     string      `json:"source" db:"source"`
	Bytes      int64       `json:"bytes" db:"bytes"`
	Records    int         `json:"records" db:"records"`
	ImportedAt time.Time   `json:"imported_at" db:"imported_at"`
}
