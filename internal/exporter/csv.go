package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cotpulse/pkg/contracts/domain"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// SnapshotHeaders are the columns of a positions export.
var SnapshotHeaders = []string{
	"Commodity", "NetPositions", "NetChange",
	"LongPositions", "LongChange", "ShortPositions", "ShortChange",
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes headers followed by records to w.
func WriteCSV(w io.Writer, headers []string, records [][]string, opts WriteOptions) error {
	if opts.BOMPrefix {
		if _, err := w.Write(bom); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}
	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// SnapshotRows converts records to CSV rows of normalized values.
func SnapshotRows(records []domain.SnapshotRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Commodity,
			formatNumber(r.NumNetPos),
			formatNumber(r.NumNetChange),
			formatNumber(r.NumLong),
			formatNumber(r.NumLongChange),
			formatNumber(r.NumShort),
			formatNumber(r.NumShortChange),
		})
	}
	return rows
}

// ExportSnapshot writes positions records as CSV.
func ExportSnapshot(w io.Writer, records []domain.SnapshotRecord, opts WriteOptions) error {
	return WriteCSV(w, SnapshotHeaders, SnapshotRows(records), opts)
}

// SeriesTable converts history records to a wide table. The week columns
// follow the first record that has the most weeks; shorter rows are padded.
func SeriesTable(records []domain.SeriesRecord) (headers []string, rows [][]string) {
	var widest domain.SeriesRecord
	for _, r := range records {
		if len(r.Weeks) > len(widest.Weeks) {
			widest = r
		}
	}

	headers = make([]string, 0, len(widest.Weeks)+1)
	headers = append(headers, "Commodity")
	for _, w := range widest.Weeks {
		headers = append(headers, w.Label)
	}

	rows = make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, len(headers))
		row[0] = r.Commodity
		for i, w := range r.Weeks {
			row[i+1] = formatNumber(w.Value)
		}
		rows = append(rows, row)
	}
	return headers, rows
}

// ExportSeries writes history records as a wide CSV table.
func ExportSeries(w io.Writer, records []domain.SeriesRecord, opts WriteOptions) error {
	headers, rows := SeriesTable(records)
	return WriteCSV(w, headers, rows, opts)
}

// WriteFile creates path, including missing parent directories, and
// passes it to write. The file is removed when write fails.
func WriteFile(path string, write func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	return write(file)
}
