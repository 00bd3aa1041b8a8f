package dataprocessing

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned by DecodeUpload for file types it cannot
// turn into CSV text.
var ErrUnsupportedFormat = errors.New("unsupported upload format")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SupportedExtensions lists the upload file extensions DecodeUpload accepts.
var SupportedExtensions = []string{".csv", ".txt", ".xlsx", ".html", ".htm"}

// DecodeUpload converts an uploaded file into the comma separated text the
// parsers read. The format is chosen by the extension of name: CSV and plain
// text pass through without a UTF-8 BOM, workbooks contribute their first
// sheet and HTML pages their first table.
func DecodeUpload(name string, content []byte) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv", ".txt":
		return string(bytes.TrimPrefix(content, utf8BOM)), nil
	case ".xlsx":
		return decodeWorkbook(content)
	case ".html", ".htm":
		return decodeHTMLTable(content)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func decodeWorkbook(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return joinRows(rows), nil
}

func decodeHTMLTable(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return "", fmt.Errorf("%w: no table in html document", ErrUnsupportedFormat)
	}

	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var row []string
		tr.Find("th, td").Each(func(_ int, td *goquery.Selection) {
			row = append(row, strings.TrimSpace(td.Text()))
		})
		rows = append(rows, row)
	})
	return joinRows(rows), nil
}

var cellNoise = strings.NewReplacer(`"`, "", "\r\n", " ", "\n", " ", "\r", " ")

// joinRows renders cells as CSV lines the line splitter reads back
// unchanged. Quotes inside a cell cannot be escaped for the splitter and are
// dropped, line breaks become spaces and cells holding a comma are quoted.
func joinRows(rows [][]string) string {
	var b strings.Builder
	for _, row := range rows {
		for i, c := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			c = cellNoise.Replace(c)
			if strings.Contains(c, ",") {
				c = `"` + c + `"`
			}
			b.WriteString(c)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
