package exporter

import "strconv"

// formatNumber renders a normalized value without trailing zeros.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
