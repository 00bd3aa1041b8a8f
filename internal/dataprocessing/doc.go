// Package dataprocessing turns loosely structured Commitment of Traders
// exports into clean records and derives the figures the dashboard shows.
//
// # Parsing
//
// Two shapes are supported:
//
//	ParseSnapshot: one row per asset with net, long and short positions
//	               and their weekly changes
//	ParseSeries:   one row per asset with one column per report week
//
// Neither parser needs a fixed layout. The header row is found by scoring
// the first lines of the file against keyword groups, columns are matched by
// alias, and bare "Chg" columns are assigned to the position they follow.
// Formatted numbers such as "$1,234.50", "+2.5%" or "(500)" are normalized by
// ParseValue. Footer lines ("Downloaded from Barchart.com") are skipped.
//
// Parsers never return errors. Unrecognized input yields fewer records or
// zero values, never a failure.
//
// # Data Flow
//
//	upload (csv, xlsx, html) → DecodeUpload → text → ParseSnapshot / ParseSeries → records
//	records → Focus / Search → Overview, RankByNet, Trend, SeriesStats
//
// All functions are pure and safe for concurrent use.
package dataprocessing
