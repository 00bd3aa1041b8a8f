// Package exporter writes parsed COT datasets back out as normalized CSV.
//
// Positions are written one asset per row with the normalized numbers of
// every column. History is written wide, one asset per row and one column
// per week label. Both can carry a UTF-8 BOM so spreadsheet tools detect
// the encoding.
package exporter
