// Package batch implements BatchBuilder: materializing a
// csv.SliceBatch into either row-form or schema-typed columnar output.
package batch

import "github.com/tabstream/tabstream/pkg/csv"

// DecodeRows copies every field slice in sb out of its arena into an owned
// string, preserving row and field order exactly as the parser emitted them.
// Shared by the row builder and the columnar builder's header/cell
// extraction.
func DecodeRows(sb csv.SliceBatch) [][]string {
	rows := make([][]string, len(sb.Rows))
	for i, row := range sb.Rows {
		cells := make([]string, len(row))
		for j, fs := range row {
			cells[j] = string(sb.Arena[fs.Offset : fs.Offset+fs.Len])
		}
		rows[i] = cells
	}
	return rows
}
