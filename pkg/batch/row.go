package batch

import "github.com/tabstream/tabstream/pkg/csv"

// RowBatch is the row-form consumer-visible unit: an ordered sequence of
// rows, each an ordered sequence of owned strings.
type RowBatch struct {
	Rows [][]string
}

// BuildRowBatch materializes a SliceBatch as a RowBatch: every field slice
// becomes a copied string, preserving row count and per-row field count
// exactly as emitted.
func BuildRowBatch(sb csv.SliceBatch) RowBatch {
	return RowBatch{Rows: DecodeRows(sb)}
}
