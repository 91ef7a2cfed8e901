package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabstream/tabstream/pkg/config"
	"github.com/tabstream/tabstream/pkg/csv"
)

func sliceBatchFromRows(t *testing.T, rows [][]string) csv.SliceBatch {
	t.Helper()
	var arena []byte
	var sb csv.SliceBatch
	for _, row := range rows {
		var sr csv.SliceRow
		for _, cell := range row {
			off := len(arena)
			arena = append(arena, cell...)
			sr = append(sr, csv.FieldSlice{Offset: off, Len: len(cell)})
		}
		sb.Rows = append(sb.Rows, sr)
	}
	sb.Arena = arena
	return sb
}

func TestBuildRowBatch(t *testing.T) {
	sb := sliceBatchFromRows(t, [][]string{{"a", "b", "c"}, {"1", "2", "3"}})
	rb := BuildRowBatch(sb)
	require.Len(t, rb.Rows, 2)
	assert.Equal(t, []string{"a", "b", "c"}, rb.Rows[0])
	assert.Equal(t, []string{"1", "2", "3"}, rb.Rows[1])
}

func TestColumnarBuilderTypedInt32(t *testing.T) {
	opts := config.DefaultColumnarOptions()
	opts.Schema = map[string]config.ColumnType{"x": config.ColumnTypeInt32}
	require.NoError(t, opts.Validate())

	b := NewBuilder(opts)
	b.EstablishFromHeaderRow([]string{"x"})

	cells := [][]string{{"0"}, {"1"}, {"-999"}, {"2147483647"}, {"-2147483647"}}
	cb, err := b.Build(cells)
	require.NoError(t, err)
	assert.Equal(t, 5, cb.Rows)
	col := cb.Columns["x"]
	assert.Equal(t, []int32{0, 1, -999, 2147483647, -2147483647}, col.Int32)
	for _, m := range col.NullMask {
		assert.Equal(t, byte(0), m)
	}
}

func TestColumnarBuilderNullMask(t *testing.T) {
	opts := config.DefaultColumnarOptions()
	opts.Schema = map[string]config.ColumnType{"x": config.ColumnTypeInt32}
	require.NoError(t, opts.Validate())

	b := NewBuilder(opts)
	b.EstablishFromHeaderRow([]string{"x"})

	cells := [][]string{{"1"}, {"null"}, {"3"}, {""}, {"5"}}
	cb, err := b.Build(cells)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 0, 1, 0}, cb.Columns["x"].NullMask)
}

func TestColumnarBuilderProjection(t *testing.T) {
	opts := config.DefaultColumnarOptions()
	opts.Select = []string{"a", "c"}
	require.NoError(t, opts.Validate())

	b := NewBuilder(opts)
	b.EstablishFromHeaderRow([]string{"a", "b", "c"})

	assert.Equal(t, []string{"a", "c"}, b.Headers())
	assert.Equal(t, []int{0, 2}, b.SelectedIndices())

	cb, err := b.Build([][]string{{"1", "3"}, {"4", "6"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, cb.Headers)
	assert.Equal(t, []string{"1", "4"}, cb.Columns["a"].Strings)
	assert.Equal(t, []string{"3", "6"}, cb.Columns["c"].Strings)
	assert.NotContains(t, cb.Columns, "b")
}

func TestColumnarBuilderSyntheticHeaders(t *testing.T) {
	opts := config.DefaultColumnarOptions()
	opts.HasHeader = false
	require.NoError(t, opts.Validate())

	b := NewBuilder(opts)
	b.EstablishSynthetic(3)
	assert.Equal(t, []string{"Column1", "Column2", "Column3"}, b.Headers())
}
