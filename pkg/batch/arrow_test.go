package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabstream/tabstream/pkg/config"
)

func TestToArrowRecordConvertsTypedColumnsAndNulls(t *testing.T) {
	opts := config.DefaultColumnarOptions()
	opts.Schema = map[string]config.ColumnType{"id": config.ColumnTypeInt32, "score": config.ColumnTypeFloat64}
	b := NewBuilder(opts)
	b.EstablishFromHeaderRow([]string{"id", "name", "score"})

	cb, err := b.Build([][]string{
		{"1", "alice", "9.5"},
		{"2", "bob", "null"},
	})
	require.NoError(t, err)

	rec := ToArrowRecord(cb, nil)
	defer rec.Release()

	require.EqualValues(t, 2, rec.NumRows())
	require.EqualValues(t, 3, rec.NumCols())
	assert.Equal(t, "id", rec.Schema().Field(0).Name)
	assert.False(t, rec.Column(0).IsNull(0))
	assert.True(t, rec.Column(2).IsNull(1))
}
