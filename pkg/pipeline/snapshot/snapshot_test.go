package snapshot

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabstream/tabstream/pkg/batch"
	"github.com/tabstream/tabstream/pkg/config"
)

func TestWriteReadRoundTripsRowAndColumnarBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spill.zst")

	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteRow(batch.RowBatch{Rows: [][]string{{"1", "2"}, {"3", "4"}}}))

	opts := config.DefaultColumnarOptions()
	opts.Schema = map[string]config.ColumnType{"x": config.ColumnTypeInt32}
	b := batch.NewBuilder(opts)
	b.EstablishFromHeaderRow([]string{"x"})
	cb, err := b.Build([][]string{{"10"}, {"20"}})
	require.NoError(t, err)
	require.NoError(t, w.WriteColumnar(cb))
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	rb, gotCB, err := r.Next()
	require.NoError(t, err)
	assert.Nil(t, gotCB)
	assert.Equal(t, [][]string{{"1", "2"}, {"3", "4"}}, rb.Rows)

	_, gotCB2, err := r.Next()
	require.NoError(t, err)
	require.NotNil(t, gotCB2)
	assert.Equal(t, []int32{10, 20}, gotCB2.Columns["x"].Int32)

	_, _, err = r.Next()
	assert.Equal(t, io.EOF, err)
}
