package xlsx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabstream/tabstream/pkg/config"
	"github.com/tabstream/tabstream/pkg/pipeline"
)

const sheetWithSharedAndInline = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main">
  <sheetData>
    <row r="1">
      <c r="A1" t="s"><v>0</v></c>
      <c r="B1" t="s"><v>1</v></c>
      <c r="C1"><v>999</v></c>
    </row>
    <row r="2">
      <c r="A1"><v>1</v></c>
      <c r="C1" t="inlineStr"><is><t>hello</t></is></c>
    </row>
  </sheetData>
</worksheet>`

func TestResolveSheetByIndex(t *testing.T) {
	path := newTestWorkbook(t, sheetWithSharedAndInline)
	res, err := resolveSheet(path, 1, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.sharedStrings)
	assert.Contains(t, string(res.sheetXML), "sheetData")
}

func TestResolveSheetByName(t *testing.T) {
	path := newTestWorkbook(t, sheetWithSharedAndInline)
	res, err := resolveSheet(path, 0, "Sheet1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.sheetXML)
}

func TestResolveSheetMissingNameErrors(t *testing.T) {
	path := newTestWorkbook(t, sheetWithSharedAndInline)
	_, err := resolveSheet(path, 0, "NoSuchSheet")
	assert.Error(t, err)
}

func TestWalkSheetResolvesSharedAndInlineAndSparseColumns(t *testing.T) {
	res, err := resolveSheet(newTestWorkbook(t, sheetWithSharedAndInline), 1, "")
	require.NoError(t, err)

	var rows [][]string
	err = walkSheet(res.sheetXML, res.sharedStrings, func(row []string) bool {
		rows = append(rows, append([]string(nil), row...))
		return true
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a", "b", "999"}, rows[0])
	// Row 2 only populates columns A and C; B must come back empty.
	assert.Equal(t, []string{"1", "", "hello"}, rows[1])
}

func TestCellRefToCol(t *testing.T) {
	assert.Equal(t, 0, cellRefToCol("A1"))
	assert.Equal(t, 1, cellRefToCol("B2"))
	assert.Equal(t, 54, cellRefToCol("BC23"))
	assert.Equal(t, -1, cellRefToCol(""))
}

func drainXlsx(t *testing.T, p *Pipeline) []pipeline.Message {
	t.Helper()
	var out []pipeline.Message
	for {
		msg := p.Next()
		out = append(out, msg)
		if msg.Kind != pipeline.KindBatch {
			break
		}
	}
	return out
}

func TestRowPipelineYieldsRowsThenDone(t *testing.T) {
	path := newTestWorkbook(t, sheetWithSharedAndInline)
	opts := config.DefaultXlsxOptions()
	opts.HasHeader = false
	p, err := NewRowPipeline(path, opts)
	require.NoError(t, err)
	p.Start()
	defer p.Close()

	msgs := drainXlsx(t, p)
	require.Len(t, msgs, 2)
	require.NotNil(t, msgs[0].Row)
	assert.Equal(t, [][]string{{"a", "b", "999"}, {"1", "", "hello"}}, msgs[0].Row.Rows)
	assert.Equal(t, pipeline.KindDone, msgs[1].Kind)
}

func TestColumnarPipelineEstablishesHeadersAndProjects(t *testing.T) {
	path := newTestWorkbook(t, sheetWithSharedAndInline)
	opts := config.DefaultXlsxColumnarOptions()
	opts.HasHeader = true
	opts.Select = []string{"a", "999"}
	p, err := NewColumnarPipeline(path, opts)
	require.NoError(t, err)
	p.Start()
	defer p.Close()

	msgs := drainXlsx(t, p)
	require.Len(t, msgs, 2)
	cb := msgs[0].Columnar
	require.NotNil(t, cb)
	assert.Equal(t, []string{"a", "999"}, cb.Headers)
	assert.Equal(t, []string{"1"}, cb.Columns["a"].Strings)
	assert.Equal(t, []string{"hello"}, cb.Columns["999"].Strings)
	assert.Equal(t, pipeline.KindDone, msgs[1].Kind)
}
