package batch

import (
	"fmt"
	"strings"

	"github.com/tabstream/tabstream/pkg/config"
)

// Column is one column of a ColumnarBatch: a tagged variant over the typed
// vector kinds a columnar schema can declare, plus an optional
// null mask parallel to row count. String columns carry no null mask;
// nullness is represented by the empty string.
type Column struct {
	Type     config.ColumnType
	Strings  []string
	Int32    []int32
	Int64    []int64
	Float64  []float64
	Bool     []byte
	NullMask []byte
}

// ColumnarBatch is the schema-typed consumer-visible unit. Columns
// preserves header order of the selected columns.
type ColumnarBatch struct {
	Headers []string
	Columns map[string]*Column
	Rows    int
}

// Builder accumulates the header/projection state that must persist across
// a stream's batches: the first batch establishes headers (and,
// with a non-empty Select, the selected logical column indices); every
// later batch reuses that fixed state.
type Builder struct {
	opts config.ColumnarOptions

	headers       []string // every column in file/schema order
	outputHeaders []string // headers ∩ Select, in header order (== headers if Select is empty)
	selected      []int    // logical indices into headers that outputHeaders project

	ready bool
}

// NewBuilder constructs a Builder for one stream. opts must already be
// Validate()-d.
func NewBuilder(opts config.ColumnarOptions) *Builder {
	return &Builder{opts: opts}
}

// HeadersReady reports whether EstablishFromHeaderRow,
// EstablishFromSchemaOrder or EstablishSynthetic has run yet.
func (b *Builder) HeadersReady() bool { return b.ready }

// Headers returns the output (post-projection) header list. Valid only once
// HeadersReady is true.
func (b *Builder) Headers() []string { return b.outputHeaders }

// SelectedIndices returns the logical column indices, in ascending order,
// that projection keeps. Empty when no projection is configured (all
// columns pass through). The driver feeds this to
// csv.Parser.SetSelectedColumns once headers are known.
func (b *Builder) SelectedIndices() []int { return b.selected }

// EstablishFromHeaderRow sets the full header list from the file's first
// decoded row (HasHeader case) and computes the projection.
func (b *Builder) EstablishFromHeaderRow(row []string) {
	b.setHeaders(append([]string(nil), row...))
}

// EstablishFromSchemaOrder sets the full header list from
// opts.SchemaOrder (the !HasHeader-with-schema case).
func (b *Builder) EstablishFromSchemaOrder() {
	b.setHeaders(append([]string(nil), b.opts.SchemaOrder...))
}

// EstablishSynthetic synthesizes "Column1".."ColumnN" headers for the
// !HasHeader, no-schema case.
func (b *Builder) EstablishSynthetic(n int) {
	headers := make([]string, n)
	for i := range headers {
		headers[i] = fmt.Sprintf("Column%d", i+1)
	}
	b.setHeaders(headers)
}

func (b *Builder) setHeaders(headers []string) {
	b.headers = headers

	if len(b.opts.Select) == 0 {
		b.outputHeaders = headers
		b.selected = nil
		b.ready = true
		return
	}

	want := make(map[string]bool, len(b.opts.Select))
	for _, s := range b.opts.Select {
		want[s] = true
	}
	var outHeaders []string
	var indices []int
	for i, h := range headers {
		if want[h] {
			outHeaders = append(outHeaders, h)
			indices = append(indices, i)
		}
	}
	b.outputHeaders = outHeaders
	b.selected = indices
	b.ready = true
}

// Build materializes decoded cell rows into a ColumnarBatch using the
// already-established (post-projection) headers. cellRows must already
// contain exactly len(b.outputHeaders) cells per row — true for every batch
// after the first once the driver has applied SelectedIndices to the
// parser, and trivially true when there is no projection.
func (b *Builder) Build(cellRows [][]string) (*ColumnarBatch, error) {
	if !b.ready {
		return nil, fmt.Errorf("batch: headers not established")
	}

	n := len(cellRows)
	cb := &ColumnarBatch{
		Headers: b.outputHeaders,
		Columns: make(map[string]*Column, len(b.outputHeaders)),
		Rows:    n,
	}

	for ci, name := range b.outputHeaders {
		colType := config.ColumnTypeString
		if t, ok := b.opts.Schema[name]; ok {
			colType = t
		}
		col := newColumn(colType, n)
		for r := 0; r < n; r++ {
			raw := ""
			if ci < len(cellRows[r]) {
				raw = cellRows[r][ci]
			}
			if b.opts.Trim {
				raw = strings.TrimFunc(raw, isASCIISpace)
			}
			b.populate(col, r, raw)
		}
		cb.Columns[name] = col
	}
	return cb, nil
}

func newColumn(t config.ColumnType, n int) *Column {
	col := &Column{Type: t}
	switch t {
	case config.ColumnTypeInt32:
		col.Int32 = make([]int32, n)
		col.NullMask = make([]byte, n)
	case config.ColumnTypeInt64:
		col.Int64 = make([]int64, n)
		col.NullMask = make([]byte, n)
	case config.ColumnTypeFloat64:
		col.Float64 = make([]float64, n)
		col.NullMask = make([]byte, n)
	case config.ColumnTypeBool:
		col.Bool = make([]byte, n)
		col.NullMask = make([]byte, n)
	default:
		col.Type = config.ColumnTypeString
		col.Strings = make([]string, n)
	}
	return col
}

func (b *Builder) isNullValue(raw string) bool {
	for _, nv := range b.opts.NullValues {
		if raw == nv {
			return true
		}
	}
	return false
}

// populate fills column index r from the raw (optionally trimmed) cell
// text, applying null-value matching then typed parsing.
func (b *Builder) populate(col *Column, r int, raw string) {
	if col.Type == config.ColumnTypeString {
		if b.isNullValue(raw) {
			col.Strings[r] = ""
		} else {
			col.Strings[r] = raw
		}
		return
	}

	if b.isNullValue(raw) {
		col.NullMask[r] = 1
		return
	}

	switch col.Type {
	case config.ColumnTypeInt32:
		v, ok := ParseInt32(raw)
		if !ok {
			col.NullMask[r] = 1
			return
		}
		col.Int32[r] = v
	case config.ColumnTypeInt64:
		v, ok := ParseInt64(raw)
		if !ok {
			col.NullMask[r] = 1
			return
		}
		col.Int64[r] = v
	case config.ColumnTypeFloat64:
		v, ok := ParseFloat64(raw)
		if !ok {
			col.NullMask[r] = 1
			return
		}
		col.Float64[r] = v
	case config.ColumnTypeBool:
		v, ok := ParseBool(raw)
		if !ok {
			col.NullMask[r] = 1
			return
		}
		if v {
			col.Bool[r] = 1
		}
	}
}

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	default:
		return false
	}
}
