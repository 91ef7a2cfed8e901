package batch

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/tabstream/tabstream/pkg/config"
)

// ToArrowRecord converts a ColumnarBatch into an Arrow arrow.Record using
// cb.Headers for field order. Null entries (NullMask[i] == 1 on typed
// columns) become Arrow nulls rather than zero values. The caller owns the
// returned record and must call Release on it.
func ToArrowRecord(cb *ColumnarBatch, alloc memory.Allocator) arrow.Record {
	if alloc == nil {
		alloc = memory.NewGoAllocator()
	}

	fields := make([]arrow.Field, len(cb.Headers))
	for i, name := range cb.Headers {
		fields[i] = arrow.Field{Name: name, Type: arrowType(cb.Columns[name].Type), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(alloc, schema)
	defer b.Release()

	for i, name := range cb.Headers {
		appendColumn(b.Field(i), cb.Columns[name])
	}

	return b.NewRecord()
}

func arrowType(t config.ColumnType) arrow.DataType {
	switch t {
	case config.ColumnTypeInt32:
		return arrow.PrimitiveTypes.Int32
	case config.ColumnTypeInt64:
		return arrow.PrimitiveTypes.Int64
	case config.ColumnTypeFloat64:
		return arrow.PrimitiveTypes.Float64
	case config.ColumnTypeBool:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.BinaryTypes.String
	}
}

func appendColumn(builder array.Builder, col *Column) {
	switch b := builder.(type) {
	case *array.Int32Builder:
		for i, v := range col.Int32 {
			if isNull(col.NullMask, i) {
				b.AppendNull()
				continue
			}
			b.Append(v)
		}
	case *array.Int64Builder:
		for i, v := range col.Int64 {
			if isNull(col.NullMask, i) {
				b.AppendNull()
				continue
			}
			b.Append(v)
		}
	case *array.Float64Builder:
		for i, v := range col.Float64 {
			if isNull(col.NullMask, i) {
				b.AppendNull()
				continue
			}
			b.Append(v)
		}
	case *array.BooleanBuilder:
		for i, v := range col.Bool {
			if isNull(col.NullMask, i) {
				b.AppendNull()
				continue
			}
			b.Append(v == 1)
		}
	case *array.StringBuilder:
		for _, v := range col.Strings {
			b.Append(v)
		}
	}
}

func isNull(mask []byte, i int) bool {
	return i < len(mask) && mask[i] == 1
}
