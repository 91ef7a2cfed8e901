// Package config provides the option structs for tabstream's CSV, columnar,
// and XLSX front ends, plus a Viper-backed loader for reading them from a
// YAML file or the environment.
//
// Options are organized into logical sections:
//   - Performance: batch size, queue capacity, buffer/arena sizing
//   - Reliability: none of the usual retry/circuit-breaker machinery
//     applies to a local file read, so this section is intentionally absent
//   - Observability: the profiling flag
package config

import (
	"fmt"

	"github.com/tabstream/tabstream/pkg/csv"
)

const (
	minBatchSize  = 1
	maxBatchSize  = 10_000_000
	minQueueCap   = 1
	maxQueueCap   = 256
	minBufferSize = 4 << 10
	maxBufferSize = 64 << 20
	defaultBuffer = 256 << 10
)

// ColumnType enumerates the typed-column kinds a columnar schema entry may
// declare.
type ColumnType string

const (
	ColumnTypeString  ColumnType = "string"
	ColumnTypeInt32   ColumnType = "int32"
	ColumnTypeInt64   ColumnType = "int64"
	ColumnTypeFloat64 ColumnType = "float64"
	ColumnTypeBool    ColumnType = "bool"
)

// TypedFallback selects what happens to a typed cell that fails to parse
type TypedFallback string

const (
	TypedFallbackNull   TypedFallback = "null"
	TypedFallbackString TypedFallback = "string"
)

// CsvOptions is the consumer-facing row-mode configuration.
type CsvOptions struct {
	Delimiter       byte   `yaml:"delimiter" json:"delimiter"`
	Quote           byte   `yaml:"quote" json:"quote"`
	HasHeader       bool   `yaml:"headers" json:"headers"`
	BatchSize       int    `yaml:"batch_size" json:"batch_size"`
	MaxQueueBatches int    `yaml:"max_queue_batches" json:"max_queue_batches"`
	UseMmap         bool   `yaml:"use_mmap" json:"use_mmap"`
	ReadBufferSize  int    `yaml:"read_buffer_size" json:"read_buffer_size"`
	Profile         bool   `yaml:"profile" json:"profile"`
}

// DefaultCsvOptions returns the row-mode defaults: comma/quote, no header,
// 10,000 row batches, queue capacity 2, 256 KiB read buffer.
func DefaultCsvOptions() CsvOptions {
	return CsvOptions{
		Delimiter:       ',',
		Quote:           '"',
		HasHeader:       false,
		BatchSize:       10_000,
		MaxQueueBatches: 2,
		ReadBufferSize:  defaultBuffer,
	}
}

// Validate clamps out-of-range numeric fields to their supported bounds and
// fills in zero-valued byte options, rather than rejecting them.
func (o *CsvOptions) Validate() error {
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	if o.Quote == 0 {
		o.Quote = '"'
	}
	if o.Delimiter == o.Quote {
		return fmt.Errorf("config: delimiter and quote must differ")
	}
	clampInt(&o.BatchSize, minBatchSize, maxBatchSize, 10_000)
	clampInt(&o.MaxQueueBatches, minQueueCap, maxQueueCap, 2)
	clampInt(&o.ReadBufferSize, minBufferSize, maxBufferSize, defaultBuffer)
	return nil
}

// ToParserOptions projects the consumer-facing options down to the slice
// parser's narrower Options struct.
func (o CsvOptions) ToParserOptions() csv.Options {
	return csv.Options{
		Delimiter: o.Delimiter,
		Quote:     o.Quote,
		HasHeader: o.HasHeader,
		BatchSize: o.BatchSize,
	}
}

// ColumnarOptions extends CsvOptions with the schema/projection/null-value
// surface.
type ColumnarOptions struct {
	CsvOptions    `yaml:",inline" json:",inline"`
	Select        []string              `yaml:"select" json:"select"`
	Schema        map[string]ColumnType `yaml:"schema" json:"schema"`
	SchemaOrder   []string              `yaml:"schema_order" json:"schema_order"`
	NullValues    []string              `yaml:"null_values" json:"null_values"`
	Trim          bool                  `yaml:"trim" json:"trim"`
	TypedFallback TypedFallback         `yaml:"typed_fallback" json:"typed_fallback"`
}

// DefaultColumnarOptions returns the columnar defaults: headers=true, the
// default null-value set, and TypedFallbackNull.
func DefaultColumnarOptions() ColumnarOptions {
	base := DefaultCsvOptions()
	base.HasHeader = true
	return ColumnarOptions{
		CsvOptions:    base,
		NullValues:    []string{"", "null", "NULL"},
		TypedFallback: TypedFallbackNull,
	}
}

// Validate clamps the embedded CsvOptions and checks the open question
// (an open design question): a schema with HasHeader=false requires an explicit
// SchemaOrder, since map iteration order is not portable.
func (o *ColumnarOptions) Validate() error {
	if err := o.CsvOptions.Validate(); err != nil {
		return err
	}
	if o.TypedFallback == "" {
		o.TypedFallback = TypedFallbackNull
	}
	if len(o.NullValues) == 0 {
		o.NullValues = []string{"", "null", "NULL"}
	}
	if !o.HasHeader && len(o.Schema) > 0 && len(o.SchemaOrder) == 0 {
		return fmt.Errorf("config: schema requires headers=true or an explicit schema_order when headers=false")
	}
	return nil
}

// XlsxOptions configures the XLSX front end.
type XlsxOptions struct {
	SheetIndex      int    `yaml:"sheet_index" json:"sheet_index"`
	SheetName       string `yaml:"sheet_name" json:"sheet_name"`
	HasHeader       bool   `yaml:"headers" json:"headers"`
	BatchSize       int    `yaml:"batch_size" json:"batch_size"`
	MaxQueueBatches int    `yaml:"max_queue_batches" json:"max_queue_batches"`
}

// DefaultXlsxOptions returns the first worksheet, headers on, 10,000-row
// batches, queue capacity 2.
func DefaultXlsxOptions() XlsxOptions {
	return XlsxOptions{
		SheetIndex:      1,
		HasHeader:       true,
		BatchSize:       10_000,
		MaxQueueBatches: 2,
	}
}

// Validate clamps XlsxOptions' numeric fields.
func (o *XlsxOptions) Validate() error {
	clampInt(&o.BatchSize, minBatchSize, maxBatchSize, 10_000)
	clampInt(&o.MaxQueueBatches, minQueueCap, maxQueueCap, 2)
	if o.SheetIndex <= 0 && o.SheetName == "" {
		o.SheetIndex = 1
	}
	return nil
}

// XlsxColumnarOptions extends XlsxOptions with the same schema/projection/
// null-value surface ColumnarOptions adds to CsvOptions.
type XlsxColumnarOptions struct {
	XlsxOptions   `yaml:",inline" json:",inline"`
	Select        []string              `yaml:"select" json:"select"`
	Schema        map[string]ColumnType `yaml:"schema" json:"schema"`
	SchemaOrder   []string              `yaml:"schema_order" json:"schema_order"`
	NullValues    []string              `yaml:"null_values" json:"null_values"`
	Trim          bool                  `yaml:"trim" json:"trim"`
	TypedFallback TypedFallback         `yaml:"typed_fallback" json:"typed_fallback"`
}

// DefaultXlsxColumnarOptions mirrors DefaultColumnarOptions for the XLSX
// front end.
func DefaultXlsxColumnarOptions() XlsxColumnarOptions {
	return XlsxColumnarOptions{
		XlsxOptions:   DefaultXlsxOptions(),
		NullValues:    []string{"", "null", "NULL"},
		TypedFallback: TypedFallbackNull,
	}
}

// Validate clamps the embedded XlsxOptions and enforces the same
// SchemaOrder requirement as ColumnarOptions.Validate.
func (o *XlsxColumnarOptions) Validate() error {
	if err := o.XlsxOptions.Validate(); err != nil {
		return err
	}
	if o.TypedFallback == "" {
		o.TypedFallback = TypedFallbackNull
	}
	if len(o.NullValues) == 0 {
		o.NullValues = []string{"", "null", "NULL"}
	}
	if !o.HasHeader && len(o.Schema) > 0 && len(o.SchemaOrder) == 0 {
		return fmt.Errorf("config: schema requires headers=true or an explicit schema_order when headers=false")
	}
	return nil
}

// ToColumnarOptions projects onto the shared ColumnarOptions shape so
// pkg/batch.Builder can be reused verbatim by the XLSX front end.
func (o XlsxColumnarOptions) ToColumnarOptions() ColumnarOptions {
	return ColumnarOptions{
		CsvOptions:    CsvOptions{HasHeader: o.HasHeader, BatchSize: o.BatchSize},
		Select:        o.Select,
		Schema:        o.Schema,
		SchemaOrder:   o.SchemaOrder,
		NullValues:    o.NullValues,
		Trim:          o.Trim,
		TypedFallback: o.TypedFallback,
	}
}

func clampInt(v *int, lo, hi, def int) {
	if *v <= 0 {
		*v = def
		return
	}
	if *v < lo {
		*v = lo
	}
	if *v > hi {
		*v = hi
	}
}
