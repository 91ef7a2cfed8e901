package csv

// Options configures the byte-level CSV state machine: delimiter/quote
// bytes, header handling, and the row count that triggers a batch.
type Options struct {
	Delimiter byte
	Quote     byte
	HasHeader bool
	BatchSize int
}

const defaultBatchSize = 10000

// DefaultOptions returns comma delimiter, double-quote, no header,
// 10,000-row batches.
func DefaultOptions() Options {
	return Options{
		Delimiter: ',',
		Quote:     '"',
		HasHeader: false,
		BatchSize: defaultBatchSize,
	}
}

// normalized clamps a zero or negative BatchSize up to the default; the
// parser wrapper is responsible for calling this before construction so the
// state machine itself never has to special-case an invalid batch size.
func (o Options) normalized() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	if o.Quote == 0 {
		o.Quote = '"'
	}
	return o
}
