package xlsx

import (
	"sync"

	"go.uber.org/zap"

	"github.com/tabstream/tabstream/pkg/batch"
	"github.com/tabstream/tabstream/pkg/config"
	"github.com/tabstream/tabstream/pkg/errors"
	"github.com/tabstream/tabstream/pkg/logger"
	pmetrics "github.com/tabstream/tabstream/pkg/pipeline/metrics"
	"github.com/tabstream/tabstream/pkg/pipeline"
	"github.com/tabstream/tabstream/pkg/queue"
)

// Pipeline drives one worksheet through the same Batch | Done | Cancelled |
// Error sequence the CSV pipeline produces, reusing pipeline.Message and
// pipeline.Kind so a consumer can treat both front ends uniformly.
type Pipeline struct {
	path    string
	channel *queue.BoundedChannel[pipeline.Message]
	metrics *pmetrics.Pipeline
	log     *zap.Logger

	sheetIndex int
	sheetName  string
	batchSize  int

	columnar   bool
	colOpts    config.ColumnarOptions
	colBuilder *batch.Builder
	hasHeader  bool

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewRowPipeline constructs a row-mode pipeline over one worksheet of path.
func NewRowPipeline(path string, opts config.XlsxOptions) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return newPipeline(path, opts, false, config.ColumnarOptions{}), nil
}

// NewColumnarPipeline constructs a columnar-mode pipeline over one worksheet
// of path.
func NewColumnarPipeline(path string, opts config.XlsxColumnarOptions) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	p := newPipeline(path, opts.XlsxOptions, true, opts.ToColumnarOptions())
	return p, nil
}

func newPipeline(path string, opts config.XlsxOptions, columnar bool, colOpts config.ColumnarOptions) *Pipeline {
	m := pmetrics.New()
	p := &Pipeline{
		path:       path,
		channel:    queue.New[pipeline.Message](opts.MaxQueueBatches),
		metrics:    m,
		log:        logger.Get().With(zap.String("stream", path)),
		sheetIndex: opts.SheetIndex,
		sheetName:  opts.SheetName,
		batchSize:  opts.BatchSize,
		columnar:   columnar,
		colOpts:    colOpts,
		hasHeader:  opts.HasHeader,
	}
	if columnar {
		p.colBuilder = batch.NewBuilder(colOpts)
	}
	return p
}

// Metrics returns a point-in-time snapshot of this stream's counters.
func (p *Pipeline) Metrics() pmetrics.Snapshot { return p.metrics.Snapshot() }

// MetricsSource returns the underlying atomic counter set, for registering
// a Prometheus collector (see pkg/obsmetrics) against this stream.
func (p *Pipeline) MetricsSource() *pmetrics.Pipeline { return p.metrics }

// Start launches the producer goroutine. Safe to call at most once.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.wg.Add(1)
	go p.run()
}

// Next blocks for the next consumer-visible message.
func (p *Pipeline) Next() pipeline.Message {
	msg, ok := p.channel.Pop()
	if !ok {
		return pipeline.Message{Kind: pipeline.KindCancelled}
	}
	return msg
}

// Cancel triggers cooperative, sticky cancellation.
func (p *Pipeline) Cancel() {
	p.channel.Cancel()
}

// Close waits for the producer goroutine to exit.
func (p *Pipeline) Close() error {
	p.wg.Wait()
	return nil
}

func (p *Pipeline) run() {
	defer p.wg.Done()

	res, err := resolveSheet(p.path, p.sheetIndex, p.sheetName)
	if err != nil {
		p.pushError(err)
		return
	}

	var pending [][]string
	first := true
	aborted := false

	walkErr := walkSheet(res.sheetXML, res.sharedStrings, func(row []string) bool {
		if first {
			first = false
			if p.columnar {
				p.establishHeaders(row)
			}
			if p.hasHeader {
				return true
			}
		}
		p.metrics.AddRowsParsed(1)
		pending = append(pending, row)
		if len(pending) >= p.batchSize {
			if !p.flush(&pending) {
				aborted = true
				return false
			}
		}
		return true
	})
	if aborted {
		return
	}
	if walkErr != nil {
		p.pushError(errors.Wrap(walkErr, errors.ErrorTypeParse, "walk worksheet xml"))
		return
	}
	if !p.flush(&pending) {
		return
	}

	if p.columnar && p.hasHeader && !p.colBuilder.HeadersReady() {
		p.pushError(errors.New(errors.ErrorTypeParse, "missing header: worksheet has no rows"))
		return
	}

	p.log.Debug("worksheet complete", zap.Uint64("rows", p.metrics.Snapshot().RowsParsed))
	p.channel.Push(pipeline.Message{Kind: pipeline.KindDone})
}

// establishHeaders runs once, against the worksheet's first row, choosing
// the header source the same way the CSV columnar driver does.
func (p *Pipeline) establishHeaders(row []string) {
	switch {
	case p.hasHeader:
		p.colBuilder.EstablishFromHeaderRow(row)
	case len(p.colOpts.SchemaOrder) > 0:
		p.colBuilder.EstablishFromSchemaOrder()
	default:
		p.colBuilder.EstablishSynthetic(len(row))
	}
}

func (p *Pipeline) flush(pending *[][]string) bool {
	if len(*pending) == 0 {
		return true
	}
	rows := *pending
	*pending = nil

	var msg pipeline.Message
	if p.columnar {
		if idx := p.colBuilder.SelectedIndices(); len(idx) > 0 {
			rows = projectRows(rows, idx)
		}
		cb, err := p.colBuilder.Build(rows)
		if err != nil {
			p.pushError(errors.Wrap(err, errors.ErrorTypeInternal, "build columnar batch"))
			return false
		}
		msg = pipeline.Message{Kind: pipeline.KindBatch, Columnar: cb}
	} else {
		msg = pipeline.Message{Kind: pipeline.KindBatch, Row: &batch.RowBatch{Rows: rows}}
	}
	return p.channel.Push(msg)
}

// projectRows keeps only the given logical column indices from each row, in
// the given order.
func projectRows(rows [][]string, indices []int) [][]string {
	out := make([][]string, len(rows))
	for r, row := range rows {
		projected := make([]string, len(indices))
		for i, idx := range indices {
			if idx < len(row) {
				projected[i] = row[idx]
			}
		}
		out[r] = projected
	}
	return out
}

func (p *Pipeline) pushError(err error) {
	p.log.Warn("worksheet terminated with error", zap.Error(err))
	p.channel.Push(pipeline.Message{Kind: pipeline.KindError, Err: err})
}
