package pipeline

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tabstream/tabstream/pkg/batch"
	"github.com/tabstream/tabstream/pkg/config"
	"github.com/tabstream/tabstream/pkg/csv"
	"github.com/tabstream/tabstream/pkg/errors"
	"github.com/tabstream/tabstream/pkg/logger"
	pmetrics "github.com/tabstream/tabstream/pkg/pipeline/metrics"
	"github.com/tabstream/tabstream/pkg/queue"
	"github.com/tabstream/tabstream/pkg/reader"
)

// Pipeline owns the dedicated producer goroutine for one stream: it drains a
// Reader, feeds a csv.Parser, materializes batches with a batch builder, and
// pushes them through a bounded queue to the consumer. Construct with
// NewCSVRowPipeline or NewCSVColumnarPipeline, call Start once, then drain
// with Next until a terminal Kind arrives.
type Pipeline struct {
	path    string
	r       *reader.Reader
	parser  *csv.Parser
	channel *queue.BoundedChannel[Message]
	metrics *pmetrics.Pipeline
	log     *zap.Logger

	columnar   bool
	colOpts    config.ColumnarOptions
	colBuilder *batch.Builder

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewCSVRowPipeline constructs a row-mode pipeline over path.
func NewCSVRowPipeline(path string, opts config.CsvOptions) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	p, err := newPipeline(path, opts)
	if err != nil {
		return nil, err
	}
	if opts.HasHeader {
		p.parser.SkipOneRow()
	}
	return p, nil
}

// NewCSVColumnarPipeline constructs a columnar-mode pipeline over path.
func NewCSVColumnarPipeline(path string, opts config.ColumnarOptions) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	p, err := newPipeline(path, opts.CsvOptions)
	if err != nil {
		return nil, err
	}
	p.columnar = true
	p.colOpts = opts
	p.colBuilder = batch.NewBuilder(opts)
	return p, nil
}

func newPipeline(path string, opts config.CsvOptions) (*Pipeline, error) {
	rd, err := reader.Open(path, reader.Options{UseMmap: opts.UseMmap, BufferSize: opts.ReadBufferSize})
	if err != nil {
		return nil, err
	}

	m := pmetrics.New()
	parser := csv.NewParser(opts.ToParserOptions())
	parser.SetMetrics(m)

	return &Pipeline{
		path:    path,
		r:       rd,
		parser:  parser,
		channel: queue.New[Message](opts.MaxQueueBatches),
		metrics: m,
		log:     logger.Get().With(zap.String("stream", path)),
	}, nil
}

// Metrics returns a point-in-time snapshot of this stream's counters, safe
// to call concurrently with Start/Next from another goroutine.
func (p *Pipeline) Metrics() pmetrics.Snapshot { return p.metrics.Snapshot() }

// MetricsSource returns the underlying atomic counter set, for registering
// a Prometheus collector (see pkg/obsmetrics) against this stream.
func (p *Pipeline) MetricsSource() *pmetrics.Pipeline { return p.metrics }

// Start launches the producer goroutine. Safe to call at most once; later
// calls are no-ops.
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

// Next blocks for the next consumer-visible message. Once a message with
// Kind KindDone, KindCancelled, or KindError arrives, no further messages
// follow and the consumer should stop pulling.
func (p *Pipeline) Next() Message {
	msg, ok := p.channel.Pop()
	if !ok {
		return Message{Kind: KindCancelled}
	}
	return msg
}

// Cancel triggers cooperative, sticky cancellation: the producer observes it
// on its next channel push, abandons any in-flight batch, and exits without
// delivering Done. Safe to call from any goroutine, any number of times.
func (p *Pipeline) Cancel() {
	p.channel.Cancel()
}

// Close waits for the producer goroutine to exit and releases the Reader.
// Call after a terminal message has been observed, or after Cancel.
func (p *Pipeline) Close() error {
	p.wg.Wait()
	return p.r.Close()
}

func (p *Pipeline) run() {
	defer p.wg.Done()
	profiling := pmetrics.ProfileEnabled()

	first := true
	for {
		readStart := time.Now()
		chunk := p.r.Next()
		if profiling {
			p.metrics.AddReadTimeNs(uint64(time.Since(readStart).Nanoseconds()))
		}
		if len(chunk) == 0 {
			break
		}

		parseStart := time.Now()
		p.parser.Feed(chunk)
		if profiling {
			p.metrics.AddParseTimeNs(uint64(time.Since(parseStart).Nanoseconds()))
		}
		p.metrics.AddBytesRead(uint64(len(chunk)))
		if !p.drainBatches(&first, profiling) {
			return
		}
	}

	if err := p.r.Err(); err != nil {
		p.pushError(errors.Wrap(err, errors.ErrorTypeFile, "read failed"))
		return
	}

	flushStart := time.Now()
	p.parser.Flush()
	if profiling {
		p.metrics.AddParseTimeNs(uint64(time.Since(flushStart).Nanoseconds()))
	}
	if !p.drainBatches(&first, profiling) {
		return
	}

	if p.columnar && p.colOpts.HasHeader && !p.colBuilder.HeadersReady() {
		p.pushError(errors.New(errors.ErrorTypeParse, "missing header: no data was read"))
		return
	}

	p.log.Debug("stream complete", zap.Uint64("rows", p.metrics.Snapshot().RowsParsed))
	p.channel.Push(Message{Kind: KindDone})
}

// drainBatches pushes every batch currently ready on the parser. It returns
// false if the channel was cancelled mid-drain or a batch failed to build,
// in which case the caller must stop the producer loop immediately without
// pushing Done. When profiling is on, it times batch extraction (emit),
// message construction (build), and the bounded-channel handoff (queue
// wait) separately from the read/parse timings in run.
func (p *Pipeline) drainBatches(first *bool, profiling bool) bool {
	for p.parser.HasBatch() {
		emitStart := time.Now()
		sb := p.parser.TakeBatch()
		if profiling {
			p.metrics.AddEmitTimeNs(uint64(time.Since(emitStart).Nanoseconds()))
		}

		buildStart := time.Now()
		msg, err := p.build(sb, first)
		if profiling {
			p.metrics.AddBuildTimeNs(uint64(time.Since(buildStart).Nanoseconds()))
		}
		if err != nil {
			p.pushError(err)
			return false
		}

		queueStart := time.Now()
		ok := p.channel.Push(msg)
		if profiling {
			p.metrics.AddQueueWaitNs(uint64(time.Since(queueStart).Nanoseconds()))
		}
		if !ok {
			return false
		}
	}
	return true
}

func (p *Pipeline) build(sb csv.SliceBatch, first *bool) (Message, error) {
	if !p.columnar {
		rb := batch.BuildRowBatch(sb)
		return Message{Kind: KindBatch, Row: &rb}, nil
	}

	rows := batch.DecodeRows(sb)
	if *first {
		*first = false
		p.establishHeaders(rows)
		if p.colOpts.HasHeader && len(rows) > 0 {
			rows = rows[1:]
		}
		// Every batch after this one arrives pre-filtered by
		// parser.SetSelectedColumns, but this first batch was already
		// parsed before projection was known, so it must be filtered here.
		if idx := p.colBuilder.SelectedIndices(); len(idx) > 0 {
			rows = projectRows(rows, idx)
		}
	}

	cb, err := p.colBuilder.Build(rows)
	if err != nil {
		return Message{}, errors.Wrap(err, errors.ErrorTypeInternal, "build columnar batch")
	}
	return Message{Kind: KindBatch, Columnar: cb}, nil
}

// establishHeaders runs once, against the first decoded batch, choosing
// header source by configuration and then telling the parser which logical
// column indices to keep for every subsequent batch.
func (p *Pipeline) establishHeaders(rows [][]string) {
	switch {
	case p.colOpts.HasHeader:
		if len(rows) > 0 {
			p.colBuilder.EstablishFromHeaderRow(rows[0])
		}
	case len(p.colOpts.SchemaOrder) > 0:
		p.colBuilder.EstablishFromSchemaOrder()
	default:
		n := 0
		if len(rows) > 0 {
			n = len(rows[0])
		}
		p.colBuilder.EstablishSynthetic(n)
	}
	if p.colBuilder.HeadersReady() {
		if idx := p.colBuilder.SelectedIndices(); len(idx) > 0 {
			p.parser.SetSelectedColumns(idx)
		}
	}
}

// projectRows keeps only the given logical column indices from each row, in
// the given order, for the one batch parsed before projection took effect.
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
	p.log.Warn("stream terminated with error", zap.Error(err))
	p.channel.Push(Message{Kind: KindError, Err: err})
}
