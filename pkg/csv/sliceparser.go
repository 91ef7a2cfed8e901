// Package csv implements the byte-level CSV/TSV state machine: Parser
// consumes chunks from a reader, tracks quoting and row/field boundaries
// across chunk seams, and emits batches of FieldSlice references into an
// arena rather than per-field strings.
package csv

import (
	"github.com/tabstream/tabstream/pkg/arena"
	"github.com/tabstream/tabstream/pkg/pipeline/metrics"
	"github.com/tabstream/tabstream/pkg/simdscan"
)

// FieldSlice is a reference into a SliceBatch's linearized arena buffer.
type FieldSlice struct {
	Offset int
	Len    int
}

// SliceRow is one row as an ordered sequence of field slices.
type SliceRow []FieldSlice

// SliceBatch is the parser's self-contained output unit: a copied arena
// buffer plus the rows of slices referencing it.
type SliceBatch struct {
	Arena []byte
	Rows  []SliceRow
}

type state int

const (
	stateFieldStart state = iota
	stateInField
	stateInQuoted
	stateInQuotedAfterQuote
)

// Parser is the CSV byte-level state machine. One Parser handles one
// stream; it is not safe for concurrent use.
//
// Field bytes are appended into the arena incrementally, as each confirmed
// segment is identified (the plain run before a doubled quote, the single
// retained quote of a doubled pair, and so on), rather than computed as one
// span after the field closes. This keeps chunk-spanning fields correct
// without tracking a two-segment seam explicitly: Feed concatenates the
// carried remainder with the new chunk into one buffer, and a field's
// already-flushed prefix from an earlier feed is simply not part of that
// remainder.
type Parser struct {
	opts     Options
	features simdscan.Features
	arena    *arena.Arena
	metrics  *metrics.Pipeline

	st state

	buf []byte
	pos int

	// flushedTo is the buf index up to which the current field's bytes
	// have already been written to the arena.
	flushedTo int
	// fieldArenaOff is the logical arena offset where the current field's
	// bytes begin, or -1 if nothing has been written for it yet.
	fieldArenaOff   int
	fieldLen        int
	curFieldWanted  bool

	curRow SliceRow
	rows   []SliceRow

	colIndex        int
	selectedColumns map[int]bool
	haveProjection  bool

	skipOneRow bool
	batchReady bool

	// finalCalled is set once Flush is called; it stays true afterward so a
	// TakeBatch-triggered resume of a multi-batch final buffer still runs in
	// final mode. ended guards the true-EOF finalization (trailing field,
	// mid-quote discard) so it fires exactly once even though advance can be
	// re-entered many times draining a single large final buffer.
	finalCalled bool
	ended       bool
}

// NewParser constructs a Parser with the given options (clamped) and a
// fresh arena at the minimum block size. The SIMD feature set is detected
// once, at construction, and stored by value.
func NewParser(opts Options) *Parser {
	return &Parser{
		opts:          opts.normalized(),
		features:      simdscan.Detect(),
		arena:         arena.New(0),
		st:            stateFieldStart,
		fieldArenaOff: -1,
	}
}

// SetMetrics attaches a metrics sink shared with the rest of the pipeline.
func (p *Parser) SetMetrics(m *metrics.Pipeline) {
	p.metrics = m
	p.arena.SetMetrics(m)
}

// SetSelectedColumns restricts emission to the given logical column
// indices. An empty or nil slice disables projection (all columns
// emitted). Unselected columns consume no arena bytes.
func (p *Parser) SetSelectedColumns(indices []int) {
	if len(indices) == 0 {
		p.haveProjection = false
		p.selectedColumns = nil
		return
	}
	p.haveProjection = true
	p.selectedColumns = make(map[int]bool, len(indices))
	for _, i := range indices {
		p.selectedColumns[i] = true
	}
}

// SkipOneRow arms a one-shot flag: the next row the state machine completes
// is discarded instead of recorded. Used to drop a header row from the
// data stream once the driver has captured it separately.
func (p *Parser) SkipOneRow() {
	p.skipOneRow = true
}

func (p *Parser) columnSelected(idx int) bool {
	if !p.haveProjection {
		return true
	}
	return p.selectedColumns[idx]
}

// Feed advances the state machine over the new chunk, appended to whatever
// unflushed remainder survived the previous Feed/Flush. Complete rows
// accumulate internally; call HasBatch/TakeBatch to retrieve them.
func (p *Parser) Feed(chunk []byte) {
	if p.flushedTo < len(p.buf) {
		remainder := p.buf[p.flushedTo:]
		buf := make([]byte, 0, len(remainder)+len(chunk))
		buf = append(buf, remainder...)
		buf = append(buf, chunk...)
		p.buf = buf
	} else {
		p.buf = append([]byte(nil), chunk...)
	}
	p.pos -= p.flushedTo
	if p.pos < 0 {
		p.pos = 0
	}
	p.flushedTo = 0
	p.advance()
}

// beginField marks the start of a new field's content at buf index start.
func (p *Parser) beginField(start int) {
	p.flushedTo = start
	p.fieldArenaOff = -1
	p.fieldLen = 0
	p.curFieldWanted = p.columnSelected(p.colIndex)
}

// appendSegment flushes buf[flushedTo:end], a confirmed plain run of the
// current field, into the arena (unless the field is projected out).
func (p *Parser) appendSegment(end int) {
	if end <= p.flushedTo {
		p.flushedTo = end
		return
	}
	if !p.curFieldWanted {
		p.flushedTo = end
		return
	}
	off := p.arena.Write(p.buf[p.flushedTo:end])
	if p.fieldArenaOff == -1 {
		p.fieldArenaOff = off
	}
	p.fieldLen += end - p.flushedTo
	p.flushedTo = end
}

// appendLiteralQuoteByte writes the single retained quote of a doubled pair
// (buf[at]) into the arena as one literal byte.
func (p *Parser) appendLiteralQuoteByte(at int) {
	if p.curFieldWanted {
		off := p.arena.Write(p.buf[at : at+1])
		if p.fieldArenaOff == -1 {
			p.fieldArenaOff = off
		}
		p.fieldLen++
	}
	p.flushedTo = at + 1
}

// finishField records the current field's FieldSlice (if selected) and
// resets per-field state for the next one.
func (p *Parser) finishField() {
	if p.curFieldWanted {
		off := p.fieldArenaOff
		if off == -1 {
			_, off = p.arena.Allocate(0, 1)
		}
		p.curRow = append(p.curRow, FieldSlice{Offset: off, Len: p.fieldLen})
	}
	p.colIndex++
	p.fieldArenaOff = -1
	p.fieldLen = 0
}

func (p *Parser) endRow() {
	p.colIndex = 0
	if p.skipOneRow {
		p.skipOneRow = false
		p.curRow = nil
		return
	}
	p.rows = append(p.rows, p.curRow)
	p.curRow = nil
	if p.metrics != nil {
		p.metrics.AddRowsParsed(1)
	}
	if len(p.rows) >= p.opts.BatchSize {
		p.batchReady = true
	}
}

// run drives the state machine across p.buf from p.pos, stopping the moment
// a completed row fills the current batch (batchReady) so a single Feed
// over an oversized chunk (e.g. a whole mmap'd file) never accumulates more
// than opts.BatchSize rows before the driver can drain one; advance resumes
// it over the rest of the same buffer once TakeBatch clears batchReady. In
// non-final mode (normal Feed calls) it also defers a decision and returns
// as soon as it would need a byte beyond the end of the buffer to resolve
// CRLF or a quote's classifier byte, leaving that undecided byte in the
// unflushed remainder for the next Feed. In final mode (Flush) no more data
// is ever coming, so a trailing bare CR is resolved immediately as a
// terminator.
func (p *Parser) run(final bool) {
	n := len(p.buf)
	buf := p.buf
	delim := p.opts.Delimiter
	quote := p.opts.Quote

	for p.pos < n && !p.batchReady {
		switch p.st {
		case stateFieldStart:
			c := buf[p.pos]
			switch {
			case c == quote:
				p.beginField(p.pos + 1)
				p.pos++
				p.st = stateInQuoted
			case c == delim:
				p.beginField(p.pos)
				p.finishField()
				p.pos++
				p.settle()
			case c == '\r':
				if !final && p.pos+1 >= n {
					return
				}
				p.beginField(p.pos)
				p.finishField()
				p.pos += p.crlfLen(p.pos, n)
				p.settle()
				p.endRow()
			case c == '\n':
				p.beginField(p.pos)
				p.finishField()
				p.pos++
				p.settle()
				p.endRow()
			default:
				p.beginField(p.pos)
				p.st = stateInField
			}

		case stateInField:
			rel := simdscan.ScanForSeparator(buf[p.pos:n], delim, p.features)
			if rel > 0 {
				p.pos += rel
				continue
			}
			c := buf[p.pos]
			switch {
			case c == delim:
				p.appendSegment(p.pos)
				p.finishField()
				p.pos++
				p.settle()
				p.st = stateFieldStart
			case c == '\r':
				if !final && p.pos+1 >= n {
					return
				}
				p.appendSegment(p.pos)
				p.finishField()
				p.pos += p.crlfLen(p.pos, n)
				p.settle()
				p.endRow()
				p.st = stateFieldStart
			default: // '\n'
				p.appendSegment(p.pos)
				p.finishField()
				p.pos++
				p.settle()
				p.endRow()
				p.st = stateFieldStart
			}

		case stateInQuoted:
			rel := simdscan.ScanForChar(buf[p.pos:n], quote, p.features)
			if rel > 0 {
				p.pos += rel
				continue
			}
			if p.pos+1 >= n {
				// Classifier byte for this quote isn't available yet.
				// Leave state as InQuoted; Flush's discard rule covers
				// the true-EOF case, and a later Feed will re-scan.
				return
			}
			p.appendSegment(p.pos)
			p.pos++
			p.settle()
			p.st = stateInQuotedAfterQuote

		case stateInQuotedAfterQuote:
			c := buf[p.pos]
			switch {
			case c == quote:
				p.appendLiteralQuoteByte(p.pos)
				p.pos++
				p.st = stateInQuoted
			case c == delim:
				p.finishField()
				p.pos++
				p.settle()
				p.st = stateFieldStart
			case c == '\r':
				if !final && p.pos+1 >= n {
					return
				}
				p.finishField()
				p.pos += p.crlfLen(p.pos, n)
				p.settle()
				p.endRow()
				p.st = stateFieldStart
			case c == '\n':
				p.finishField()
				p.pos++
				p.settle()
				p.endRow()
				p.st = stateFieldStart
			default:
				// Trailing text after a doubled-quote run, before the
				// next delimiter: not strict RFC 4180. Resume as plain
				// field content continuing the same field; this byte is
				// unflushed content, not yet consumed.
				p.flushedTo = p.pos
				p.st = stateInField
			}
		}
	}
}

// settle synchronizes flushedTo to the current position after consuming a
// boundary byte (a delimiter, a line terminator, or a quote classifier) that
// is never field content. Without this, a Feed that ends exactly on such a
// boundary would leave flushedTo pointing at the start of the byte just
// consumed, and TakeRemainder would re-offer it as unconsumed on the next
// Feed.
func (p *Parser) settle() {
	p.flushedTo = p.pos
}

// crlfLen returns how many bytes the terminator starting at buf[at]
// occupies: 2 for CRLF, 1 for a lone CR or LF.
func (p *Parser) crlfLen(at, n int) int {
	if p.buf[at] == '\r' && at+1 < n && p.buf[at+1] == '\n' {
		return 2
	}
	return 1
}

// Flush signals end of stream: no further Feed calls will come. The
// remaining buffered bytes are finalized via advance, which may take several
// TakeBatch-driven resumes to fully drain if more than one batch's worth of
// rows is still pending.
func (p *Parser) Flush() {
	p.finalCalled = true
	p.advance()
}

// advance runs the state machine as far as the currently buffered bytes
// allow. run only ever stops before exhausting final-mode input because a
// batch just filled (batchReady); any other stopping point in final mode —
// including the stateInQuoted deferral one byte short of the buffer's end —
// is the true end of stream, at which point any pending field/row is
// finalized exactly once (guarded by ended) and the last, possibly
// undersized, batch is marked ready. TakeBatch resumes advance over the rest
// of the same buffer once it clears batchReady, draining a final buffer that
// spans several batches without requiring another Feed.
func (p *Parser) advance() {
	p.run(p.finalCalled)
	if !p.finalCalled || p.batchReady || p.ended {
		return
	}
	p.ended = true

	switch p.st {
	case stateInQuoted, stateInQuotedAfterQuote:
		// Unterminated quote at true EOF: discard silently.
	case stateInField:
		p.appendSegment(len(p.buf))
		p.finishField()
		p.endRow()
	case stateFieldStart:
		if p.colIndex > 0 {
			// A final delimiter with nothing after it implies one more
			// empty trailing field, not a terminator: "1,2," -> ["1","2",""].
			p.beginField(len(p.buf))
			p.finishField()
			p.endRow()
		}
	}

	p.buf = nil
	p.pos = 0
	p.flushedTo = 0
	if len(p.rows) > 0 {
		p.batchReady = true
	}
}

// HasBatch reports whether a full (or, after Flush, final partial) batch is
// ready to be taken.
func (p *Parser) HasBatch() bool {
	return p.batchReady
}

// TakeBatch copies the arena's used bytes into a self-owned buffer, moves
// the accumulated rows out, resets the arena, and returns the batch — always
// exactly opts.BatchSize rows, or fewer only for the final batch of a
// stream. If more rows are still buffered (run stopped early filling this
// batch, e.g. a single oversized Feed spanning many batches), parsing
// resumes immediately so the next HasBatch/TakeBatch call sees the next cut
// without requiring another Feed.
func (p *Parser) TakeBatch() SliceBatch {
	b := SliceBatch{
		Arena: p.arena.CopyUsedTo(nil),
		Rows:  p.rows,
	}
	p.rows = nil
	p.arena.Reset()
	p.batchReady = false
	if p.metrics != nil {
		p.metrics.AddBatchesEmitted(1)
		p.metrics.AddBatchAllocations(1)
	}
	p.advance()
	return b
}

// TakeRemainder returns a copy of the unconsumed, unflushed tail of the last
// Feed call: the bytes the next Feed prepends to its chunk by itself. Bytes
// already turned into parser state, such as a field's opening quote, are not
// part of it. Returns nil once Flush has finalized the stream.
func (p *Parser) TakeRemainder() []byte {
	if p.flushedTo >= len(p.buf) {
		return nil
	}
	return append([]byte(nil), p.buf[p.flushedTo:]...)
}
