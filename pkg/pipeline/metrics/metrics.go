// Package metrics holds PipelineMetrics, the producer-writer / consumer-reader
// atomic counter set shared across a single stream's Reader, SliceParser,
// BatchBuilder, and BoundedChannel stages.
//
// All fields are independent atomics with relaxed ordering; no ordering
// between distinct counters is implied. Timer fields are only populated when
// profiling is enabled (see ProfileEnabled), matching the source's
// ULTRATAB_PROFILE gate.
package metrics

import (
	"os"
	"sync/atomic"
)

// profileEnvVar gates the timer fields. Cheap counters (bytes, rows,
// batches, arena stats) are always recorded.
const profileEnvVar = "TABSTREAM_PROFILE"

// ProfileEnabled reports whether per-stage timing should be recorded, per
// the TABSTREAM_PROFILE environment variable ("1", "t", "T", "true" enable
// it).
func ProfileEnabled() bool {
	v := os.Getenv(profileEnvVar)
	if v == "" {
		return false
	}
	switch v[0] {
	case '1', 't', 'T':
		return true
	default:
		return false
	}
}

// Pipeline is the atomic counter block for one stream. Create with New and
// share a pointer across the stages that populate it; Snapshot gives
// consumers a point-in-time read-only copy.
type Pipeline struct {
	bytesRead        uint64
	rowsParsed       uint64
	batchesEmitted   uint64
	parseTimeNs      uint64
	readTimeNs       uint64
	buildTimeNs      uint64
	emitTimeNs       uint64
	queueWaitNs      uint64
	arenaBytesAlloc  uint64
	arenaBlocks      uint64
	arenaResets      uint64
	peakArenaUsage   uint64
	batchAllocations uint64
}

// New returns a zeroed Pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// Snapshot is an immutable point-in-time copy of every counter, safe to hand
// to a consumer goroutine.
type Snapshot struct {
	BytesRead            uint64
	RowsParsed           uint64
	BatchesEmitted       uint64
	ParseTimeNs          uint64
	ReadTimeNs           uint64
	BuildTimeNs          uint64
	EmitTimeNs           uint64
	QueueWaitNs          uint64
	ArenaBytesAllocated  uint64
	ArenaBlocks          uint64
	ArenaResets          uint64
	PeakArenaUsage       uint64
	BatchAllocations     uint64
}

// Snapshot copies every counter under relaxed atomic loads.
func (p *Pipeline) Snapshot() Snapshot {
	return Snapshot{
		BytesRead:           atomic.LoadUint64(&p.bytesRead),
		RowsParsed:          atomic.LoadUint64(&p.rowsParsed),
		BatchesEmitted:      atomic.LoadUint64(&p.batchesEmitted),
		ParseTimeNs:         atomic.LoadUint64(&p.parseTimeNs),
		ReadTimeNs:          atomic.LoadUint64(&p.readTimeNs),
		BuildTimeNs:         atomic.LoadUint64(&p.buildTimeNs),
		EmitTimeNs:          atomic.LoadUint64(&p.emitTimeNs),
		QueueWaitNs:         atomic.LoadUint64(&p.queueWaitNs),
		ArenaBytesAllocated: atomic.LoadUint64(&p.arenaBytesAlloc),
		ArenaBlocks:         atomic.LoadUint64(&p.arenaBlocks),
		ArenaResets:         atomic.LoadUint64(&p.arenaResets),
		PeakArenaUsage:      atomic.LoadUint64(&p.peakArenaUsage),
		BatchAllocations:    atomic.LoadUint64(&p.batchAllocations),
	}
}

func (p *Pipeline) AddBytesRead(n uint64)      { atomic.AddUint64(&p.bytesRead, n) }
func (p *Pipeline) AddRowsParsed(n uint64)     { atomic.AddUint64(&p.rowsParsed, n) }
func (p *Pipeline) AddBatchesEmitted(n uint64) { atomic.AddUint64(&p.batchesEmitted, n) }
func (p *Pipeline) AddParseTimeNs(n uint64)    { atomic.AddUint64(&p.parseTimeNs, n) }
func (p *Pipeline) AddReadTimeNs(n uint64)     { atomic.AddUint64(&p.readTimeNs, n) }
func (p *Pipeline) AddBuildTimeNs(n uint64)    { atomic.AddUint64(&p.buildTimeNs, n) }
func (p *Pipeline) AddEmitTimeNs(n uint64)     { atomic.AddUint64(&p.emitTimeNs, n) }
func (p *Pipeline) AddQueueWaitNs(n uint64)    { atomic.AddUint64(&p.queueWaitNs, n) }
func (p *Pipeline) AddBatchAllocations(n uint64) {
	atomic.AddUint64(&p.batchAllocations, n)
}

func (p *Pipeline) SetArenaBytesAllocated(n uint64) { atomic.StoreUint64(&p.arenaBytesAlloc, n) }
func (p *Pipeline) SetArenaBlocks(n uint64)         { atomic.StoreUint64(&p.arenaBlocks, n) }
func (p *Pipeline) SetArenaResets(n uint64)         { atomic.StoreUint64(&p.arenaResets, n) }
func (p *Pipeline) SetPeakArenaUsage(n uint64)      { atomic.StoreUint64(&p.peakArenaUsage, n) }
