// Package obsmetrics exports a stream's pipeline metrics as Prometheus
// collectors, mirroring pkg/pipeline/metrics.Pipeline's atomics as counters
// and gauges under a registerable prometheus.Collector.
package obsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tabstream/tabstream/pkg/pipeline/metrics"
)

// Collector adapts one stream's metrics.Pipeline into Prometheus counters
// and gauges.
// Register it with a prometheus.Registry to expose /metrics for that
// stream; construct one per active Pipeline.
type Collector struct {
	source *metrics.Pipeline
	stream string

	bytesRead        *prometheus.Desc
	rowsParsed       *prometheus.Desc
	batchesEmitted   *prometheus.Desc
	arenaBytesAlloc  *prometheus.Desc
	arenaBlocks      *prometheus.Desc
	arenaResets      *prometheus.Desc
	peakArenaUsage   *prometheus.Desc
	batchAllocations *prometheus.Desc
	parseTimeNs      *prometheus.Desc
	readTimeNs       *prometheus.Desc
	buildTimeNs      *prometheus.Desc
	emitTimeNs       *prometheus.Desc
	queueWaitNs      *prometheus.Desc
}

// NewCollector constructs a Collector for one stream identified by label
// value stream (typically its source path). source must outlive the
// Collector.
func NewCollector(stream string, source *metrics.Pipeline) *Collector {
	labels := []string{"stream"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("tabstream_"+name, help, labels, nil)
	}
	return &Collector{
		source:           source,
		stream:           stream,
		bytesRead:        desc("bytes_read_total", "Bytes read from the source so far."),
		rowsParsed:       desc("rows_parsed_total", "Rows parsed so far."),
		batchesEmitted:   desc("batches_emitted_total", "Batches emitted to the consumer so far."),
		arenaBytesAlloc:  desc("arena_bytes_allocated", "Bytes currently allocated by the arena."),
		arenaBlocks:      desc("arena_blocks", "Arena blocks currently held."),
		arenaResets:      desc("arena_resets_total", "Arena reset operations so far."),
		peakArenaUsage:   desc("arena_peak_usage_bytes", "Peak arena usage observed so far."),
		batchAllocations: desc("batch_allocations_total", "Batch allocations so far."),
		parseTimeNs:      desc("parse_time_nanoseconds_total", "Cumulative time spent parsing, in nanoseconds. Zero unless TABSTREAM_PROFILE is set."),
		readTimeNs:       desc("read_time_nanoseconds_total", "Cumulative time spent reading, in nanoseconds. Zero unless TABSTREAM_PROFILE is set."),
		buildTimeNs:      desc("build_time_nanoseconds_total", "Cumulative time spent building batches, in nanoseconds. Zero unless TABSTREAM_PROFILE is set."),
		emitTimeNs:       desc("emit_time_nanoseconds_total", "Cumulative time spent pushing to the queue, in nanoseconds. Zero unless TABSTREAM_PROFILE is set."),
		queueWaitNs:      desc("queue_wait_nanoseconds_total", "Cumulative time spent blocked on the queue, in nanoseconds. Zero unless TABSTREAM_PROFILE is set."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.bytesRead
	ch <- c.rowsParsed
	ch <- c.batchesEmitted
	ch <- c.arenaBytesAlloc
	ch <- c.arenaBlocks
	ch <- c.arenaResets
	ch <- c.peakArenaUsage
	ch <- c.batchAllocations
	ch <- c.parseTimeNs
	ch <- c.readTimeNs
	ch <- c.buildTimeNs
	ch <- c.emitTimeNs
	ch <- c.queueWaitNs
}

// Collect implements prometheus.Collector, reading a fresh snapshot on
// every scrape.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Snapshot()
	counter := func(desc *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), c.stream)
	}
	gauge := func(desc *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(v), c.stream)
	}
	counter(c.bytesRead, s.BytesRead)
	counter(c.rowsParsed, s.RowsParsed)
	counter(c.batchesEmitted, s.BatchesEmitted)
	gauge(c.arenaBytesAlloc, s.ArenaBytesAllocated)
	gauge(c.arenaBlocks, s.ArenaBlocks)
	counter(c.arenaResets, s.ArenaResets)
	gauge(c.peakArenaUsage, s.PeakArenaUsage)
	counter(c.batchAllocations, s.BatchAllocations)
	counter(c.parseTimeNs, s.ParseTimeNs)
	counter(c.readTimeNs, s.ReadTimeNs)
	counter(c.buildTimeNs, s.BuildTimeNs)
	counter(c.emitTimeNs, s.EmitTimeNs)
	counter(c.queueWaitNs, s.QueueWaitNs)
}
