// Package tabstream is a high-throughput streaming tabular data parser for
// CSV/TSV and XLSX files. It turns a file path into a bounded, cancellable
// sequence of row-form or schema-typed columnar batches, without ever
// materializing the whole file in memory.
//
// # Architecture
//
// Every front end is a four-stage pipeline running behind one producer
// goroutine:
//
//  1. Reader (pkg/reader) yields byte spans from a buffered or
//     memory-mapped file; the XLSX front end instead reads the worksheet
//     part out of the ZIP archive with archive/zip.
//  2. A front-end-specific parser turns those spans into rows: pkg/csv's
//     byte-level state machine for CSV/TSV, pkg/xlsx's SAX-style worksheet
//     walk for XLSX.
//  3. pkg/batch's Builder decodes rows into a RowBatch or, in columnar
//     mode, a schema-typed ColumnarBatch.
//  4. pkg/queue's BoundedChannel hands batches to the consumer with
//     cooperative backpressure and cancellation.
//
// pkg/pipeline and pkg/xlsx wire these stages together behind a uniform
// Message/Kind consumer contract, so a consumer can treat a CSV stream and
// an XLSX stream identically.
//
// # Quick start
//
//	import (
//	    "github.com/tabstream/tabstream/pkg/config"
//	    "github.com/tabstream/tabstream/pkg/pipeline"
//	)
//
//	opts := config.DefaultCsvOptions()
//	p, err := pipeline.NewCSVRowPipeline("data.csv", opts)
//	if err != nil {
//	    // handle
//	}
//	defer p.Close()
//	p.Start()
//	for {
//	    msg := p.Next()
//	    switch msg.Kind {
//	    case pipeline.KindBatch:
//	        // consume msg.Row
//	    case pipeline.KindDone, pipeline.KindCancelled:
//	        return
//	    case pipeline.KindError:
//	        // handle msg.Err
//	    }
//	}
//
// # Key packages
//
//	pkg/csv        - byte-level CSV/TSV state machine
//	pkg/xlsx       - XLSX worksheet resolution and streaming row walk
//	pkg/batch      - row and schema-typed columnar batch construction
//	pkg/pipeline   - CSV producer/consumer wiring and metrics
//	pkg/reader     - buffered and memory-mapped file reading
//	pkg/queue      - bounded, cancellable producer/consumer handoff
//	pkg/arena      - block-bump allocator backing parsed field bytes
//	pkg/simdscan   - capability-detected byte-scan kernels
//	pkg/config     - option structs and a Viper-backed loader
//	pkg/errors     - structured, typed error handling
//	pkg/logger     - structured logging
//	pkg/obsmetrics - Prometheus collector over pipeline metrics
//
// # Performance
//
// Batches are built over arena-backed byte storage (pkg/arena) to avoid a
// per-field heap allocation. The CSV state machine's byte scans
// (pkg/simdscan) use a word-at-a-time (SWAR) loop when the running CPU
// reports AVX2 or SSE2 and a plain byte loop otherwise; no vector-instruction
// kernels are used.
package tabstream
