// Package snapshot spills batches to disk as zstd-compressed, gob-encoded
// records. It exists for consumers that fall behind a fast producer and
// would rather page batches out to disk than grow an unbounded in-memory
// backlog or block the producer indefinitely.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/tabstream/tabstream/pkg/batch"
	"github.com/tabstream/tabstream/pkg/errors"
)

// Writer appends batches to a zstd-compressed spill file, one
// length-prefixed gob record per batch.
type Writer struct {
	f   *os.File
	buf *bufio.Writer
	zw  *zstd.Encoder
}

// Create opens (truncating) path for writing and wraps it with a zstd
// encoder at the default compression level.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "create spill file")
	}
	buf := bufio.NewWriter(f)
	zw, err := zstd.NewWriter(buf)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "construct zstd encoder")
	}
	return &Writer{f: f, buf: buf, zw: zw}, nil
}

// record is the on-disk envelope for one spilled batch. Exactly one of Row
// or Columnar is set.
type record struct {
	Row      *batch.RowBatch
	Columnar *batch.ColumnarBatch
}

// WriteRow appends a row-form batch.
func (w *Writer) WriteRow(rb batch.RowBatch) error {
	return w.writeRecord(record{Row: &rb})
}

// WriteColumnar appends a columnar-form batch.
func (w *Writer) WriteColumnar(cb *batch.ColumnarBatch) error {
	return w.writeRecord(record{Columnar: cb})
}

func (w *Writer) writeRecord(r record) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "encode spill record")
	}
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(buf.Len()))
	if _, err := w.zw.Write(lenPrefix[:]); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "write spill record length")
	}
	if _, err := w.zw.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "write spill record body")
	}
	return nil
}

// Close flushes the zstd stream and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		w.f.Close()
		return errors.Wrap(err, errors.ErrorTypeInternal, "close zstd encoder")
	}
	if err := w.buf.Flush(); err != nil {
		w.f.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "flush spill file")
	}
	return w.f.Close()
}

// Reader reads back batches written by a Writer, in the order they were
// appended.
type Reader struct {
	f  *os.File
	zr *zstd.Decoder
}

// Open opens a spill file previously written by Create for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "open spill file")
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "construct zstd decoder")
	}
	return &Reader{f: f, zr: zr}, nil
}

// Next decodes the next spilled batch. It returns io.EOF once every record
// has been read.
func (r *Reader) Next() (batch.RowBatch, *batch.ColumnarBatch, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r.zr, lenPrefix[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return batch.RowBatch{}, nil, io.EOF
		}
		return batch.RowBatch{}, nil, errors.Wrap(err, errors.ErrorTypeFile, "read spill record length")
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	body := make([]byte, n)
	if _, err := io.ReadFull(r.zr, body); err != nil {
		return batch.RowBatch{}, nil, errors.Wrap(err, errors.ErrorTypeFile, "read spill record body")
	}

	var rec record
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&rec); err != nil {
		return batch.RowBatch{}, nil, errors.Wrap(err, errors.ErrorTypeInternal, "decode spill record")
	}
	if rec.Row != nil {
		return *rec.Row, nil, nil
	}
	return batch.RowBatch{}, rec.Columnar, nil
}

// Close releases the reader's file handle and decoder.
func (r *Reader) Close() error {
	r.zr.Close()
	return r.f.Close()
}
