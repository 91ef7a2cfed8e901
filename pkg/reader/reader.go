// Package reader implements a finite lazy sequence of byte spans from a
// path, either buffered or whole-file memory mapped. Buffered and mapped
// modes are a tagged variant — backendBuffered | backendMapped — dispatched
// with a switch on the backend kind in Next, rather than an interface hierarchy.
package reader

import (
	"io"
	"os"

	"github.com/tabstream/tabstream/pkg/errors"
	"github.com/tabstream/tabstream/pkg/mmap"
)

const (
	minBufferSize     = 4 << 10
	maxBufferSize     = 64 << 20
	DefaultBufferSize = 256 << 10
)

// Options configures how a Reader opens its file.
type Options struct {
	// UseMmap memory-maps the whole file instead of buffering reads.
	UseMmap bool
	// BufferSize sizes the internal read buffer in buffered mode, clamped
	// to [4 KiB, 64 MiB]. Zero selects a host-memory-aware default.
	BufferSize int
}

func (o Options) normalized() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = adaptiveDefaultBufferSize()
	}
	if o.BufferSize < minBufferSize {
		o.BufferSize = minBufferSize
	}
	if o.BufferSize > maxBufferSize {
		o.BufferSize = maxBufferSize
	}
	return o
}

type backendKind int

const (
	backendBuffered backendKind = iota
	backendMapped
)

// Reader produces a finite lazy sequence of byte spans from a path. A
// buffered Reader's spans reference an internal buffer valid only until the
// next Next call; a mapped Reader's single span is valid for the Reader's
// whole lifetime. Not safe for concurrent use: the producer goroutine alone
// owns a Reader.
type Reader struct {
	kind backendKind

	// backendBuffered
	file *os.File
	buf  []byte

	// backendMapped
	region *mmap.Region

	bytesRead int64
	err       error
	eof       bool
}

// Open opens path per opts. Buffered mode allocates a buffer of
// opts.BufferSize; mmap mode maps the whole file immediately. A zero-size
// file yields a Reader whose first Next call returns an immediate EOF span.
func Open(path string, opts Options) (*Reader, error) {
	opts = opts.normalized()

	if opts.UseMmap {
		region, err := mmap.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "open mmap reader for "+path)
		}
		return &Reader{kind: backendMapped, region: region}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "open reader for "+path)
	}
	return &Reader{
		kind: backendBuffered,
		file: f,
		buf:  make([]byte, opts.BufferSize),
	}, nil
}

// Next returns the next byte span. A zero-length span signals EOF; once
// returned, every subsequent call also returns a zero-length span.
//
// In buffered mode the span aliases r's internal buffer and is only valid
// until the next Next call — the parser's Feed must copy whatever it needs
// out of it before returning. In mapped mode, Next returns the whole file
// once, then empty spans forever.
func (r *Reader) Next() []byte {
	if r.err != nil || r.eof {
		return nil
	}

	switch r.kind {
	case backendMapped:
		r.eof = true
		data := r.region.Bytes()
		if len(data) == 0 {
			return nil
		}
		r.bytesRead += int64(len(data))
		return data
	default:
		n, err := r.file.Read(r.buf)
		if n > 0 {
			r.bytesRead += int64(n)
		}
		if err != nil {
			r.eof = true
			if err != io.EOF {
				r.err = err
			}
		}
		if n == 0 {
			return nil
		}
		return r.buf[:n]
	}
}

// BytesRead returns the monotonic count of bytes yielded so far.
func (r *Reader) BytesRead() int64 {
	return r.bytesRead
}

// Err returns the latched read error, if any. A mid-stream read error
// terminates the stream (Next yields empty spans from then on) without ever
// being partially reported mid-span.
func (r *Reader) Err() error {
	return r.err
}

// Close releases the Reader's file handle or memory mapping.
func (r *Reader) Close() error {
	switch r.kind {
	case backendMapped:
		if r.region != nil {
			return r.region.Close()
		}
		return nil
	default:
		if r.file != nil {
			return r.file.Close()
		}
		return nil
	}
}
