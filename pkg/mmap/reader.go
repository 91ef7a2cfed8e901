// Package mmap provides the low-level memory-mapped file primitives behind
// the Reader's Mapped backend, dispatched via a tagged Buffered|Mapped
// variant in pkg/reader rather than an interface hierarchy. This package
// only opens, advises, and unmaps a whole file; everything consumer-facing
// lives in pkg/reader.
package mmap

import (
	"fmt"
	"os"
)

// Region is one whole-file memory mapping.
type Region struct {
	file *os.File
	data []byte
}

// Open memory-maps filename read-only for the lifetime of the returned
// Region and advises the kernel to prefetch it sequentially. The caller must
// call Close when done.
func Open(filename string) (*Region, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("mmap: open %s: %w", filename, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mmap: stat %s: %w", filename, err)
	}

	size := stat.Size()
	if size == 0 {
		return &Region{file: file, data: nil}, nil
	}

	data, err := mmap(int(file.Fd()), 0, int(size), ProtRead, MapShared)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mmap: map %s: %w", filename, err)
	}

	_ = madvise(data, MadvSequential)

	return &Region{file: file, data: data}, nil
}

// Bytes returns the whole mapped region. Valid only until Close.
func (r *Region) Bytes() []byte {
	return r.data
}

// Close unmaps the region and closes the underlying file descriptor.
func (r *Region) Close() error {
	var err error
	if r.data != nil {
		err = munmap(r.data)
		r.data = nil
	}
	if r.file != nil {
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.file = nil
	}
	return err
}
