// Package arena provides a block-bump allocator with per-batch reset, used
// to stage one SliceBatch's field bytes without a per-field heap allocation.
package arena

import "github.com/tabstream/tabstream/pkg/pipeline/metrics"

const (
	minBlockSize = 1 << 20 // 1 MiB
	maxBlockSize = 16 << 20
)

type block struct {
	data []byte
	used int
}

// Arena is a bump-pointer allocator over a growing list of fixed-size
// blocks. Allocations return a logical offset into the concatenation of all
// blocks' used bytes, not a pointer into a specific block; CopyUsedTo
// materializes that concatenation. Reset zeroes usage but keeps the blocks,
// so steady-state allocation across batches does not reallocate.
//
// Not safe for concurrent use; one Arena belongs to one producer goroutine.
type Arena struct {
	blockSize   int
	blocks      []*block
	logicalUsed int
	metrics     *metrics.Pipeline

	bytesAllocated uint64
	resets         uint64
	peakUsage      uint64
}

// New creates an Arena with the given block size, clamped to [1MiB, 16MiB].
func New(blockSize int) *Arena {
	if blockSize < minBlockSize {
		blockSize = minBlockSize
	}
	if blockSize > maxBlockSize {
		blockSize = maxBlockSize
	}
	return &Arena{blockSize: blockSize}
}

// SetMetrics attaches a metrics sink that Allocate/Reset update. Optional.
func (a *Arena) SetMetrics(m *metrics.Pipeline) {
	a.metrics = m
}

func alignUp(v, alignment int) int {
	return (v + alignment - 1) &^ (alignment - 1)
}

func normalizeAlignment(alignment int) int {
	if alignment <= 0 || alignment&(alignment-1) != 0 {
		return 1
	}
	return alignment
}

func (a *Arena) addBlock() *block {
	b := &block{data: make([]byte, a.blockSize)}
	a.blocks = append(a.blocks, b)
	a.bytesAllocated += uint64(a.blockSize)
	if a.metrics != nil {
		a.metrics.SetArenaBytesAllocated(a.bytesAllocated)
		a.metrics.SetArenaBlocks(uint64(len(a.blocks)))
	}
	return b
}

func (a *Arena) updatePeakUsage() {
	if uint64(a.logicalUsed) > a.peakUsage {
		a.peakUsage = uint64(a.logicalUsed)
		if a.metrics != nil {
			a.metrics.SetPeakArenaUsage(a.peakUsage)
		}
	}
}

// Allocate reserves size bytes aligned to alignment (a power of two; any
// other value is silently normalized to 1) and returns a slice to write into
// plus the logical offset at which it starts. A zero-size allocation returns
// a nil slice and the current logical offset without advancing it.
func (a *Arena) Allocate(size, alignment int) (dst []byte, logicalOffset int) {
	if size == 0 {
		return nil, a.logicalUsed
	}
	alignment = normalizeAlignment(alignment)

	if len(a.blocks) == 0 {
		a.addBlock()
	}

	cur := a.blocks[len(a.blocks)-1]
	alignedUsed := alignUp(cur.used, alignment)
	if alignedUsed+size > len(cur.data) {
		next := a.addBlock()
		off := a.logicalUsed
		a.logicalUsed += size
		next.used = size
		a.updatePeakUsage()
		return next.data[0:size], off
	}

	off := a.logicalUsed
	a.logicalUsed += size
	cur.used = alignedUsed + size
	a.updatePeakUsage()
	return cur.data[alignedUsed : alignedUsed+size], off
}

// Write allocates len(data) bytes, copies data into them, and returns the
// logical offset at which the copy starts.
func (a *Arena) Write(data []byte) int {
	dst, off := a.Allocate(len(data), 1)
	if len(data) > 0 {
		copy(dst, data)
	}
	return off
}

// Used returns the number of logical bytes allocated since the last Reset.
func (a *Arena) Used() int {
	return a.logicalUsed
}

// CopyUsedTo linearizes every block's used bytes, in block order, appending
// them to out. After this call len(out) grows by exactly Used().
func (a *Arena) CopyUsedTo(out []byte) []byte {
	for _, b := range a.blocks {
		if b.used > 0 {
			out = append(out, b.data[:b.used]...)
		}
	}
	return out
}

// Reset zeroes every block's used counter and the logical offset, without
// freeing any block, so the next batch reuses the same backing storage.
func (a *Arena) Reset() {
	for _, b := range a.blocks {
		b.used = 0
	}
	a.logicalUsed = 0
	a.resets++
	if a.metrics != nil {
		a.metrics.SetArenaResets(a.resets)
	}
}

// BytesAllocated returns the total capacity across all blocks ever created.
func (a *Arena) BytesAllocated() uint64 { return a.bytesAllocated }

// BlockCount returns the number of blocks currently held.
func (a *Arena) BlockCount() int { return len(a.blocks) }

// ResetCount returns how many times Reset has been called.
func (a *Arena) ResetCount() uint64 { return a.resets }

// PeakUsage returns the maximum value Used() has ever reported.
func (a *Arena) PeakUsage() uint64 { return a.peakUsage }
