package reader

import (
	"sync"

	"github.com/shirou/gopsutil/v3/mem"
)

// adaptiveDefaultSize holds the once-computed default buffer size, derived
// from the host's available memory at first use. Reading /proc (or the
// platform equivalent) once per process, rather than per Reader, keeps
// construction cheap on hosts that open many small files.
var (
	adaptiveOnce sync.Once
	adaptiveSize int
)

// adaptiveDefaultBufferSize scales the default read-buffer size to the
// host's available memory: a fraction of what's free, clamped to
// [minBufferSize, maxBufferSize] and never above DefaultBufferSize's usual
// upper neighborhood on memory-constrained hosts. Falls back to
// DefaultBufferSize if the host's memory stats can't be read (containers
// without /proc access, unsupported platforms).
func adaptiveDefaultBufferSize() int {
	adaptiveOnce.Do(func() {
		adaptiveSize = DefaultBufferSize
		vm, err := mem.VirtualMemory()
		if err != nil || vm.Available == 0 {
			return
		}
		// Budget roughly 0.001% of available memory per open stream, on the
		// assumption that a handful of streams might be open at once.
		budget := int(vm.Available / 100_000)
		switch {
		case budget < minBufferSize:
			adaptiveSize = minBufferSize
		case budget > maxBufferSize:
			adaptiveSize = maxBufferSize
		default:
			adaptiveSize = budget
		}
	})
	return adaptiveSize
}
