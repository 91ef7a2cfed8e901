package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateAndCopyUsedTo(t *testing.T) {
	a := New(minBlockSize)

	off1 := a.Write([]byte("hello"))
	off2 := a.Write([]byte("world!"))

	assert.Equal(t, 0, off1)
	assert.Equal(t, 5, off2)
	assert.Equal(t, 11, a.Used())

	out := a.CopyUsedTo(nil)
	require.Len(t, out, 11)
	assert.Equal(t, "helloworld!", string(out))
}

func TestZeroSizeAllocationDoesNotAdvance(t *testing.T) {
	a := New(minBlockSize)
	a.Write([]byte("x"))
	before := a.Used()

	dst, off := a.Allocate(0, 8)
	assert.Nil(t, dst)
	assert.Equal(t, before, off)
	assert.Equal(t, before, a.Used())
}

func TestIllegalAlignmentNormalizedToOne(t *testing.T) {
	a := New(minBlockSize)
	dst, _ := a.Allocate(4, 3) // not a power of two
	assert.Len(t, dst, 4)
}

func TestResetReusesBlocksAndZeroesUsage(t *testing.T) {
	a := New(minBlockSize)
	a.Write([]byte("some bytes"))
	blocksBefore := a.BlockCount()

	a.Reset()

	assert.Equal(t, 0, a.Used())
	assert.Equal(t, blocksBefore, a.BlockCount())
	assert.Equal(t, uint64(1), a.ResetCount())

	off := a.Write([]byte("reused"))
	assert.Equal(t, 0, off)
}

func TestBlockSizeClamped(t *testing.T) {
	small := New(16)
	assert.Equal(t, minBlockSize, small.blockSize)

	big := New(64 << 20)
	assert.Equal(t, maxBlockSize, big.blockSize)
}

func TestSpillsToNewBlockWhenCurrentIsFull(t *testing.T) {
	a := New(minBlockSize)
	big := make([]byte, minBlockSize-10)
	a.Write(big)
	assert.Equal(t, 1, a.BlockCount())

	// This allocation doesn't fit in the remaining 10 bytes of block 0.
	off := a.Write(make([]byte, 100))
	assert.Equal(t, 2, a.BlockCount())
	assert.Equal(t, len(big), off)

	out := a.CopyUsedTo(nil)
	assert.Equal(t, len(big)+100, len(out))
}

func TestPeakUsageSurvivesReset(t *testing.T) {
	a := New(minBlockSize)
	a.Write(make([]byte, 1000))
	assert.Equal(t, uint64(1000), a.PeakUsage())

	a.Reset()
	assert.Equal(t, uint64(1000), a.PeakUsage())

	a.Write(make([]byte, 10))
	assert.Equal(t, uint64(1000), a.PeakUsage())
}
