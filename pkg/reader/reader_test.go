package reader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBufferedReaderYieldsAllBytesThenEOF(t *testing.T) {
	path := writeTempFile(t, "a,b,c\n1,2,3\n")
	r, err := Open(path, Options{BufferSize: 4})
	require.NoError(t, err)
	defer r.Close()

	var got []byte
	for {
		chunk := r.Next()
		if len(chunk) == 0 {
			break
		}
		got = append(got, chunk...)
	}
	assert.Equal(t, "a,b,c\n1,2,3\n", string(got))
	assert.Equal(t, int64(12), r.BytesRead())

	assert.Empty(t, r.Next())
	assert.Empty(t, r.Next())
}

func TestMmapReaderYieldsWholeFileOnce(t *testing.T) {
	path := writeTempFile(t, "hello,world\n")
	r, err := Open(path, Options{UseMmap: true})
	require.NoError(t, err)
	defer r.Close()

	first := r.Next()
	assert.Equal(t, "hello,world\n", string(first))

	second := r.Next()
	assert.Empty(t, second)
}

func TestZeroSizeFileYieldsImmediateEOF(t *testing.T) {
	path := writeTempFile(t, "")
	r, err := Open(path, Options{})
	require.NoError(t, err)
	defer r.Close()

	assert.Empty(t, r.Next())
}

func TestOpenMissingFileReturnsError(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.csv"), Options{})
	assert.Error(t, err)
}

func TestBufferSizeClamped(t *testing.T) {
	assert.Equal(t, minBufferSize, Options{BufferSize: 1}.normalized().BufferSize)
	assert.Equal(t, maxBufferSize, Options{BufferSize: 1 << 30}.normalized().BufferSize)
	assert.Equal(t, DefaultBufferSize, Options{}.normalized().BufferSize)
}
