package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")
	var counted int
	s, err := createSink(path, func(n int) { counted += n })
	require.NoError(t, err)

	n, err := s.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")
	assert.Equal(t, int64(5), s.written)
	assert.Equal(t, 5, counted)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestSinkAbort(t *testing.T) {
	dir := t.TempDir()

	removed := filepath.Join(dir, "removed")
	s, err := createSink(removed, nil)
	require.NoError(t, err)
	_, err = s.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, s.Abort(false))
	assert.NoFileExists(t, removed)

	kept := filepath.Join(dir, "kept")
	s, err = createSink(kept, nil)
	require.NoError(t, err)
	_, err = s.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, s.Abort(true))
	data, err := os.ReadFile(kept)
	require.NoError(t, err)
	assert.Equal(t, "partial", string(data))

	// aborting after a close still removes the file
	closed := filepath.Join(dir, "closed")
	s, err = createSink(closed, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Abort(false))
	assert.NoFileExists(t, closed)
}
