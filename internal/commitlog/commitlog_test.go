package commitlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asynclogd/internal/engine"
)

func TestAppendReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir, Options{IndexMaxItems: 10, SegmentMaxBytes: 1 << 20})
	require.NoError(t, err)
	defer log.Close()

	first, last, err := log.Append([][]byte{[]byte("hello"), []byte("world")})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), first)
	assert.Equal(t, uint64(1), last)

	msgs, err := log.Read(engine.ReadPosition{Offset: 0}, 1024)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("hello"), msgs[0])
	assert.Equal(t, []byte("world"), msgs[1])
}

func TestReadOutOfRange(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir, Options{})
	require.NoError(t, err)
	defer log.Close()

	_, err = log.Read(engine.ReadPosition{Offset: 42}, 64)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLastOffsetZeroWhenEmpty(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir, Options{})
	require.NoError(t, err)
	defer log.Close()

	assert.Equal(t, uint64(0), log.LastOffset())
}

func TestSegmentBoundaryAdvancesOnItemThreshold(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir, Options{IndexMaxItems: 2, SegmentMaxBytes: 1 << 30})
	require.NoError(t, err)
	defer log.Close()

	_, _, err = log.Append([][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), log.SegmentID())
	assert.Equal(t, int64(0), log.SegmentItems())
}

func TestRestartRecoversLastOffset(t *testing.T) {
	dir := t.TempDir()
	log, err := Open(dir, Options{})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, _, err := log.Append([][]byte{[]byte("x")})
		require.NoError(t, err)
	}
	require.NoError(t, log.Flush())
	require.NoError(t, log.Close())

	reopened, err := Open(dir, Options{})
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, uint64(9), reopened.LastOffset())
}
