package blobstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestTable(t *testing.T, maxSegmentSize uint64) (*Table, string) {
	t.Helper()
	dir := t.TempDir()
	tbl, err := Open(dir, "payloads", maxSegmentSize, 1<<16)
	require.NoError(t, err)
	t.Cleanup(func() { tbl.Close() })
	return tbl, dir
}

func TestAppendRetrieveRoundTrip(t *testing.T) {
	tbl, _ := openTestTable(t, 1<<20)

	blobs := [][]byte{
		[]byte("first payload"),
		[]byte("second, a bit longer payload"),
		[]byte(""),
	}
	var items []uint64
	for _, b := range blobs {
		idx, err := tbl.Append(b)
		require.NoError(t, err)
		items = append(items, idx)
	}
	require.Equal(t, []uint64{0, 1, 2}, items)
	require.Equal(t, uint64(3), tbl.Items())

	for i, idx := range items {
		got, err := tbl.Retrieve(idx)
		require.NoError(t, err)
		require.Equal(t, blobs[i], got)
	}
}

func TestRetrieveOutOfBoundsAndClosedErrors(t *testing.T) {
	tbl, _ := openTestTable(t, 1<<20)
	_, err := tbl.Append([]byte("x"))
	require.NoError(t, err)

	_, err = tbl.Retrieve(5)
	require.ErrorIs(t, err, ErrOutOfBounds)

	require.NoError(t, tbl.Close())
	_, err = tbl.Retrieve(0)
	require.ErrorIs(t, err, ErrClosed)
	_, err = tbl.Append([]byte("y"))
	require.ErrorIs(t, err, ErrClosed)
}

// TestSegmentRollsOverAtMaxSize forces every Append past the first to spill
// into a new data file, then confirms every item, old and new segment alike,
// is still retrievable by index.
func TestSegmentRollsOverAtMaxSize(t *testing.T) {
	tbl, dir := openTestTable(t, 8)

	var items []uint64
	blobs := [][]byte{
		[]byte("aaaaaaaaaaaaaaaaaaaa"),
		[]byte("bbbbbbbbbbbbbbbbbbbb"),
		[]byte("cccccccccccccccccccc"),
	}
	for _, b := range blobs {
		idx, err := tbl.Append(b)
		require.NoError(t, err)
		items = append(items, idx)
	}

	require.FileExists(t, filepath.Join(dir, "payloads.0.cdat"))
	require.FileExists(t, filepath.Join(dir, "payloads.1.cdat"))

	for i, idx := range items {
		got, err := tbl.Retrieve(idx)
		require.NoError(t, err)
		require.Equal(t, blobs[i], got)
	}
}

// TestReadCacheServesWithoutTouchingCorruptedFile confirms Retrieve
// consults the read cache ahead of the data file: once a blob has been read
// once, corrupting its on-disk bytes must not change what a second Retrieve
// returns.
func TestReadCacheServesWithoutTouchingCorruptedFile(t *testing.T) {
	tbl, dir := openTestTable(t, 1<<20)

	orig := []byte("cache me please")
	idx, err := tbl.Append(orig)
	require.NoError(t, err)

	got, err := tbl.Retrieve(idx)
	require.NoError(t, err)
	require.Equal(t, orig, got)

	garbage := make([]byte, 4096)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payloads.0.cdat"), garbage, 0o644))

	again, err := tbl.Retrieve(idx)
	require.NoError(t, err)
	require.Equal(t, orig, again, "a cache hit must not be affected by on-disk corruption")
}

// TestRepairTruncatesDanglingHead simulates a crash that left the data file
// longer than what the index records as durable: repair must truncate the
// data file back to the index's last recorded offset, mirroring
// freezerTable.repair.
func TestRepairTruncatesDanglingHead(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Open(dir, "payloads", 1<<20, 1<<16)
	require.NoError(t, err)

	idx, err := tbl.Append([]byte("durable"))
	require.NoError(t, err)
	require.NoError(t, tbl.Sync())
	require.NoError(t, tbl.Close())

	// Append dangling, unindexed bytes directly to the data file, as if a
	// write landed on disk but the process crashed before the matching
	// index record was written.
	f, err := os.OpenFile(filepath.Join(dir, "payloads.0.cdat"), os.O_RDWR|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("garbage-not-indexed"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := Open(dir, "payloads", 1<<20, 1<<16)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, uint64(1), reopened.Items())
	blob, err := reopened.Retrieve(idx)
	require.NoError(t, err)
	require.Equal(t, []byte("durable"), blob)
}
