package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/wal"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		expected string
		bytes    int64
	}{
		{"0 B", 0},
		{"512 B", 512},
		{"1.0 KB", 1024},
		{"1.5 KB", 1536},
		{"1.0 MB", 1048576},
		{"1.0 GB", 1073741824},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatBytes(tt.bytes))
	}
}

func TestWalkDirStats_CountsMatchingFilesOnly(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "AAPL/Trade/2026-07-30.jsonl", "one line\n")
	writeFixture(t, root, "AAPL/Trade/2026-07-31.jsonl", "two\nlines\n")
	writeFixture(t, root, "AAPL/Trade/ignored.txt", "not counted")

	stats := walkDirStats(root, ".jsonl")
	assert.Equal(t, 2, stats.files)
	assert.Greater(t, stats.bytes, int64(0))
}

func TestWalkDirStats_MissingDirectoryIsNotAnError(t *testing.T) {
	stats := walkDirStats(filepath.Join(t.TempDir(), "does-not-exist"), ".wal")
	assert.Equal(t, 0, stats.files)
	assert.Equal(t, int64(0), stats.bytes)
}

func TestStatsCmd_ReportsWALAndSinkState(t *testing.T) {
	dir := t.TempDir()
	walDir := filepath.Join(dir, "wal")
	dataRoot := filepath.Join(dir, "data")
	writeFixture(t, dataRoot, "AAPL/Trade/2026-07-30.jsonl", "{}\n")

	w, err := wal.New(walDir)
	require.NoError(t, err)
	rec, err := w.Append(`{"symbol":"AAPL"}`)
	require.NoError(t, err)
	require.NoError(t, w.Commit(rec.Sequence))
	require.NoError(t, w.Close())

	report, err := wal.VerifyIntegrityReport(walDir, true)
	require.NoError(t, err)
	assert.Equal(t, 2, report.ValidRecords) // the EVENT and its COMMIT

	lastCommitted, err := wal.LastCommittedSequence(walDir)
	require.NoError(t, err)
	assert.Equal(t, rec.Sequence, lastCommitted)

	sinkStats := walkDirStats(dataRoot, ".jsonl", ".jsonl.gz", ".parquet")
	assert.Equal(t, 1, sinkStats.files)
}

func writeFixture(t *testing.T, root, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}
