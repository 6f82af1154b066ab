package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeAged(t *testing.T, dir, name string, size int, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("writing fixture file: %v", err)
	}
	mt := time.Now().Add(-age)
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatalf("setting mtime: %v", err)
	}
	return path
}

func TestSweep_DeletesFilesOlderThanRetentionWindow(t *testing.T) {
	dir := t.TempDir()
	old := writeAged(t, dir, "old.jsonl", 10, 48*time.Hour)
	fresh := writeAged(t, dir, "fresh.jsonl", 10, time.Minute)

	m := New(Config{DataRoot: dir, RetentionDays: 1})
	if err := m.Sweep(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expected old file to be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("expected fresh file to survive: %v", err)
	}
}

func TestSweep_TrimsOldestUntilUnderByteBudget(t *testing.T) {
	dir := t.TempDir()
	oldest := writeAged(t, dir, "a.jsonl", 100, 3*time.Hour)
	middle := writeAged(t, dir, "b.jsonl", 100, 2*time.Hour)
	newest := writeAged(t, dir, "c.jsonl", 100, 1*time.Hour)

	m := New(Config{DataRoot: dir, MaxTotalBytes: 150})
	if err := m.Sweep(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(oldest); !os.IsNotExist(err) {
		t.Fatal("expected oldest file to be removed first")
	}
	if _, err := os.Stat(middle); !os.IsNotExist(err) {
		t.Fatal("expected middle file to be removed too: 200 bytes still exceed the 150-byte budget")
	}
	if _, err := os.Stat(newest); err != nil {
		t.Fatal("expected newest file to survive")
	}
}

func TestSweep_IgnoresNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, dir, "notes.txt", 10, 48*time.Hour)

	m := New(Config{DataRoot: dir, RetentionDays: 1})
	if err := m.Sweep(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Fatal("expected unmatched file to survive")
	}
}

func TestLastSweep_UpdatedAfterSweep(t *testing.T) {
	dir := t.TempDir()
	m := New(Config{DataRoot: dir})
	if !m.LastSweep().IsZero() {
		t.Fatal("expected zero last-sweep time before first sweep")
	}
	if err := m.Sweep(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.LastSweep().IsZero() {
		t.Fatal("expected last-sweep time to be set after sweep")
	}
}

func TestStart_StopTerminatesBackgroundLoop(t *testing.T) {
	dir := t.TempDir()
	m := New(Config{DataRoot: dir, SweepInterval: time.Millisecond})
	m.Start()
	time.Sleep(5 * time.Millisecond)
	m.Stop()
}
