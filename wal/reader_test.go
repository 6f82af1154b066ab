package wal

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestSegment(t *testing.T, dir string, startSeq int64, records []Record) string {
	t.Helper()
	name := segmentFileName(time.Now(), startSeq)
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating test segment: %v", err)
	}
	defer f.Close()
	if err := writeSegmentHeader(f, headerVersion); err != nil {
		t.Fatalf("writing header: %v", err)
	}
	for _, r := range records {
		if _, err := f.WriteString(r.marshal() + "\n"); err != nil {
			t.Fatalf("writing record: %v", err)
		}
	}
	return path
}

func TestReadSegment_SkipsCorruptedLines(t *testing.T) {
	dir := t.TempDir()
	good := newRecord(1, time.Now(), RecordEvent, `{"ok":true}`)
	path := writeTestSegment(t, dir, 1, []Record{good})

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("reopening segment: %v", err)
	}
	if _, err := f.WriteString("2|2024-01-01T00:00:00Z|EVENT|deadbeefdeadbeef|{}\n"); err != nil {
		t.Fatalf("appending corrupted line: %v", err)
	}
	f.Close()

	var seen []Record
	if err := readSegment(path, func(r Record) error {
		seen = append(seen, r)
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 1 || seen[0].Sequence != 1 {
		t.Fatalf("expected only the valid record to survive, got %+v", seen)
	}
}

func TestReadSegment_RejectsMissingHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, segmentFileName(time.Now(), 1))
	if err := os.WriteFile(path, []byte("not a header\n"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	if err := readSegment(path, func(Record) error { return nil }); err == nil {
		t.Fatal("expected error for missing header")
	}
}

func TestMaxSequenceInDir_AcrossMultipleSegments(t *testing.T) {
	dir := t.TempDir()
	writeTestSegment(t, dir, 1, []Record{
		newRecord(1, time.Now(), RecordEvent, `{}`),
		newRecord(2, time.Now(), RecordEvent, `{}`),
	})
	writeTestSegment(t, dir, 3, []Record{
		newRecord(3, time.Now(), RecordEvent, `{}`),
		newRecord(4, time.Now(), RecordCommit, "3"),
	})

	max, err := maxSequenceInDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if max != 4 {
		t.Fatalf("expected max sequence 4, got %d", max)
	}
}
