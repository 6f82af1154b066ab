package wal

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/internal/logger"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/monitoring"
)

// readSegment opens a segment file, validates its header, and streams its
// records in order. Lines that fail to parse (malformed shape or checksum
// mismatch) are logged and skipped rather than aborting the scan — the
// corruption model is "skip and continue", not forensic repair.
func readSegment(path string, each func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("wal: opening segment %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("wal: reading header of %s: %w", path, err)
		}
		return nil // empty segment: nothing to recover
	}
	header := scanner.Text()
	if !strings.HasPrefix(header, segmentHeaderMagic+fieldSep) {
		return fmt.Errorf("%w: %s", ErrSegmentCorrupted, path)
	}

	var lastSeq int64 = -1
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		rec, err := parseRecord(line)
		if err != nil {
			logger.Log.Warn("Skipping corrupted WAL record in {segment}: {error}", path, err)
			monitoring.RecordWALCorruption()
			continue
		}
		if lastSeq >= 0 && rec.Sequence <= lastSeq {
			logger.Log.Warn("Skipping out-of-order WAL record in {segment}: sequence {sequence} after {last}", path, rec.Sequence, lastSeq)
			continue
		}
		lastSeq = rec.Sequence
		if err := each(rec); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("wal: scanning %s: %w", path, err)
	}
	return nil
}

// segmentLineScanner streams the record lines of one segment, transparently
// decompressing .gz archived segments and skipping the header line.
type segmentLineScanner struct {
	file    *os.File
	gz      *gzip.Reader
	scanner *bufio.Scanner
}

func openSegmentLines(path string) (*segmentLineScanner, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wal: opening %s: %w", path, err)
	}

	var r io.Reader = f
	s := &segmentLineScanner{file: f}
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("wal: opening gzip stream for %s: %w", path, err)
		}
		s.gz = gz
		r = gz
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	s.scanner = scanner

	if scanner.Scan() {
		if !strings.HasPrefix(scanner.Text(), segmentHeaderMagic+fieldSep) {
			s.close()
			return nil, fmt.Errorf("%w: %s", ErrSegmentCorrupted, path)
		}
	}
	return s, nil
}

func (s *segmentLineScanner) scan() bool   { return s.scanner.Scan() }
func (s *segmentLineScanner) text() string { return s.scanner.Text() }
func (s *segmentLineScanner) err() error   { return s.scanner.Err() }
func (s *segmentLineScanner) close() {
	if s.gz != nil {
		s.gz.Close()
	}
	s.file.Close()
}

// maxSequenceInDir returns the highest wal_sequence observed across every
// segment in dir, scanning in creation order. Used by init() to determine
// where the next segment should start counting from.
func maxSequenceInDir(dir string) (int64, error) {
	segments, err := scanSegments(dir)
	if err != nil {
		return 0, err
	}
	var max int64
	for _, seg := range segments {
		if err := readSegment(seg.Path, func(r Record) error {
			if r.Sequence > max {
				max = r.Sequence
			}
			return nil
		}); err != nil {
			return 0, err
		}
	}
	return max, nil
}
