package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// segmentNamePattern matches wal_YYYYMMDD_HHMMSS_<12-digit sequence>.wal,
// the exact filename convention required so that lexicographic sort order
// equals segment-creation order (invariant I4). Archived segments carry an
// additional ".gz" suffix.
var segmentNamePattern = regexp.MustCompile(`^wal_(\d{8})_(\d{6})_(\d{12})\.wal(\.gz)?$`)

const segmentHeaderMagic = "MDCWAL01"

// segmentFileName builds the name for a segment starting at startSeq,
// created at createdAt.
func segmentFileName(createdAt time.Time, startSeq int64) string {
	return fmt.Sprintf("wal_%s_%012d.wal", createdAt.UTC().Format("20060102_150405"), startSeq)
}

// parseSegmentStartSequence extracts the starting sequence encoded in a
// segment's filename. Returns false if name doesn't match the convention.
func parseSegmentStartSequence(name string) (int64, bool) {
	m := segmentNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	seq, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// segmentInfo describes one on-disk segment file.
type segmentInfo struct {
	Path      string
	Name      string
	StartSeq  int64
	Size      int64
	ModTime   time.Time
}

// scanSegments lists every segment file (*.wal or archived *.wal.gz) in
// dir, sorted lexicographically by
// name (which, per I4, is creation order).
func scanSegments(dir string) ([]segmentInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wal: scanning segment directory: %w", err)
	}

	var segments []segmentInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		startSeq, ok := parseSegmentStartSequence(name)
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		segments = append(segments, segmentInfo{
			Path:     filepath.Join(dir, name),
			Name:     name,
			StartSeq: startSeq,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}

	sort.Slice(segments, func(i, j int) bool { return segments[i].Name < segments[j].Name })
	return segments, nil
}

// writeSegmentHeader writes the mandated header line to a freshly created
// segment file.
func writeSegmentHeader(f *os.File, version string) error {
	_, err := fmt.Fprintf(f, "%s|%s|%s\n", segmentHeaderMagic, version, time.Now().UTC().Format(recordTimeLayout))
	return err
}
