// Package wal implements the collector's write-ahead log: the durability
// boundary every market event passes through before it is considered safe.
// Records are newline-delimited text lines (not a binary frame format),
// grouped into segments whose filenames sort in creation order.
package wal

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/internal/logger"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/security"
)

// SyncMode governs how aggressively the WAL forces data to stable storage.
type SyncMode int

const (
	// NoSync relies entirely on the OS page cache; a successful append is
	// durable only up to whatever the kernel has not yet flushed.
	NoSync SyncMode = iota
	// BatchedSync fsyncs once sync_batch_size uncommitted records have
	// accumulated, or once max_flush_delay has elapsed since the last
	// fsync, whichever comes first.
	BatchedSync
	// EveryWrite fsyncs after every single append.
	EveryWrite
)

const (
	defaultMaxSegmentBytes  = 100 * 1024 * 1024
	defaultMaxSegmentAge    = time.Hour
	defaultSyncBatchSize    = 200
	defaultMaxFlushDelay    = 2 * time.Second
	headerVersion           = "1"
)

// Config configures a WAL instance. Zero-value fields take the documented
// defaults in New.
type Config struct {
	Dir                  string
	MaxSegmentBytes      int64
	MaxSegmentAge        time.Duration
	SyncMode             SyncMode
	SyncBatchSize        int
	MaxFlushDelay        time.Duration
	ArchiveAfterTruncate bool
	ArchiveEncryptor     security.Encryptor
}

// Option customizes a Config beyond its defaults.
type Option func(*Config)

func WithMaxSegmentBytes(n int64) Option { return func(c *Config) { c.MaxSegmentBytes = n } }
func WithMaxSegmentAge(d time.Duration) Option { return func(c *Config) { c.MaxSegmentAge = d } }
func WithSyncMode(m SyncMode) Option           { return func(c *Config) { c.SyncMode = m } }
func WithSyncBatchSize(n int) Option           { return func(c *Config) { c.SyncBatchSize = n } }
func WithMaxFlushDelay(d time.Duration) Option { return func(c *Config) { c.MaxFlushDelay = d } }
func WithArchiveAfterTruncate(b bool) Option   { return func(c *Config) { c.ArchiveAfterTruncate = b } }

// WithArchiveEncryptor encrypts every gzip-compressed archived segment with
// enc before it is written to disk. Never enabled by default; the
// uncompressed active/closed segments under Dir itself are never encrypted,
// only the output of the archive-after-truncate step.
func WithArchiveEncryptor(enc security.Encryptor) Option {
	return func(c *Config) { c.ArchiveEncryptor = enc }
}

func defaultConfig(dir string) Config {
	return Config{
		Dir:             dir,
		MaxSegmentBytes: defaultMaxSegmentBytes,
		MaxSegmentAge:   defaultMaxSegmentAge,
		SyncMode:        BatchedSync,
		SyncBatchSize:   defaultSyncBatchSize,
		MaxFlushDelay:   defaultMaxFlushDelay,
	}
}

// WAL is the write-ahead log for a single directory. Append is serialized
// by an internal mutex: the spec calls for single-writer semantics, not
// lock-free concurrency.
type WAL struct {
	cfg Config

	mu              sync.Mutex
	file            *os.File
	writer          *bufio.Writer
	segmentName     string
	segmentStart    int64 // starting sequence of the current segment
	segmentCreated  time.Time
	segmentBytes    int64
	nextSeq         int64 // sequence to assign to the next EVENT/COMMIT
	sinceLastSync   int
	lastSyncTime    time.Time
	closed          bool
}

// New opens (or creates) the WAL directory, recovers the maximum observed
// sequence, and starts a fresh segment.
func New(dir string, opts ...Option) (*WAL, error) {
	cfg := defaultConfig(dir)
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxSegmentBytes <= 0 {
		cfg.MaxSegmentBytes = defaultMaxSegmentBytes
	}
	if cfg.MaxSegmentAge <= 0 {
		cfg.MaxSegmentAge = defaultMaxSegmentAge
	}
	if cfg.SyncBatchSize <= 0 {
		cfg.SyncBatchSize = defaultSyncBatchSize
	}
	if cfg.MaxFlushDelay <= 0 {
		cfg.MaxFlushDelay = defaultMaxFlushDelay
	}

	w := &WAL{cfg: cfg}
	if err := w.init(); err != nil {
		return nil, err
	}
	return w, nil
}

// init scans existing segments for the highest wal_sequence observed and
// opens a fresh segment starting at max+1.
func (w *WAL) init() error {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("wal: creating directory: %w", err)
	}
	maxSeq, err := maxSequenceInDir(w.cfg.Dir)
	if err != nil {
		return fmt.Errorf("wal: scanning for recovery point: %w", err)
	}
	w.nextSeq = maxSeq + 1
	return w.openNewSegment()
}

// openNewSegment must be called with mu held (or during init, before any
// concurrent access is possible).
func (w *WAL) openNewSegment() error {
	now := time.Now().UTC()
	name := segmentFileName(now, w.nextSeq)
	path := filepath.Join(w.cfg.Dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("wal: creating segment %s: %w", name, err)
	}
	if err := writeSegmentHeader(f, headerVersion); err != nil {
		f.Close()
		return fmt.Errorf("wal: writing segment header: %w", err)
	}

	w.file = f
	w.writer = bufio.NewWriter(f)
	w.segmentName = name
	w.segmentStart = w.nextSeq
	w.segmentCreated = now
	w.segmentBytes = 0
	w.lastSyncTime = now
	return nil
}

// Append serializes payload as an EVENT record (or COMMIT, via Commit),
// assigns it the next sequence number, writes it to the current segment,
// rotating first if the rotation policy requires it, and applies the
// configured sync policy.
func (w *WAL) Append(payload string) (Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.appendLocked(RecordEvent, payload)
}

func (w *WAL) appendLocked(recordType RecordType, payload string) (Record, error) {
	if w.closed {
		return Record{}, ErrClosed
	}
	if w.shouldRotateLocked() {
		if err := w.rotateLocked(); err != nil {
			return Record{}, err
		}
	}

	rec := newRecord(w.nextSeq, time.Now(), recordType, payload)
	line := rec.marshal() + "\n"
	n, err := w.writer.WriteString(line)
	if err != nil {
		return Record{}, fmt.Errorf("wal: writing record: %w", err)
	}
	w.nextSeq++
	w.segmentBytes += int64(n)
	w.sinceLastSync++

	if err := w.maybeSyncLocked(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Commit emits a COMMIT record covering every EVENT up to and including
// throughSequence, then forces a flush.
func (w *WAL) Commit(throughSequence int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.appendLocked(RecordCommit, fmt.Sprintf("%d", throughSequence)); err != nil {
		return err
	}
	return w.flushLocked(true)
}

// Flush flushes the buffered writer and, unless sync mode is NoSync,
// fsyncs the current segment file.
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.flushLocked(w.cfg.SyncMode != NoSync)
}

func (w *WAL) flushLocked(fsync bool) error {
	if w.writer == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("wal: flushing buffer: %w", err)
	}
	if fsync {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("wal: fsyncing segment: %w", err)
		}
		w.sinceLastSync = 0
		w.lastSyncTime = time.Now()
	}
	return nil
}

// maybeSyncLocked applies the configured sync mode after an append.
func (w *WAL) maybeSyncLocked() error {
	switch w.cfg.SyncMode {
	case NoSync:
		return w.writer.Flush()
	case EveryWrite:
		return w.flushLocked(true)
	case BatchedSync:
		due := w.sinceLastSync >= w.cfg.SyncBatchSize || time.Since(w.lastSyncTime) >= w.cfg.MaxFlushDelay
		if due {
			return w.flushLocked(true)
		}
		return w.writer.Flush()
	default:
		return w.writer.Flush()
	}
}

// shouldRotateLocked reports whether the active segment has outgrown its
// size or age budget. A segment holding no records is never rotated: its
// replacement would start at the same sequence and, within the same
// second, carry the same file name.
func (w *WAL) shouldRotateLocked() bool {
	if w.file == nil {
		return true
	}
	if w.segmentBytes == 0 {
		return false
	}
	if w.segmentBytes >= w.cfg.MaxSegmentBytes {
		return true
	}
	return time.Since(w.segmentCreated) >= w.cfg.MaxSegmentAge
}

// rotateLocked flushes and closes the active segment and opens a new one
// starting at the next sequence.
func (w *WAL) rotateLocked() error {
	if w.file != nil {
		if err := w.flushLocked(true); err != nil {
			return err
		}
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("wal: closing segment %s: %w", w.segmentName, err)
		}
	}
	return w.openNewSegment()
}

// UncommittedRecords returns every EVENT record not yet covered by the
// final COMMIT marker on disk, in ascending sequence order.
func (w *WAL) UncommittedRecords() ([]Record, error) {
	return uncommittedRecords(w.cfg.Dir)
}

// Truncate deletes (or archives) every closed segment whose maximum
// sequence is at most throughSequence. The active segment is never
// truncated.
func (w *WAL) Truncate(throughSequence int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	segments, err := scanSegments(w.cfg.Dir)
	if err != nil {
		return err
	}
	for i, seg := range segments {
		if seg.Name == w.segmentName {
			continue // never truncate the active segment
		}
		// A segment's max sequence is bounded by the next segment's start
		// (or, for the last closed segment before the active one, by
		// nextSeq - 1).
		var maxSeq int64
		if i+1 < len(segments) {
			maxSeq = segments[i+1].StartSeq - 1
		} else {
			maxSeq = w.nextSeq - 1
		}
		if maxSeq > throughSequence {
			continue
		}
		if err := w.disposeSegment(seg); err != nil {
			return err
		}
	}
	return nil
}

func (w *WAL) disposeSegment(seg segmentInfo) error {
	if !w.cfg.ArchiveAfterTruncate {
		if err := os.Remove(seg.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("wal: removing truncated segment %s: %w", seg.Name, err)
		}
		return nil
	}
	if err := gzipArchiveSegment(w.cfg.Dir, seg, w.cfg.ArchiveEncryptor); err != nil {
		return err
	}
	if err := os.Remove(seg.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("wal: removing archived segment %s: %w", seg.Name, err)
	}
	return nil
}

// gzipArchiveSegment gzips seg into dir/archive. When enc is non-nil, the
// gzipped bytes are encrypted before the single write to disk — an AEAD
// cipher needs a discrete buffer, not a streaming writer destination, so
// the compressed segment is staged in memory first. Archived segments are
// already closed and bounded by MaxSegmentBytes, so this is not unbounded.
// Encrypted archived segments are opaque to VerifyIntegrityReport's
// archived-segment scan and to replay until manually decrypted — the same
// policy archive.Create follows for encrypted package entries.
func gzipArchiveSegment(dir string, seg segmentInfo, enc security.Encryptor) error {
	archiveDir := filepath.Join(dir, "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return fmt.Errorf("wal: creating archive directory: %w", err)
	}
	dest := filepath.Join(archiveDir, seg.Name+".gz")

	src, err := os.Open(seg.Path)
	if err != nil {
		return fmt.Errorf("wal: opening segment to archive %s: %w", seg.Name, err)
	}
	defer src.Close()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		return fmt.Errorf("wal: gzipping segment %s: %w", seg.Name, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("wal: closing gzip writer for %s: %w", seg.Name, err)
	}

	payload := buf.Bytes()
	if enc != nil {
		payload, err = enc.Encrypt(payload)
		if err != nil {
			return fmt.Errorf("wal: encrypting archived segment %s: %w", seg.Name, err)
		}
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("wal: creating archive file for %s: %w", seg.Name, err)
	}
	defer out.Close()

	if _, err := out.Write(payload); err != nil {
		return fmt.Errorf("wal: writing archive file for %s: %w", seg.Name, err)
	}
	return out.Sync()
}

// Close flushes, fsyncs, and closes the active segment. Subsequent calls
// to Append, Commit, or Flush return ErrClosed.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.file == nil {
		return nil
	}
	if err := w.flushLocked(true); err != nil {
		logger.Log.Warn("Error flushing WAL on close: {error}", err)
	}
	return w.file.Close()
}

// Dir returns the WAL's segment directory.
func (w *WAL) Dir() string { return w.cfg.Dir }
