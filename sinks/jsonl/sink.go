// Package jsonl implements the append-only, line-delimited JSON sink: one
// open writer per destination path, batched writes under a per-path lock,
// optional gzip, and a periodic background drain.
package jsonl

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/event"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/internal/logger"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/pathpolicy"
)

const defaultParallelSerializationThreshold = 100

// Config configures a Sink.
type Config struct {
	DataRoot                      string
	Policy                        pathpolicy.Policy
	BatchSize                     int // 0 or 1 means NoBatching
	FlushInterval                 time.Duration
	Compress                      bool
	ParallelSerializationThreshold int
}

// writer holds per-destination append state, guarded by its own mutex so
// unrelated destinations never block each other.
type writer struct {
	mu      sync.Mutex
	f       *os.File
	gz      *gzip.Writer
	buf     *bufio.Writer
	pending [][]byte
}

// Sink is the JSONL sink described in §4.3. Close must be called exactly
// once to flush and release all open file handles.
type Sink struct {
	cfg Config

	mu      sync.Mutex // guards writers map membership, not writer contents
	writers map[string]*writer

	stop chan struct{}
	done chan struct{}
}

// New constructs a Sink and starts its periodic flush timer.
func New(cfg Config) *Sink {
	if cfg.ParallelSerializationThreshold <= 0 {
		cfg.ParallelSerializationThreshold = defaultParallelSerializationThreshold
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	s := &Sink{
		cfg:     cfg,
		writers: make(map[string]*writer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

func (s *Sink) flushLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				logger.Log.Warn("Periodic JSONL flush failed: {error}", err)
			}
		}
	}
}

func (s *Sink) ext() string {
	if s.cfg.Compress {
		return ".jsonl.gz"
	}
	return ".jsonl"
}

// Append derives the destination path for evt and buffers it, draining
// the per-destination buffer once it reaches BatchSize.
func (s *Sink) Append(evt event.MarketEvent) error {
	path := s.cfg.Policy.Resolve(s.cfg.DataRoot, evt, s.ext())
	line, err := marshalLine(evt)
	if err != nil {
		return fmt.Errorf("jsonl: serializing event: %w", err)
	}
	return s.appendLine(path, line)
}

// AppendBatch appends many events, serializing them on a worker pool once
// the batch exceeds ParallelSerializationThreshold, per §4.3.
func (s *Sink) AppendBatch(ctx context.Context, events []event.MarketEvent) error {
	type keyed struct {
		path string
		line []byte
	}
	lines := make([]keyed, len(events))

	serialize := func(i int) error {
		line, err := marshalLine(events[i])
		if err != nil {
			return fmt.Errorf("jsonl: serializing event %d: %w", i, err)
		}
		lines[i] = keyed{path: s.cfg.Policy.Resolve(s.cfg.DataRoot, events[i], s.ext()), line: line}
		return nil
	}

	if len(events) > s.cfg.ParallelSerializationThreshold {
		g, _ := errgroup.WithContext(ctx)
		for i := range events {
			i := i
			g.Go(func() error { return serialize(i) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		for i := range events {
			if err := serialize(i); err != nil {
				return err
			}
		}
	}

	for _, kl := range lines {
		if err := s.appendLine(kl.path, kl.line); err != nil {
			return err
		}
	}
	return nil
}

func marshalLine(evt event.MarketEvent) ([]byte, error) {
	line, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

func (s *Sink) appendLine(path string, line []byte) error {
	w, err := s.writerFor(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if s.cfg.BatchSize <= 1 {
		return w.write(line)
	}
	w.pending = append(w.pending, line)
	if len(w.pending) >= s.cfg.BatchSize {
		return w.drainLocked()
	}
	return nil
}

func (w *writer) write(line []byte) error {
	if _, err := w.buf.Write(line); err != nil {
		return fmt.Errorf("jsonl: writing record: %w", err)
	}
	return w.flushLocked()
}

func (w *writer) drainLocked() error {
	for _, line := range w.pending {
		if _, err := w.buf.Write(line); err != nil {
			return fmt.Errorf("jsonl: writing batch: %w", err)
		}
	}
	w.pending = w.pending[:0]
	return w.flushLocked()
}

func (w *writer) flushLocked() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("jsonl: flushing buffer: %w", err)
	}
	if w.gz != nil {
		if err := w.gz.Flush(); err != nil {
			return fmt.Errorf("jsonl: flushing gzip stream: %w", err)
		}
	}
	return w.f.Sync()
}

func (s *Sink) writerFor(path string) (*writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.writers[path]; ok {
		return w, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("jsonl: creating destination directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("jsonl: opening %s: %w", path, err)
	}

	w := &writer{f: f}
	if s.cfg.Compress {
		w.gz = gzip.NewWriter(f)
		w.buf = bufio.NewWriter(w.gz)
	} else {
		w.buf = bufio.NewWriter(f)
	}
	s.writers[path] = w
	return w, nil
}

// Flush drains every buffer and fsyncs every open writer.
func (s *Sink) Flush() error {
	s.mu.Lock()
	paths := make([]string, 0, len(s.writers))
	for p := range s.writers {
		paths = append(paths, p)
	}
	sort.Strings(paths) // deterministic order, easier to reason about under test
	s.mu.Unlock()

	for _, p := range paths {
		s.mu.Lock()
		w := s.writers[p]
		s.mu.Unlock()

		w.mu.Lock()
		err := w.drainLocked()
		w.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// Close flushes every buffer, then closes every writer (including gzip
// trailers). The background flush loop is stopped first.
func (s *Sink) Close() error {
	close(s.stop)
	<-s.done

	if err := s.Flush(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for path, w := range s.writers {
		w.mu.Lock()
		if w.gz != nil {
			if err := w.gz.Close(); err != nil {
				w.mu.Unlock()
				return fmt.Errorf("jsonl: closing gzip stream for %s: %w", path, err)
			}
		}
		err := w.f.Close()
		w.mu.Unlock()
		if err != nil {
			return fmt.Errorf("jsonl: closing %s: %w", path, err)
		}
	}
	return nil
}
