// Package replay provides a forward-scan, read-only reader over the
// collector's committed JSONL output, for backfills, audits, and ad hoc
// symbol lookups that don't warrant standing up the full sink stack.
package replay

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/event"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/internal/logger"
)

const defaultMinSizeForMapping = 1 << 20 // 1 MiB

// Config configures a Reader.
type Config struct {
	DataRoot string
	// MinSizeForMapping is the uncompressed file size at or above which
	// the reader memory-maps instead of streaming. Defaults to 1 MiB.
	MinSizeForMapping int64
}

// Reader is a forward-scan reader over *.jsonl and *.jsonl.gz files beneath
// DataRoot. Parquet output from the columnar sink is not replayable through
// this reader; replaying a columnar batch means reopening it with the
// columnar sink's own schema, not scanning it line by line.
type Reader struct {
	cfg Config
}

// New constructs a Reader.
func New(cfg Config) *Reader {
	if cfg.MinSizeForMapping <= 0 {
		cfg.MinSizeForMapping = defaultMinSizeForMapping
	}
	return &Reader{cfg: cfg}
}

// Filter narrows Each to a time range and/or a symbol set. A zero Filter
// matches every event.
type Filter struct {
	From    time.Time
	To      time.Time
	Symbols []string
}

func (f Filter) matches(evt event.MarketEvent) bool {
	if !f.From.IsZero() && evt.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && evt.Timestamp.After(f.To) {
		return false
	}
	if len(f.Symbols) > 0 {
		matched := false
		for _, s := range f.Symbols {
			if strings.EqualFold(s, evt.Symbol) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// FileVisitor is invoked once per matching event. Returning a non-nil error
// stops the scan and propagates the error to Each's caller.
type FileVisitor func(event.MarketEvent) error

// All visits every event under DataRoot in path order.
func (r *Reader) All(ctx context.Context, visit FileVisitor) error {
	return r.Each(ctx, Filter{}, visit)
}

// Range visits every event whose timestamp falls within [from, to].
func (r *Reader) Range(ctx context.Context, from, to time.Time, visit FileVisitor) error {
	return r.Each(ctx, Filter{From: from, To: to}, visit)
}

// Symbols visits every event whose symbol is in symbols.
func (r *Reader) Symbols(ctx context.Context, symbols []string, visit FileVisitor) error {
	return r.Each(ctx, Filter{Symbols: symbols}, visit)
}

// Each visits every event matching filter, across every data file beneath
// DataRoot, in case-insensitive lexicographic path order.
func (r *Reader) Each(ctx context.Context, filter Filter, visit FileVisitor) error {
	paths, err := r.listFiles()
	if err != nil {
		return err
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.scanFile(ctx, path, filter, visit); err != nil {
			return fmt.Errorf("replay: scanning %s: %w", path, err)
		}
	}
	return nil
}

func (r *Reader) listFiles() ([]string, error) {
	var paths []string
	err := filepath.Walk(r.cfg.DataRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".jsonl") || strings.HasSuffix(path, ".jsonl.gz") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replay: enumerating %s: %w", r.cfg.DataRoot, err)
	}
	sort.Slice(paths, func(i, j int) bool {
		return strings.ToLower(paths[i]) < strings.ToLower(paths[j])
	})
	return paths, nil
}

func (r *Reader) scanFile(ctx context.Context, path string, filter Filter, visit FileVisitor) error {
	if strings.HasSuffix(path, ".gz") {
		return r.scanStreamed(ctx, path, filter, visit)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() >= r.cfg.MinSizeForMapping {
		return r.scanMapped(ctx, path, info.Size(), filter, visit)
	}
	return r.scanStreamed(ctx, path, filter, visit)
}

func (r *Reader) scanStreamed(ctx context.Context, path string, filter Filter, visit FileVisitor) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var src io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("opening gzip stream: %w", err)
		}
		defer gz.Close()
		src = gz
	}

	return r.scanLines(ctx, path, bufio.NewScanner(src), filter, visit)
}

func (r *Reader) scanMapped(ctx context.Context, path string, size int64, filter Filter, visit FileVisitor) error {
	if size == 0 {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := syscall.Mmap(int(f.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		logger.Log.Debug("Memory-mapping {path} failed, streaming instead: {error}", path, err)
		return r.scanStreamed(ctx, path, filter, visit)
	}
	defer func() {
		if err := syscall.Munmap(data); err != nil {
			logger.Log.Warn("Failed to unmap {path}: {error}", path, err)
		}
	}()

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return r.scanLines(ctx, path, scanner, filter, visit)
}

func (r *Reader) scanLines(ctx context.Context, path string, scanner *bufio.Scanner, filter Filter, visit FileVisitor) error {
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var evt event.MarketEvent
		if err := json.Unmarshal(line, &evt); err != nil {
			logger.Log.Debug("Skipping malformed line {line} in {path}: {error}", lineNum, path, err)
			continue
		}

		if !filter.matches(evt) {
			continue
		}
		if err := visit(evt); err != nil {
			return err
		}
	}
	return scanner.Err()
}
