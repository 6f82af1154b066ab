// Package columnar implements the column-oriented sink: events are grouped
// by (symbol, type, date) into typed batches and emitted as Parquet files
// via github.com/parquet-go/parquet-go.
package columnar

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/event"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/internal/logger"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/pathpolicy"
)

// Compression selects the Parquet page compression codec.
type Compression string

const (
	CompressionNone   Compression = "None"
	CompressionSnappy Compression = "Snappy"
	CompressionGzip   Compression = "Gzip"
)

func (c Compression) codec() parquet.Compression {
	switch c {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// Config configures a Sink.
type Config struct {
	DataRoot      string
	Policy        pathpolicy.Policy
	BufferSize    int
	FlushInterval time.Duration
	Compression   Compression
}

type bufferKey struct {
	symbol string
	typ    event.Type
	date   string
}

func keyFor(e event.MarketEvent) bufferKey {
	return bufferKey{symbol: e.Symbol, typ: e.Type, date: e.Timestamp.UTC().Format("2006-01-02")}
}

// Sink is the columnar sink described in §4.4. A single global mutex
// guards every buffer and every flush, since Parquet files are written
// whole and a cascading flush across many keys is cheap to serialize.
type Sink struct {
	cfg Config

	mu      sync.Mutex
	buffers map[bufferKey][]event.MarketEvent

	stop chan struct{}
	done chan struct{}
}

// New constructs a Sink and starts its periodic global flush timer.
func New(cfg Config) *Sink {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}
	s := &Sink{
		cfg:     cfg,
		buffers: make(map[bufferKey][]event.MarketEvent),
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
				logger.Log.Warn("Periodic columnar flush failed: {error}", err)
			}
		}
	}
}

// Append buffers evt under its (symbol, type, date) key, draining that key
// once it reaches BufferSize.
func (s *Sink) Append(evt event.MarketEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := keyFor(evt)
	s.buffers[key] = append(s.buffers[key], evt)
	if len(s.buffers[key]) >= s.cfg.BufferSize {
		return s.flushKeyLocked(key)
	}
	return nil
}

// Flush drains every non-empty key under the global mutex.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.buffers {
		if err := s.flushKeyLocked(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) flushKeyLocked(key bufferKey) error {
	batch := s.buffers[key]
	if len(batch) == 0 {
		return nil
	}
	delete(s.buffers, key)

	path := s.cfg.Policy.Resolve(s.cfg.DataRoot, batch[0], ".parquet")
	if err := os.MkdirAll(dirOf(path), 0o755); err != nil {
		return fmt.Errorf("columnar: creating destination directory: %w", err)
	}

	if err := writeBatch(path, key.typ, batch, s.cfg.Compression.codec()); err != nil {
		return fmt.Errorf("columnar: flushing %s/%s/%s: %w", key.symbol, key.typ, key.date, err)
	}
	return nil
}

func dirOf(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' && path[i] != '\\' {
		i--
	}
	if i < 0 {
		return "."
	}
	return path[:i]
}

// writeBatch converts batch into its fixed positional schema in a single
// pass and writes one Parquet file.
func writeBatch(path string, typ event.Type, batch []event.MarketEvent, codec parquet.Compression) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	switch typ {
	case event.TypeTrade:
		rows := make([]TradeRow, 0, len(batch))
		for _, e := range batch {
			row, err := toTradeRow(e)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return writeRows(f, rows, codec)
	case event.TypeBboQuote:
		rows := make([]BboQuoteRow, 0, len(batch))
		for _, e := range batch {
			row, err := toBboQuoteRow(e)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return writeRows(f, rows, codec)
	case event.TypeHistoricalBar:
		rows := make([]HistoricalBarRow, 0, len(batch))
		for _, e := range batch {
			row, err := toHistoricalBarRow(e)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return writeRows(f, rows, codec)
	case event.TypeDepth, event.TypeL2Snapshot:
		rows := make([]L2SnapshotRow, 0, len(batch))
		for _, e := range batch {
			row, err := toL2SnapshotRow(e)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return writeRows(f, rows, codec)
	default:
		rows := make([]OtherRow, 0, len(batch))
		for _, e := range batch {
			row, err := toOtherRow(e)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return writeRows(f, rows, codec)
	}
}

func writeRows[T any](f *os.File, rows []T, codec parquet.Compression) error {
	w := parquet.NewGenericWriter[T](f, parquet.Compression(codec))
	if _, err := w.Write(rows); err != nil {
		return fmt.Errorf("writing rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}
	return f.Sync()
}

// Close stops the background flush timer and performs one final flush
// under the global mutex, per §4.4's disposal contract.
func (s *Sink) Close() error {
	close(s.stop)
	<-s.done
	return s.Flush()
}
