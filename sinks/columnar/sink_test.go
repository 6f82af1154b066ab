package columnar

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/event"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/pathpolicy"
)

func tradeEvent(symbol string, ts time.Time) event.MarketEvent {
	return event.MarketEvent{
		Timestamp: ts,
		Symbol:    symbol,
		Type:      event.TypeTrade,
		Source:    "nasdaq",
		Payload: event.Trade{
			Price: decimal.NewFromFloat(10),
			Size:  decimal.NewFromInt(1),
		},
	}
}

func TestSink_FlushesAtBufferSize(t *testing.T) {
	dir := t.TempDir()
	s := New(Config{DataRoot: dir, Policy: pathpolicy.Policy{NamingConvention: pathpolicy.BySymbol}, BufferSize: 2})
	defer s.Close()

	ts := time.Now().UTC()
	if err := s.Append(tradeEvent("AAPL", ts)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Append(tradeEvent("AAPL", ts)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "AAPL"))
	if err != nil {
		t.Fatalf("expected output directory to exist: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one parquet file, got %d", len(entries))
	}

	f, err := os.Open(filepath.Join(dir, "AAPL", entries[0].Name()))
	if err != nil {
		t.Fatalf("opening parquet file: %v", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	reader := parquet.NewGenericReader[TradeRow](f, info.Size())
	defer reader.Close()
	rows := make([]TradeRow, 2)
	n, err := reader.Read(rows)
	if err != nil && n != 2 {
		t.Fatalf("unexpected error reading back rows: %v (n=%d)", err, n)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}
}

func TestSink_SeparatesKeysBySymbolTypeDate(t *testing.T) {
	dir := t.TempDir()
	s := New(Config{DataRoot: dir, Policy: pathpolicy.Policy{NamingConvention: pathpolicy.BySymbol}, BufferSize: 100})

	if err := s.Append(tradeEvent("AAPL", time.Now())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Append(tradeEvent("MSFT", time.Now())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "AAPL")); err != nil {
		t.Fatal("expected AAPL destination to exist")
	}
	if _, err := os.Stat(filepath.Join(dir, "MSFT")); err != nil {
		t.Fatal("expected MSFT destination to exist")
	}
}

func TestSink_CloseFlushesRemainingBuffer(t *testing.T) {
	dir := t.TempDir()
	s := New(Config{DataRoot: dir, Policy: pathpolicy.Policy{NamingConvention: pathpolicy.Flat}, BufferSize: 1000})
	if err := s.Append(tradeEvent("AAPL", time.Now())); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected close to flush the pending buffer into one file, got %d entries", len(entries))
	}
}
