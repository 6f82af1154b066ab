package replay

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/event"
)

func tradeEvent(t *testing.T, symbol string, ts time.Time) event.MarketEvent {
	t.Helper()
	return event.MarketEvent{
		Timestamp: ts,
		Symbol:    symbol,
		Type:      event.TypeTrade,
		Source:    "test",
		Payload: event.Trade{
			Price:     decimal.NewFromFloat(100.5),
			Size:      decimal.NewFromInt(10),
			Aggressor: event.AggressorBuy,
			Venue:     "XNAS",
		},
	}
}

func writeJSONL(t *testing.T, path string, events ...event.MarketEvent) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	var buf bytes.Buffer
	for _, evt := range events {
		line, err := json.Marshal(evt)
		require.NoError(t, err)
		buf.Write(line)
		buf.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeJSONLGZ(t *testing.T, path string, events ...event.MarketEvent) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	for _, evt := range events {
		line, err := json.Marshal(evt)
		require.NoError(t, err)
		gz.Write(line)
		gz.Write([]byte("\n"))
	}
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestEach_VisitsEventsInPathOrder(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	writeJSONL(t, filepath.Join(root, "AAPL", "Trade", "2026-07-30.jsonl"), tradeEvent(t, "AAPL", base))
	writeJSONL(t, filepath.Join(root, "MSFT", "Trade", "2026-07-30.jsonl"), tradeEvent(t, "MSFT", base.Add(time.Minute)))

	r := New(Config{DataRoot: root})
	var symbols []string
	require.NoError(t, r.All(context.Background(), func(evt event.MarketEvent) error {
		symbols = append(symbols, evt.Symbol)
		return nil
	}))
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)
}

func TestEach_ReadsGzipFiles(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	writeJSONLGZ(t, filepath.Join(root, "AAPL", "Trade", "2026-07-29.jsonl.gz"), tradeEvent(t, "AAPL", base))

	r := New(Config{DataRoot: root})
	var count int
	require.NoError(t, r.All(context.Background(), func(evt event.MarketEvent) error {
		count++
		assert.Equal(t, "AAPL", evt.Symbol)
		_, ok := evt.Payload.(event.Trade)
		assert.True(t, ok)
		return nil
	}))
	assert.Equal(t, 1, count)
}

func TestRange_FiltersByTimestamp(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	writeJSONL(t, filepath.Join(root, "AAPL", "Trade", "2026-07-30.jsonl"),
		tradeEvent(t, "AAPL", base),
		tradeEvent(t, "AAPL", base.Add(time.Hour)),
		tradeEvent(t, "AAPL", base.Add(2*time.Hour)),
	)

	r := New(Config{DataRoot: root})
	var timestamps []time.Time
	err := r.Range(context.Background(), base.Add(30*time.Minute), base.Add(90*time.Minute), func(evt event.MarketEvent) error {
		timestamps = append(timestamps, evt.Timestamp)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, timestamps, 1)
	assert.True(t, timestamps[0].Equal(base.Add(time.Hour)))
}

func TestSymbols_FiltersCaseInsensitively(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	writeJSONL(t, filepath.Join(root, "mixed.jsonl"),
		tradeEvent(t, "AAPL", base),
		tradeEvent(t, "MSFT", base),
	)

	r := New(Config{DataRoot: root})
	var symbols []string
	err := r.Symbols(context.Background(), []string{"aapl"}, func(evt event.MarketEvent) error {
		symbols = append(symbols, evt.Symbol)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, symbols)
}

func TestEach_SkipsMalformedLinesAndContinues(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "broken.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	base := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	good := tradeEvent(t, "AAPL", base)
	goodLine, err := json.Marshal(good)
	require.NoError(t, err)

	var buf bytes.Buffer
	buf.WriteString("{not valid json\n")
	buf.Write(goodLine)
	buf.WriteByte('\n')
	buf.WriteString("\n")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	r := New(Config{DataRoot: root})
	var count int
	require.NoError(t, r.All(context.Background(), func(evt event.MarketEvent) error {
		count++
		return nil
	}))
	assert.Equal(t, 1, count)
}

func TestEach_MemoryMapsFilesAboveThreshold(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	path := filepath.Join(root, "large.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	var buf bytes.Buffer
	const wantEvents = 50
	for i := 0; i < wantEvents; i++ {
		line, err := json.Marshal(tradeEvent(t, "AAPL", base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
		buf.Write(line)
		buf.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	r := New(Config{DataRoot: root, MinSizeForMapping: 1})
	var count int
	require.NoError(t, r.All(context.Background(), func(evt event.MarketEvent) error {
		count++
		return nil
	}))
	assert.Equal(t, wantEvents, count)
}

func TestEach_StopsOnVisitorError(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	writeJSONL(t, filepath.Join(root, "events.jsonl"),
		tradeEvent(t, "AAPL", base),
		tradeEvent(t, "AAPL", base.Add(time.Minute)),
	)

	r := New(Config{DataRoot: root})
	wantErr := assert.AnError
	var count int
	err := r.All(context.Background(), func(evt event.MarketEvent) error {
		count++
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, count)
}

func TestEach_HonorsContextCancellation(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	writeJSONL(t, filepath.Join(root, "a.jsonl"), tradeEvent(t, "AAPL", base))
	writeJSONL(t, filepath.Join(root, "b.jsonl"), tradeEvent(t, "MSFT", base))

	r := New(Config{DataRoot: root})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.All(ctx, func(evt event.MarketEvent) error {
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEach_EmptyDataRootVisitsNothing(t *testing.T) {
	root := t.TempDir()
	r := New(Config{DataRoot: root})
	var count int
	require.NoError(t, r.All(context.Background(), func(evt event.MarketEvent) error {
		count++
		return nil
	}))
	assert.Equal(t, 0, count)
}
