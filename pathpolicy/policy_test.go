package pathpolicy

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/event"
	"github.com/shopspring/decimal"
)

func sampleEvent() event.MarketEvent {
	return event.MarketEvent{
		Timestamp: time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC),
		Symbol:    "AAPL",
		Type:      event.TypeTrade,
		Source:    "nasdaq",
		Payload: event.Trade{
			Price: decimal.NewFromFloat(100),
			Size:  decimal.NewFromInt(10),
		},
	}
}

func TestResolve_Flat(t *testing.T) {
	p := Policy{NamingConvention: Flat, DatePartition: PartitionNone}
	got := p.Resolve("/data", sampleEvent(), ".jsonl")
	want := filepath.Join("/data", "events.jsonl")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolve_BySymbolWithDailyPartition(t *testing.T) {
	p := Policy{NamingConvention: BySymbol, DatePartition: PartitionDaily}
	got := p.Resolve("/data", sampleEvent(), ".jsonl")
	want := filepath.Join("/data", "AAPL", "2026-03-04.jsonl")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolve_ByAssetClassGroupsEquityLikeTypes(t *testing.T) {
	p := Policy{NamingConvention: ByAssetClass}
	trade := sampleEvent()
	quote := sampleEvent()
	quote.Type = event.TypeBboQuote
	quote.Payload = event.BboQuote{}

	tradePath := p.Resolve("/data", trade, ".jsonl")
	quotePath := p.Resolve("/data", quote, ".jsonl")
	if filepath.Dir(tradePath) != filepath.Dir(quotePath) {
		t.Fatalf("expected Trade and BboQuote to share a bucket, got %q and %q", tradePath, quotePath)
	}
	bar := sampleEvent()
	bar.Type = event.TypeHistoricalBar
	bar.Payload = event.HistoricalBar{}
	barPath := p.Resolve("/data", bar, ".jsonl")
	if filepath.Dir(barPath) == filepath.Dir(tradePath) {
		t.Fatalf("expected HistoricalBar to land in a different bucket than Trade")
	}
}

func TestResolve_Hierarchical(t *testing.T) {
	p := Policy{NamingConvention: Hierarchical, DatePartition: PartitionHourly}
	got := p.Resolve("/data", sampleEvent(), ".jsonl")
	want := filepath.Join("/data", "nasdaq", "AAPL", "Trade", "2026", "03", "04", "2026-03-04-15.jsonl")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolve_Canonical(t *testing.T) {
	p := Policy{NamingConvention: Canonical, DatePartition: PartitionNone}
	got := p.Resolve("/data", sampleEvent(), ".parquet")
	want := filepath.Join("/data", "nasdaq", "2026", "03", "AAPL", "Trade", "events.parquet")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolve_IsPureFunction(t *testing.T) {
	p := Policy{NamingConvention: BySource, DatePartition: PartitionMonthly, FilePrefix: "md", IncludeProvider: true}
	evt := sampleEvent()
	first := p.Resolve("/data", evt, ".jsonl")
	second := p.Resolve("/data", evt, ".jsonl")
	if first != second {
		t.Fatalf("expected deterministic output, got %q then %q", first, second)
	}
}

func TestResolve_ShardBucketsFanOutHierarchicalTrees(t *testing.T) {
	p := Policy{NamingConvention: Hierarchical, ShardBuckets: 4}
	a := sampleEvent()
	b := sampleEvent()
	b.Symbol = "MSFT"

	pathA := p.Resolve("/data", a, ".jsonl")
	pathB := p.Resolve("/data", b, ".jsonl")
	if pathA == pathB {
		t.Fatal("expected distinct symbols to (likely) land in different shard buckets or at least different full paths")
	}
}
