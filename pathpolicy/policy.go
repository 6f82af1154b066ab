// Package pathpolicy turns an event plus storage configuration into a
// destination path. Resolve is a pure function: the same input always
// yields the same output, with no filesystem access of its own.
package pathpolicy

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/event"
)

// NamingConvention selects the base directory layout beneath data_root.
type NamingConvention string

const (
	Flat          NamingConvention = "Flat"
	BySymbol      NamingConvention = "BySymbol"
	ByDate        NamingConvention = "ByDate"
	ByType        NamingConvention = "ByType"
	BySource      NamingConvention = "BySource"
	ByAssetClass  NamingConvention = "ByAssetClass"
	Hierarchical  NamingConvention = "Hierarchical"
	Canonical     NamingConvention = "Canonical"
)

// DatePartition selects how the filename stem encodes the event's date.
type DatePartition string

const (
	PartitionNone    DatePartition = "None"
	PartitionDaily   DatePartition = "Daily"
	PartitionHourly  DatePartition = "Hourly"
	PartitionMonthly DatePartition = "Monthly"
)

// Policy is a stateless, comparable configuration for deriving destination
// paths. The zero value is Flat/None, no prefix, no provider fragment.
type Policy struct {
	NamingConvention NamingConvention
	DatePartition    DatePartition
	IncludeProvider  bool
	FilePrefix       string
	// ShardBuckets, when > 0, fans a Hierarchical/Canonical leaf directory
	// out into this many hashed subdirectories, keyed on symbol+source, to
	// bound directory fanout in very deep trees.
	ShardBuckets int
}

// assetClassFor maps an event type onto the coarse ByAssetClass grouping.
func assetClassFor(t event.Type) string {
	switch t {
	case event.TypeTrade, event.TypeBboQuote, event.TypeDepth, event.TypeL2Snapshot:
		return "equity_like"
	case event.TypeHistoricalBar:
		return "bars"
	default:
		return "misc"
	}
}

// Resolve computes the full destination path beneath dataRoot for evt,
// with the given file extension (".jsonl", ".jsonl.gz", or ".parquet").
func (p Policy) Resolve(dataRoot string, evt event.MarketEvent, ext string) string {
	base := p.basePath(evt)
	if p.ShardBuckets > 0 && (p.NamingConvention == Hierarchical || p.NamingConvention == Canonical) {
		base = filepath.Join(base, p.shardBucket(evt))
	}
	filename := p.filename(evt) + ext
	return filepath.Join(dataRoot, base, filename)
}

func (p Policy) basePath(evt event.MarketEvent) string {
	t := evt.Timestamp.UTC()
	switch p.NamingConvention {
	case BySymbol:
		return evt.Symbol
	case ByDate:
		return filepath.Join(fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", t.Month()), fmt.Sprintf("%02d", t.Day()))
	case ByType:
		return string(evt.Type)
	case BySource:
		return evt.Source
	case ByAssetClass:
		return assetClassFor(evt.Type)
	case Hierarchical:
		return filepath.Join(evt.Source, evt.Symbol, string(evt.Type),
			fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", t.Month()), fmt.Sprintf("%02d", t.Day()))
	case Canonical:
		return filepath.Join(evt.Source, fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", t.Month()), evt.Symbol, string(evt.Type))
	case Flat:
		fallthrough
	default:
		return ""
	}
}

func (p Policy) shardBucket(evt event.MarketEvent) string {
	h := xxhash.Sum64String(evt.Source + "/" + evt.Symbol)
	return fmt.Sprintf("shard-%02d", h%uint64(p.ShardBuckets))
}

func (p Policy) filename(evt event.MarketEvent) string {
	t := evt.Timestamp.UTC()
	var stem string
	switch p.DatePartition {
	case PartitionDaily:
		stem = t.Format("2006-01-02")
	case PartitionHourly:
		stem = t.Format("2006-01-02-15")
	case PartitionMonthly:
		stem = t.Format("2006-01")
	case PartitionNone:
		fallthrough
	default:
		stem = "events"
	}

	var parts []string
	if p.FilePrefix != "" {
		parts = append(parts, p.FilePrefix)
	}
	if p.IncludeProvider && evt.Source != "" {
		parts = append(parts, evt.Source)
	}
	parts = append(parts, stem)
	return strings.Join(parts, "-")
}
