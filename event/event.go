// Package event defines the MarketEvent payload that flows through the
// collector: from provider ingestion, through the write-ahead log, into
// the JSONL and columnar sinks.
package event

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Type is the closed set of market event kinds the pipeline understands.
type Type string

const (
	TypeTrade         Type = "Trade"
	TypeBboQuote      Type = "BboQuote"
	TypeDepth         Type = "Depth"
	TypeL2Snapshot    Type = "L2Snapshot"
	TypeHistoricalBar Type = "HistoricalBar"
	TypeOther         Type = "Other"
)

func (t Type) valid() bool {
	switch t {
	case TypeTrade, TypeBboQuote, TypeDepth, TypeL2Snapshot, TypeHistoricalBar, TypeOther:
		return true
	}
	return false
}

// Aggressor identifies which side of a trade initiated it.
type Aggressor string

const (
	AggressorBuy     Aggressor = "Buy"
	AggressorSell    Aggressor = "Sell"
	AggressorUnknown Aggressor = "Unknown"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-/]{1,12}$`)

// PriceSize is a single price level, used by depth and L2 snapshot payloads.
type PriceSize struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// Trade is the payload for TypeTrade.
type Trade struct {
	Price          decimal.Decimal `json:"price"`
	Size           decimal.Decimal `json:"size"`
	Aggressor      Aggressor       `json:"aggressor"`
	SequenceNumber int64           `json:"sequence_number"`
	Venue          string          `json:"venue"`
}

// BboQuote is the payload for TypeBboQuote.
type BboQuote struct {
	BidPrice decimal.Decimal `json:"bid_price"`
	BidSize  decimal.Decimal `json:"bid_size"`
	AskPrice decimal.Decimal `json:"ask_price"`
	AskSize  decimal.Decimal `json:"ask_size"`
	Spread   decimal.Decimal `json:"spread"`
}

// HistoricalBar is the payload for TypeHistoricalBar.
type HistoricalBar struct {
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// L2Snapshot is the payload for TypeL2Snapshot and TypeDepth.
type L2Snapshot struct {
	Bids []PriceSize `json:"bids"`
	Asks []PriceSize `json:"asks"`
}

// Other is the payload for any event type that doesn't fit the well-known
// variants; Fields carries the provider's raw key/value pairs.
type Other struct {
	Fields map[string]any `json:"fields"`
}

// MarketEvent is the sole payload unit flowing through the pipeline. It is
// immutable once constructed; callers should not mutate Payload in place.
type MarketEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Type      Type      `json:"type"`
	Payload   any       `json:"payload"`
	// Sequence is an optional provider-assigned sequence number, distinct
	// from the WAL's own sequence numbering. nil means the provider didn't
	// supply one; 0 is a valid sequence, not a stand-in for absent.
	Sequence *uint64 `json:"sequence,omitempty"`
	Source   string  `json:"source"`
}

// Validate checks the event's structural invariants from the data model:
// symbol shape, closed type set, and payload/type agreement.
func (e MarketEvent) Validate() error {
	if e.Timestamp.IsZero() {
		return fmt.Errorf("event: timestamp is required")
	}
	if !symbolPattern.MatchString(e.Symbol) {
		return fmt.Errorf("event: symbol %q does not match required shape", e.Symbol)
	}
	if !e.Type.valid() {
		return fmt.Errorf("event: unknown type %q", e.Type)
	}
	if e.Source == "" {
		return fmt.Errorf("event: source is required")
	}
	switch e.Type {
	case TypeTrade:
		if _, ok := e.Payload.(Trade); !ok {
			return fmt.Errorf("event: type Trade requires a Trade payload, got %T", e.Payload)
		}
	case TypeBboQuote:
		if _, ok := e.Payload.(BboQuote); !ok {
			return fmt.Errorf("event: type BboQuote requires a BboQuote payload, got %T", e.Payload)
		}
	case TypeHistoricalBar:
		if _, ok := e.Payload.(HistoricalBar); !ok {
			return fmt.Errorf("event: type HistoricalBar requires a HistoricalBar payload, got %T", e.Payload)
		}
	case TypeDepth, TypeL2Snapshot:
		if _, ok := e.Payload.(L2Snapshot); !ok {
			return fmt.Errorf("event: type %s requires an L2Snapshot payload, got %T", e.Type, e.Payload)
		}
	}
	return nil
}

// marketEventWire is MarketEvent's wire shape: Payload is held as raw JSON
// so MarshalJSON/UnmarshalJSON can round-trip it through its concrete,
// type-specific struct rather than a generic map[string]any.
type marketEventWire struct {
	Timestamp time.Time       `json:"timestamp"`
	Symbol    string          `json:"symbol"`
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Sequence  *uint64         `json:"sequence,omitempty"`
	Source    string          `json:"source"`
}

// MarshalJSON serializes Payload using its concrete type rather than
// whatever dynamic shape the any interface happens to hold.
func (e MarketEvent) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("event: marshaling payload: %w", err)
	}
	return json.Marshal(marketEventWire{
		Timestamp: e.Timestamp,
		Symbol:    e.Symbol,
		Type:      e.Type,
		Payload:   payload,
		Sequence:  e.Sequence,
		Source:    e.Source,
	})
}

// UnmarshalJSON decodes Payload into the concrete struct that Type implies,
// so downstream consumers can safely type-switch on e.Payload.
func (e *MarketEvent) UnmarshalJSON(data []byte) error {
	var wire marketEventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("event: decoding envelope: %w", err)
	}

	e.Timestamp = wire.Timestamp
	e.Symbol = wire.Symbol
	e.Type = wire.Type
	e.Sequence = wire.Sequence
	e.Source = wire.Source

	if len(wire.Payload) == 0 {
		e.Payload = nil
		return nil
	}

	switch wire.Type {
	case TypeTrade:
		var p Trade
		if err := json.Unmarshal(wire.Payload, &p); err != nil {
			return fmt.Errorf("event: decoding Trade payload: %w", err)
		}
		e.Payload = p
	case TypeBboQuote:
		var p BboQuote
		if err := json.Unmarshal(wire.Payload, &p); err != nil {
			return fmt.Errorf("event: decoding BboQuote payload: %w", err)
		}
		e.Payload = p
	case TypeHistoricalBar:
		var p HistoricalBar
		if err := json.Unmarshal(wire.Payload, &p); err != nil {
			return fmt.Errorf("event: decoding HistoricalBar payload: %w", err)
		}
		e.Payload = p
	case TypeDepth, TypeL2Snapshot:
		var p L2Snapshot
		if err := json.Unmarshal(wire.Payload, &p); err != nil {
			return fmt.Errorf("event: decoding L2Snapshot payload: %w", err)
		}
		e.Payload = p
	default:
		var p Other
		if err := json.Unmarshal(wire.Payload, &p); err != nil {
			return fmt.Errorf("event: decoding Other payload: %w", err)
		}
		e.Payload = p
	}
	return nil
}
