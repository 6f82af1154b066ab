package columnar

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/event"
)

// Each row type below is the fixed, positional schema parquet-go derives
// struct tags from for one event type. Field order is part of the schema
// contract: once a file is written with a given row type, columns must not
// be reordered.

// TradeRow is the eight-column schema for event.TypeTrade.
type TradeRow struct {
	Timestamp      time.Time `parquet:"timestamp,timestamp"`
	Symbol         string    `parquet:"symbol"`
	Price          string    `parquet:"price"`
	Size           string    `parquet:"size"`
	Aggressor      string    `parquet:"aggressor"`
	SequenceNumber int64     `parquet:"sequence_number"`
	Venue          string    `parquet:"venue"`
	Source         string    `parquet:"source"`
}

// BboQuoteRow is the nine-column schema for event.TypeBboQuote.
type BboQuoteRow struct {
	Timestamp time.Time `parquet:"timestamp,timestamp"`
	Symbol    string    `parquet:"symbol"`
	Type      string    `parquet:"type"`
	BidPrice  string    `parquet:"bid_price"`
	BidSize   string    `parquet:"bid_size"`
	AskPrice  string    `parquet:"ask_price"`
	AskSize   string    `parquet:"ask_size"`
	Spread    string    `parquet:"spread"`
	Source    string    `parquet:"source"`
}

// HistoricalBarRow is the nine-column schema for event.TypeHistoricalBar.
type HistoricalBarRow struct {
	Timestamp time.Time `parquet:"timestamp,timestamp"`
	Symbol    string    `parquet:"symbol"`
	Type      string    `parquet:"type"`
	Open      string    `parquet:"open"`
	High      string    `parquet:"high"`
	Low       string    `parquet:"low"`
	Close     string    `parquet:"close"`
	Volume    string    `parquet:"volume"`
	Source    string    `parquet:"source"`
}

// L2SnapshotRow is the eleven-column schema for event.TypeL2Snapshot and
// event.TypeDepth. BidsJSON/AsksJSON carry the full ordered level list;
// the BestBid*/BestAsk* columns duplicate the top of book so queries don't
// need to parse JSON just to filter on it.
type L2SnapshotRow struct {
	Timestamp    time.Time `parquet:"timestamp,timestamp"`
	Symbol       string    `parquet:"symbol"`
	Type         string    `parquet:"type"`
	Source       string    `parquet:"source"`
	Sequence     int64     `parquet:"sequence"`
	BestBidPrice string    `parquet:"best_bid_price"`
	BestBidSize  string    `parquet:"best_bid_size"`
	BestAskPrice string    `parquet:"best_ask_price"`
	BestAskSize  string    `parquet:"best_ask_size"`
	BidsJSON     string    `parquet:"bids_json"`
	AsksJSON     string    `parquet:"asks_json"`
}

// OtherRow is the six-column generic schema for event.TypeOther.
type OtherRow struct {
	Timestamp   time.Time `parquet:"timestamp,timestamp"`
	Symbol      string    `parquet:"symbol"`
	Type        string    `parquet:"type"`
	Source      string    `parquet:"source"`
	Sequence    int64     `parquet:"sequence"`
	PayloadJSON string    `parquet:"payload_json"`
}

func toTradeRow(e event.MarketEvent) (TradeRow, error) {
	t, ok := e.Payload.(event.Trade)
	if !ok {
		return TradeRow{}, fmt.Errorf("columnar: expected Trade payload, got %T", e.Payload)
	}
	return TradeRow{
		Timestamp:      e.Timestamp,
		Symbol:         e.Symbol,
		Price:          t.Price.String(),
		Size:           t.Size.String(),
		Aggressor:      string(t.Aggressor),
		SequenceNumber: t.SequenceNumber,
		Venue:          t.Venue,
		Source:         e.Source,
	}, nil
}

func toBboQuoteRow(e event.MarketEvent) (BboQuoteRow, error) {
	q, ok := e.Payload.(event.BboQuote)
	if !ok {
		return BboQuoteRow{}, fmt.Errorf("columnar: expected BboQuote payload, got %T", e.Payload)
	}
	return BboQuoteRow{
		Timestamp: e.Timestamp,
		Symbol:    e.Symbol,
		Type:      string(e.Type),
		BidPrice:  q.BidPrice.String(),
		BidSize:   q.BidSize.String(),
		AskPrice:  q.AskPrice.String(),
		AskSize:   q.AskSize.String(),
		Spread:    q.Spread.String(),
		Source:    e.Source,
	}, nil
}

func toHistoricalBarRow(e event.MarketEvent) (HistoricalBarRow, error) {
	b, ok := e.Payload.(event.HistoricalBar)
	if !ok {
		return HistoricalBarRow{}, fmt.Errorf("columnar: expected HistoricalBar payload, got %T", e.Payload)
	}
	return HistoricalBarRow{
		Timestamp: e.Timestamp,
		Symbol:    e.Symbol,
		Type:      string(e.Type),
		Open:      b.Open.String(),
		High:      b.High.String(),
		Low:       b.Low.String(),
		Close:     b.Close.String(),
		Volume:    b.Volume.String(),
		Source:    e.Source,
	}, nil
}

func toL2SnapshotRow(e event.MarketEvent) (L2SnapshotRow, error) {
	s, ok := e.Payload.(event.L2Snapshot)
	if !ok {
		return L2SnapshotRow{}, fmt.Errorf("columnar: expected L2Snapshot payload, got %T", e.Payload)
	}
	bidsJSON, err := json.Marshal(s.Bids)
	if err != nil {
		return L2SnapshotRow{}, fmt.Errorf("columnar: encoding bids: %w", err)
	}
	asksJSON, err := json.Marshal(s.Asks)
	if err != nil {
		return L2SnapshotRow{}, fmt.Errorf("columnar: encoding asks: %w", err)
	}
	row := L2SnapshotRow{
		Timestamp: e.Timestamp,
		Symbol:    e.Symbol,
		Type:      string(e.Type),
		Source:    e.Source,
		Sequence:  sequenceValue(e.Sequence),
		BidsJSON:  string(bidsJSON),
		AsksJSON:  string(asksJSON),
	}
	if len(s.Bids) > 0 {
		row.BestBidPrice = s.Bids[0].Price.String()
		row.BestBidSize = s.Bids[0].Size.String()
	}
	if len(s.Asks) > 0 {
		row.BestAskPrice = s.Asks[0].Price.String()
		row.BestAskSize = s.Asks[0].Size.String()
	}
	return row, nil
}

func toOtherRow(e event.MarketEvent) (OtherRow, error) {
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return OtherRow{}, fmt.Errorf("columnar: encoding payload: %w", err)
	}
	return OtherRow{
		Timestamp:   e.Timestamp,
		Symbol:      e.Symbol,
		Type:        string(e.Type),
		Source:      e.Source,
		Sequence:    sequenceValue(e.Sequence),
		PayloadJSON: string(payloadJSON),
	}, nil
}

// sequenceValue flattens an optional provider sequence number for a
// parquet column, which has no native nullable-scalar shape in this
// schema: absent becomes 0, same as an explicit sequence of 0.
func sequenceValue(seq *uint64) int64 {
	if seq == nil {
		return 0
	}
	return int64(*seq)
}
